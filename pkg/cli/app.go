package cli

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/catalog"
	"github.com/askdb/askdb/pkg/config"
	"github.com/askdb/askdb/pkg/database"
	"github.com/askdb/askdb/pkg/llm"
	"github.com/askdb/askdb/pkg/logging"
	"github.com/askdb/askdb/pkg/prompts"
	"github.com/askdb/askdb/pkg/retrieval"
	"github.com/askdb/askdb/pkg/retry"
	"github.com/askdb/askdb/pkg/services"
)

// app carries state shared by all commands once the root has loaded configuration.
type app struct {
	version    string
	configPath string

	cfg    *config.Config
	logger *zap.Logger
}

func (a *app) load() error {
	cfg, err := config.Load(a.version, a.configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// core is the wired generation and execution pipeline.
type core struct {
	reader     *database.Reader
	catalog    *catalog.Catalog
	generator  services.SQLGenerator
	askService services.AskService
}

func (c *core) Close() error {
	return c.reader.Close()
}

// buildCore connects to the target database and assembles the pipeline.
// A database that is still starting is retried with backoff.
func (a *app) buildCore(ctx context.Context) (*core, error) {
	cfg := a.cfg
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	dbCfg := &database.Config{
		URL:             cfg.Database.DSN,
		Role:            cfg.Database.ReadOnlyRole,
		ReadOnlySession: cfg.Database.ReadOnlySession,
		MaxConnections:  cfg.Database.MaxConnections,
	}
	var db *sql.DB
	err := retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		var err error
		db, err = database.Open(ctx, dbCfg, a.logger)
		if err != nil {
			a.logger.Warn("Database not reachable yet", zap.String("error", logging.SanitizeError(err)))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %s", logging.SanitizeError(err))
	}
	reader := database.NewReader(db, dbCfg, a.logger)

	cat := catalog.New(reader, cfg.Database.Schema, a.logger)
	retriever := retrieval.NewRetriever(cat, cfg.Generator.BusinessRules, a.logger)

	examples, err := prompts.LoadExamples(cfg.Generator.ExamplesPath)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	client, err := llm.NewClientFromConfig(llm.ProviderConfig{
		Provider:        cfg.LLM.Provider,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		OpenAIAPIKey:    cfg.LLM.OpenAIAPIKey,
		AnthropicAPIKey: cfg.LLM.AnthropicAPIKey,
		MaxTokens:       cfg.LLM.MaxTokens,
		JSONMode:        cfg.LLM.JSONMode,
		Breaker: llm.CircuitBreakerConfig{
			Threshold:  cfg.LLM.BreakerThreshold,
			ResetAfter: cfg.LLM.BreakerReset(),
		},
	}, a.logger)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	generator := services.NewSQLGenerator(cat, retriever, client, examples, services.GeneratorConfig{
		Mode:            cfg.Generator.Mode,
		ContextSize:     cfg.Generator.ContextSize,
		MaxExamples:     cfg.Generator.MaxExamples,
		PreferredTables: cfg.Generator.PreferredTables,
		DateColumn:      cfg.Generator.DateColumn,
		ScopeColumn:     cfg.Generator.ScopeColumn,
		Temperature:     cfg.LLM.Temperature,
		Timeout:         cfg.LLM.Timeout(),
	}, a.logger)

	identity := services.NewIdentityResolver(reader, cfg.Database.Schema, cfg.Database.UsersTable,
		cfg.Identity.CacheTTL(), cfg.Identity.CacheCapacity, a.logger)

	askService := services.NewAskService(cat, identity, generator, reader, services.AskOptions{
		DefaultLimit:           cfg.Generator.DefaultLimit,
		ExecuteOnClarification: cfg.Generator.ExecuteOnClarification,
	}, a.logger)

	a.logger.Info("Pipeline ready",
		zap.String("schema", cfg.Database.Schema),
		zap.String("mode", cfg.Generator.Mode),
		zap.Int("examples", len(examples)),
		zap.Bool("backend", client != nil))

	return &core{
		reader:     reader,
		catalog:    cat,
		generator:  generator,
		askService: askService,
	}, nil
}
