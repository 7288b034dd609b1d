package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/apperrors"
	"github.com/askdb/askdb/pkg/llm"
	"github.com/askdb/askdb/pkg/logging"
	"github.com/askdb/askdb/pkg/metrics"
	"github.com/askdb/askdb/pkg/models"
	"github.com/askdb/askdb/pkg/prompts"
	sqlutil "github.com/askdb/askdb/pkg/sql"
)

// Generation modes.
const (
	ModeSingle   = "single"
	ModeTwoStage = "two_stage"
)

// Backend call stages, used as metric labels.
const (
	stageGenerate     = "generate"
	stageSelectTables = "select_tables"
)

// User-facing clarification messages.
const (
	ClarificationBackendFailed = "Не удалось сгенерировать SQL. Уточните запрос."
	ClarificationSchemaMissing = "Схема базы данных недоступна."
)

const trivialSQL = "SELECT 1 AS ok"

// DefaultPreferredTables are tried in order when choosing the fallback and fast-path table.
var DefaultPreferredTables = []string{"tasks", "task", "users", "user"}

// SchemaCatalog is the read side of the schema cache used by generation.
type SchemaCatalog interface {
	EnsureLoaded(ctx context.Context) error
	TableNames(ctx context.Context) []string
	Table(ctx context.Context, name string) (*models.TableSchema, bool)
	FirstTableMatching(ctx context.Context, preferences []string) (string, bool)
	ResolveTable(ctx context.Context, name string) (string, bool)
	Describe(ctx context.Context, tables []string) []string
}

// ContextRetriever ranks schema snippets and business rules for a question.
type ContextRetriever interface {
	Retrieve(ctx context.Context, question string, k int) []string
}

// GeneratorConfig tunes the generation pipeline. Zero values select defaults.
type GeneratorConfig struct {
	Mode            string
	ContextSize     int
	MaxExamples     int
	PreferredTables []string
	DateColumn      string
	ScopeColumn     string
	Temperature     float64
	Timeout         time.Duration
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.Mode == "" {
		c.Mode = ModeSingle
	}
	if c.ContextSize <= 0 {
		c.ContextSize = 12
	}
	if c.MaxExamples <= 0 || c.MaxExamples > prompts.MaxExamples {
		c.MaxExamples = prompts.MaxExamples
	}
	if len(c.PreferredTables) == 0 {
		c.PreferredTables = DefaultPreferredTables
	}
	if c.DateColumn == "" {
		c.DateColumn = "created_at"
	}
	if c.ScopeColumn == "" {
		c.ScopeColumn = "company_id"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// SQLGenerator turns a question into candidate SQL. It never fails: backend and
// parse problems come back as a clarification-needed result. The SQL it returns
// is not validated; callers must check it before execution.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, question string, identity models.Identity, limit int) models.GeneratedSQL
}

type sqlGenerator struct {
	catalog   SchemaCatalog
	retriever ContextRetriever
	client    llm.LLMClient
	examples  []models.WorkedExample
	cfg       GeneratorConfig
	logger    *zap.Logger
}

// NewSQLGenerator creates a generator. A nil client runs without a backend:
// questions outside the fast path get the preferred-table fallback.
func NewSQLGenerator(
	catalog SchemaCatalog,
	retriever ContextRetriever,
	client llm.LLMClient,
	examples []models.WorkedExample,
	cfg GeneratorConfig,
	logger *zap.Logger,
) SQLGenerator {
	return &sqlGenerator{
		catalog:   catalog,
		retriever: retriever,
		client:    client,
		examples:  examples,
		cfg:       cfg.withDefaults(),
		logger:    logger.Named("generator"),
	}
}

var _ SQLGenerator = (*sqlGenerator)(nil)

// candidate is the unscoped, unlimited SQL plus its clarification state.
type candidate struct {
	sql           string
	needs         bool
	clarification string
	path          string
}

func (g *sqlGenerator) GenerateSQL(ctx context.Context, question string, identity models.Identity, limit int) models.GeneratedSQL {
	if limit < models.MinQueryLimit || limit > models.MaxQueryLimit {
		limit = models.DefaultQueryLimit
	}
	if err := g.catalog.EnsureLoaded(ctx); err != nil {
		g.logger.Warn("Generating without a loaded schema catalog", zap.String("error", logging.SanitizeError(err)))
	}

	table, hasTable := g.catalog.FirstTableMatching(ctx, g.cfg.PreferredTables)

	var c candidate
	switch {
	case !hasTable:
		c = candidate{needs: true, clarification: ClarificationSchemaMissing, path: metrics.PathFallback}
	default:
		if sql, ok := g.fastPath(ctx, question, table); ok {
			c = candidate{sql: sql, path: metrics.PathFastPath}
		} else if g.client == nil {
			c = candidate{sql: "SELECT * FROM " + sqlutil.QuoteIdentifier(table), path: metrics.PathNoBackend}
		} else {
			c = g.generateWithBackend(ctx, question, identity)
		}
	}

	if strings.TrimSpace(c.sql) == "" {
		if hasTable {
			c.sql = "SELECT * FROM " + sqlutil.QuoteIdentifier(table)
		} else {
			c.sql = trivialSQL
			c.needs = true
			if c.clarification == "" {
				c.clarification = ClarificationSchemaMissing
			}
		}
	}

	// Comments go first so neither the scope predicate nor LIMIT lands inside one.
	sql := sqlutil.StripComments(c.sql)
	if identity.CompanyID != nil {
		owner := func(table, column string) bool {
			ts, ok := g.catalog.Table(ctx, table)
			return ok && ts.HasColumn(column)
		}
		rw := sqlutil.AppendScopeConstraintQualified(sql, g.cfg.ScopeColumn, *identity.CompanyID, owner)
		if !rw.Applied {
			g.logger.Debug("Scope constraint not applied", zap.String("reason", rw.Reason))
		}
		sql = rw.SQL
	}
	sql = sqlutil.EnsureLimit(sql, limit).SQL

	metrics.GenerationsTotal.WithLabelValues(c.path).Inc()
	g.logger.Info("SQL generated",
		zap.String("path", c.path),
		zap.Bool("needs_clarification", c.needs),
		zap.String("sql", logging.SanitizeQuery(logging.MaskLiterals(sql))))

	return models.GeneratedSQL{
		SQL:                   sql,
		NeedsClarification:    c.needs,
		ClarificationQuestion: c.clarification,
	}
}

// fastPath answers "<month> <year>" questions with a date range on the table's
// date column without calling the backend.
func (g *sqlGenerator) fastPath(ctx context.Context, question, table string) (string, bool) {
	year, month, ok := DetectMonthYear(question)
	if !ok {
		return "", false
	}
	column, ok := g.dateColumn(ctx, table)
	if !ok {
		return "", false
	}
	start, end := MonthRange(year, month)
	col := sqlutil.QuoteIdentifier(column)
	return fmt.Sprintf("SELECT * FROM %s WHERE %s >= '%s' AND %s < '%s'",
		sqlutil.QuoteIdentifier(table), col, start, col, end), true
}

// dateColumn returns the configured date column when the table has it, else the
// table's first date or timestamp column.
func (g *sqlGenerator) dateColumn(ctx context.Context, table string) (string, bool) {
	ts, ok := g.catalog.Table(ctx, table)
	if !ok {
		return "", false
	}
	if col, ok := ts.Column(g.cfg.DateColumn); ok {
		return col.Name, true
	}
	for _, col := range ts.Columns {
		if col.IsTemporal() {
			return col.Name, true
		}
	}
	return "", false
}

func (g *sqlGenerator) generateWithBackend(ctx context.Context, question string, identity models.Identity) candidate {
	ctx = llm.WithRequestID(ctx, llm.RequestIDFromContext(ctx))
	examples := prompts.RenderExamples(g.examples, identity, g.cfg.MaxExamples)
	snippets := g.retriever.Retrieve(ctx, question, g.cfg.ContextSize)

	in := prompts.SQLPromptInput{
		Question: question,
		Identity: identity,
		Context:  snippets,
		Examples: examples,
	}
	path := metrics.PathSingle

	if g.cfg.Mode == ModeTwoStage {
		tables, err := g.selectTables(ctx, question, snippets)
		if err != nil {
			return g.backendFailure(err)
		}
		if len(tables) > 0 {
			in.Context = g.catalog.Describe(ctx, tables)
			in.Scoped = true
			path = metrics.PathTwoStage
		} else {
			g.logger.Debug("No tables selected; using single-shot generation")
		}
	}

	text, err := g.call(ctx, stageGenerate, prompts.BuildSQLGenerationPrompt(in), prompts.SQLGenerationSystemMessage())
	if err != nil {
		return g.backendFailure(err)
	}
	result, err := llm.ParseGenerationResult(text)
	if err != nil {
		return g.backendFailure(&apperrors.GenerationBackendError{Stage: stageGenerate, Cause: err})
	}
	g.logger.Debug("Parsed generation result", zap.String("strategy", result.Strategy))

	return candidate{
		sql:           result.SQL,
		needs:         result.NeedsClarification,
		clarification: result.ClarificationQuestion,
		path:          path,
	}
}

// selectTables runs stage one and resolves the answer against the catalog.
// An unparseable answer selects nothing; only a failed call is an error.
func (g *sqlGenerator) selectTables(ctx context.Context, question string, snippets []string) ([]string, error) {
	lines := append([]string{}, snippets...)
	if names := g.catalog.TableNames(ctx); len(names) > 0 {
		lines = append(lines, "tables: "+strings.Join(names, ", "))
	}

	text, err := g.call(ctx, stageSelectTables, prompts.BuildTableSelectionPrompt(question, lines), prompts.TableSelectionSystemMessage())
	if err != nil {
		return nil, err
	}
	names, err := llm.ParseTableSelection(text)
	if err != nil {
		g.logger.Debug("Unparseable table selection", zap.Error(err))
		return nil, nil
	}

	seen := make(map[string]bool, len(names))
	var tables []string
	for _, name := range names {
		resolved, ok := g.catalog.ResolveTable(ctx, name)
		if !ok || seen[resolved] {
			continue
		}
		seen[resolved] = true
		tables = append(tables, resolved)
	}
	return tables, nil
}

// call runs one bounded backend request and records its outcome.
func (g *sqlGenerator) call(ctx context.Context, stage, prompt, system string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	result, err := g.client.GenerateResponse(callCtx, prompt, system, g.cfg.Temperature)
	metrics.BackendCallDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	metrics.BackendCallsTotal.WithLabelValues(stage, metrics.Outcome(err)).Inc()
	if err != nil {
		return "", &apperrors.GenerationBackendError{Stage: stage, Cause: err}
	}
	return result.Content, nil
}

func (g *sqlGenerator) backendFailure(err error) candidate {
	var backendErr *apperrors.GenerationBackendError
	stage := ""
	if errors.As(err, &backendErr) {
		stage = backendErr.Stage
	}
	g.logger.Warn("Generation backend failed",
		zap.String("stage", stage),
		zap.Bool("retryable", llm.IsRetryable(err)),
		zap.String("error", logging.SanitizeError(err)))
	return candidate{needs: true, clarification: ClarificationBackendFailed, path: metrics.PathFallback}
}
