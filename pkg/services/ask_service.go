package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/apperrors"
	"github.com/askdb/askdb/pkg/database"
	"github.com/askdb/askdb/pkg/logging"
	"github.com/askdb/askdb/pkg/metrics"
	"github.com/askdb/askdb/pkg/models"
	sqlutil "github.com/askdb/askdb/pkg/sql"
)

// SchemaState is the part of the catalog the ask flow checks before generating.
type SchemaState interface {
	EnsureLoaded(ctx context.Context) error
	TableNames(ctx context.Context) []string
}

// AskOptions sets caller policy for the ask flow.
type AskOptions struct {
	// DefaultLimit applies when a request leaves the limit at zero.
	DefaultLimit int
	// ExecuteOnClarification runs best-effort SQL even when the generator asks
	// for clarification.
	ExecuteOnClarification bool
}

// AskService answers a question end to end: identity, generation, validation
// and execution.
type AskService interface {
	// Ask generates SQL for the request, validates it and runs it.
	Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error)
}

type askService struct {
	schema    SchemaState
	identity  IdentityResolver
	generator SQLGenerator
	querier   database.Querier
	opts      AskOptions
	logger    *zap.Logger
}

// NewAskService creates the ask flow.
func NewAskService(
	schema SchemaState,
	identity IdentityResolver,
	generator SQLGenerator,
	querier database.Querier,
	opts AskOptions,
	logger *zap.Logger,
) AskService {
	if opts.DefaultLimit < models.MinQueryLimit || opts.DefaultLimit > models.MaxQueryLimit {
		opts.DefaultLimit = models.DefaultQueryLimit
	}
	return &askService{
		schema:    schema,
		identity:  identity,
		generator: generator,
		querier:   querier,
		opts:      opts,
		logger:    logger.Named("ask"),
	}
}

var _ AskService = (*askService)(nil)

func (s *askService) Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return nil, fmt.Errorf("%w: question is required", apperrors.ErrInvalidRequest)
	}
	if req.Limit == 0 {
		req.Limit = s.opts.DefaultLimit
	}
	if req.Limit < models.MinQueryLimit || req.Limit > models.MaxQueryLimit {
		return nil, fmt.Errorf("%w: limit must be between %d and %d",
			apperrors.ErrInvalidRequest, models.MinQueryLimit, models.MaxQueryLimit)
	}

	if err := s.schema.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	if len(s.schema.TableNames(ctx)) == 0 {
		return nil, apperrors.ErrSchemaEmpty
	}

	identity, err := s.identity.Resolve(ctx, req.Identity)
	if err != nil {
		return nil, err
	}

	generated := s.generator.GenerateSQL(ctx, req.Question, identity, req.Limit)
	if err := sqlutil.ValidateSelect(generated.SQL); err != nil {
		metrics.UnsafeSQLTotal.Inc()
		s.logger.Warn("Refusing unsafe SQL",
			zap.String("sql", logging.SanitizeQuery(logging.MaskLiterals(generated.SQL))),
			zap.Error(err))
		return nil, err
	}

	resp := &models.AskResponse{
		SQL:                   generated.SQL,
		NeedsClarification:    generated.NeedsClarification,
		ClarificationQuestion: generated.ClarificationQuestion,
		Rows:                  []map[string]any{},
	}
	if generated.NeedsClarification && !s.opts.ExecuteOnClarification {
		resp.Explanation = "Запрос не выполнен: требуется уточнение."
		return resp, nil
	}

	rows, err := s.querier.FetchAll(ctx, generated.SQL)
	metrics.QueryExecutionsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		s.logger.Warn("Query execution failed",
			zap.Int64("user_id", identity.UserID),
			zap.String("error", logging.SanitizeError(err)))
		return nil, &apperrors.ExecutionError{SQL: generated.SQL, Cause: err}
	}
	metrics.QueryRowsReturned.Observe(float64(len(rows)))

	resp.Rows = rows
	resp.Executed = true
	resp.Explanation = fmt.Sprintf("Выполнен запрос: %s. Найдено строк: %d.", req.Question, len(rows))
	return resp, nil
}

// IsClientError reports whether err should be answered as a bad request.
func IsClientError(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidRequest) ||
		errors.Is(err, apperrors.ErrUnknownUser) ||
		errors.Is(err, apperrors.ErrUnsafeSQL) ||
		errors.Is(err, apperrors.ErrExecution)
}
