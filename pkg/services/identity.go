package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/apperrors"
	"github.com/askdb/askdb/pkg/database"
	"github.com/askdb/askdb/pkg/models"
	sqlutil "github.com/askdb/askdb/pkg/sql"
)

// DefaultUsersTable is the table identities are looked up in.
const DefaultUsersTable = "users"

// IdentityResolver confirms that a user exists and fills missing identity fields
// from the user's row.
type IdentityResolver interface {
	Resolve(ctx context.Context, identity models.Identity) (models.Identity, error)
}

// userAttributes is the cached part of a user row.
type userAttributes struct {
	companyID    *int64
	departmentID *int64
	role         *string
}

type identityResolver struct {
	querier database.Querier
	query   string
	cache   *ttlcache.Cache[int64, userAttributes]
	logger  *zap.Logger
}

// NewIdentityResolver creates a resolver reading schema.table. Rows of known users
// are cached for ttl; a zero ttl disables the cache.
func NewIdentityResolver(querier database.Querier, schema, table string, ttl time.Duration, capacity uint64, logger *zap.Logger) IdentityResolver {
	if table == "" {
		table = DefaultUsersTable
	}
	r := &identityResolver{
		querier: querier,
		query:   fmt.Sprintf("SELECT * FROM %s WHERE id = $1", sqlutil.QualifiedName(schema, table)),
		logger:  logger.Named("identity"),
	}
	if ttl > 0 {
		opts := []ttlcache.Option[int64, userAttributes]{
			ttlcache.WithTTL[int64, userAttributes](ttl),
			ttlcache.WithDisableTouchOnHit[int64, userAttributes](),
		}
		if capacity > 0 {
			opts = append(opts, ttlcache.WithCapacity[int64, userAttributes](capacity))
		}
		r.cache = ttlcache.New(opts...)
	}
	return r
}

var _ IdentityResolver = (*identityResolver)(nil)

// Resolve returns identity with company, department and role filled from the
// users table where the caller left them empty. Caller-supplied values win.
// An unknown user yields apperrors.ErrUnknownUser.
func (r *identityResolver) Resolve(ctx context.Context, identity models.Identity) (models.Identity, error) {
	attrs, err := r.lookup(ctx, identity.UserID)
	if err != nil {
		return identity, err
	}
	if identity.CompanyID == nil {
		identity.CompanyID = attrs.companyID
	}
	if identity.DepartmentID == nil {
		identity.DepartmentID = attrs.departmentID
	}
	if identity.Role == nil {
		identity.Role = attrs.role
	}
	return identity, nil
}

func (r *identityResolver) lookup(ctx context.Context, userID int64) (userAttributes, error) {
	if r.cache != nil {
		if item := r.cache.Get(userID); item != nil {
			return item.Value(), nil
		}
	}

	row, found, err := r.querier.FetchOne(ctx, r.query, userID)
	if err != nil {
		return userAttributes{}, fmt.Errorf("look up user %d: %w", userID, err)
	}
	if !found {
		r.logger.Debug("Unknown user", zap.Int64("user_id", userID))
		return userAttributes{}, fmt.Errorf("%w: %d", apperrors.ErrUnknownUser, userID)
	}

	attrs := userAttributes{
		companyID:    toInt64(row["company_id"]),
		departmentID: toInt64(row["department_id"]),
	}
	if role, ok := row["role"].(string); ok && role != "" {
		attrs.role = &role
	}
	if r.cache != nil {
		r.cache.Set(userID, attrs, ttlcache.DefaultTTL)
	}
	return attrs, nil
}

// toInt64 converts a scanned integer-like value. Anything else is absent.
func toInt64(v any) *int64 {
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case int32:
		n = int64(x)
	case int:
		n = int64(x)
	case float64:
		if x != float64(int64(x)) {
			return nil
		}
		n = int64(x)
	case string:
		parsed, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return nil
		}
		n = parsed
	case []byte:
		parsed, err := strconv.ParseInt(string(x), 10, 64)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}
