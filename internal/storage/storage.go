// Package storage defines the persistence contract for tenants,
// API keys, and traces. The persistent store is the sole point of
// shared mutation across requests; implementations must enforce
// uniqueness on tenant external IDs, tenant emails, and key tokens,
// and surface those violations as ConflictError so callers can branch
// on the failed field.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/etale-systems/tracehub/internal/domain"
)

// ErrNotFound is returned when a row is absent or out of the caller's
// tenant scope.
var ErrNotFound = errors.New("not found")

// ConflictError reports a uniqueness violation on a specific field.
type ConflictError struct {
	Field string // "external_id", "email", "token", or "id"
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unique constraint violated on %s", e.Field)
}

// IsConflict reports whether err is a uniqueness violation on the
// given field. An empty field matches any conflict.
func IsConflict(err error, field string) bool {
	var ce *ConflictError
	if !errors.As(err, &ce) {
		return false
	}
	return field == "" || ce.Field == field
}

// TraceFilter narrows a trace list read. Zero values impose no
// constraint; supplied filters combine conjunctively.
type TraceFilter struct {
	Task string
	From *time.Time // inclusive lower bound
	To   *time.Time // inclusive upper bound
}

// TenantStore persists tenant identities.
type TenantStore interface {
	CreateTenant(ctx context.Context, t *domain.Tenant) error
	GetTenantByExternalID(ctx context.Context, externalID string) (*domain.Tenant, error)
	GetTenantByEmail(ctx context.Context, email string) (*domain.Tenant, error)
	// UpdateTenantExternalID re-points a tenant's principal identifier,
	// preserving the rest of the record.
	UpdateTenantExternalID(ctx context.Context, id, externalID string) error
}

// APIKeyStore persists credentials.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, k *domain.APIKey) error
	// ListAPIKeys returns a tenant's credentials newest first, each
	// annotated with its associated trace count.
	ListAPIKeys(ctx context.Context, tenantID string) ([]*domain.APIKey, error)
	// GetAPIKey is tenant-scoped: a key owned by another tenant is
	// reported as ErrNotFound, never disclosed.
	GetAPIKey(ctx context.Context, tenantID, id string) (*domain.APIKey, error)
	GetAPIKeyByToken(ctx context.Context, token string) (*domain.APIKey, error)
	UpdateAPIKey(ctx context.Context, k *domain.APIKey) error
	DeleteAPIKey(ctx context.Context, tenantID, id string) error
	// TouchAPIKey records last use. Callers treat failures as
	// non-fatal.
	TouchAPIKey(ctx context.Context, id string, when time.Time) error
}

// TraceStore persists the append-only per-tenant event log.
type TraceStore interface {
	CreateTrace(ctx context.Context, tr *domain.Trace) error
	// ListTraces returns the tenant's traces matching the filter,
	// timestamp descending, capped at limit.
	ListTraces(ctx context.Context, tenantID string, f TraceFilter, limit int) ([]*domain.Trace, error)
	// GetTrace is tenant-scoped like GetAPIKey. The returned trace
	// carries the creating credential's name when it still exists.
	GetTrace(ctx context.Context, tenantID, id string) (*domain.Trace, error)
}

// Store is the full persistence surface, constructed once at startup
// and passed explicitly into every component.
type Store interface {
	TenantStore
	APIKeyStore
	TraceStore
	Close() error
}
