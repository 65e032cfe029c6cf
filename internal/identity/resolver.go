// Package identity maps externally-verified principals onto tenant
// records, provisioning them lazily on first sight.
package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/etale-systems/tracehub/internal/domain"
	"github.com/etale-systems/tracehub/internal/storage"
)

// Resolver resolves principal identifiers to tenants.
type Resolver struct {
	store  storage.TenantStore
	logger *slog.Logger
}

// NewResolver creates a resolver backed by the given tenant store.
func NewResolver(store storage.TenantStore, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve returns the tenant for an externally-verified principal
// identifier, creating one with the given email hint if none exists.
//
// When creation collides on email, the same human was previously
// provisioned under a different principal (account relinking
// upstream): the tenant found by email is re-pointed to the new
// principal, keeping its internal identity and everything it owns.
// Repeat calls never overwrite fields on an existing tenant.
func (r *Resolver) Resolve(ctx context.Context, externalID, email string) (*domain.Tenant, error) {
	if externalID == "" {
		return nil, domain.ErrInvalidInput("principal identifier is required")
	}

	t, err := r.store.GetTenantByExternalID(ctx, externalID)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrInternal("tenant lookup failed")
	}

	created := &domain.Tenant{
		ID:         uuid.New().String(),
		ExternalID: externalID,
		Email:      email,
	}

	err = r.store.CreateTenant(ctx, created)
	if err == nil {
		r.logger.Info("tenant provisioned",
			slog.String("tenant_id", created.ID),
			slog.String("external_id", externalID))
		return created, nil
	}

	if storage.IsConflict(err, "email") {
		return r.relink(ctx, externalID, email)
	}
	if storage.IsConflict(err, "external_id") {
		// Lost a provisioning race for the same principal. Surfacing
		// the clash lets the caller retry, which will find the winner.
		return nil, domain.ErrConflict("tenant already being provisioned")
	}

	r.logger.Error("tenant creation failed",
		slog.String("external_id", externalID),
		slog.String("error", err.Error()))
	return nil, domain.ErrInternal("tenant creation failed")
}

func (r *Resolver) relink(ctx context.Context, externalID, email string) (*domain.Tenant, error) {
	t, err := r.store.GetTenantByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		// The email is taken but its owner cannot be located; nothing
		// safe to re-point.
		return nil, domain.ErrConflict("email already registered to another account")
	}
	if err != nil {
		return nil, domain.ErrInternal("tenant lookup failed")
	}

	if err := r.store.UpdateTenantExternalID(ctx, t.ID, externalID); err != nil {
		return nil, domain.ErrInternal("tenant relink failed")
	}

	r.logger.Info("tenant relinked",
		slog.String("tenant_id", t.ID),
		slog.String("old_external_id", t.ExternalID),
		slog.String("new_external_id", externalID))

	t.ExternalID = externalID
	return t, nil
}
