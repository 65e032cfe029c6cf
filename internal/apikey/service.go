// Package apikey implements credential issuance, lifecycle, and
// token authentication for trace submission clients.
package apikey

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/etale-systems/tracehub/internal/domain"
	"github.com/etale-systems/tracehub/internal/storage"
)

// TokenPrefix tags issued tokens for recognizability in logs and
// client configuration.
const TokenPrefix = "mcp_"

// tokenEntropyBytes is the number of random bytes per token.
const tokenEntropyBytes = 32

// GenerateToken returns a new opaque credential token: the fixed
// scheme tag followed by 32 random bytes, hex-encoded.
func GenerateToken() string {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return TokenPrefix + hex.EncodeToString(buf)
}

// Service manages credentials scoped to their owning tenant.
type Service struct {
	store  storage.APIKeyStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a credential service backed by the given store.
func NewService(store storage.APIKeyStore, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// Issue generates a new credential for the tenant and stores it
// active. The returned record includes the plaintext token; callers
// show it to the user exactly once.
func (s *Service) Issue(ctx context.Context, tenantID, name, description string) (*domain.APIKey, error) {
	if name == "" {
		return nil, domain.ErrInvalidInput("name is required")
	}

	k := &domain.APIKey{
		ID:          uuid.New().String(),
		Token:       GenerateToken(),
		TenantID:    tenantID,
		Name:        name,
		Description: description,
		Active:      true,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.store.CreateAPIKey(ctx, k); err != nil {
		s.logger.Error("api key creation failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()))
		return nil, domain.ErrInternal("failed to create api key")
	}

	return k, nil
}

// List returns the tenant's credentials, newest first, annotated with
// trace counts.
func (s *Service) List(ctx context.Context, tenantID string) ([]*domain.APIKey, error) {
	keys, err := s.store.ListAPIKeys(ctx, tenantID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list api keys")
	}
	return keys, nil
}

// Update applies only the fields present in patch to a credential the
// tenant owns. Absent and not-owned credentials both come back as
// NotFound so cross-tenant existence is never disclosed.
func (s *Service) Update(ctx context.Context, tenantID, id string, patch domain.APIKeyPatch) (*domain.APIKey, error) {
	k, err := s.store.GetAPIKey(ctx, tenantID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrNotFound("api key not found")
	}
	if err != nil {
		return nil, domain.ErrInternal("failed to load api key")
	}

	if patch.Name != nil && *patch.Name != "" {
		k.Name = *patch.Name
	}
	if patch.Description != nil {
		k.Description = *patch.Description
	}
	if patch.Active != nil {
		k.Active = *patch.Active
	}

	if err := s.store.UpdateAPIKey(ctx, k); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrNotFound("api key not found")
		}
		return nil, domain.ErrInternal("failed to update api key")
	}

	return k, nil
}

// Revoke hard-deletes a credential the tenant owns. Traces created
// with it are untouched and keep their (now dangling) reference.
func (s *Service) Revoke(ctx context.Context, tenantID, id string) error {
	err := s.store.DeleteAPIKey(ctx, tenantID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.ErrNotFound("api key not found")
	}
	if err != nil {
		return domain.ErrInternal("failed to delete api key")
	}
	return nil
}

// Authenticate resolves a plaintext token to its credential. Inactive
// and unknown tokens both fail Unauthorized. On success the last-used
// timestamp is recorded best-effort; a failed write never fails the
// surrounding request.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.APIKey, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized("missing api key")
	}

	k, err := s.store.GetAPIKeyByToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrUnauthorized("invalid api key")
	}
	if err != nil {
		return nil, domain.ErrInternal("failed to look up api key")
	}

	if !k.Active {
		return nil, domain.ErrUnauthorized("api key is inactive")
	}

	now := s.now().UTC()
	if err := s.store.TouchAPIKey(ctx, k.ID, now); err != nil {
		s.logger.Warn("failed to record api key use",
			slog.String("api_key_id", k.ID),
			slog.String("error", err.Error()))
	} else {
		k.LastUsedAt = &now
	}

	return k, nil
}
