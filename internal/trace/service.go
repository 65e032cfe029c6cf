// Package trace implements the append-only per-tenant invocation log.
package trace

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/etale-systems/tracehub/internal/domain"
	"github.com/etale-systems/tracehub/internal/storage"
)

// PageSize caps every list read.
const PageSize = 100

// Service owns trace writes and tenant-scoped retrieval.
type Service struct {
	store  storage.TraceStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a trace service backed by the given store.
func NewService(store storage.TraceStore, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// Append stores one invocation record tagged with the tenant and the
// credential that submitted it. Client-supplied id and timestamp are
// accepted verbatim so re-submissions keyed by id stay idempotent up
// to the primary-key constraint; missing ones are assigned here.
// Payloads are stored opaque, without validation.
func (s *Service) Append(ctx context.Context, tenantID, apiKeyID string, tr *domain.Trace) (*domain.Trace, error) {
	if tr.Task == "" {
		return nil, domain.ErrInvalidInput("task is required")
	}
	if len(tr.Context) == 0 || len(tr.ModelOutput) == 0 || len(tr.Metadata) == 0 {
		return nil, domain.ErrInvalidInput("context, model_output and metadata are required")
	}

	if tr.ID == "" {
		tr.ID = uuid.New().String()
	}
	if tr.Timestamp.IsZero() {
		tr.Timestamp = s.now().UTC()
	}
	tr.TenantID = tenantID
	tr.APIKeyID = apiKeyID

	if err := s.store.CreateTrace(ctx, tr); err != nil {
		if storage.IsConflict(err, "") {
			return nil, domain.ErrConflict("trace id already exists")
		}
		s.logger.Error("trace append failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()))
		return nil, domain.ErrInternal("failed to store trace")
	}

	return tr, nil
}

// List returns the tenant's traces matching all supplied filters,
// newest first, capped at PageSize.
func (s *Service) List(ctx context.Context, tenantID string, f storage.TraceFilter) ([]*domain.Trace, error) {
	traces, err := s.store.ListTraces(ctx, tenantID, f, PageSize)
	if err != nil {
		return nil, domain.ErrInternal("failed to list traces")
	}
	return traces, nil
}

// Get returns a single trace by id, scoped to the tenant. Absent and
// not-owned ids are indistinguishable.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*domain.Trace, error) {
	tr, err := s.store.GetTrace(ctx, tenantID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrNotFound("trace not found")
	}
	if err != nil {
		return nil, domain.ErrInternal("failed to load trace")
	}
	return tr, nil
}

// Replay clones an owned trace under a fresh id and timestamp. The
// original is never rewritten; the clone carries no credential
// reference since no credential submitted it.
func (s *Service) Replay(ctx context.Context, tenantID, id string) (*domain.Trace, error) {
	src, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	clone := &domain.Trace{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Timestamp:   s.now().UTC(),
		Task:        src.Task,
		Context:     src.Context,
		ModelOutput: src.ModelOutput,
		Metadata:    src.Metadata,
	}

	if err := s.store.CreateTrace(ctx, clone); err != nil {
		return nil, domain.ErrInternal("failed to store replayed trace")
	}

	return clone, nil
}
