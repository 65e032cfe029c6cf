package identity

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/etale-systems/tracehub/internal/domain"
	"github.com/etale-systems/tracehub/internal/storage"
	"github.com/etale-systems/tracehub/internal/storage/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(t *testing.T) (*Resolver, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewResolver(store, testLogger()), store
}

func TestResolve_ProvisionsOnce(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "auth0|alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Resolve() first error = %v", err)
	}
	if first.ID == "" || first.ID == "auth0|alice" {
		t.Errorf("tenant id = %q, want a generated internal id", first.ID)
	}

	second, err := r.Resolve(ctx, "auth0|alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Resolve() second error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("repeat resolve id = %q, want %q", second.ID, first.ID)
	}
}

func TestResolve_RepeatDoesNotOverwriteEmail(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "auth0|alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// Same principal arriving with a changed email hint keeps the
	// stored record untouched.
	second, err := r.Resolve(ctx, "auth0|alice", "alice+new@example.com")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if second.ID != first.ID || second.Email != "alice@example.com" {
		t.Errorf("resolved = %+v, want stored record unchanged", second)
	}
}

func TestResolve_RelinksByEmail(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	original, err := r.Resolve(ctx, "auth0|alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// The same human comes back under a new principal identifier.
	relinked, err := r.Resolve(ctx, "google|alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Resolve() relink error = %v", err)
	}
	if relinked.ID != original.ID {
		t.Errorf("relinked id = %q, want %q (identity preserved)", relinked.ID, original.ID)
	}
	if relinked.ExternalID != "google|alice" {
		t.Errorf("relinked external id = %q, want google|alice", relinked.ExternalID)
	}

	// The old principal no longer maps to anything.
	if _, err := store.GetTenantByExternalID(ctx, "auth0|alice"); err != storage.ErrNotFound {
		t.Errorf("old principal lookup error = %v, want ErrNotFound", err)
	}
}

func TestResolve_EmptyPrincipal(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.Resolve(context.Background(), "", "alice@example.com")
	if domain.KindOf(err) != domain.KindInvalidInput {
		t.Errorf("Resolve(\"\") error kind = %v, want invalid input", domain.KindOf(err))
	}
}

// conflictingStore simulates losing every provisioning race: creation
// always collides and the colliding row can never be found.
type conflictingStore struct {
	field string
}

func (s *conflictingStore) CreateTenant(context.Context, *domain.Tenant) error {
	return &storage.ConflictError{Field: s.field}
}

func (s *conflictingStore) GetTenantByExternalID(context.Context, string) (*domain.Tenant, error) {
	return nil, storage.ErrNotFound
}

func (s *conflictingStore) GetTenantByEmail(context.Context, string) (*domain.Tenant, error) {
	return nil, storage.ErrNotFound
}

func (s *conflictingStore) UpdateTenantExternalID(context.Context, string, string) error {
	return storage.ErrNotFound
}

func TestResolve_UnrecoverableConflicts(t *testing.T) {
	tests := []struct {
		name  string
		field string
	}{
		{"email owner vanished", "email"},
		{"principal race lost", "external_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&conflictingStore{field: tt.field}, testLogger())
			_, err := r.Resolve(context.Background(), "auth0|alice", "alice@example.com")
			if domain.KindOf(err) != domain.KindConflict {
				t.Errorf("error kind = %v, want conflict", domain.KindOf(err))
			}
		})
	}
}

func TestResolve_RelinkKeepsOwnedRecords(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	original, err := r.Resolve(ctx, "auth0|alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	k := &domain.APIKey{
		ID: "k1", Token: "mcp_abc", TenantID: original.ID,
		Name: "ci", Active: true, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateAPIKey(ctx, k); err != nil {
		t.Fatalf("CreateAPIKey() error = %v", err)
	}

	relinked, err := r.Resolve(ctx, "google|alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Resolve() relink error = %v", err)
	}

	keys, err := store.ListAPIKeys(ctx, relinked.ID)
	if err != nil {
		t.Fatalf("ListAPIKeys() error = %v", err)
	}
	if len(keys) != 1 || keys[0].ID != "k1" {
		t.Errorf("keys after relink = %d, want the original credential still owned", len(keys))
	}
}
