package trace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/etale-systems/tracehub/internal/domain"
	"github.com/etale-systems/tracehub/internal/storage"
	"github.com/etale-systems/tracehub/internal/storage/sqlite"
)

func newTestService(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, logger)

	tn := &domain.Tenant{ID: "t1", ExternalID: "ext-1", Email: "a@example.com"}
	if err := store.CreateTenant(context.Background(), tn); err != nil {
		t.Fatalf("CreateTenant() error = %v", err)
	}
	return svc, store
}

func minimalTrace(task string) *domain.Trace {
	return &domain.Trace{
		Task:        task,
		Context:     []byte(`{}`),
		ModelOutput: []byte(`""`),
		Metadata:    []byte(`{}`),
	}
}

func TestAppend_AssignsDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	got, err := svc.Append(ctx, "t1", "k1", minimalTrace("sum"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if got.ID == "" {
		t.Errorf("id not assigned")
	}
	if !got.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, now)
	}
	if got.TenantID != "t1" || got.APIKeyID != "k1" {
		t.Errorf("ownership = %s/%s, want t1/k1", got.TenantID, got.APIKeyID)
	}
}

func TestAppend_HonorsClientIDAndTimestamp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ts := time.Date(2025, 12, 24, 18, 30, 0, 0, time.UTC)
	tr := minimalTrace("sum")
	tr.ID = "client-chosen-id"
	tr.Timestamp = ts

	got, err := svc.Append(ctx, "t1", "k1", tr)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if got.ID != "client-chosen-id" {
		t.Errorf("id = %q, want client-chosen-id", got.ID)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want client value %v", got.Timestamp, ts)
	}

	stored, err := svc.Get(ctx, "t1", "client-chosen-id")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !stored.Timestamp.Equal(ts) {
		t.Errorf("stored timestamp = %v, want %v", stored.Timestamp, ts)
	}
}

func TestAppend_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	noTask := minimalTrace("")
	if _, err := svc.Append(ctx, "t1", "k1", noTask); domain.KindOf(err) != domain.KindInvalidInput {
		t.Errorf("missing task error kind = %v, want invalid input", domain.KindOf(err))
	}

	noPayload := minimalTrace("sum")
	noPayload.Metadata = nil
	if _, err := svc.Append(ctx, "t1", "k1", noPayload); domain.KindOf(err) != domain.KindInvalidInput {
		t.Errorf("missing metadata error kind = %v, want invalid input", domain.KindOf(err))
	}
}

func TestAppend_DuplicateID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tr := minimalTrace("sum")
	tr.ID = "dup"
	if _, err := svc.Append(ctx, "t1", "k1", tr); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	again := minimalTrace("sum")
	again.ID = "dup"
	if _, err := svc.Append(ctx, "t1", "k1", again); domain.KindOf(err) != domain.KindConflict {
		t.Errorf("duplicate id error kind = %v, want conflict", domain.KindOf(err))
	}
}

func TestList_CapsAtPageSize(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < PageSize+5; i++ {
		tr := minimalTrace("sum")
		tr.ID = fmt.Sprintf("tr-%03d", i)
		tr.Timestamp = base.Add(time.Duration(i) * time.Second)
		if _, err := svc.Append(ctx, "t1", "k1", tr); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	got, err := svc.List(ctx, "t1", storage.TraceFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != PageSize {
		t.Fatalf("List() count = %d, want %d", len(got), PageSize)
	}
	// Newest first: the oldest five fall off the page.
	if got[0].ID != fmt.Sprintf("tr-%03d", PageSize+4) {
		t.Errorf("first id = %s, want the newest trace", got[0].ID)
	}
}

func TestGet_TenantScoped(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	other := &domain.Tenant{ID: "t2", ExternalID: "ext-2", Email: "b@example.com"}
	if err := store.CreateTenant(ctx, other); err != nil {
		t.Fatalf("CreateTenant() error = %v", err)
	}

	tr := minimalTrace("sum")
	stored, err := svc.Append(ctx, "t1", "k1", tr)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if _, err := svc.Get(ctx, "t2", stored.ID); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("cross-tenant get error kind = %v, want not found", domain.KindOf(err))
	}
	if _, err := svc.Get(ctx, "t1", "missing"); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("missing id error kind = %v, want not found", domain.KindOf(err))
	}
}

func TestReplay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	src := minimalTrace("sum")
	src.Context = []byte(`{"numbers":[1,2]}`)
	src.ModelOutput = []byte(`"3"`)
	src.Metadata = []byte(`{"tool_name":"calculator","success":true}`)
	src.Timestamp = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	stored, err := svc.Append(ctx, "t1", "k1", src)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	replayAt := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return replayAt }

	clone, err := svc.Replay(ctx, "t1", stored.ID)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if clone.ID == stored.ID {
		t.Errorf("clone reuses the source id")
	}
	if !clone.Timestamp.Equal(replayAt) {
		t.Errorf("clone timestamp = %v, want %v", clone.Timestamp, replayAt)
	}
	if string(clone.Context) != string(src.Context) ||
		string(clone.ModelOutput) != string(src.ModelOutput) ||
		string(clone.Metadata) != string(src.Metadata) {
		t.Errorf("clone payloads differ from source")
	}

	// The clone carries no credential reference.
	got, err := svc.Get(ctx, "t1", clone.ID)
	if err != nil {
		t.Fatalf("Get(clone) error = %v", err)
	}
	if got.APIKeyName != nil {
		t.Errorf("clone credential name = %v, want nil", *got.APIKeyName)
	}

	// The source is untouched and both records now list.
	original, err := svc.Get(ctx, "t1", stored.ID)
	if err != nil {
		t.Fatalf("Get(source) error = %v", err)
	}
	if !original.Timestamp.Equal(src.Timestamp) {
		t.Errorf("source timestamp changed after replay")
	}
	all, err := svc.List(ctx, "t1", storage.TraceFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("trace count after replay = %d, want 2", len(all))
	}

	if _, err := svc.Replay(ctx, "t1", "missing"); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("replay of missing trace error kind = %v, want not found", domain.KindOf(err))
	}
}
