// Package sqlite is the SQLite implementation of the storage contract.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "modernc.org/sqlite"
	lib "modernc.org/sqlite/lib"

	"github.com/etale-systems/tracehub/internal/domain"
	"github.com/etale-systems/tracehub/internal/storage"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the
// schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			token TEXT NOT NULL UNIQUE,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			last_used_at TIMESTAMP,
			FOREIGN KEY (tenant_id) REFERENCES tenants(id)
		)`,
		`CREATE TABLE IF NOT EXISTS traces (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			api_key_id TEXT,
			timestamp TIMESTAMP NOT NULL,
			task TEXT NOT NULL,
			context TEXT NOT NULL,
			model_output TEXT NOT NULL,
			metadata TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (tenant_id) REFERENCES tenants(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_api_keys_tenant ON api_keys(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_tenant_ts ON traces(tenant_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_task ON traces(task)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_api_key ON traces(api_key_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// translateError maps driver-level unique violations onto
// storage.ConflictError so callers can branch on the failed field.
func translateError(err error) error {
	var se *sqlite3.Error
	if !errors.As(err, &se) {
		return err
	}
	if se.Code() != lib.SQLITE_CONSTRAINT_UNIQUE && se.Code() != lib.SQLITE_CONSTRAINT_PRIMARYKEY {
		return err
	}

	msg := se.Error()
	switch {
	case strings.Contains(msg, "tenants.external_id"):
		return &storage.ConflictError{Field: "external_id"}
	case strings.Contains(msg, "tenants.email"):
		return &storage.ConflictError{Field: "email"}
	case strings.Contains(msg, "api_keys.token"):
		return &storage.ConflictError{Field: "token"}
	default:
		return &storage.ConflictError{Field: "id"}
	}
}

// Tenants

func (s *Store) CreateTenant(ctx context.Context, t *domain.Tenant) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO tenants (id, external_id, email, created_at)
	          VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, t.ID, t.ExternalID, t.Email, t.CreatedAt)
	if err != nil {
		return translateError(err)
	}

	return nil
}

func (s *Store) GetTenantByExternalID(ctx context.Context, externalID string) (*domain.Tenant, error) {
	return s.getTenant(ctx, `external_id = ?`, externalID)
}

func (s *Store) GetTenantByEmail(ctx context.Context, email string) (*domain.Tenant, error) {
	return s.getTenant(ctx, `email = ?`, email)
}

func (s *Store) getTenant(ctx context.Context, where string, arg any) (*domain.Tenant, error) {
	query := `SELECT id, external_id, email, created_at FROM tenants WHERE ` + where

	var t domain.Tenant
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&t.ID, &t.ExternalID, &t.Email, &t.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return &t, nil
}

func (s *Store) UpdateTenantExternalID(ctx context.Context, id, externalID string) error {
	query := `UPDATE tenants SET external_id = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, externalID, id)
	if err != nil {
		return translateError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// API keys

func (s *Store) CreateAPIKey(ctx context.Context, k *domain.APIKey) error {
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO api_keys (id, token, tenant_id, name, description, active, created_at, last_used_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		k.ID, k.Token, k.TenantID, k.Name, k.Description, k.Active, k.CreatedAt, k.LastUsedAt)
	if err != nil {
		return translateError(err)
	}

	return nil
}

const apiKeyColumns = `k.id, k.token, k.tenant_id, k.name, k.description, k.active, k.created_at, k.last_used_at`

func scanAPIKey(row interface{ Scan(...any) error }, withCount bool) (*domain.APIKey, error) {
	var k domain.APIKey
	var lastUsed sql.NullTime

	dest := []any{&k.ID, &k.Token, &k.TenantID, &k.Name, &k.Description, &k.Active, &k.CreatedAt, &lastUsed}
	if withCount {
		dest = append(dest, &k.TraceCount)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsedAt = &t
	}

	return &k, nil
}

func (s *Store) ListAPIKeys(ctx context.Context, tenantID string) ([]*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + `,
	            (SELECT COUNT(*) FROM traces t WHERE t.api_key_id = k.id) AS trace_count
	          FROM api_keys k WHERE k.tenant_id = ?
	          ORDER BY k.created_at DESC, k.id DESC`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys: %w", err)
	}
	defer rows.Close()

	var keys []*domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows, true)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, k)
	}

	return keys, rows.Err()
}

func (s *Store) GetAPIKey(ctx context.Context, tenantID, id string) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys k WHERE k.id = ? AND k.tenant_id = ?`

	k, err := scanAPIKey(s.db.QueryRowContext(ctx, query, id, tenantID), false)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return k, nil
}

func (s *Store) GetAPIKeyByToken(ctx context.Context, token string) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys k WHERE k.token = ?`

	k, err := scanAPIKey(s.db.QueryRowContext(ctx, query, token), false)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key by token: %w", err)
	}

	return k, nil
}

func (s *Store) UpdateAPIKey(ctx context.Context, k *domain.APIKey) error {
	query := `UPDATE api_keys SET name = ?, description = ?, active = ?
	          WHERE id = ? AND tenant_id = ?`

	result, err := s.db.ExecContext(ctx, query, k.Name, k.Description, k.Active, k.ID, k.TenantID)
	if err != nil {
		return translateError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, tenantID, id string) error {
	query := `DELETE FROM api_keys WHERE id = ? AND tenant_id = ?`

	result, err := s.db.ExecContext(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *Store) TouchAPIKey(ctx context.Context, id string, when time.Time) error {
	query := `UPDATE api_keys SET last_used_at = ? WHERE id = ?`

	_, err := s.db.ExecContext(ctx, query, when, id)
	if err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}

	return nil
}

// Traces

func (s *Store) CreateTrace(ctx context.Context, tr *domain.Trace) error {
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}

	var apiKeyID sql.NullString
	if tr.APIKeyID != "" {
		apiKeyID = sql.NullString{String: tr.APIKeyID, Valid: true}
	}

	query := `INSERT INTO traces (id, tenant_id, api_key_id, timestamp, task, context, model_output, metadata, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	// Timestamps are stored as text; normalizing to UTC keeps stored
	// values scannable and comparable regardless of the client's offset.
	_, err := s.db.ExecContext(ctx, query,
		tr.ID, tr.TenantID, apiKeyID, tr.Timestamp.UTC(), tr.Task,
		string(tr.Context), string(tr.ModelOutput), string(tr.Metadata), tr.CreatedAt)
	if err != nil {
		return translateError(err)
	}

	return nil
}

func (s *Store) ListTraces(ctx context.Context, tenantID string, f storage.TraceFilter, limit int) ([]*domain.Trace, error) {
	query := `SELECT id, tenant_id, api_key_id, timestamp, task, context, model_output, metadata, created_at
	          FROM traces WHERE tenant_id = ?`
	args := []any{tenantID}

	if f.Task != "" {
		query += ` AND task = ?`
		args = append(args, f.Task)
	}
	if f.From != nil {
		query += ` AND timestamp >= ?`
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		query += ` AND timestamp <= ?`
		args = append(args, f.To.UTC())
	}

	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var traces []*domain.Trace
	for rows.Next() {
		tr, err := scanTrace(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		traces = append(traces, tr)
	}

	return traces, rows.Err()
}

func (s *Store) GetTrace(ctx context.Context, tenantID, id string) (*domain.Trace, error) {
	query := `SELECT t.id, t.tenant_id, t.api_key_id, t.timestamp, t.task, t.context, t.model_output, t.metadata, t.created_at, k.name
	          FROM traces t
	          LEFT JOIN api_keys k ON k.id = t.api_key_id
	          WHERE t.id = ? AND t.tenant_id = ?`

	tr, err := scanTrace(s.db.QueryRowContext(ctx, query, id, tenantID), true)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trace: %w", err)
	}

	return tr, nil
}

func scanTrace(row interface{ Scan(...any) error }, withKeyName bool) (*domain.Trace, error) {
	var tr domain.Trace
	var apiKeyID, keyName sql.NullString
	var contextStr, outputStr, metadataStr string

	dest := []any{&tr.ID, &tr.TenantID, &apiKeyID, &tr.Timestamp, &tr.Task,
		&contextStr, &outputStr, &metadataStr, &tr.CreatedAt}
	if withKeyName {
		dest = append(dest, &keyName)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if apiKeyID.Valid {
		tr.APIKeyID = apiKeyID.String
	}
	if keyName.Valid {
		name := keyName.String
		tr.APIKeyName = &name
	}
	tr.Context = []byte(contextStr)
	tr.ModelOutput = []byte(outputStr)
	tr.Metadata = []byte(metadataStr)

	return &tr, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
