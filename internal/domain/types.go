package domain

import (
	"encoding/json"
	"time"
)

// Tenant is an authenticated account that owns credentials and traces.
// The internal ID is stable for the lifetime of the account; the
// external ID may be re-pointed when the upstream auth provider
// relinks the same human under a new principal identifier.
type Tenant struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"createdAt"`
}

// APIKey is a bearer secret used by non-interactive clients to submit
// traces. The token is immutable once issued and belongs to exactly
// one tenant for its lifetime.
type APIKey struct {
	ID          string     `json:"id"`
	Token       string     `json:"key"`
	TenantID    string     `json:"-"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Active      bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUsedAt  *time.Time `json:"lastUsedAt"`

	// TraceCount is populated on list reads only.
	TraceCount int64 `json:"traceCount"`
}

// APIKeyPatch carries the fields of a credential update. Nil fields
// are left untouched.
type APIKeyPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Active      *bool   `json:"isActive"`
}

// Trace is one immutable recorded tool invocation. Context, model
// output, and metadata are opaque semi-structured documents stored
// verbatim; the aggregator reads optional fields out of metadata with
// defaulting, but no schema is enforced on write.
type Trace struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"-"`
	APIKeyID    string          `json:"-"`
	Timestamp   time.Time       `json:"timestamp"`
	Task        string          `json:"task"`
	Context     json.RawMessage `json:"context"`
	ModelOutput json.RawMessage `json:"model_output"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   time.Time       `json:"-"`

	// APIKeyName names the credential used to create the trace, for
	// display only. Nil when the credential has since been revoked.
	APIKeyName *string `json:"apiKeyName,omitempty"`
}

// TraceMetadata is the loosely-typed view of a trace's metadata that
// the aggregator understands. All fields are optional.
type TraceMetadata struct {
	ToolName        string
	Success         bool
	ExecutionTimeMS float64
	ErrorType       string
}

// ParseTraceMetadata extracts the optional analytics fields from an
// opaque metadata document, applying the reference defaults: unknown
// tool names become "Unknown", a trace is successful unless metadata
// carries success=false, unrecorded execution time is zero, and error
// types default to "Unknown Error".
func ParseTraceMetadata(raw json.RawMessage) TraceMetadata {
	md := TraceMetadata{
		ToolName:  "Unknown",
		Success:   true,
		ErrorType: "Unknown Error",
	}
	if len(raw) == 0 {
		return md
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return md
	}

	if v, ok := fields["tool_name"].(string); ok && v != "" {
		md.ToolName = v
	}
	if v, ok := fields["success"].(bool); ok && !v {
		md.Success = false
	}
	if v, ok := fields["execution_time_ms"].(float64); ok {
		md.ExecutionTimeMS = v
	}
	if v, ok := fields["error_type"].(string); ok && v != "" {
		md.ErrorType = v
	}

	return md
}
