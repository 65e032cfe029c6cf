package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorHTTPStatusCode(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want int
	}{
		{KindInvalidInput, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindInternal, http.StatusInternalServerError},
		{ErrorKind("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := NewError(tt.kind, "m").HTTPStatusCode(); got != tt.want {
			t.Errorf("HTTPStatusCode(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(ErrNotFound("x")); got != KindNotFound {
		t.Errorf("KindOf(not found) = %v, want %v", got, KindNotFound)
	}
	wrapped := fmt.Errorf("context: %w", ErrConflict("x"))
	if got := KindOf(wrapped); got != KindConflict {
		t.Errorf("KindOf(wrapped) = %v, want %v", got, KindConflict)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("KindOf(plain) = %v, want %v", got, KindInternal)
	}
}

func TestParseTraceMetadata(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want TraceMetadata
	}{
		{
			name: "all fields present",
			raw:  `{"tool_name":"search","success":false,"execution_time_ms":12.5,"error_type":"Timeout"}`,
			want: TraceMetadata{ToolName: "search", Success: false, ExecutionTimeMS: 12.5, ErrorType: "Timeout"},
		},
		{
			name: "empty document",
			raw:  `{}`,
			want: TraceMetadata{ToolName: "Unknown", Success: true, ErrorType: "Unknown Error"},
		},
		{
			name: "success must be boolean false",
			raw:  `{"success":"false"}`,
			want: TraceMetadata{ToolName: "Unknown", Success: true, ErrorType: "Unknown Error"},
		},
		{
			name: "wrongly typed fields fall back",
			raw:  `{"tool_name":42,"execution_time_ms":"fast"}`,
			want: TraceMetadata{ToolName: "Unknown", Success: true, ErrorType: "Unknown Error"},
		},
		{
			name: "empty strings fall back",
			raw:  `{"tool_name":"","error_type":""}`,
			want: TraceMetadata{ToolName: "Unknown", Success: true, ErrorType: "Unknown Error"},
		},
		{
			name: "not an object",
			raw:  `[1,2,3]`,
			want: TraceMetadata{ToolName: "Unknown", Success: true, ErrorType: "Unknown Error"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseTraceMetadata(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("ParseTraceMetadata() = %+v, want %+v", got, tt.want)
			}
		})
	}

	if got := ParseTraceMetadata(nil); got.ToolName != "Unknown" || !got.Success {
		t.Errorf("ParseTraceMetadata(nil) = %+v, want defaults", got)
	}
}
