package log

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"registro/internal/core"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Component: component, Output: buf})
}

func TestNew_AddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentLedger)

	logger.Info("Balance recalculated", FieldOwnerID, "u1")

	out := buf.String()
	for _, want := range []string{"component=ledger", "owner_id=u1", `msg="Balance recalculated"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
	if logger.Component() != ComponentLedger {
		t.Errorf("Component() = %q", logger.Component())
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record missing")
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Errorf("fallback component = %q, want unknown", got.Component())
	}

	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP)
	ctx := NewContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("FromContext did not return stored logger")
	}
}

func TestMiddlewareAndEnrich(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP)

	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = Enrich(r, FieldRequestID, "req_1")
		FromContext(r.Context()).Info("Handled")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Errorf("enriched field missing: %s", buf.String())
	}
}

func TestLogFields_WithEvent(t *testing.T) {
	e := core.Event{
		ID:            "e1",
		OwnerID:       "u1",
		Sequence:      core.BankA,
		Kind:          core.Transfer,
		Amount:        core.MustMoney("50"),
		Balance:       core.MustMoney("-50"),
		CounterpartID: "e2",
		OccurredAt:    time.Now(),
	}
	f := NewFields().WithEvent(e).WithOperation(OpRecord)

	want := map[string]any{
		FieldEventID:       "e1",
		FieldOwnerID:       "u1",
		FieldSequence:      "bank_a",
		FieldAmount:        "50.00",
		FieldBalance:       "-50.00",
		FieldCounterpartID: "e2",
		FieldOperation:     OpRecord,
	}
	for k, v := range want {
		if f[k] != v {
			t.Errorf("field %s = %v, want %v", k, f[k], v)
		}
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Errorf("ToSlice length = %d, want %d", len(f.ToSlice()), 2*len(f))
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&core.ValidationError{Field: "amount", Reason: "required"}, ErrorTypeValidation},
		{fmt.Errorf("get: %w", core.ErrNotFound), ErrorTypeNotFound},
		{&core.StorageError{Op: "insert", Err: fmt.Errorf("disk full")}, ErrorTypeDatabase},
		{fmt.Errorf("boom"), ErrorTypeInternal},
	}
	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
