package log

import "registro/internal/core"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldOwnerID       = "owner_id"
	FieldSequence      = "sequence"
	FieldEventID       = "event_id"
	FieldKind          = "kind"
	FieldAmount        = "amount"
	FieldBalance       = "balance"
	FieldCounterpartID = "counterpart_id"
)

// Components
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentExport    = "export"
	ComponentCache     = "cache"
	ComponentAuth      = "auth"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
)

// Operations
const (
	OpRecord      = "record"
	OpRemove      = "remove"
	OpRecalculate = "recalculate"
	OpStatement   = "statement"
	OpSummary     = "summary"
	OpExport      = "export"
	OpSync        = "sync"
	OpStartup     = "startup"
	OpShutdown    = "shutdown"
)

// Error type categories, attached as "error_type".
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// ErrorType classifies err for the "error_type" attribute.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case core.IsValidation(err):
		return ErrorTypeValidation
	case core.IsNotFound(err):
		return ErrorTypeNotFound
	case core.IsStorage(err):
		return ErrorTypeDatabase
	default:
		return ErrorTypeInternal
	}
}

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds the error and its category.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f["error_type"] = ErrorType(err)
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithOwner adds the owner and, when set, the sequence.
func (f LogFields) WithOwner(ownerID string, seq core.Sequence) LogFields {
	f[FieldOwnerID] = ownerID
	if seq != "" {
		f[FieldSequence] = string(seq)
	}
	return f
}

// WithEvent adds the identifying and monetary fields of e.
func (f LogFields) WithEvent(e core.Event) LogFields {
	f[FieldEventID] = e.ID
	f[FieldOwnerID] = e.OwnerID
	f[FieldSequence] = string(e.Sequence)
	f[FieldKind] = string(e.Kind)
	f[FieldAmount] = e.Amount.String()
	f[FieldBalance] = e.Balance.String()
	if e.CounterpartID != "" {
		f[FieldCounterpartID] = e.CounterpartID
	}
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
