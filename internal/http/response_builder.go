// This file implements the builder for JSON responses and the mapping from
// ledger error kinds to HTTP status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"registro/internal/auth"
	"registro/internal/core"
	"registro/internal/ledger"
	"registro/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    interface{}
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *JSONResponseBuilder) JSON(v interface{}) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.payload)
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).JSON(errorBody{Error: message})
}

func BadRequestError(field, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusBadRequest).JSON(errorBody{Error: message, Field: field})
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}

func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Header("Allow", allowedMethods)
}

// TooManyRequestsError is written by the rate limiter after Retry-After is set.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// writeError maps err to a status code. Storage and unexpected failures are
// logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		BadRequestError(ve.Field, ve.Reason).Write(w)
	case core.IsNotFound(err):
		NotFoundError("event not found").Write(w)
	case errors.Is(err, auth.ErrMissingCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidOwner):
		ErrorResponse(http.StatusUnauthorized, err.Error()).
			Header("WWW-Authenticate", `Bearer realm="registro"`).
			Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.NewFields().
				WithError(err).
				WithHTTPRequest(r.Method, r.URL.Path, "", "").
				ToSlice()...)
		InternalServerError().Write(w)
	}
}

type eventResponse struct {
	ID            string    `json:"id"`
	Sequence      string    `json:"sequence"`
	Kind          string    `json:"kind"`
	Amount        string    `json:"amount"`
	Balance       string    `json:"balance"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	OccurredAt    time.Time `json:"occurred_at"`
	Category      string    `json:"category,omitempty"`
	Account       string    `json:"account,omitempty"`
	Description   string    `json:"description,omitempty"`
	TransferType  string    `json:"transfer_type,omitempty"`
	Source        string    `json:"source,omitempty"`
	Destination   string    `json:"destination,omitempty"`
	CounterpartID string    `json:"counterpart_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newEventResponse(e core.Event) eventResponse {
	return eventResponse{
		ID:            e.ID,
		Sequence:      string(e.Sequence),
		Kind:          string(e.Kind),
		Amount:        e.Amount.String(),
		Balance:       e.Balance.String(),
		Date:          e.OccurredAt.UTC().Format(core.DateLayout),
		Time:          e.OccurredAt.UTC().Format("15:04:05"),
		OccurredAt:    e.OccurredAt.UTC(),
		Category:      e.Category,
		Account:       e.Account,
		Description:   e.Description,
		TransferType:  string(e.TransferType),
		Source:        string(e.Source),
		Destination:   string(e.Destination),
		CounterpartID: e.CounterpartID,
		CreatedAt:     e.CreatedAt.UTC(),
	}
}

func newEventResponses(events []core.Event) []eventResponse {
	out := make([]eventResponse, len(events))
	for i, e := range events {
		out[i] = newEventResponse(e)
	}
	return out
}

type statementResponse struct {
	Sequence string          `json:"sequence"`
	Closing  string          `json:"closing_balance"`
	Events   []eventResponse `json:"events"`
}

func newStatementResponse(st core.Statement) statementResponse {
	return statementResponse{
		Sequence: string(st.Sequence),
		Closing:  st.Closing().String(),
		Events:   newEventResponses(st.Events),
	}
}

type sequenceBalanceResponse struct {
	Sequence string `json:"sequence"`
	Name     string `json:"name"`
	Balance  string `json:"balance"`
	Events   int    `json:"events"`
}

type summaryResponse struct {
	OwnerID   string                    `json:"owner_id"`
	Sequences []sequenceBalanceResponse `json:"sequences"`
}

func newSummaryResponse(s core.Summary, name func(core.Sequence) string) summaryResponse {
	out := summaryResponse{OwnerID: s.OwnerID, Sequences: make([]sequenceBalanceResponse, len(s.Sequences))}
	for i, sb := range s.Sequences {
		out.Sequences[i] = sequenceBalanceResponse{
			Sequence: string(sb.Sequence),
			Name:     name(sb.Sequence),
			Balance:  sb.Balance.String(),
			Events:   sb.Events,
		}
	}
	return out
}

type removeResponse struct {
	Removed            []eventResponse `json:"removed"`
	CounterpartMissing bool            `json:"counterpart_missing"`
	Summary            summaryResponse `json:"summary"`
}

func newRemoveResponse(res ledger.RemoveResult, name func(core.Sequence) string) removeResponse {
	return removeResponse{
		Removed:            newEventResponses(res.Removed),
		CounterpartMissing: res.CounterpartMissing,
		Summary:            newSummaryResponse(res.Summary, name),
	}
}
