// Package http serves the ledger JSON API.
//
// This file holds the request body parsing shared by the write endpoints.
// Bodies may be JSON objects or form-encoded; both decode into the same
// key/value view.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"registro/internal/core"
)

// maxBodyBytes bounds request bodies on write endpoints.
const maxBodyBytes = 1 << 20

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once and stores it for parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body as JSON or form data. Errors are ValidationErrors.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(p.err, &tooLarge) {
			p.err = &core.ValidationError{Field: "body", Reason: "request body too large", Err: p.err}
		}
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]interface{})
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = &core.ValidationError{Field: "body", Reason: "malformed JSON", Err: err}
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	if p.err != nil {
		p.err = &core.ValidationError{Field: "body", Reason: "malformed form data", Err: p.err}
	}
	return p.err
}

// Get returns a trimmed, sanitized string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was present in the body.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	_, ok := p.formData[key]
	return ok
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// eventDraftParser turns request fields into an unsaved event. Bank names
// accept the configured display names as well as A and B.
type eventDraftParser struct {
	banks map[core.Bank]string
	now   func() time.Time
}

// Parse builds a draft for ownerID. Any client-supplied balance is ignored.
func (d eventDraftParser) Parse(ownerID string, p *RequestBodyParser) (core.Event, error) {
	draft := core.Event{
		OwnerID:     ownerID,
		Category:    p.Get("category"),
		Account:     p.Get("account"),
		Description: p.Get("description"),
	}

	kind := core.Kind(strings.ToLower(p.Get("kind")))
	if !kind.IsValid() {
		return core.Event{}, &core.ValidationError{Field: "kind", Reason: "must be income, expense or transfer"}
	}
	draft.Kind = kind

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.Event{}, err
	}
	draft.Amount = amount

	date, clock := p.Get("date"), p.Get("time")
	if date == "" && clock == "" {
		draft.OccurredAt = d.now().UTC().Truncate(time.Second)
	} else {
		if date == "" {
			date = d.now().UTC().Format(core.DateLayout)
		}
		if draft.OccurredAt, err = core.ParseOccurrence(date, clock); err != nil {
			return core.Event{}, err
		}
	}

	if kind == core.Transfer {
		if err := d.parseTransfer(&draft, p); err != nil {
			return core.Event{}, err
		}
	}

	seq := p.Get("sequence")
	switch {
	case seq != "":
		if draft.Sequence, err = core.ParseSequence(seq); err != nil {
			return core.Event{}, err
		}
	case kind == core.Transfer && draft.Source.IsValid():
		draft.Sequence = draft.Source.Sequence()
	default:
		draft.Sequence = core.Transactions
	}
	return draft, nil
}

func (d eventDraftParser) parseTransfer(draft *core.Event, p *RequestBodyParser) error {
	var err error
	if draft.Source, err = d.bank("source", p.Get("source")); err != nil {
		return err
	}
	if draft.Destination, err = d.bank("destination", p.Get("destination")); err != nil {
		return err
	}

	switch tt := core.TransferType(strings.ToLower(p.Get("transfer_type"))); {
	case tt == "" && draft.Destination.IsValid():
		draft.TransferType = core.Internal
	case tt == "":
		draft.TransferType = core.External
	case tt.IsValid():
		draft.TransferType = tt
	default:
		return &core.ValidationError{Field: "transfer_type", Reason: "must be internal or external"}
	}
	return nil
}

func (d eventDraftParser) bank(field, raw string) (core.Bank, error) {
	b, err := core.ParseBank(raw, d.banks)
	if err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			ve.Field = field
		}
		return core.NoBank, err
	}
	return b, nil
}
