package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"registro/internal/core"
)

func newParser(t *testing.T, contentType, body string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	p := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

func TestRequestBodyParser_JSON(t *testing.T) {
	p := newParser(t, "application/json", `{"kind": "income", "amount": 42.50, "flag": true, "nested": {"x": 1}}`)

	if !p.IsJSON() {
		t.Error("IsJSON() = false")
	}
	if got := p.Get("amount"); got != "42.50" {
		t.Errorf("Get(amount) = %q, want 42.50 (number kept verbatim)", got)
	}
	if got := p.Get("flag"); got != "true" {
		t.Errorf("Get(flag) = %q", got)
	}
	if got := p.Get("nested"); got != "" {
		t.Errorf("Get(nested) = %q, want empty", got)
	}
	if !p.Has("kind") || p.Has("missing") {
		t.Error("Has() mismatch")
	}
}

func TestRequestBodyParser_Form(t *testing.T) {
	p := newParser(t, "application/x-www-form-urlencoded", "kind=expense&amount=12%2C34&description=+coffee\x01+")

	if p.IsJSON() {
		t.Error("IsJSON() = true for form body")
	}
	if got := p.Get("amount"); got != "12,34" {
		t.Errorf("Get(amount) = %q", got)
	}
	if got := p.Get("description"); got != "coffee" {
		t.Errorf("Get(description) = %q, want sanitized", got)
	}
}

func TestRequestBodyParser_Errors(t *testing.T) {
	tests := []struct {
		name  string
		ctype string
		body  string
	}{
		{"malformed json", "application/json", `{"kind": `},
		{"json content type with garbage", "application/json", `kind=income`},
		{"too large", "application/json", `{"description": "` + strings.Repeat("x", maxBodyBytes) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.ctype)
			err := NewRequestBodyParser(httptest.NewRecorder(), req).Parse()
			if !core.IsValidation(err) {
				t.Errorf("Parse() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestEventDraftParser(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 9, 30, 12, 500, time.UTC)
	d := eventDraftParser{
		banks: map[core.Bank]string{core.A: "Checking", core.B: "Savings"},
		now:   func() time.Time { return fixedNow },
	}

	tests := []struct {
		name      string
		body      string
		want      core.Event
		wantField string
	}{
		{
			name: "expense defaults to transactions",
			body: `{"kind":"expense","amount":"30","date":"2025-03-02","time":"2:15 PM","category":"Food","balance":"999"}`,
			want: core.Event{
				Kind: core.Expense, Sequence: core.Transactions, Amount: core.MustMoney("30"),
				OccurredAt: time.Date(2025, 3, 2, 14, 15, 0, 0, time.UTC), Category: "Food",
			},
		},
		{
			name: "missing date and time uses now",
			body: `{"kind":"income","amount":"100","category":"Salary"}`,
			want: core.Event{
				Kind: core.Income, Sequence: core.Transactions, Amount: core.MustMoney("100"),
				OccurredAt: fixedNow.Truncate(time.Second), Category: "Salary",
			},
		},
		{
			name: "internal transfer inferred from destination",
			body: `{"kind":"transfer","amount":"50","date":"2025-03-01","source":"Checking","destination":"B"}`,
			want: core.Event{
				Kind: core.Transfer, Sequence: core.BankA, Amount: core.MustMoney("50"),
				OccurredAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
				TransferType: core.Internal, Source: core.A, Destination: core.B,
			},
		},
		{
			name: "external transfer on transactions",
			body: `{"kind":"transfer","transfer_type":"external","amount":"5","date":"2025-03-01","sequence":"transactions"}`,
			want: core.Event{
				Kind: core.Transfer, Sequence: core.Transactions, Amount: core.MustMoney("5"),
				OccurredAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), TransferType: core.External,
			},
		},
		{name: "unknown kind", body: `{"kind":"gift","amount":"1"}`, wantField: "kind"},
		{name: "missing amount", body: `{"kind":"income"}`, wantField: "amount"},
		{name: "negative amount", body: `{"kind":"income","amount":"-4"}`, wantField: "amount"},
		{name: "bad date", body: `{"kind":"income","amount":"4","date":"02/03/2025"}`, wantField: "date"},
		{name: "bad time", body: `{"kind":"income","amount":"4","date":"2025-03-02","time":"noon"}`, wantField: "time"},
		{name: "unknown bank", body: `{"kind":"transfer","amount":"4","source":"Bank C"}`, wantField: "source"},
		{name: "bad transfer type", body: `{"kind":"transfer","amount":"4","transfer_type":"wire"}`, wantField: "transfer_type"},
		{name: "unknown sequence", body: `{"kind":"income","amount":"4","sequence":"cash"}`, wantField: "sequence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Parse("owner-1", newParser(t, "application/json", tt.body))
			if tt.wantField != "" {
				ve, ok := err.(*core.ValidationError)
				if !ok {
					t.Fatalf("error = %v, want ValidationError", err)
				}
				if ve.Field != tt.wantField {
					t.Errorf("field = %q, want %q", ve.Field, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			tt.want.OwnerID = "owner-1"
			if !got.Amount.Equal(tt.want.Amount) {
				t.Errorf("amount = %s, want %s", got.Amount, tt.want.Amount)
			}
			if !got.Balance.IsZero() {
				t.Errorf("client balance leaked into draft: %s", got.Balance)
			}
			got.Amount, tt.want.Amount = core.Money{}, core.Money{}
			got.Balance = core.Money{}
			if got != tt.want {
				t.Errorf("draft = %+v\nwant    %+v", got, tt.want)
			}
		})
	}
}
