package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"registro/internal/core"
)

// clearGoogleEnv unsets every variable NewFromEnv reads.
func clearGoogleEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GOOGLE_SPREADSHEET_ID",
		"GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE",
		"GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE",
		"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE",
		"GOOGLE_APPLICATION_CREDENTIALS",
	} {
		t.Setenv(k, "")
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	clearGoogleEnv(t)

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "invalid oauth client",
			env:     map[string]string{"GOOGLE_OAUTH_CLIENT_JSON": "invalid-json", "GOOGLE_OAUTH_TOKEN_JSON": `{"access_token":"test"}`},
			wantErr: "oauth config",
		},
		{
			name:    "oauth client without token",
			env:     map[string]string{"GOOGLE_OAUTH_CLIENT_JSON": `{"installed":{"client_id":"id","client_secret":"s","redirect_uris":["http://localhost"],"auth_uri":"https://a","token_uri":"https://t"}}`},
			wantErr: "oauth token",
		},
		{
			name:    "no credentials",
			env:     map[string]string{},
			wantErr: "missing Google credentials",
		},
		{
			name:    "unreadable service account file",
			env:     map[string]string{"GOOGLE_SERVICE_ACCOUNT_FILE": "/does/not/exist.json"},
			wantErr: "read GOOGLE_SERVICE_ACCOUNT_FILE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearGoogleEnv(t)
			t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := NewFromEnv(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q in error, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestReadSecret(t *testing.T) {
	clearGoogleEnv(t)
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte(`{"access_token":"x"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GOOGLE_OAUTH_TOKEN_FILE", path)
	b, err := readSecret("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil || string(b) != `{"access_token":"x"}` {
		t.Fatalf("file secret = %q, %v", b, err)
	}

	t.Setenv("GOOGLE_OAUTH_TOKEN_JSON", `{"access_token":"inline"}`)
	b, _ = readSecret("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if string(b) != `{"access_token":"inline"}` {
		t.Errorf("inline value should win, got %q", b)
	}
}

func TestA1Range(t *testing.T) {
	tests := []struct {
		title, cells, want string
	}{
		{"u1 bank_a", "A1", "'u1 bank_a'!A1"},
		{"o'brien transactions", "A:H", "'o''brien transactions'!A:H"},
	}
	for _, tt := range tests {
		if got := a1Range(tt.title, tt.cells); got != tt.want {
			t.Errorf("a1Range(%q, %q) = %q, want %q", tt.title, tt.cells, got, tt.want)
		}
	}
}

func TestWriteSequence_NoService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	err := c.WriteSequence(context.Background(), core.Statement{OwnerID: "u1", Sequence: core.Transactions})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("expected not initialized error, got %v", err)
	}
}
