package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"

	"registro/internal/core"
	ports "registro/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// mirrorColumns covers every column written by ports.Rows.
const mirrorColumns = "A:H"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu   sync.Mutex
	tabs map[string]bool // titles known to exist in the spreadsheet
}

// Ensure interface conformance
var _ ports.SequenceWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth, first match wins:
//   - GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE, with GOOGLE_OAUTH_TOKEN_JSON or
//     GOOGLE_OAUTH_TOKEN_FILE (token written by cmd/oauth-init)
//   - GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	httpClient, err := newAuthorizedHTTPClient(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully", "spreadsheet_id", spreadsheetID)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		tabs:          make(map[string]bool),
	}, nil
}

// newAuthorizedHTTPClient builds an OAuth2 HTTP client on top of the pooled
// transport, from either user OAuth credentials or a service account.
func newAuthorizedHTTPClient(ctx context.Context) (*http.Client, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())

	clientJSON, err := readSecret("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, err
	}
	if len(clientJSON) > 0 {
		slog.InfoContext(ctx, "Using OAuth client credentials")
		cfg, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("oauth config: %w", err)
		}
		tokenJSON, err := readSecret("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
		if err != nil {
			return nil, err
		}
		if len(tokenJSON) == 0 {
			return nil, errors.New("oauth token: set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE (run oauth-init)")
		}
		var tok oauth2.Token
		if err := json.Unmarshal(tokenJSON, &tok); err != nil {
			return nil, fmt.Errorf("oauth token: %w", err)
		}
		return cfg.Client(ctx, &tok), nil
	}

	saJSON, err := readSecret("GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE")
	if err != nil {
		return nil, err
	}
	if len(saJSON) == 0 {
		// Also check the standard Google Cloud environment variable
		saJSON, err = readSecret("", "GOOGLE_APPLICATION_CREDENTIALS")
		if err != nil {
			return nil, err
		}
	}
	if len(saJSON) == 0 {
		return nil, errors.New("missing Google credentials (set GOOGLE_OAUTH_CLIENT_JSON/FILE or GOOGLE_SERVICE_ACCOUNT_JSON/FILE or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Using Service Account credentials", "credentials_size", len(saJSON))
	creds, err := oauthgoogle.CredentialsFromJSON(ctx, saJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("service account credentials: %w", err)
	}
	return oauth2.NewClient(ctx, creds.TokenSource), nil
}

// readSecret returns the inline value of jsonVar, or the contents of the file
// named by fileVar, or nil when neither is set.
func readSecret(jsonVar, fileVar string) ([]byte, error) {
	if jsonVar != "" {
		if v := strings.TrimSpace(os.Getenv(jsonVar)); v != "" {
			return []byte(v), nil
		}
	}
	path := strings.TrimSpace(os.Getenv(fileVar))
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileVar, err)
	}
	return b, nil
}

// newHTTPClientWithPooling creates an HTTP client optimized for Google Sheets API
// with connection pooling, proper timeouts, and keep-alive settings
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second, // TCP connection timeout
		KeepAlive: 30 * time.Second, // Keep-alive probe interval
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		// Connection pooling settings
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second, // Overall request timeout
	}
}

// WriteSequence replaces the contents of the statement's tab, creating the
// tab on first use.
func (c *Client) WriteSequence(ctx context.Context, st core.Statement) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	title := ports.TabName(st.OwnerID, st.Sequence)
	if err := c.ensureTab(ctx, title); err != nil {
		return err
	}

	clearRange := a1Range(title, mirrorColumns)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := ports.Rows(st)
	writeRange := a1Range(title, "A1")
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", writeRange, err)
	}

	slog.InfoContext(ctx, "Sequence mirrored to Google Sheets",
		"tab", title,
		"rows", len(rows)-1,
		"closing_balance", st.Closing().String())
	return nil
}

func (c *Client) ensureTab(ctx context.Context, title string) error {
	c.mu.Lock()
	known := c.tabs[title]
	c.mu.Unlock()
	if known {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	c.mu.Lock()
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.tabs[sh.Properties.Title] = true
		}
	}
	known = c.tabs[title]
	c.mu.Unlock()
	if known {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %q: %w", title, err)
	}
	slog.InfoContext(ctx, "Created Google Sheets tab", "tab", title)

	c.mu.Lock()
	c.tabs[title] = true
	c.mu.Unlock()
	return nil
}

// a1Range quotes a tab title for A1 notation.
func a1Range(title, cells string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!" + cells
}
