// Package sheets is a small Google Sheets v4 REST client covering the calls
// the tracker needs: range reads, row appends, range updates, tab creation
// and tab listing.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/ignite/campaign-tracker/internal/pkg/httpretry"
)

// ErrNotFound is matched by APIErrors for a missing spreadsheet or tab.
var ErrNotFound = errors.New("sheets: not found")

// APIError is a non-2xx response from the Sheets API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sheets API error (status %d %s): %s", e.StatusCode, e.Status, e.Message)
}

// Is reports 404s, and the 400 Sheets returns for a range on a missing tab,
// as ErrNotFound.
func (e *APIError) Is(target error) bool {
	if target != ErrNotFound {
		return false
	}
	return e.StatusCode == http.StatusNotFound ||
		(e.StatusCode == http.StatusBadRequest && strings.Contains(e.Message, "Unable to parse range"))
}

// Options tune a Client.
type Options struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
}

// Client is the Sheets API client. Reads go through a retrying transport;
// writes do not, because a retried append whose first response was lost
// would insert the rows twice. Write retries belong to the caller, which
// verifies before retrying.
type Client struct {
	baseURL string
	writes  httpretry.HTTPDoer
	reads   httpretry.HTTPDoer
	limiter *rate.Limiter
}

// NewClient wraps an authenticated HTTP client.
func NewClient(httpClient *http.Client, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://sheets.googleapis.com/v4"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		writes:  httpClient,
		reads:   httpretry.NewRetryClient(httpClient, opts.MaxRetries),
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
	}
}

// SetHTTPClient sets a custom HTTP client for both reads and writes (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.writes = client
	c.reads = client
}

// SetRateLimit replaces the request limiter.
func (c *Client) SetRateLimit(rps float64, burst int) {
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Spreadsheet binds the client to one spreadsheet.
func (c *Client) Spreadsheet(id string) *Spreadsheet {
	return &Spreadsheet{client: c, id: id}
}

// A1 builds a quoted A1 range such as 'Ctr Course Success'!A:A.
func A1(tab, cells string) string {
	quoted := "'" + strings.ReplaceAll(tab, "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}

func (c *Client) doRequest(ctx context.Context, doer httpretry.HTTPDoer, method, endpoint string, body interface{}) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp, respBody)
	}
	return respBody, nil
}

func parseAPIError(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode), Message: string(body)}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		if envelope.Error.Status != "" {
			apiErr.Status = envelope.Error.Status
		}
	}
	return apiErr
}

func valuesEndpoint(spreadsheetID, rng string) string {
	return fmt.Sprintf("/spreadsheets/%s/values/%s", url.PathEscape(spreadsheetID), url.PathEscape(rng))
}
