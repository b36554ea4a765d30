package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ignite/campaign-tracker/internal/config"
)

// Scope grants read/write access to spreadsheets.
const Scope = "https://www.googleapis.com/auth/spreadsheets"

const defaultTimeout = 60 * time.Second

// NewAuthenticatedClient builds a Client from the configured credentials.
// With a token file the credentials file is an OAuth client and the stored
// user token is refreshed as needed; without one it is a service account key.
func NewAuthenticatedClient(ctx context.Context, cfg config.SheetsConfig) (*Client, error) {
	httpClient, err := oauthHTTPClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	httpClient.Timeout = cfg.Timeout()
	if httpClient.Timeout == 0 {
		httpClient.Timeout = defaultTimeout
	}
	return NewClient(httpClient, Options{
		BaseURL:           cfg.BaseURL,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		MaxRetries:        cfg.MaxRetries,
	}), nil
}

func oauthHTTPClient(ctx context.Context, cfg config.SheetsConfig) (*http.Client, error) {
	if cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("sheets credentials_file is not configured")
	}
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading sheets credentials: %w", err)
	}

	if cfg.TokenFile != "" {
		oauthCfg, err := google.ConfigFromJSON(data, Scope)
		if err != nil {
			return nil, fmt.Errorf("parsing OAuth client credentials: %w", err)
		}
		tok, err := loadToken(cfg.TokenFile)
		if err != nil {
			return nil, err
		}
		return oauthCfg.Client(ctx, tok), nil
	}

	creds, err := google.CredentialsFromJSON(ctx, data, Scope)
	if err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	return oauth2.NewClient(ctx, creds.TokenSource), nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading sheets token: %w", err)
	}
	defer f.Close()

	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("parsing sheets token: %w", err)
	}
	return &tok, nil
}
