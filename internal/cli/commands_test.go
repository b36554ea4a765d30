package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-tracker/internal/config"
	"github.com/ignite/campaign-tracker/internal/domain"
	"github.com/ignite/campaign-tracker/internal/ledger"
	"github.com/ignite/campaign-tracker/internal/sheets"
)

const testConfig = `
sources:
  live:
    host: db.internal
    user: tracker
    database: civicrm
state:
  dir: %STATE%
campaigns:
  winter:
    sheet_id: sheet-winter
    landing_pages: ["/winter-offer"]
  summer:
    sheet_id: sheet-summer
    course_types: [3]
    landing_pages: ["/summer-a", "/summer-b"]
    merge:
      success: Merged Success
`

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// writeConfig writes a config file whose state dir lives under the test's
// temp dir and returns both paths.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	stateDir := filepath.Join(dir, "state")
	data := bytes.ReplaceAll([]byte(testConfig), []byte("%STATE%"), []byte(stateDir))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path, stateDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCampaignsCommand(t *testing.T) {
	path, _ := writeConfig(t)

	out, err := execute(t, "campaigns", "--config", path)
	require.NoError(t, err)

	newGoldie(t).Assert(t, "campaigns", []byte(out))
}

func TestLedgerCommand(t *testing.T) {
	path, stateDir := writeConfig(t)

	store := ledger.NewStore(stateDir, "summer")
	l := ledger.Update(ledger.New(), domain.KindCourseSuccess, 4, "summer", "live", "run-1")
	require.NoError(t, store.Save(l))

	out, err := execute(t, "ledger", "summer", "--config", path)
	require.NoError(t, err)

	var got ledger.Ledger
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 4, got.Count(domain.KindCourseSuccess))
	assert.Equal(t, 0, got.Count(domain.KindAdFailed))
	assert.Equal(t, 4, got.TotalProcessed)
	assert.Equal(t, "summer", got.Campaign)
}

func TestLedgerCommandFreshCampaign(t *testing.T) {
	path, _ := writeConfig(t)

	out, err := execute(t, "ledger", "winter", "--config", path)
	require.NoError(t, err)

	var got ledger.Ledger
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	for _, kind := range domain.Kinds {
		assert.Equal(t, 0, got.Count(kind), "kind %s", kind)
	}
}

func TestUnknownCampaign(t *testing.T) {
	path, _ := writeConfig(t)

	for _, args := range [][]string{
		{"ledger", "autumn"},
		{"run", "autumn"},
		{"merge", "autumn"},
	} {
		t.Run(args[0], func(t *testing.T) {
			_, err := execute(t, append(args, "--config", path)...)
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrUnknownCampaign)
			assert.Equal(t, ExitFailure, GetExitCode(err))
		})
	}
}

func TestUnknownEnvironment(t *testing.T) {
	path, _ := writeConfig(t)

	_, err := execute(t, "run", "summer", "stage", "--config", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrUnknownEnvironment)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, "campaigns", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("campaigns:\n  x:\n    landing_pages: [a]\n"), 0644))

	_, err := execute(t, "campaigns", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source environments configured")
}

const oauthClientJSON = `{"installed":{"client_id":"client-1","client_secret":"secret",` +
	`"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",` +
	`"redirect_uris":["http://localhost"]}}`

const storedTokenJSON = `{"access_token":"test-token","token_type":"Bearer","expiry":"2099-01-01T00:00:00Z"}`

// writeSheetsConfig extends the test config with credentials and a stored
// token pointing the Sheets client at baseURL.
func writeSheetsConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path, _ := writeConfig(t)
	dir := filepath.Dir(path)

	creds := filepath.Join(dir, "client.json")
	token := filepath.Join(dir, "token.json")
	require.NoError(t, os.WriteFile(creds, []byte(oauthClientJSON), 0600))
	require.NoError(t, os.WriteFile(token, []byte(storedTokenJSON), 0600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = append(data, []byte("sheets:\n"+
		"  credentials_file: "+creds+"\n"+
		"  token_file: "+token+"\n"+
		"  base_url: "+baseURL+"\n"+
		"  requests_per_second: 100\n")...)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestUnreachableDestinationIsSetupFailure(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		notFound bool
	}{
		{
			name:     "unknown spreadsheet",
			status:   http.StatusNotFound,
			body:     `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`,
			notFound: true,
		},
		{
			name:   "permission denied",
			status: http.StatusForbidden,
			body:   `{"error":{"code":403,"message":"The caller does not have permission","status":"PERMISSION_DENIED"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			var paths []string
			var auth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				paths = append(paths, r.URL.Path)
				auth = r.Header.Get("Authorization")
				mu.Unlock()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			path := writeSheetsConfig(t, server.URL)

			for _, args := range [][]string{{"run", "summer"}, {"merge", "summer"}} {
				out, err := execute(t, append(args, "--config", path)...)
				require.Error(t, err, args[0])
				assert.Equal(t, ExitFailure, GetExitCode(err), args[0])
				assert.True(t, strings.HasPrefix(err.Error(), "destination: "), err.Error())
				assert.Equal(t, tt.notFound, errors.Is(err, sheets.ErrNotFound), args[0])
				assert.Empty(t, out, args[0])
			}

			mu.Lock()
			defer mu.Unlock()
			require.Len(t, paths, 2)
			assert.Equal(t, "/spreadsheets/sheet-summer", paths[0])
			assert.Equal(t, "Bearer test-token", auth)
		})
	}
}
