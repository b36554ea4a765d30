// Package ledger keeps per-tab counters of rows written by verified appends.
// The counters are a drift signal only; the destination tab is the source
// of truth for which refs exist.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ignite/campaign-tracker/internal/domain"
	"github.com/ignite/campaign-tracker/internal/pkg/logger"
)

var now = time.Now

// Entry is the counter for one tab kind.
type Entry struct {
	Count       int       `json:"count"`
	LastUpdated time.Time `json:"last_updated"`
	Campaign    string    `json:"campaign"`
	Environment string    `json:"environment"`
	RunID       string    `json:"run_id,omitempty"`
}

// Ledger is the persisted counter state of one campaign.
type Ledger struct {
	Entries        map[domain.Kind]Entry `json:"entries"`
	TotalProcessed int                   `json:"total_processed"`
	LastUpdated    time.Time             `json:"last_updated"`
	Campaign       string                `json:"campaign"`
	Environment    string                `json:"environment"`
}

// New returns a zeroed ledger with an entry per tracked kind.
func New() *Ledger {
	l := &Ledger{Entries: make(map[domain.Kind]Entry, len(domain.Kinds))}
	for _, k := range domain.Kinds {
		l.Entries[k] = Entry{}
	}
	return l
}

// Count returns the counter for kind.
func (l *Ledger) Count(kind domain.Kind) int {
	return l.Entries[kind].Count
}

func (l *Ledger) clone() *Ledger {
	c := *l
	c.Entries = make(map[domain.Kind]Entry, len(l.Entries))
	for k, e := range l.Entries {
		c.Entries[k] = e
	}
	return &c
}

// Store persists a ledger as JSON at <dir>/<campaign>/counters.json.
type Store struct {
	path string
}

// NewStore creates a store for a campaign under stateDir.
func NewStore(stateDir, campaign string) *Store {
	return &Store{path: filepath.Join(stateDir, campaign, "counters.json")}
}

// Path returns the ledger file location.
func (s *Store) Path() string { return s.path }

// Load reads the ledger. A missing or corrupt file yields a fresh ledger.
func (s *Store) Load() *Ledger {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no ledger found, starting fresh", "path", s.path)
		} else {
			logger.Warn("ledger unreadable, starting fresh", "path", s.path, "error", err.Error())
		}
		return New()
	}

	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		logger.Warn("ledger corrupt, starting fresh", "path", s.path, "error", err.Error())
		return New()
	}
	fresh := New()
	for k, e := range l.Entries {
		fresh.Entries[k] = e
	}
	l.Entries = fresh.Entries
	return &l
}

// Save writes the ledger atomically via a temp file and rename.
func (s *Store) Save(l *Ledger) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".counters-*.json")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}

// Verify compares the ledger count for kind with the keys found at the
// destination. A difference is logged at CRITICAL and reported as false;
// it never blocks a run.
func Verify(keys domain.KeySet, l *Ledger, kind domain.Kind) bool {
	want := l.Count(kind)
	got := keys.Len()
	if want != got {
		logger.Critical("ledger drift detected",
			"kind", string(kind),
			"ledger_count", want,
			"destination_count", got,
			"difference", got-want,
		)
		return false
	}
	logger.Debug("ledger matches destination", "kind", string(kind), "count", got)
	return true
}

// Update returns a copy of l with delta added to kind and the total, and
// the stamps set. l is not modified.
func Update(l *Ledger, kind domain.Kind, delta int, campaign, environment, runID string) *Ledger {
	out := l.clone()
	ts := now().UTC()

	e := out.Entries[kind]
	e.Count += delta
	e.LastUpdated = ts
	e.Campaign = campaign
	e.Environment = environment
	e.RunID = runID
	out.Entries[kind] = e

	out.TotalProcessed += delta
	out.LastUpdated = ts
	out.Campaign = campaign
	out.Environment = environment
	return out
}
