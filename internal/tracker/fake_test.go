package tracker

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ignite/campaign-tracker/internal/domain"
	"github.com/ignite/campaign-tracker/internal/pkg/retry"
	"github.com/ignite/campaign-tracker/internal/sheets"
	"github.com/ignite/campaign-tracker/internal/source"
)

// fakeDest is an in-memory spreadsheet. A tab missing from tabs is absent.
type fakeDest struct {
	mu             sync.Mutex
	tabs           map[string][][]string
	readFailures   map[string]int  // reads of a tab that fail before succeeding
	appendFailures int             // appends that fail before succeeding
	dropKeys       map[string]bool // appended rows with these keys never become visible
	stateErr       error           // returned by every State call when set
	appendCalls    int
}

func newFakeDest() *fakeDest {
	return &fakeDest{
		tabs:         map[string][][]string{},
		readFailures: map[string]int{},
		dropKeys:     map[string]bool{},
	}
}

func (f *fakeDest) ReadRange(ctx context.Context, tab, cells string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readFailures[tab] > 0 {
		f.readFailures[tab]--
		return nil, errors.New("503 backend unavailable")
	}
	rows, ok := f.tabs[tab]
	if !ok {
		return nil, &sheets.APIError{StatusCode: http.StatusBadRequest, Message: "Unable to parse range: " + tab}
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		if cells == "A:A" {
			if len(r) > 0 {
				out[i] = []string{r[0]}
			} else {
				out[i] = []string{}
			}
			continue
		}
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (f *fakeDest) AppendRows(ctx context.Context, tab, cells string, rows [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	if f.appendFailures > 0 {
		f.appendFailures--
		return errors.New("connection reset")
	}
	if _, ok := f.tabs[tab]; !ok {
		return &sheets.APIError{StatusCode: http.StatusBadRequest, Message: "Unable to parse range: " + tab}
	}
	for _, r := range rows {
		if len(r) > 0 && f.dropKeys[r[0]] {
			continue
		}
		f.tabs[tab] = append(f.tabs[tab], append([]string(nil), r...))
	}
	return nil
}

func (f *fakeDest) UpdateRange(ctx context.Context, tab, cells string, rows [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cells != "A1" || len(rows) != 1 {
		return errors.New("fake only supports single-row A1 updates")
	}
	t := f.tabs[tab]
	if len(t) == 0 {
		f.tabs[tab] = [][]string{rows[0]}
	} else {
		t[0] = rows[0]
	}
	return nil
}

func (f *fakeDest) AddSheet(ctx context.Context, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tabs[title]; ok {
		return errors.New("sheet already exists")
	}
	f.tabs[title] = [][]string{}
	return nil
}

func (f *fakeDest) State(ctx context.Context, tab string) (sheets.TableState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return sheets.StateAbsent, f.stateErr
	}
	rows, ok := f.tabs[tab]
	switch {
	case !ok:
		return sheets.StateAbsent, nil
	case len(rows) == 0 || len(rows[0]) == 0:
		return sheets.StateEmpty, nil
	}
	return sheets.StateHasData, nil
}

func (f *fakeDest) keys(tab string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for i, r := range f.tabs[tab] {
		if i > 0 && len(r) > 0 {
			out = append(out, r[0])
		}
	}
	return out
}

// fakeExtractor serves rows per kind and honors the NOT IN clause the way
// the source database would.
type fakeExtractor struct {
	rows      map[domain.Kind][]source.RawRecord
	err       error
	onExtract func() // runs before each extraction
	calls     []source.Predicate
}

var notInRe = regexp.MustCompile("cpd.`id` NOT IN \\(([0-9,]+)\\)")

func (f *fakeExtractor) Extract(ctx context.Context, p source.Predicate) ([]source.RawRecord, error) {
	f.calls = append(f.calls, p)
	if f.onExtract != nil {
		f.onExtract()
	}
	if f.err != nil {
		return nil, f.err
	}

	class := domain.ClassCourse
	if strings.Contains(p.Where, "LIKE") {
		class = domain.ClassAd
	}
	status := domain.SyncFailed
	if strings.Contains(p.Where, "IN (5, 19)") {
		status = domain.SyncSuccess
	}

	known := map[int64]bool{}
	if m := notInRe.FindStringSubmatch(p.Where); m != nil {
		for _, s := range strings.Split(m[1], ",") {
			n, _ := strconv.ParseInt(s, 10, 64)
			known[n] = true
		}
	}

	var out []source.RawRecord
	for _, r := range f.rows[domain.KindOf(class, status)] {
		if !known[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

type recordedSleeps struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return ctx.Err()
}

func (r *recordedSleeps) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

func testPolicy(rec *recordedSleeps) retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		Backoff:     retry.Exponential(time.Second),
		Sleep:       rec.sleep,
	}
}

type recordingBackup struct {
	batches [][][]string
	err     error
}

func (b *recordingBackup) Append(ctx context.Context, kind domain.Kind, header []string, rows [][]string) error {
	if b.err != nil {
		return b.err
	}
	b.batches = append(b.batches, rows)
	return nil
}

func headerRow() []string { return domain.SchemaV1.Header() }

func row(cells ...string) []string { return cells }

func tabWith(rows ...[]string) [][]string {
	return append([][]string{headerRow()}, rows...)
}
