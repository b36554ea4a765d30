package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/campaign-tracker/internal/config"
	"github.com/ignite/campaign-tracker/internal/domain"
	"github.com/ignite/campaign-tracker/internal/pkg/logger"
	"github.com/ignite/campaign-tracker/internal/pkg/retry"
	"github.com/ignite/campaign-tracker/internal/sheets"
)

// Merger folds a campaign's course and ad tabs into its merge tabs.
type Merger struct {
	dest   Destination
	writer *Writer
	policy retry.Policy
	schema domain.Schema
}

// NewMerger creates a merger appending through writer.
func NewMerger(dest Destination, writer *Writer, policy retry.Policy) *Merger {
	return &Merger{dest: dest, writer: writer, policy: policy, schema: domain.SchemaV1}
}

// Merge appends course and ad rows not yet in the merge tabs and returns
// how many rows were added. A ref in both source tabs takes the ad row.
// A class whose sources cannot be read is skipped; append failures are
// returned joined after both classes have been tried.
func (m *Merger) Merge(ctx context.Context, camp config.Campaign) (int, error) {
	if !camp.HasMerge() {
		logger.Debug("no merge configured")
		return 0, nil
	}

	total := 0
	var errs []error
	for _, status := range domain.SyncStatuses {
		target := camp.Merge.Tab(status)
		if target == "" {
			continue
		}
		n, err := m.mergeClass(ctx, camp, status, target)
		total += n
		if err != nil {
			logger.Error("merge failed", "status", string(status), "target", target, "error", err.Error())
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

func (m *Merger) mergeClass(ctx context.Context, camp config.Campaign, status domain.SyncStatus, target string) (int, error) {
	courseTab := camp.TabName(domain.KindOf(domain.ClassCourse, status))
	adTab := camp.TabName(domain.KindOf(domain.ClassAd, status))

	courseRows, err := m.readAll(ctx, courseTab)
	if err != nil {
		logger.Error("merge source unreadable, skipping", "tab", courseTab, "error", err.Error())
		return 0, nil
	}
	adRows, err := m.readAll(ctx, adTab)
	if err != nil {
		logger.Error("merge source unreadable, skipping", "tab", adTab, "error", err.Error())
		return 0, nil
	}

	var header []string
	switch {
	case len(courseRows) > 0:
		header = courseRows[0]
	case len(adRows) > 0:
		header = adRows[0]
	default:
		logger.Info("merge sources empty", "course_tab", courseTab, "ad_tab", adTab)
		return 0, nil
	}
	if err := m.schema.ValidateHeader(header); err != nil {
		logger.Warn("merge source header differs from schema", "tab", courseTab, "error", err.Error())
	}

	state, err := m.dest.State(ctx, target)
	if err != nil {
		return 0, fmt.Errorf("checking merge tab %s: %w", target, err)
	}
	if state == sheets.StateAbsent {
		if err := m.dest.AddSheet(ctx, target); err != nil {
			return 0, fmt.Errorf("creating merge tab %s: %w", target, err)
		}
		logger.Info("created merge tab", "tab", target)
	}

	existing := make(map[string]struct{})
	if state == sheets.StateHasData {
		column, err := m.readColumn(ctx, target)
		if err != nil {
			return 0, fmt.Errorf("reading merge keys from %s: %w", target, err)
		}
		for i, row := range column {
			if i == 0 || len(row) == 0 {
				continue
			}
			if key := strings.TrimSpace(row[0]); key != "" {
				existing[key] = struct{}{}
			}
		}
	}

	merged := newOrderedRows()
	for _, rows := range [][][]string{courseRows, adRows} {
		for i, row := range rows {
			if i == 0 || len(row) == 0 {
				continue
			}
			key := strings.TrimSpace(row[0])
			if key == "" {
				continue
			}
			if _, ok := existing[key]; ok {
				continue
			}
			merged.put(key, pad(row, len(header)))
		}
	}

	if merged.size() == 0 {
		logger.Info("nothing new to merge", "target", target)
		return 0, nil
	}

	if state != sheets.StateHasData {
		err := m.policy.Do(ctx, func(int) error {
			return m.dest.UpdateRange(ctx, target, "A1", [][]string{header})
		})
		if err != nil {
			return 0, fmt.Errorf("writing merge header to %s: %w", target, err)
		}
	}

	rows := merged.values()
	if err := m.writer.Append(ctx, domain.KindOf(domain.ClassMerge, status), target, rows); err != nil {
		return 0, err
	}
	logger.Info("merged rows", "target", target, "rows", len(rows))
	return len(rows), nil
}

func (m *Merger) readAll(ctx context.Context, tab string) ([][]string, error) {
	return m.read(ctx, tab, "A:"+m.schema.LastColumn())
}

func (m *Merger) readColumn(ctx context.Context, tab string) ([][]string, error) {
	return m.read(ctx, tab, "A:A")
}

func (m *Merger) read(ctx context.Context, tab, cells string) ([][]string, error) {
	var out [][]string
	err := m.policy.Do(ctx, func(attempt int) error {
		rows, err := m.dest.ReadRange(ctx, tab, cells)
		if err != nil {
			logger.Warn("merge read failed", "tab", tab, "attempt", attempt+1, "error", err.Error())
			return err
		}
		out = rows
		return nil
	})
	return out, err
}

func pad(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

// orderedRows is a map that keeps first-insertion order. Re-putting a key
// replaces its row in place.
type orderedRows struct {
	order []string
	rows  map[string][]string
}

func newOrderedRows() *orderedRows {
	return &orderedRows{rows: make(map[string][]string)}
}

func (o *orderedRows) put(key string, row []string) {
	if _, ok := o.rows[key]; !ok {
		o.order = append(o.order, key)
	}
	o.rows[key] = row
}

func (o *orderedRows) size() int { return len(o.order) }

func (o *orderedRows) values() [][]string {
	out := make([][]string, 0, len(o.order))
	for _, k := range o.order {
		out = append(out, o.rows[k])
	}
	return out
}
