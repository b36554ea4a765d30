package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/campaign-tracker/internal/domain"
	"github.com/ignite/campaign-tracker/internal/metrics"
	"github.com/ignite/campaign-tracker/internal/pkg/logger"
	"github.com/ignite/campaign-tracker/internal/pkg/retry"
)

// Backup receives every batch before it is sent to the destination.
// *storage.Storage implements it.
type Backup interface {
	Append(ctx context.Context, kind domain.Kind, header []string, rows [][]string) error
}

// Writer appends rows and confirms them by reading column A back.
type Writer struct {
	dest    Destination
	backup  Backup
	policy  retry.Policy
	settle  time.Duration
	header  []string
	metrics *metrics.Metrics
}

// NewWriter creates a writer. backup and m may be nil.
func NewWriter(dest Destination, backup Backup, policy retry.Policy, settle time.Duration, m *metrics.Metrics) *Writer {
	if m == nil {
		m = metrics.New()
	}
	return &Writer{
		dest:    dest,
		backup:  backup,
		policy:  policy,
		settle:  settle,
		header:  domain.SchemaV1.Header(),
		metrics: m,
	}
}

// Append writes rows below the header of tab. Each attempt backs the rows
// up, appends them, waits for the settle interval and re-reads column A;
// every row's key must be present. A failed backup fails the attempt before
// the remote write. Backup, transport and verification failures are all
// retried the same way. A non-nil error means the caller must not advance
// its bookkeeping.
func (w *Writer) Append(ctx context.Context, kind domain.Kind, tab string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	err := w.policy.Do(ctx, func(attempt int) error {
		if w.backup != nil {
			if err := w.backup.Append(ctx, kind, w.header, rows); err != nil {
				w.metrics.WriteAttempt(kind, "backup")
				logger.Error("backup failed, remote write not attempted", "kind", string(kind), "attempt", attempt+1, "error", err.Error())
				return fmt.Errorf("backing up rows: %w", err)
			}
		}

		if err := w.dest.AppendRows(ctx, tab, "A2", rows); err != nil {
			w.metrics.WriteAttempt(kind, "transport")
			logger.Warn("append failed", "tab", tab, "attempt", attempt+1, "rows", len(rows), "error", err.Error())
			return err
		}

		if err := w.policy.Wait(ctx, w.settle); err != nil {
			return err
		}

		missing, err := w.missingKeys(ctx, tab, rows)
		if err != nil {
			w.metrics.WriteAttempt(kind, "transport")
			logger.Warn("verification read failed", "tab", tab, "attempt", attempt+1, "error", err.Error())
			return err
		}
		if len(missing) > 0 {
			w.metrics.WriteAttempt(kind, "unverified")
			logger.Error("write verification failed",
				"tab", tab,
				"attempt", attempt+1,
				"rows", len(rows),
				"missing", len(missing),
				"first_missing", missing[0],
			)
			return fmt.Errorf("%w: %d of %d rows missing from %s", ErrVerification, len(missing), len(rows), tab)
		}

		w.metrics.WriteAttempt(kind, "verified")
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending to %s: %w", tab, err)
	}

	logger.Info("rows appended and verified", "tab", tab, "kind", string(kind), "rows", len(rows))
	return nil
}

func (w *Writer) missingKeys(ctx context.Context, tab string, rows [][]string) ([]string, error) {
	column, err := w.dest.ReadRange(ctx, tab, "A:A")
	if err != nil {
		return nil, err
	}
	present := make(map[string]struct{}, len(column))
	for _, r := range column {
		if len(r) > 0 {
			present[normalizeKey(r[0])] = struct{}{}
		}
	}

	var missing []string
	for _, r := range rows {
		key := ""
		if len(r) > 0 {
			key = normalizeKey(r[0])
		}
		if _, ok := present[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing, nil
}
