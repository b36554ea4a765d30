package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/campaign-tracker/internal/config"
	"github.com/ignite/campaign-tracker/internal/domain"
	"github.com/ignite/campaign-tracker/internal/ledger"
	"github.com/ignite/campaign-tracker/internal/metrics"
	"github.com/ignite/campaign-tracker/internal/pkg/distlock"
	"github.com/ignite/campaign-tracker/internal/pkg/logger"
	"github.com/ignite/campaign-tracker/internal/sheets"
	"github.com/ignite/campaign-tracker/internal/source"
	"github.com/ignite/campaign-tracker/internal/transform"
)

// Extractor reads source rows matching a predicate.
type Extractor interface {
	Extract(ctx context.Context, p source.Predicate) ([]source.RawRecord, error)
}

// LedgerMirror copies the saved ledger somewhere durable. *storage.Storage
// implements it.
type LedgerMirror interface {
	MirrorFile(ctx context.Context, name, path, contentType string) error
}

// Skip reasons reported in Summary and metrics.
const (
	SkipDestination     = "destination_unavailable"
	SkipUnverifiedKeys  = "unverified_keys"
	SkipNoInclusionRule = "no_inclusion_rule"
	SkipExtraction      = "extraction_failed"
	SkipWrite           = "write_failed"
	SkipLedger          = "ledger_save_failed"
)

// SkippedSegment records a segment that did not complete.
type SkippedSegment struct {
	Kind   domain.Kind `json:"kind"`
	Reason string      `json:"reason"`
	Error  string      `json:"error,omitempty"`
}

// Summary is the outcome of a run.
type Summary struct {
	RunID       string              `json:"run_id"`
	Campaign    string              `json:"campaign"`
	Environment string              `json:"environment"`
	Appended    map[domain.Kind]int `json:"appended"`
	Degraded    int                 `json:"degraded"`
	Merged      int                 `json:"merged"`
	Skipped     []SkippedSegment    `json:"skipped,omitempty"`
	Duration    time.Duration       `json:"duration"`
}

func (s *Summary) skip(kind domain.Kind, reason string, err error) {
	seg := SkippedSegment{Kind: kind, Reason: reason}
	if err != nil {
		seg.Error = err.Error()
	}
	s.Skipped = append(s.Skipped, seg)
}

// Runner wires one campaign run together.
type Runner struct {
	CampaignName string
	Campaign     config.Campaign
	Environment  string
	RunID        string

	Dest      Destination
	Extractor Extractor
	Filter    *source.FilterBuilder
	Resolver  *KeyResolver
	Writer    *Writer
	Merger    *Merger
	Ledger    *ledger.Store
	Mirror    LedgerMirror      // optional
	Lock      distlock.DistLock // optional
	Metrics   *metrics.Metrics
	Push      config.MetricsConfig
}

// Run syncs every segment in order (course then ad, success then failed),
// then merges. Segment failures are recorded in the Summary and do not fail
// the run. The run fails when the lock is held or its backend errors, when
// ctx is cancelled, and when no segment could reach the destination.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	return r.locked(ctx, func(ctx context.Context, sum *Summary) error {
		led := r.Ledger.Load()
		tr := transform.NewTransformer(r.Campaign.LandingPages)
		for _, status := range domain.SyncStatuses {
			for _, class := range []domain.RecordClass{domain.ClassCourse, domain.ClassAd} {
				if err := ctx.Err(); err != nil {
					return err
				}
				led = r.syncSegment(ctx, tr, led, class, status, sum)
			}
		}
		if err := destinationDown(sum); err != nil {
			return err
		}
		r.merge(ctx, sum)
		return ctx.Err()
	})
}

// MergeOnly runs just the merge step.
func (r *Runner) MergeOnly(ctx context.Context) (*Summary, error) {
	return r.locked(ctx, func(ctx context.Context, sum *Summary) error {
		r.merge(ctx, sum)
		return ctx.Err()
	})
}

func (r *Runner) locked(ctx context.Context, body func(context.Context, *Summary) error) (*Summary, error) {
	if r.Metrics == nil {
		r.Metrics = metrics.New()
	}
	lock := r.Lock
	if lock == nil {
		lock = distlock.NoopLock{}
	}

	start := time.Now()
	sum := &Summary{
		RunID:       r.RunID,
		Campaign:    r.CampaignName,
		Environment: r.Environment,
		Appended:    make(map[domain.Kind]int),
	}

	err := distlock.Hold(ctx, lock, func(ctx context.Context) error {
		return body(ctx, sum)
	})
	sum.Duration = time.Since(start)
	if errors.Is(err, distlock.ErrNotAcquired) {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, r.CampaignName)
	}
	if err != nil {
		r.Metrics.RunFinished(sum.Duration, false)
		logger.Error("run aborted",
			"appended", total(sum.Appended),
			"skipped", len(sum.Skipped),
			"error", err.Error(),
		)
		return sum, err
	}

	r.Metrics.RunFinished(sum.Duration, true)
	if perr := r.Metrics.Push(ctx, r.Push.PushgatewayURL, r.Push.Job, r.CampaignName, r.Environment); perr != nil {
		logger.Warn("metrics push failed", "error", perr.Error())
	}
	logger.Info("run finished",
		"appended", total(sum.Appended),
		"merged", sum.Merged,
		"degraded", sum.Degraded,
		"skipped", len(sum.Skipped),
		"duration", sum.Duration.String(),
	)
	return sum, nil
}

// destinationDown reports ErrDestinationUnavailable when every segment with
// an inclusion rule failed to reach the destination.
func destinationDown(sum *Summary) error {
	segments := len(domain.SyncStatuses) * 2
	var down []SkippedSegment
	for _, s := range sum.Skipped {
		switch s.Reason {
		case SkipNoInclusionRule:
			segments--
		case SkipDestination:
			down = append(down, s)
		}
	}
	if len(down) == 0 || len(down) < segments {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrDestinationUnavailable, down[len(down)-1].Error)
}

func (r *Runner) syncSegment(ctx context.Context, tr *transform.Transformer, led *ledger.Ledger, class domain.RecordClass, status domain.SyncStatus, sum *Summary) *ledger.Ledger {
	kind := domain.KindOf(class, status)
	tab := r.Campaign.TabName(kind)

	skip := func(reason string, err error) *ledger.Ledger {
		r.Metrics.SegmentSkipped(reason)
		sum.skip(kind, reason, err)
		return led
	}

	// Without an inclusion rule there is nothing to read or write.
	_, err := r.Filter.Build(r.Campaign, class, status, nil)
	if errors.Is(err, source.ErrNoInclusionRule) {
		logger.Info("segment has no inclusion rule, skipping", "kind", string(kind))
		return skip(SkipNoInclusionRule, nil)
	}
	if err != nil {
		return skip(SkipExtraction, err)
	}

	if err := EnsureTab(ctx, r.Dest, tab, domain.SchemaV1.Header()); err != nil {
		logger.Error("destination tab unavailable", "tab", tab, "error", err.Error())
		return skip(SkipDestination, err)
	}

	keys, err := r.Resolver.Resolve(ctx, tab)
	if err != nil {
		logger.Critical("cannot verify existing rows, skipping segment", "kind", string(kind), "tab", tab, "error", err.Error())
		return skip(SkipUnverifiedKeys, err)
	}

	if !ledger.Verify(keys, led, kind) {
		r.Metrics.LedgerDrift(kind, keys.Len()-led.Count(kind))
	}

	pred, err := r.Filter.Build(r.Campaign, class, status, keys)
	if err != nil {
		return skip(SkipExtraction, err)
	}
	raws, err := r.Extractor.Extract(ctx, pred)
	if err != nil {
		logger.Error("extraction failed", "kind", string(kind), "error", err.Error())
		return skip(SkipExtraction, err)
	}
	if len(raws) == 0 {
		logger.Info("no new rows", "kind", string(kind))
		return led
	}

	records := tr.TransformAll(raws, status)
	degraded := 0
	for _, rec := range records {
		if rec.RegistrationType == domain.RegError {
			degraded++
		}
	}

	if err := r.Writer.Append(ctx, kind, tab, domain.Rows(records)); err != nil {
		logger.Error("segment write failed, ledger not advanced", "kind", string(kind), "rows", len(records), "error", err.Error())
		return skip(SkipWrite, err)
	}

	sum.Appended[kind] += len(records)
	sum.Degraded += degraded
	r.Metrics.RowsAppended(kind, len(records))
	r.Metrics.DegradedRows(kind, degraded)

	updated := ledger.Update(led, kind, len(records), r.CampaignName, r.Environment, r.RunID)
	if err := r.Ledger.Save(updated); err != nil {
		logger.Error("saving ledger failed", "kind", string(kind), "error", err.Error())
		sum.skip(kind, SkipLedger, err)
		// Rows are written; keep the in-memory count so later segments stay consistent.
		return updated
	}
	if r.Mirror != nil {
		if err := r.Mirror.MirrorFile(ctx, "counters.json", r.Ledger.Path(), "application/json"); err != nil {
			logger.Warn("ledger mirror failed", "error", err.Error())
		}
	}
	return updated
}

func (r *Runner) merge(ctx context.Context, sum *Summary) {
	if !r.Campaign.HasMerge() || r.Merger == nil {
		return
	}
	n, err := r.Merger.Merge(ctx, r.Campaign)
	sum.Merged += n
	r.Metrics.RowsMerged(n)
	if err != nil {
		logger.Error("merge incomplete", "merged", n, "error", err.Error())
		sum.skip(domain.KindMergeSuccess, SkipWrite, err)
	}
}

// EnsureTab creates tab when absent and writes header when it has none.
func EnsureTab(ctx context.Context, dest Destination, tab string, header []string) error {
	state, err := dest.State(ctx, tab)
	if err != nil {
		return err
	}
	switch state {
	case sheets.StateHasData:
		return nil
	case sheets.StateAbsent:
		if err := dest.AddSheet(ctx, tab); err != nil {
			return err
		}
		logger.Info("created tab", "tab", tab)
	}
	return dest.UpdateRange(ctx, tab, "A1", [][]string{header})
}

func total(m map[domain.Kind]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
