package tracker

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ignite/campaign-tracker/internal/domain"
	"github.com/ignite/campaign-tracker/internal/pkg/logger"
	"github.com/ignite/campaign-tracker/internal/pkg/retry"
)

// KeyResolver reads the refs already present in a tab.
type KeyResolver struct {
	dest   Destination
	policy retry.Policy
}

// NewKeyResolver creates a resolver retrying reads per policy.
func NewKeyResolver(dest Destination, policy retry.Policy) *KeyResolver {
	return &KeyResolver{dest: dest, policy: policy}
}

// Resolve returns the numeric refs in column A of tab, skipping the header
// row. Non-numeric cells are logged and skipped. When every read attempt
// fails it returns an empty set and an error wrapping ErrUnverified.
func (r *KeyResolver) Resolve(ctx context.Context, tab string) (domain.KeySet, error) {
	var column [][]string
	err := r.policy.Do(ctx, func(attempt int) error {
		rows, err := r.dest.ReadRange(ctx, tab, "A:A")
		if err != nil {
			logger.Warn("reading existing keys failed", "tab", tab, "attempt", attempt+1, "error", err.Error())
			return err
		}
		column = rows
		return nil
	})
	if err != nil {
		logger.Error("existing keys unavailable", "tab", tab, "error", err.Error())
		return domain.NewKeySet(), fmt.Errorf("%w: %s: %v", ErrUnverified, tab, err)
	}

	keys := domain.NewKeySet()
	for i, row := range column {
		if i == 0 || len(row) == 0 {
			continue
		}
		cell := strings.TrimSpace(row[0])
		if cell == "" {
			continue
		}
		ref, ok := parseRef(cell)
		if !ok {
			logger.Warn("non-numeric key skipped", "tab", tab, "row", i+1, "value", cell)
			continue
		}
		keys.Add(ref)
	}
	logger.Info("resolved existing keys", "tab", tab, "keys", keys.Len())
	return keys, nil
}

// parseRef accepts digits with optional dots and truncates the float value,
// so "101" and "101.0" both yield 101. Values outside int64 are rejected.
func parseRef(cell string) (int64, bool) {
	digits := strings.ReplaceAll(cell, ".", "")
	if digits == "" {
		return 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// normalizeKey gives numeric keys a canonical form so "101" written and
// "101.0" read back compare equal. Other keys compare trimmed.
func normalizeKey(cell string) string {
	cell = strings.TrimSpace(cell)
	if ref, ok := parseRef(cell); ok {
		return strconv.FormatInt(ref, 10)
	}
	return cell
}
