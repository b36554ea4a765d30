package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-tracker/internal/config"
)

func mergeCampaign() config.Campaign {
	return config.Campaign{
		SheetID:   "sheet-1",
		CourseIDs: []int64{1},
		Merge:     &config.MergeConfig{Success: "Merged Success"},
	}
}

func newTestMerger(dest *fakeDest) *Merger {
	policy := testPolicy(&recordedSleeps{})
	return NewMerger(dest, NewWriter(dest, nil, policy, 0, nil), policy)
}

func TestMergeAdWinsAndIsIdempotent(t *testing.T) {
	dest := newFakeDest()
	dest.tabs["Ctr Course Success"] = tabWith(row("1", "a"))
	dest.tabs["Ad LP Success"] = tabWith(row("1", "b"), row("2", "c"))
	m := newTestMerger(dest)

	n, err := m.Merge(context.Background(), mergeCampaign())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	merged := dest.tabs["Merged Success"]
	require.Len(t, merged, 3)
	assert.Equal(t, headerRow(), merged[0])
	assert.Equal(t, "1", merged[1][0])
	assert.Equal(t, "b", merged[1][1])
	assert.Equal(t, "2", merged[2][0])
	assert.Equal(t, "c", merged[2][1])
	// Padded to the header width.
	assert.Len(t, merged[1], len(headerRow()))

	n, err = m.Merge(context.Background(), mergeCampaign())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, dest.tabs["Merged Success"], 3)
}

func TestMergeSkipsExistingKeys(t *testing.T) {
	dest := newFakeDest()
	dest.tabs["Ctr Course Success"] = tabWith(row("1", "a"), row("3", "d"))
	dest.tabs["Ad LP Success"] = tabWith(row("2", "c"))
	dest.tabs["Merged Success"] = tabWith(row("1", "old"))

	n, err := newTestMerger(dest).Merge(context.Background(), mergeCampaign())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"1", "3", "2"}, dest.keys("Merged Success"))
	assert.Equal(t, "old", dest.tabs["Merged Success"][1][1])
}

func TestMergeWithoutConfig(t *testing.T) {
	dest := newFakeDest()
	n, err := newTestMerger(dest).Merge(context.Background(), config.Campaign{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMergeUnreadableSourceSkipsClass(t *testing.T) {
	dest := newFakeDest()
	dest.tabs["Ctr Course Success"] = tabWith(row("1"))
	dest.tabs["Ad LP Success"] = tabWith(row("2"))
	dest.readFailures["Ad LP Success"] = 3

	n, err := newTestMerger(dest).Merge(context.Background(), mergeCampaign())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, created := dest.tabs["Merged Success"]
	assert.False(t, created)
}

func TestMergeHeaderFromAdTab(t *testing.T) {
	dest := newFakeDest()
	dest.tabs["Ctr Course Success"] = [][]string{}
	dest.tabs["Ad LP Success"] = tabWith(row("5", "x"))
	dest.tabs["Merged Success"] = [][]string{}

	n, err := newTestMerger(dest).Merge(context.Background(), mergeCampaign())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, headerRow(), dest.tabs["Merged Success"][0])
}

func TestOrderedRows(t *testing.T) {
	o := newOrderedRows()
	o.put("1", row("1", "a"))
	o.put("2", row("2", "c"))
	o.put("1", row("1", "b"))
	assert.Equal(t, 2, o.size())
	assert.Equal(t, [][]string{row("1", "b"), row("2", "c")}, o.values())
}
