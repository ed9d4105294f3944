package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growth-engine/internal/types"
)

func TestNewHarvestProgress_AppliesSeed(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := NewHarvestProgress("s1", []string{"a", "b", "c"}, map[string]string{
		"a": "cursor-a",
		"b": "",
		"z": "ignored",
	}, 5, now)

	c, started := p.Cursor("a")
	assert.True(t, started)
	assert.Equal(t, "cursor-a", c)

	// an exhausted seed starts over from the first page
	_, started = p.Cursor("b")
	assert.False(t, started)
	_, started = p.Cursor("z")
	assert.False(t, started)

	assert.Equal(t, types.HarvestResolving, p.Phase)
	assert.Equal(t, now, p.LastProgressAt)
}

func TestHarvestProgress_CursorLifecycle(t *testing.T) {
	p := NewHarvestProgress("s1", []string{"a"}, nil, 5, time.Now())

	assert.False(t, p.Exhausted("a"))
	p.SetCursor("a", "next")
	assert.False(t, p.Exhausted("a"))
	p.SetCursor("a", "")
	assert.True(t, p.Exhausted("a"))
}

func TestHarvestProgress_Advance(t *testing.T) {
	p := NewHarvestProgress("s1", nil, nil, 5, time.Now())

	require.True(t, p.Advance(types.HarvestFetching))
	require.True(t, p.Advance(types.HarvestDone))
	assert.False(t, p.Advance(types.HarvestFetching))
	assert.Equal(t, types.HarvestDone, p.Phase)
}

func TestHarvestProgress_Stalled(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := NewHarvestProgress("s1", nil, nil, 5, start)

	assert.False(t, p.Stalled(start.Add(time.Minute), 5*time.Minute))
	assert.True(t, p.Stalled(start.Add(6*time.Minute), 5*time.Minute))

	p.Touch(start.Add(4 * time.Minute))
	assert.False(t, p.Stalled(start.Add(6*time.Minute), 5*time.Minute))
}

func TestHarvestProgress_PreservedCursors(t *testing.T) {
	p := NewHarvestProgress("s1", []string{"fresh", "paged", "done", "broken", "untouched"}, map[string]string{
		"broken": "page-7",
	}, 5, time.Now())
	p.SetCursor("paged", "page-3")
	p.SetCursor("done", "")
	p.MarkErrored("broken")

	out := p.PreservedCursors(map[string]string{
		"untouched": "old-cursor",
		"removed":   "stale",
	})

	assert.Equal(t, map[string]string{
		"paged":     "page-3",
		"done":      "",
		"broken":    "page-7",
		"untouched": "old-cursor",
	}, out)
	assert.True(t, p.Exhausted("broken"))
}
