package models

import (
	"time"

	"github.com/growth-engine/internal/types"
)

// HarvestProgress is the resumable state of one harvest session.
// Cursor values: missing or nil means not started, "" means exhausted.
// Errored maps a source whose fetch failed to the cursor that failed.
type HarvestProgress struct {
	SessionID      string             `json:"sessionId"`
	Phase          types.HarvestPhase `json:"phase"`
	Sources        []string           `json:"sources"`
	ResolvedIDs    map[string]string  `json:"resolvedIds"`
	Cursors        map[string]*string `json:"cursors"`
	Harvested      map[string]int     `json:"harvested"`
	Errored        map[string]string  `json:"errored,omitempty"`
	CurrentIndex   int                `json:"currentIndex"`
	PagesProcessed int                `json:"pagesProcessed"`
	PageCap        int                `json:"pageCap"`
	StartedAt      time.Time          `json:"startedAt"`
	LastProgressAt time.Time          `json:"lastProgressAt"`
}

// NewHarvestProgress creates a session in the resolving phase.
// Seed cursors carried over from earlier sessions are applied per source.
func NewHarvestProgress(sessionID string, sources []string, seed map[string]string, pageCap int, now time.Time) *HarvestProgress {
	p := &HarvestProgress{
		SessionID:      sessionID,
		Phase:          types.HarvestResolving,
		Sources:        append([]string(nil), sources...),
		ResolvedIDs:    make(map[string]string),
		Cursors:        make(map[string]*string),
		Harvested:      make(map[string]int),
		Errored:        make(map[string]string),
		PageCap:        pageCap,
		StartedAt:      now,
		LastProgressAt: now,
	}
	for _, src := range sources {
		if c, ok := seed[src]; ok && c != "" {
			cursor := c
			p.Cursors[src] = &cursor
		}
	}
	return p
}

// Cursor returns the cursor for a source and whether fetching has started
func (p *HarvestProgress) Cursor(source string) (string, bool) {
	c, ok := p.Cursors[source]
	if !ok || c == nil {
		return "", false
	}
	return *c, true
}

// Exhausted reports whether the source has no more pages this session
func (p *HarvestProgress) Exhausted(source string) bool {
	c, started := p.Cursor(source)
	return started && c == ""
}

// SetCursor stores the next cursor; an empty next marks the source exhausted
func (p *HarvestProgress) SetCursor(source, next string) {
	cursor := next
	p.Cursors[source] = &cursor
}

// MarkErrored records a failed fetch and treats the source as exhausted for
// the rest of the session
func (p *HarvestProgress) MarkErrored(source string) {
	failed, _ := p.Cursor(source)
	p.Errored[source] = failed
	p.SetCursor(source, "")
}

// Advance moves the phase forward; it never moves backwards
func (p *HarvestProgress) Advance(next types.HarvestPhase) bool {
	if !p.Phase.CanAdvanceTo(next) {
		return false
	}
	p.Phase = next
	return true
}

// Stalled reports whether no progress was made within the stall window
func (p *HarvestProgress) Stalled(now time.Time, window time.Duration) bool {
	return now.Sub(p.LastProgressAt) > window
}

// Touch stamps the last progress time
func (p *HarvestProgress) Touch(now time.Time) {
	p.LastProgressAt = now
}

// PreservedCursors returns the cursors worth carrying into the next session.
// Exhausted sources are kept as "" and start over from the first page next
// session; sources that errored keep the cursor that failed so the next
// session retries that page.
func (p *HarvestProgress) PreservedCursors(previous map[string]string) map[string]string {
	out := make(map[string]string, len(p.Sources))
	for _, src := range p.Sources {
		if failed, ok := p.Errored[src]; ok {
			if failed != "" {
				out[src] = failed
			}
			continue
		}
		if c, started := p.Cursor(src); started {
			out[src] = c
		} else if prev, ok := previous[src]; ok {
			out[src] = prev
		}
	}
	return out
}
