package interval

import (
	"time"

	"tsgate/internal/storemodel"
)

// SearchInterval is a closed time window [From, To] tiled by the generator,
// at most one UTC calendar day wide.
type SearchInterval struct {
	From            time.Time
	To              time.Time
	ResumeId        string
	StartWithGap    time.Time
	HasStartWithGap bool
}

// Generator produces the lazy sequence of SearchIntervals described in
// spec.md section 4.1. It is restartable only from the start: callers
// iterate via Next until ok is false.
type Generator struct {
	dir         storemodel.Direction
	end         time.Time
	hasEnd      bool
	gap         time.Duration
	t0          time.Time
	resumeId    string
	first       bool
	done        bool
	gapBoundary time.Time
}

func New(dir storemodel.Direction, start time.Time, end *time.Time, resumeId string, gap time.Duration) *Generator {
	g := &Generator{
		dir:      dir,
		gap:      gap,
		t0:       start,
		resumeId: resumeId,
		first:    true,
	}
	if end != nil {
		g.end = *end
		g.hasEnd = true
	}
	// gapBoundary fixes the floor (AFTER) / ceiling (BEFORE) the overlap
	// prefix may never cross, pinned to the scan's own originating day
	// rather than recomputed per window — so a day-2+ window, whose own
	// "a"/"b" already sits exactly on a UTC midnight, can still reach back
	// across that midnight into the previous day's data.
	if dir == storemodel.DirectionAfter {
		g.gapBoundary = dayStart(start)
	} else {
		g.gapBoundary = nextMidnight(start).Add(-time.Nanosecond)
	}
	return g
}

func dayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func nextMidnight(t time.Time) time.Time {
	return dayStart(t).AddDate(0, 0, 1)
}

// Next returns the next interval, or ok=false once the generator has
// emitted the window touching end. With no end it never stops on its own;
// EventSearchEngine then keeps scanning until its context is cancelled or
// its result limit is reached.
func (g *Generator) Next() (SearchInterval, bool) {
	if g.done {
		return SearchInterval{}, false
	}

	var from, to time.Time
	final := false

	if g.dir == storemodel.DirectionAfter {
		from = g.t0
		to = nextMidnight(from).Add(-time.Nanosecond)
		if g.hasEnd && !g.end.After(to) {
			to = g.end
			final = true
		}
		if g.hasEnd && from.After(g.end) {
			g.done = true
			return SearchInterval{}, false
		}
	} else {
		to = g.t0
		from = dayStart(to)
		if g.hasEnd && !g.end.Before(from) {
			from = g.end
			final = true
		}
		if g.hasEnd && to.Before(g.end) {
			g.done = true
			return SearchInterval{}, false
		}
	}

	interval := SearchInterval{From: from, To: to}

	if g.first {
		interval.ResumeId = g.resumeId
		g.first = false
	}

	// Every window is the first (and only) sub-window of its own UTC day,
	// so each one carries a StartWithGap back-fill boundary, not just the
	// very first window the generator ever produces — otherwise an event
	// starting just before a later day's midnight but ending inside that
	// day's window would never be fetched.
	if g.dir == storemodel.DirectionAfter {
		gapped := from.Add(-g.gap)
		if g.gapBoundary.After(gapped) {
			gapped = g.gapBoundary
		}
		interval.StartWithGap = gapped
	} else {
		gapped := to.Add(g.gap)
		if g.gapBoundary.Before(gapped) {
			gapped = g.gapBoundary
		}
		interval.StartWithGap = gapped
	}
	interval.HasStartWithGap = true

	if final {
		g.done = true
	} else if g.dir == storemodel.DirectionAfter {
		g.t0 = nextMidnight(from)
	} else {
		g.t0 = dayStart(to).Add(-time.Nanosecond)
	}

	return interval, true
}
