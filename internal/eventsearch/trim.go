package eventsearch

import (
	"time"

	"tsgate/internal/storemodel"
)

// resumeTrimmer implements spec.md section 4.2 step 3: on the very first
// emitted run, events at-or-before (AFTER) / at-or-after (BEFORE)
// startTimestamp are held back until the resume id itself is seen (then
// discarded) or an event strictly past startTimestamp arrives first
// (defensive: the resume event may no longer exist, so the held head is
// flushed instead of dropped).
type resumeTrimmer struct {
	resumeId  string
	dir       storemodel.Direction
	start     time.Time
	held      []storemodel.SingleEvent
	resolved  bool
}

func newResumeTrimmer(resumeId string, dir storemodel.Direction, start time.Time) *resumeTrimmer {
	return &resumeTrimmer{resumeId: resumeId, dir: dir, start: start}
}

func (t *resumeTrimmer) active() bool {
	return t.resumeId != "" && !t.resolved
}

func (t *resumeTrimmer) inHead(ev storemodel.SingleEvent) bool {
	if t.dir == storemodel.DirectionBefore {
		return !ev.Start.Before(t.start)
	}
	return !ev.Start.After(t.start)
}

// observe feeds one candidate event through the trimmer. It returns any
// events that should now be emitted (held head flushed, or the current
// event itself once trimming has resolved) and whether the current event
// should be emitted at all.
func (t *resumeTrimmer) observe(ev storemodel.SingleEvent) (toEmit []storemodel.SingleEvent, emitCurrent bool) {
	if string(ev.Id) == t.resumeId {
		t.held = nil
		t.resolved = true
		return nil, false
	}

	if t.inHead(ev) {
		t.held = append(t.held, ev)
		return nil, false
	}

	flushed := t.held
	t.held = nil
	t.resolved = true
	return flushed, true
}
