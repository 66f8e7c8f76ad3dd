package storemodel

import "time"

// EventContent is the optional payload of a single event; nil/zero when the
// caller asked for metadataOnly.
type EventContent struct {
	Name string
	Type string
	Body []byte
}

// SingleEvent is a non-batched event, or one element of a batch's
// TestEvents. ParentId is empty for a root event.
type SingleEvent struct {
	Id       EventId
	ParentId EventId
	Start    time.Time
	End      time.Time
	Content  *EventContent
}

func (e SingleEvent) HasParent() bool {
	return e.ParentId != ""
}

// BatchEvent groups events that share a batch id and a parent. ById finds
// an event by id with a linear scan of TestEvents; there is no index.
type BatchEvent struct {
	BatchId    string
	ParentId   EventId
	TestEvents []SingleEvent
}

func (b BatchEvent) ById(id EventId) (SingleEvent, bool) {
	for _, e := range b.TestEvents {
		if e.Id == id {
			return e, true
		}
	}
	return SingleEvent{}, false
}

// EventWrapper is either a Single event or a Batch of events sharing a
// batch id, mirroring the store's own wrapper shape.
type EventWrapper struct {
	Single *SingleEvent
	Batch  *BatchEvent
}

func WrapSingle(e SingleEvent) EventWrapper {
	return EventWrapper{Single: &e}
}

func WrapBatch(b BatchEvent) EventWrapper {
	return EventWrapper{Batch: &b}
}

func (w EventWrapper) IsBatch() bool {
	return w.Batch != nil
}

// Expand flattens the wrapper into its constituent SingleEvents, optionally
// restricted to a parent id (spec.md section 4.2 step 2).
func (w EventWrapper) Expand(parentFilter EventId) []SingleEvent {
	if w.Single != nil {
		if parentFilter != "" && w.Single.ParentId != parentFilter {
			return nil
		}
		return []SingleEvent{*w.Single}
	}
	if w.Batch == nil {
		return nil
	}
	if parentFilter == "" || w.Batch.ParentId == parentFilter {
		return append([]SingleEvent(nil), w.Batch.TestEvents...)
	}
	return nil
}

// Timestamp returns the wrapper's ordering timestamp: a single event's
// Start, or among a batch's events the earliest Start (AFTER) or the
// latest Start (BEFORE).
func (w EventWrapper) Timestamp(dir Direction) time.Time {
	if w.Single != nil {
		return w.Single.Start
	}
	if w.Batch == nil || len(w.Batch.TestEvents) == 0 {
		return time.Time{}
	}
	best := w.Batch.TestEvents[0].Start
	for _, e := range w.Batch.TestEvents[1:] {
		if dir == DirectionBefore {
			if e.Start.After(best) {
				best = e.Start
			}
		} else if e.Start.Before(best) {
			best = e.Start
		}
	}
	return best
}
