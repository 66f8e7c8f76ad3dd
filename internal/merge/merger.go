package merge

import (
	"context"

	"tsgate/internal/storemodel"
)

// Holder is one extractor's current head, the StreamHolder of spec.md
// section 4.6.
type Holder struct {
	StreamName string
	Dir        storemodel.Direction
	In         <-chan storemodel.StreamItem
	current    storemodel.StreamItem
	done       bool
}

func NewHolder(streamName string, dir storemodel.Direction, in <-chan storemodel.StreamItem) *Holder {
	return &Holder{StreamName: streamName, Dir: dir, In: in}
}

func (h *Holder) pop(ctx context.Context) error {
	select {
	case item, ok := <-h.In:
		if !ok {
			h.done = true
			h.current = nil
			return nil
		}
		h.current = item
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Merger is the StreamMerger of spec.md section 4.6: it repeatedly emits
// the holder whose head has the minimum (AFTER) or maximum (BEFORE)
// timestamp, using EmptyTick items to advance idle streams without
// blocking others.
type Merger struct {
	dir     storemodel.Direction
	holders []*Holder
}

func New(dir storemodel.Direction, holders []*Holder) *Merger {
	return &Merger{dir: dir, holders: holders}
}

// Run drives the merge loop, sending one time-ordered, non-tick item per
// emission on out, closing it once every holder is exhausted or ctx is
// cancelled.
func (m *Merger) Run(ctx context.Context, out chan<- storemodel.StreamItem) error {
	defer close(out)

	for _, h := range m.holders {
		if err := h.pop(ctx); err != nil {
			return err
		}
	}

	for {
		if m.allDone() {
			return nil
		}

		winner := m.pick()
		if winner == nil {
			return nil
		}

		item := winner.current
		if err := winner.pop(ctx); err != nil {
			return err
		}

		if item.IsTick() {
			continue
		}

		select {
		case out <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Merger) allDone() bool {
	for _, h := range m.holders {
		if !h.done {
			return false
		}
	}
	return true
}

// pick chooses the next holder to emit/advance: among data-bearing heads,
// the min (AFTER) or max (BEFORE) timestamp with a deterministic tie-break;
// if none are data-bearing, the laggard tick as ticksBefore orders them
// (oldest LastScannedTime for AFTER, newest for BEFORE), so no stream
// starves the others.
func (m *Merger) pick() *Holder {
	var best *Holder
	dataFound := false

	for _, h := range m.holders {
		if h.done || h.current == nil {
			continue
		}
		if h.current.IsTick() {
			continue
		}
		dataFound = true
		if best == nil || m.less(h, best) {
			best = h
		}
	}
	if dataFound {
		return best
	}

	for _, h := range m.holders {
		if h.done || h.current == nil {
			continue
		}
		if best == nil || m.ticksBefore(h, best) {
			best = h
		}
	}
	return best
}

// ticksBefore reports whether a's tick should advance before b's: the
// laggard (oldest LastScannedTime for AFTER, newest for BEFORE) goes first,
// the same direction flip less() applies to data-bearing heads, so a
// BEFORE search doesn't starve the stream making the least progress.
func (m *Merger) ticksBefore(a, b *Holder) bool {
	ta, tb := a.current.Timestamp(), b.current.Timestamp()
	if m.dir == storemodel.DirectionBefore {
		return ta.After(tb)
	}
	return ta.Before(tb)
}

// less reports whether a should be emitted before b, per direction and the
// (timestamp, streamName, sequence) tie-break.
func (m *Merger) less(a, b *Holder) bool {
	ta, tb := a.current.Timestamp(), b.current.Timestamp()
	if !ta.Equal(tb) {
		if m.dir == storemodel.DirectionBefore {
			return ta.After(tb)
		}
		return ta.Before(tb)
	}
	if a.StreamName != b.StreamName {
		return a.StreamName < b.StreamName
	}
	return sequenceOf(a.current) < sequenceOf(b.current)
}

func sequenceOf(item storemodel.StreamItem) int64 {
	switch v := item.(type) {
	case storemodel.RawBatch:
		if first, ok := v.Batch.First(); ok {
			return first.Id.Sequence
		}
	case storemodel.DecodedBatch:
		if first, ok := v.Decoded.First(); ok {
			return first.Id.Sequence
		}
	case storemodel.FilteredMessage:
		return v.Message.Id.Sequence
	}
	return 0
}
