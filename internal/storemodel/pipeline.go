package storemodel

import "time"

// ItemMeta is shared by every pipeline item variant: whether the owning
// stream has run dry, the last id it processed, and the last timestamp it
// scanned (used for keep-alive's LastScannedObjectInfo).
type ItemMeta struct {
	StreamEmpty     bool
	LastProcessedId *MessageId
	LastScannedTime time.Time
}

// StreamItem is the common surface the StreamMerger needs: every variant
// can report its ordering timestamp and whether it's a tick (internal,
// non-emitted) rather than data.
type StreamItem interface {
	Meta() ItemMeta
	Timestamp() time.Time
	IsTick() bool
}

// RawBatch is a freshly fetched, head/tail-trimmed batch, not yet sent to
// the codec.
type RawBatch struct {
	ItemMeta
	Batch MessageBatch
}

func (r RawBatch) Meta() ItemMeta   { return r.ItemMeta }
func (r RawBatch) IsTick() bool     { return false }
func (r RawBatch) Timestamp() time.Time {
	if first, ok := r.Batch.First(); ok {
		return first.Id.Timestamp
	}
	return r.LastScannedTime
}

// CodecRequestItem wraps a batch dispatched to the codec broker, keyed by
// requestId for correlation with the eventual DecodedBatch.
type CodecRequestItem struct {
	ItemMeta
	RequestId string
	StreamKey StreamKey
	Messages  []Message
}

func (c CodecRequestItem) Meta() ItemMeta   { return c.ItemMeta }
func (c CodecRequestItem) IsTick() bool     { return false }
func (c CodecRequestItem) Timestamp() time.Time {
	if len(c.Messages) == 0 {
		return c.LastScannedTime
	}
	return c.Messages[0].Id.Timestamp
}

// DecodedBatch is a batch after a successful (or failed-but-resolved) codec
// round-trip.
type DecodedBatch struct {
	ItemMeta
	Decoded MessageBatch
	Failed  bool
}

func (d DecodedBatch) Meta() ItemMeta   { return d.ItemMeta }
func (d DecodedBatch) IsTick() bool     { return false }
func (d DecodedBatch) Timestamp() time.Time {
	if first, ok := d.Decoded.First(); ok {
		return first.Id.Timestamp
	}
	return d.LastScannedTime
}

// FilteredMessage is one message after the filter pipeline has run, Passed
// records the verdict so downstream stages can drop it without losing
// ordering bookkeeping.
type FilteredMessage struct {
	ItemMeta
	Message Message
	Passed  bool
}

func (f FilteredMessage) Meta() ItemMeta       { return f.ItemMeta }
func (f FilteredMessage) IsTick() bool         { return false }
func (f FilteredMessage) Timestamp() time.Time { return f.Message.Id.Timestamp }

// EmptyTick is a heartbeat carrying no data, used by the merger to advance
// an otherwise-idle stream without blocking on it.
type EmptyTick struct {
	ItemMeta
}

func (e EmptyTick) Meta() ItemMeta       { return e.ItemMeta }
func (e EmptyTick) IsTick() bool         { return true }
func (e EmptyTick) Timestamp() time.Time { return e.LastScannedTime }
