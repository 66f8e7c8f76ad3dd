package messagestream

import (
	"context"
	"time"

	"tsgate/internal/logger"
	"tsgate/internal/store"
	"tsgate/internal/storemodel"
)

// Extractor is the MessageExtractor of spec.md section 4.4: one per
// (stream, direction), owning a single underlying batch iterator.
type Extractor struct {
	gateway      store.StoreGateway
	stream       storemodel.StreamKey
	dir          storemodel.Direction
	resumeId     *storemodel.MessageId
	sequenceTrim bool
	startTime    time.Time
	endTime      *time.Time
	heartbeat    time.Duration
	log          logger.Logger
}

type Config struct {
	SendEmptyDelay time.Duration
}

// NewExtractor builds one stream extractor. start is the fetch cursor
// (nil for a fresh scan); sequenceTrim selects spec.md section 4.4's head
// trim rule: true for a client-supplied resumeFromId (trim by sequence,
// exclusive), false for a MessageStreamInitializer-located start (trim by
// startTimestamp, inclusive) even though start is non-nil in both cases.
func NewExtractor(gateway store.StoreGateway, stream storemodel.StreamKey, dir storemodel.Direction, start *storemodel.MessageId, sequenceTrim bool, startTime time.Time, endTime *time.Time, cfg Config, log logger.Logger) *Extractor {
	return &Extractor{
		gateway:      gateway,
		stream:       stream,
		dir:          dir,
		resumeId:     start,
		sequenceTrim: sequenceTrim,
		startTime:    startTime,
		endTime:      endTime,
		heartbeat:    cfg.SendEmptyDelay,
		log:          log,
	}
}

// Run drives the extractor until ctx is cancelled or the stream is
// exhausted, sending RawBatch/EmptyTick items on out and closing it on
// exit. The underlying iterator is released on every exit path.
func (x *Extractor) Run(ctx context.Context, out chan<- storemodel.StreamItem) error {
	defer close(out)

	fetchErr := make(chan error, 1)
	fetched := make(chan storemodel.MessageBatch, 1)

	lastId := x.resumeId
	lastTs := x.startTime
	streamEmpty := false
	first := true
	fetching := false

	// fetchCursor is nil for the very first fetch of a non-resume
	// (Initializer-located) start, so the store returns the batch
	// containing the located message rather than treating it as already
	// delivered; every later fetch passes lastId as a genuine cursor.
	fetchCursor := func() *storemodel.MessageId {
		if first && !x.sequenceTrim {
			return nil
		}
		return lastId
	}

	next := func() {
		fetching = true
		from := fetchCursor()
		go func() {
			batches, err := x.gateway.GetMessageBatches(ctx, x.stream, x.dir, from, x.endTime)
			if err != nil {
				fetchErr <- err
				return
			}
			if len(batches) == 0 {
				fetched <- storemodel.MessageBatch{}
				return
			}
			fetched <- batches[0]
		}()
	}
	next()

	ticker := time.NewTicker(x.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-fetchErr:
			return err

		case batch := <-fetched:
			fetching = false
			if batch.IsEmpty() {
				x.terminate(out, &lastId, &lastTs)
				return nil
			}

			bySequence := x.sequenceTrim || !first
			trimmed := x.trim(batch, lastId, bySequence)
			first = false
			if !trimmed.IsEmpty() {
				last, _ := trimmed.Last()
				lastId = &last.Id
				lastTs = last.Id.Timestamp

				item := storemodel.RawBatch{
					ItemMeta: storemodel.ItemMeta{StreamEmpty: false, LastProcessedId: lastId, LastScannedTime: lastTs},
					Batch:    trimmed,
				}
				select {
				case out <- item:
				case <-ctx.Done():
					return ctx.Err()
				}
				// More of this batch may already be buffered upstream; keep
				// draining without waiting for a heartbeat tick.
				next()
			}
			// trimmed empty means this fetch brought nothing new past
			// lastId; back off to the next heartbeat tick instead of
			// busy-polling the store.

		case <-ticker.C:
			if !fetching {
				next()
			}
			item := storemodel.EmptyTick{
				ItemMeta: storemodel.ItemMeta{StreamEmpty: streamEmpty, LastProcessedId: lastId, LastScannedTime: lastTs},
			}
			select {
			case out <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (x *Extractor) terminate(out chan<- storemodel.StreamItem, lastId **storemodel.MessageId, lastTs *time.Time) {
	if x.dir == storemodel.DirectionAfter {
		*lastTs = farFuture
	} else {
		*lastTs = farPast
	}
	item := storemodel.EmptyTick{
		ItemMeta: storemodel.ItemMeta{StreamEmpty: true, LastProcessedId: *lastId, LastScannedTime: *lastTs},
	}
	out <- item
}

var (
	farFuture = time.Unix(1<<62, 0).UTC()
	farPast   = time.Unix(-(1 << 62), 0).UTC()
)

// trim applies spec.md section 4.4's head/tail trimming: head by
// resume-sequence (bySequence true, against cursorId) or startTimestamp
// (bySequence false), tail by endTimestamp, inclusive in both directions.
func (x *Extractor) trim(batch storemodel.MessageBatch, cursorId *storemodel.MessageId, bySequence bool) storemodel.MessageBatch {
	messages := batch.InOrder()
	if x.dir == storemodel.DirectionBefore {
		messages = batch.Reverse()
	}

	trimmed := make([]storemodel.Message, 0, len(messages))
	for _, m := range messages {
		if bySequence && cursorId != nil {
			if x.dir == storemodel.DirectionAfter && m.Id.Sequence <= cursorId.Sequence {
				continue
			}
			if x.dir == storemodel.DirectionBefore && m.Id.Sequence >= cursorId.Sequence {
				continue
			}
		} else {
			if x.dir == storemodel.DirectionAfter && m.Id.Timestamp.Before(x.startTime) {
				continue
			}
			if x.dir == storemodel.DirectionBefore && m.Id.Timestamp.After(x.startTime) {
				continue
			}
		}

		if x.endTime != nil {
			if x.dir == storemodel.DirectionAfter && m.Id.Timestamp.After(*x.endTime) {
				break
			}
			if x.dir == storemodel.DirectionBefore && m.Id.Timestamp.Before(*x.endTime) {
				break
			}
		}

		trimmed = append(trimmed, m)
	}

	return storemodel.MessageBatch{Stream: batch.Stream, Messages: trimmed}
}
