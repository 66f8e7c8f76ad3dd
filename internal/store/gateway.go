package store

import (
	"context"
	"time"

	"tsgate/internal/storemodel"
)

// FirstMessageRelation selects which side of a timestamp getFirstMessageId
// resolves to when there is no exact match.
type FirstMessageRelation string

const (
	RelationAtOrAfter  FirstMessageRelation = "AT_OR_AFTER"
	RelationAtOrBefore FirstMessageRelation = "AT_OR_BEFORE"
)

// StoreGateway is the thin adapter over the columnar record store. Every
// method is a plain blocking call; callers needing retry/circuit-breaking
// wrap a StoreGateway with Resilient (resilient.go).
type StoreGateway interface {
	// GetEvents lists event wrappers in [start, end], ordered by dir.
	GetEvents(ctx context.Context, start, end time.Time, dir storemodel.Direction) ([]storemodel.EventWrapper, error)

	// GetEventsFromResume lists event wrappers whose start lies from
	// resumeId's own timestamp through end, ordered by dir; the resume
	// event itself is included.
	GetEventsFromResume(ctx context.Context, resumeId storemodel.ProviderEventId, end time.Time, dir storemodel.Direction) ([]storemodel.EventWrapper, error)

	// GetEventsToResume lists event wrappers from start through resumeId,
	// ordered by dir. Used for the BEFORE-direction mirror of
	// GetEventsFromResume.
	GetEventsToResume(ctx context.Context, start time.Time, resumeId storemodel.ProviderEventId, dir storemodel.Direction) ([]storemodel.EventWrapper, error)

	// GetEvent fetches a single event wrapper (batch-or-single) by id.
	GetEvent(ctx context.Context, id storemodel.ProviderEventId) (storemodel.EventWrapper, bool, error)

	// GetEventBatch fetches one batch wholesale, used for the
	// parentEvent.batchId single-shot path (spec.md section 4.2 step 1).
	GetEventBatch(ctx context.Context, batchId string) (storemodel.BatchEvent, bool, error)

	// GetEventFromBatch resolves one event inside a known batch. Returns
	// (event, true, nil) when present, (zero, false, nil) when absent —
	// see DESIGN.md's Open Questions decision on fromBatchIds.
	GetEventFromBatch(ctx context.Context, batchId string, eventId storemodel.EventId) (storemodel.SingleEvent, bool, error)

	// GetMessageBatches lists message batches for a stream in scan order,
	// optionally starting at/after a message id and bounded by a timestamp.
	GetMessageBatches(ctx context.Context, stream storemodel.StreamKey, dir storemodel.Direction, from *storemodel.MessageId, bound *time.Time) ([]storemodel.MessageBatch, error)

	// GetMessage fetches a single message by id.
	GetMessage(ctx context.Context, id storemodel.MessageId) (storemodel.Message, bool, error)

	// GetFirstMessageId finds the message nearest ts in stream/dir per
	// relation, or nil if none exists.
	GetFirstMessageId(ctx context.Context, ts time.Time, stream storemodel.StreamKey, dir storemodel.Direction, relation FirstMessageRelation) (*storemodel.MessageId, error)

	// GetFirstMessageSequence returns the lowest (AFTER) or highest
	// (BEFORE) sequence number present for a stream.
	GetFirstMessageSequence(ctx context.Context, stream storemodel.StreamKey, dir storemodel.Direction) (int64, error)

	// GetEventIds returns events cross-referenced to a message.
	GetEventIds(ctx context.Context, id storemodel.MessageId) ([]storemodel.EventId, error)

	// GetMessageIds returns messages cross-referenced to an event.
	GetMessageIds(ctx context.Context, id storemodel.EventId) ([]storemodel.MessageId, error)
}
