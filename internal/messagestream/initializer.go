package messagestream

import (
	"context"
	"time"

	"tsgate/internal/logger"
	"tsgate/internal/store"
	"tsgate/internal/storemodel"
)

// Initializer locates the first relevant stored message for a stream, the
// MessageStreamInitializer of spec.md section 4.3.
type Initializer struct {
	gateway store.StoreGateway
	log     logger.Logger
}

func NewInitializer(gateway store.StoreGateway, log logger.Logger) *Initializer {
	return &Initializer{gateway: gateway, log: log}
}

// Locate walks up to lookupLimitDays looking for a candidate message id,
// then resolves it to the nearest in-batch message. When lookupLimitDays
// is nil the walk is unbounded by day count, per spec.md section 4.3 — it
// stops only once a candidate is found or endTimestamp's direction-specific
// time-limit predicate is crossed. A request with neither set relies on the
// caller's context deadline to bound the walk, the same as any other
// unbounded store scan in this package.
func (in *Initializer) Locate(ctx context.Context, stream storemodel.StreamKey, requestStart time.Time, dir storemodel.Direction, lookupLimitDays *int, endTimestamp *time.Time) (*storemodel.MessageId, error) {
	for day := 0; lookupLimitDays == nil || day < *lookupLimitDays; day++ {
		dayTs := shiftDay(requestStart, dir, day)
		if endTimestamp != nil && crossedLimit(dayTs, *endTimestamp, dir) {
			break
		}

		var candidate *storemodel.MessageId
		var err error

		if day == 0 {
			// Day 0 tries both relations to find whichever is closer. A
			// resumeFromId never reaches Locate: resolveStreamStart in
			// internal/search starts from the resume id's timestamp instead.
			candidate, err = in.gateway.GetFirstMessageId(ctx, dayTs, stream, storemodel.DirectionBefore, store.RelationAtOrBefore)
			if err != nil {
				return nil, err
			}
			if candidate == nil {
				candidate, err = in.gateway.GetFirstMessageId(ctx, dayTs, stream, storemodel.DirectionAfter, store.RelationAtOrAfter)
				if err != nil {
					return nil, err
				}
			}
		} else {
			candidate, err = in.gateway.GetFirstMessageId(ctx, dayTs, stream, dir, relationFor(dir))
			if err != nil {
				return nil, err
			}
		}

		if candidate == nil {
			continue
		}

		return in.resolveNearest(ctx, stream, *candidate, requestStart, dir)
	}

	return nil, nil
}

func relationFor(dir storemodel.Direction) store.FirstMessageRelation {
	if dir == storemodel.DirectionBefore {
		return store.RelationAtOrBefore
	}
	return store.RelationAtOrAfter
}

func shiftDay(t time.Time, dir storemodel.Direction, days int) time.Time {
	if dir == storemodel.DirectionBefore {
		return t.AddDate(0, 0, -days)
	}
	return t.AddDate(0, 0, days)
}

func crossedLimit(t, limit time.Time, dir storemodel.Direction) bool {
	if dir == storemodel.DirectionBefore {
		return t.Before(limit)
	}
	return t.After(limit)
}

// resolveNearest loads the candidate's batch and picks the message nearest
// requestStart per spec.md section 4.3's direction-specific rule.
func (in *Initializer) resolveNearest(ctx context.Context, stream storemodel.StreamKey, candidate storemodel.MessageId, requestStart time.Time, dir storemodel.Direction) (*storemodel.MessageId, error) {
	batches, err := in.gateway.GetMessageBatches(ctx, stream, dir, &candidate, nil)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		id := candidate
		return &id, nil
	}
	batch := batches[0]

	if dir == storemodel.DirectionAfter {
		var lastBefore *storemodel.MessageId
		for _, m := range batch.InOrder() {
			if !m.Id.Timestamp.Before(requestStart) {
				id := m.Id
				return &id, nil
			}
			id := m.Id
			lastBefore = &id
		}
		if lastBefore != nil {
			return lastBefore, nil
		}
		return nil, nil
	}

	var firstAfter *storemodel.MessageId
	for _, m := range batch.Reverse() {
		if !m.Id.Timestamp.After(requestStart) {
			id := m.Id
			return &id, nil
		}
		id := m.Id
		firstAfter = &id
	}
	if firstAfter != nil {
		return firstAfter, nil
	}
	return nil, nil
}
