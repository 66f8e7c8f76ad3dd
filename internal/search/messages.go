package search

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"tsgate/internal/filter"
	"tsgate/internal/merge"
	"tsgate/internal/messagestream"
	"tsgate/internal/sse"
	"tsgate/internal/storemodel"
	apperrors "tsgate/pkg/errors"
	"tsgate/pkg/logging"
)

// SearchMessages is the public message-search operation: one
// MessageStreamInitializer lookup plus MessageExtractor per requested
// stream, each feeding the CodecBroker's Pipeline, merged by StreamMerger
// into a single time-ordered, filtered flow written to the SSE writer.
// Per-stream tasks and the merger task run under one errgroup so a
// cancellation or panic in any of them tears down the rest (spec.md
// section 5).
func (s *Service) SearchMessages(ctx context.Context, req storemodel.SearchRequest, writer *sse.Writer) error {
	searchId := newSearchId()
	ctx = logging.WithSearchID(ctx, searchId)
	start := time.Now()

	if err := req.Validate(); err != nil {
		writeTerminal(ctx, writer, err, s.log)
		s.finishAudit(ctx, searchId, req, 0, start, err)
		return err
	}
	if len(req.Streams) == 0 {
		err := apperrors.ErrInvalidRequest.WithDetail("message", "at least one stream is required")
		writeTerminal(ctx, writer, err, s.log)
		s.finishAudit(ctx, searchId, req, 0, start, err)
		return err
	}

	pipeline, err := filter.Build(req.Filters)
	if err != nil {
		writeTerminal(ctx, writer, err, s.log)
		s.finishAudit(ctx, searchId, req, 0, start, err)
		return err
	}

	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(groupCtx)
	merged := make(chan storemodel.StreamItem, s.cfg.MessageFlowCapacity)
	holders := make([]*merge.Holder, 0, len(req.Streams))

	for _, stream := range req.Streams {
		stream := stream
		rawOut := make(chan storemodel.StreamItem, s.cfg.MessageSearchPipelineBuffer)
		decodedOut := make(chan storemodel.StreamItem, s.cfg.MessageSearchPipelineBuffer)
		holders = append(holders, merge.NewHolder(stream.Name, req.Direction, decodedOut))

		g.Go(guard(func() error {
			return s.runExtractor(gCtx, req, stream, rawOut)
		}))
		g.Go(guard(func() error {
			return s.runCodecStage(gCtx, stream, rawOut, decodedOut)
		}))
	}

	g.Go(guard(func() error {
		merger := merge.New(req.Direction, holders)
		return merger.Run(gCtx, merged)
	}))

	writer.StartKeepAlive(ctx, encodeLastScanned)
	defer writer.Close()

	emitted := 0
	var writeErr error
	limit := s.cfg.MaxMessagesLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

consume:
	for item := range merged {
		decoded, ok := item.(storemodel.DecodedBatch)
		if !ok {
			continue
		}
		if decoded.Failed {
			payload, _ := json.Marshal(struct {
				Error string `json:"error"`
			}{Error: apperrors.ErrCodecTimeout.Code})
			if err := writer.WriteMessage(string(payload)); err != nil {
				writeErr = err
				break consume
			}
			continue
		}
		for _, m := range decoded.Decoded.Messages {
			if limit > 0 && emitted >= limit {
				break consume
			}
			el, err := s.messageElement(ctx, pipeline, m)
			if err != nil {
				writeErr = err
				break consume
			}
			matched, err := s.matchesFilters(ctx, pipeline, el, req.FilterPresetName)
			if err != nil {
				writeErr = err
				break consume
			}
			if !matched {
				continue
			}
			payload, marshalErr := json.Marshal(m)
			if marshalErr != nil {
				writeErr = marshalErr
				break consume
			}
			if err := writer.WriteMessage(string(payload)); err != nil {
				writeErr = err
				break consume
			}
			emitted++
		}
	}

	// The consume loop may exit (limit reached, a write/marshal error, or
	// plain channel closure) while runExtractor/runCodecStage/merger are
	// still blocked sending into a full rawOut/decodedOut/merged: cancel
	// gCtx here, before Wait, so those sends unblock via their <-ctx.Done()
	// arm instead of holding Wait open forever.
	cancel()
	groupErr := g.Wait()
	// A context.Canceled caused by the cancel() above is this call's own
	// shutdown, not a failure, unless the caller's ctx was cancelled too.
	if errors.Is(groupErr, context.Canceled) && ctx.Err() == nil {
		groupErr = nil
	}
	terminal := writeErr
	if terminal == nil {
		terminal = groupErr
	}

	if terminal != nil {
		writeTerminal(ctx, writer, terminal, s.log)
	} else {
		_ = writer.WriteClose()
	}

	s.finishAudit(ctx, searchId, req, emitted, start, terminal)
	return terminal
}

// messageElement adapts m to filter.Element, resolving the attached-event
// cross-reference (and, through it, the parent event) from the store only
// when the pipeline has an attachedEventId/attachedEventIds/parentEvent
// filter, the same NEED_BODY-style laziness eventElement applies on the
// event side.
func (s *Service) messageElement(ctx context.Context, pipeline *filter.Pipeline, m storemodel.Message) (filter.Element, error) {
	el := filter.MessageElement{Message: m}

	needsAttachedEvents := pipeline.NeedsKind(filter.KindAttachedEventId) ||
		pipeline.NeedsKind(filter.KindAttachedEventIds) ||
		pipeline.NeedsKind(filter.KindParentEvent)
	if !needsAttachedEvents {
		return el, nil
	}

	eventIds, err := s.gateway.GetEventIds(ctx, m.Id)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(eventIds))
	for i, id := range eventIds {
		ids[i] = string(id)
	}
	el.AttachedEvtIds = ids

	if pipeline.NeedsKind(filter.KindParentEvent) {
		parentId, err := s.resolveParentEvent(ctx, eventIds)
		if err != nil {
			return nil, err
		}
		el.ParentEvtId = parentId
	}
	return el, nil
}

// resolveParentEvent returns the parent id of the first attached event that
// has one. A message can be cross-referenced to several events; spec.md
// leaves unspecified which one's parent a parentEvent filter addresses, so
// this takes the first match in GetEventIds order.
func (s *Service) resolveParentEvent(ctx context.Context, eventIds []storemodel.EventId) (string, error) {
	for _, id := range eventIds {
		wrapper, found, err := s.gateway.GetEvent(ctx, storemodel.ProviderEventId{EventId: id})
		if err != nil {
			return "", err
		}
		if !found {
			continue
		}
		for _, single := range wrapper.Expand("") {
			if single.Id == id && single.HasParent() {
				return string(single.ParentId), nil
			}
		}
	}
	return "", nil
}

func (s *Service) runExtractor(ctx context.Context, req storemodel.SearchRequest, stream storemodel.StreamKey, out chan<- storemodel.StreamItem) error {
	ctx = logging.WithStreamName(ctx, stream.Name)

	startId, startTime, sequenceTrim, err := s.resolveStreamStart(ctx, req, stream)
	if err != nil {
		close(out)
		return err
	}

	extractor := messagestream.NewExtractor(
		s.gateway,
		stream,
		req.Direction,
		startId,
		sequenceTrim,
		startTime,
		req.EndTimestamp,
		messagestream.Config{SendEmptyDelay: time.Duration(s.cfg.SendEmptyDelayMs) * time.Millisecond},
		s.log,
	)
	return extractor.Run(ctx, out)
}

// resolveStreamStart picks the extractor's fetch cursor and trim mode.
// A client-supplied resumeFromId trims by sequence (exclusive); a
// MessageStreamInitializer-located start trims by startTimestamp
// (inclusive) even though it also yields a non-nil cursor id.
func (s *Service) resolveStreamStart(ctx context.Context, req storemodel.SearchRequest, stream storemodel.StreamKey) (*storemodel.MessageId, time.Time, bool, error) {
	if req.ResumeFromId != "" {
		id, err := storemodel.ParseMessageResumeToken(req.ResumeFromId)
		if err != nil {
			return nil, time.Time{}, false, apperrors.ErrInvalidRequest.WithCause(err)
		}
		return &id, id.Timestamp, true, nil
	}

	start := time.Time{}
	if req.StartTimestamp != nil {
		start = *req.StartTimestamp
	}

	id, err := s.initializer.Locate(ctx, stream, start, req.Direction, req.LookupLimitDays, req.EndTimestamp)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return id, start, false, nil
}

func (s *Service) runCodecStage(ctx context.Context, stream storemodel.StreamKey, in <-chan storemodel.StreamItem, out chan<- storemodel.StreamItem) error {
	defer close(out)
	for item := range in {
		raw, ok := item.(storemodel.RawBatch)
		if !ok {
			select {
			case out <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		decoded, err := s.codecPipeline.Process(ctx, raw, stream.Name)
		if err != nil {
			return err
		}
		select {
		case out <- decoded:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
