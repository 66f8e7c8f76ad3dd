package search

import (
	"context"
	"encoding/json"
	"time"

	"tsgate/internal/eventsearch"
	"tsgate/internal/filter"
	"tsgate/internal/sse"
	"tsgate/internal/storemodel"
	"tsgate/pkg/logging"
)

// SearchEvents is the public event-search operation of SPEC_FULL.md
// section 1: EventSearchEngine output, filtered, framed onto an SSE
// writer, with a keep-alive task running for the duration.
func (s *Service) SearchEvents(ctx context.Context, req storemodel.SearchRequest, writer *sse.Writer) error {
	searchId := newSearchId()
	ctx = logging.WithSearchID(ctx, searchId)
	start := time.Now()

	if err := req.Validate(); err != nil {
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

	predicate := eventsearch.Predicate(func(ctx context.Context, ev storemodel.SingleEvent) (bool, error) {
		el, err := s.eventElement(ctx, pipeline, ev)
		if err != nil {
			return false, err
		}
		return s.matchesFilters(ctx, pipeline, el, req.FilterPresetName)
	})

	results, err := s.engine.Search(ctx, req, predicate)
	if err != nil {
		writeTerminal(ctx, writer, err, s.log)
		s.finishAudit(ctx, searchId, req, 0, start, err)
		return err
	}

	writer.StartKeepAlive(ctx, encodeLastScanned)
	defer writer.Close()

	emitted := 0
	var terminal error
	for res := range results {
		if res.Err != nil {
			terminal = res.Err
			break
		}
		ev := res.Event
		if req.MetadataOnly {
			ev.Content = nil
		}
		payload, marshalErr := json.Marshal(ev)
		if marshalErr != nil {
			terminal = marshalErr
			break
		}
		if writeErr := writer.WriteEvent(string(payload)); writeErr != nil {
			terminal = writeErr
			break
		}
		emitted++
	}

	if terminal != nil {
		writeTerminal(ctx, writer, terminal, s.log)
	} else {
		_ = writer.WriteClose()
	}

	s.finishAudit(ctx, searchId, req, emitted, start, terminal)
	return terminal
}

// eventElement adapts ev to filter.Element, resolving the attached-message
// cross-reference from the store only when the pipeline actually has an
// attachedMessageId filter, the same NEED_BODY-style laziness
// filter.Pipeline already applies to message bodies.
func (s *Service) eventElement(ctx context.Context, pipeline *filter.Pipeline, ev storemodel.SingleEvent) (filter.Element, error) {
	el := filter.EventElement{Event: ev}
	if !pipeline.NeedsKind(filter.KindAttachedMessageId) {
		return el, nil
	}

	msgIds, err := s.gateway.GetMessageIds(ctx, ev.Id)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(msgIds))
	for i, id := range msgIds {
		ids[i] = id.String()
	}
	el.AttachedMsgIds = ids
	return el, nil
}

func encodeLastScanned(meta storemodel.ItemMeta) string {
	payload, _ := json.Marshal(struct {
		StreamEmpty     bool    `json:"streamEmpty"`
		LastScannedTime string  `json:"lastScannedTime"`
		LastProcessedId *string `json:"lastProcessedId,omitempty"`
	}{
		StreamEmpty:     meta.StreamEmpty,
		LastScannedTime: meta.LastScannedTime.Format(time.RFC3339Nano),
		LastProcessedId: idPtr(meta.LastProcessedId),
	})
	return string(payload)
}

func idPtr(id *storemodel.MessageId) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func (s *Service) finishAudit(ctx context.Context, searchId string, req storemodel.SearchRequest, emitted int, start time.Time, terminal error) {
	s.audit.Record(ctx, AuditRecord{
		SearchId:          searchId,
		Direction:         string(req.Direction),
		StreamCount:       len(req.Streams),
		EmittedCount:      emitted,
		ResumeFromId:      req.ResumeFromId,
		DurationMs:        time.Since(start).Milliseconds(),
		TerminalErrorKind: kindOf(terminal),
	})
}
