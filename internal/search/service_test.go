package search

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tsgate/internal/codec"
	"tsgate/internal/config"
	"tsgate/internal/eventsearch"
	"tsgate/internal/filter"
	"tsgate/internal/logger"
	"tsgate/internal/messagestream"
	"tsgate/internal/sse"
	"tsgate/internal/store"
	"tsgate/internal/storemodel"
)

// fakeGateway is a minimal store.StoreGateway double: events are returned
// verbatim, message batches simulate a single static batch per stream that
// a continuation fetch (from != nil, past the last known sequence) reports
// as exhausted, the way a caught-up live store would.
type fakeGateway struct {
	events   []storemodel.EventWrapper
	batches  map[string][]storemodel.MessageBatch
	firstIds map[string]*storemodel.MessageId

	messageIdsByEvent map[storemodel.EventId][]storemodel.MessageId
	eventIdsByMessage map[string][]storemodel.EventId
	eventsById        map[storemodel.EventId]storemodel.SingleEvent

	getMessageIdsCalls int
	getEventIdsCalls   int
}

func (f *fakeGateway) GetEvents(ctx context.Context, start, end time.Time, dir storemodel.Direction) ([]storemodel.EventWrapper, error) {
	return f.events, nil
}
func (f *fakeGateway) GetEventsFromResume(ctx context.Context, resumeId storemodel.ProviderEventId, end time.Time, dir storemodel.Direction) ([]storemodel.EventWrapper, error) {
	return nil, nil
}
func (f *fakeGateway) GetEventsToResume(ctx context.Context, start time.Time, resumeId storemodel.ProviderEventId, dir storemodel.Direction) ([]storemodel.EventWrapper, error) {
	return nil, nil
}
func (f *fakeGateway) GetEvent(ctx context.Context, id storemodel.ProviderEventId) (storemodel.EventWrapper, bool, error) {
	ev, ok := f.eventsById[id.EventId]
	if !ok {
		return storemodel.EventWrapper{}, false, nil
	}
	return storemodel.WrapSingle(ev), true, nil
}
func (f *fakeGateway) GetEventBatch(ctx context.Context, batchId string) (storemodel.BatchEvent, bool, error) {
	return storemodel.BatchEvent{}, false, nil
}
func (f *fakeGateway) GetEventFromBatch(ctx context.Context, batchId string, eventId storemodel.EventId) (storemodel.SingleEvent, bool, error) {
	return storemodel.SingleEvent{}, false, nil
}
func (f *fakeGateway) GetMessageBatches(ctx context.Context, stream storemodel.StreamKey, dir storemodel.Direction, from *storemodel.MessageId, bound *time.Time) ([]storemodel.MessageBatch, error) {
	all := f.batches[stream.Name]
	if from == nil {
		return all, nil
	}
	var maxSeq int64 = -1
	for _, b := range all {
		for _, m := range b.Messages {
			if m.Id.Sequence > maxSeq {
				maxSeq = m.Id.Sequence
			}
		}
	}
	if from.Sequence >= maxSeq {
		return nil, nil
	}
	return all, nil
}
func (f *fakeGateway) GetMessage(ctx context.Context, id storemodel.MessageId) (storemodel.Message, bool, error) {
	return storemodel.Message{}, false, nil
}
func (f *fakeGateway) GetFirstMessageId(ctx context.Context, ts time.Time, stream storemodel.StreamKey, dir storemodel.Direction, relation store.FirstMessageRelation) (*storemodel.MessageId, error) {
	return f.firstIds[stream.Name], nil
}
func (f *fakeGateway) GetFirstMessageSequence(ctx context.Context, stream storemodel.StreamKey, dir storemodel.Direction) (int64, error) {
	return 0, nil
}
func (f *fakeGateway) GetEventIds(ctx context.Context, id storemodel.MessageId) ([]storemodel.EventId, error) {
	f.getEventIdsCalls++
	return f.eventIdsByMessage[id.String()], nil
}
func (f *fakeGateway) GetMessageIds(ctx context.Context, id storemodel.EventId) ([]storemodel.MessageId, error) {
	f.getMessageIdsCalls++
	return f.messageIdsByEvent[id], nil
}

// echoTransport loops a codec request straight back as its own response,
// standing in for an external decoder that leaves messages unchanged.
type echoTransport struct {
	broker **codec.Broker
}

func (t *echoTransport) Send(ctx context.Context, req codec.CodecRequest) error {
	go (*t.broker).HandleResponse(context.Background(), codec.CodecResponse{RequestId: req.RequestId, Messages: req.Messages})
	return nil
}

func testConfig() config.SearchConfig {
	return config.SearchConfig{
		SendEmptyDelayMs:            5,
		EventSearchGapMs:            1000,
		MessageSearchPipelineBuffer: 8,
		MessageFlowCapacity:         8,
		EventSearchPipelineBuffer:   8,
		MaxMessagesLimit:            0,
		DefaultLookupLimitDays:      5,
		DefaultLimitForParent:       1000,
		DefaultResultCountLimit:     0,
	}
}

// sseDataFrames extracts every "data: ..." payload following an
// "event: <name>" line of the given name, in order.
func sseDataFrames(body, eventName string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	current := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if current == eventName {
				out = append(out, strings.TrimPrefix(line, "data: "))
			}
		}
	}
	return out
}

func TestService_SearchEvents_EmitsAllMatchingEvents(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()
	gw := &fakeGateway{
		events: []storemodel.EventWrapper{
			storemodel.WrapSingle(storemodel.SingleEvent{Id: "e1", Start: t0}),
			storemodel.WrapSingle(storemodel.SingleEvent{Id: "e2", Start: t0.Add(time.Minute)}),
		},
	}
	log := logger.NopLogger()
	engine := eventsearch.NewEngine(gw, eventsearch.Config{
		EventSearchGap:          time.Hour,
		DefaultLimitForParent:   1000,
		DefaultResultCountLimit: 0,
	}, log)

	svc := NewService(gw, engine, nil, nil, testConfig(), nil, log)

	end := t0.Add(time.Hour)
	req := storemodel.SearchRequest{
		Direction:      storemodel.DirectionAfter,
		StartTimestamp: &t0,
		EndTimestamp:   &end,
	}

	rec := httptest.NewRecorder()
	writer := sse.NewWriter(rec, time.Hour, log)

	err := svc.SearchEvents(context.Background(), req, writer)
	require.NoError(t, err)

	frames := sseDataFrames(rec.Body.String(), sse.FrameEvent)
	require.Len(t, frames, 2)

	var first, second storemodel.SingleEvent
	require.NoError(t, json.Unmarshal([]byte(frames[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(frames[1]), &second))
	require.Equal(t, storemodel.EventId("e1"), first.Id)
	require.Equal(t, storemodel.EventId("e2"), second.Id)

	require.Contains(t, rec.Body.String(), "event: close")
}

func TestService_SearchEvents_RejectsInvalidRequest(t *testing.T) {
	gw := &fakeGateway{}
	log := logger.NopLogger()
	engine := eventsearch.NewEngine(gw, eventsearch.Config{EventSearchGap: time.Hour}, log)
	svc := NewService(gw, engine, nil, nil, testConfig(), nil, log)

	rec := httptest.NewRecorder()
	writer := sse.NewWriter(rec, time.Hour, log)

	err := svc.SearchEvents(context.Background(), storemodel.SearchRequest{Direction: storemodel.DirectionAfter}, writer)
	require.Error(t, err)
	require.Contains(t, rec.Body.String(), "event: error")
}

func TestService_SearchMessages_MergesStreamsInTimestampOrder(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()
	streamA := storemodel.StreamKey{Name: "a", Direction: storemodel.StreamFirst}
	streamB := storemodel.StreamKey{Name: "b", Direction: storemodel.StreamFirst}

	msgA := storemodel.Message{Id: storemodel.MessageId{Stream: streamA, Sequence: 1, Timestamp: t0}, Payload: []byte("a1")}
	msgB := storemodel.Message{Id: storemodel.MessageId{Stream: streamB, Sequence: 1, Timestamp: t0.Add(time.Second)}, Payload: []byte("b1")}

	sentinel := func(stream storemodel.StreamKey) *storemodel.MessageId {
		return &storemodel.MessageId{Stream: stream, Sequence: 0, Timestamp: t0.Add(-time.Hour)}
	}

	gw := &fakeGateway{
		batches: map[string][]storemodel.MessageBatch{
			"a": {{Stream: streamA, Messages: []storemodel.Message{msgA}}},
			"b": {{Stream: streamB, Messages: []storemodel.Message{msgB}}},
		},
		firstIds: map[string]*storemodel.MessageId{
			"a": sentinel(streamA),
			"b": sentinel(streamB),
		},
	}
	log := logger.NopLogger()
	initializer := messagestream.NewInitializer(gw, log)

	var broker *codec.Broker
	broker = codec.NewBroker(&echoTransport{broker: &broker}, codec.Config{ResponseTimeout: time.Second, MaxPendingRequests: 10}, log)
	pipeline := codec.NewPipeline(broker)

	svc := NewService(gw, nil, initializer, pipeline, testConfig(), nil, log)

	req := storemodel.SearchRequest{
		Direction:      storemodel.DirectionAfter,
		StartTimestamp: &t0,
		Streams:        []storemodel.StreamKey{streamA, streamB},
	}

	rec := httptest.NewRecorder()
	writer := sse.NewWriter(rec, time.Hour, log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := svc.SearchMessages(ctx, req, writer)
	require.NoError(t, err)

	frames := sseDataFrames(rec.Body.String(), sse.FrameMessage)
	require.Len(t, frames, 2)

	var first, second storemodel.Message
	require.NoError(t, json.Unmarshal([]byte(frames[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(frames[1]), &second))
	require.Equal(t, "a", first.Id.Stream.Name)
	require.Equal(t, "b", second.Id.Stream.Name)
}

// TestService_SearchMessages_ReturnsPromptlyAfterLimitReached reproduces
// the common case of a limit reached with data still pending: stream "a"
// is rigged so GetMessageBatches never reports it exhausted (a second,
// higher-sequence batch entry keeps maxSeq ahead of the cursor forever),
// so its extractor keeps re-fetching and emitting EmptyTicks on every
// heartbeat long after the consume loop stops draining merged. If gCtx is
// never cancelled on the break-consume path, that goroutine (and the
// merger blocked reading from it) never exit and g.Wait() never returns.
func TestService_SearchMessages_ReturnsPromptlyAfterLimitReached(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()
	stream := storemodel.StreamKey{Name: "a", Direction: storemodel.StreamFirst}

	messages := make([]storemodel.Message, 0, 5)
	for i := int64(1); i <= 5; i++ {
		messages = append(messages, storemodel.Message{
			Id:      storemodel.MessageId{Stream: stream, Sequence: i, Timestamp: t0.Add(time.Duration(i) * time.Second)},
			Payload: []byte("m"),
		})
	}
	phantom := storemodel.MessageBatch{Stream: stream, Messages: []storemodel.Message{
		{Id: storemodel.MessageId{Stream: stream, Sequence: 100, Timestamp: t0.Add(time.Hour)}},
	}}

	gw := &fakeGateway{
		batches: map[string][]storemodel.MessageBatch{
			"a": {{Stream: stream, Messages: messages}, phantom},
		},
		firstIds: map[string]*storemodel.MessageId{
			"a": {Stream: stream, Sequence: 0, Timestamp: t0.Add(-time.Hour)},
		},
	}

	log := logger.NopLogger()
	initializer := messagestream.NewInitializer(gw, log)

	var broker *codec.Broker
	broker = codec.NewBroker(&echoTransport{broker: &broker}, codec.Config{ResponseTimeout: time.Second, MaxPendingRequests: 10}, log)
	pipeline := codec.NewPipeline(broker)

	cfg := testConfig()
	cfg.SendEmptyDelayMs = 5
	cfg.MessageSearchPipelineBuffer = 1
	cfg.MessageFlowCapacity = 1

	svc := NewService(gw, nil, initializer, pipeline, cfg, nil, log)

	limit := 1
	req := storemodel.SearchRequest{
		Direction:      storemodel.DirectionAfter,
		StartTimestamp: &t0,
		Streams:        []storemodel.StreamKey{stream},
		Limit:          &limit,
	}

	rec := httptest.NewRecorder()
	writer := sse.NewWriter(rec, time.Hour, log)

	done := make(chan error, 1)
	go func() {
		done <- svc.SearchMessages(context.Background(), req, writer)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SearchMessages did not return after the result limit was reached; the errgroup context was likely never cancelled, leaving the extractor/merger goroutines blocked on a full channel")
	}

	frames := sseDataFrames(rec.Body.String(), sse.FrameMessage)
	require.Len(t, frames, 1)
}

func TestService_EventElement_ResolvesAttachedMessageIdsWhenFilterPresent(t *testing.T) {
	evId := storemodel.EventId("e1")
	msgId := storemodel.MessageId{Stream: storemodel.StreamKey{Name: "a", Direction: storemodel.StreamFirst}, Sequence: 3}
	gw := &fakeGateway{
		messageIdsByEvent: map[storemodel.EventId][]storemodel.MessageId{
			evId: {msgId},
		},
	}
	svc := NewService(gw, nil, nil, nil, testConfig(), nil, logger.NopLogger())
	pipeline := filter.NewPipeline([]filter.Filter{{Kind: filter.KindAttachedMessageId, Values: []string{msgId.String()}}})

	el, err := svc.eventElement(context.Background(), pipeline, storemodel.SingleEvent{Id: evId})
	require.NoError(t, err)
	require.Equal(t, 1, gw.getMessageIdsCalls)

	ids, ok := el.AttachedMessageIds()
	require.True(t, ok)
	require.Equal(t, []string{msgId.String()}, ids)
}

func TestService_EventElement_SkipsStoreLookupWhenFilterAbsent(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewService(gw, nil, nil, nil, testConfig(), nil, logger.NopLogger())
	pipeline := filter.NewPipeline([]filter.Filter{{Kind: filter.KindEventText, Values: []string{"x"}}})

	el, err := svc.eventElement(context.Background(), pipeline, storemodel.SingleEvent{Id: "e1"})
	require.NoError(t, err)
	require.Equal(t, 0, gw.getMessageIdsCalls)

	_, ok := el.AttachedMessageIds()
	require.False(t, ok)
}

func TestService_MessageElement_ResolvesAttachedEventIdsAndParentWhenFiltersPresent(t *testing.T) {
	msgId := storemodel.MessageId{Stream: storemodel.StreamKey{Name: "a", Direction: storemodel.StreamFirst}, Sequence: 1}
	parentId := storemodel.EventId("parent1")
	childId := storemodel.EventId("child1")
	gw := &fakeGateway{
		eventIdsByMessage: map[string][]storemodel.EventId{
			msgId.String(): {childId},
		},
		eventsById: map[storemodel.EventId]storemodel.SingleEvent{
			childId: {Id: childId, ParentId: parentId},
		},
	}
	svc := NewService(gw, nil, nil, nil, testConfig(), nil, logger.NopLogger())
	pipeline := filter.NewPipeline([]filter.Filter{
		{Kind: filter.KindAttachedEventId, Values: []string{string(childId)}},
		{Kind: filter.KindParentEvent, Values: []string{string(parentId)}},
	})

	el, err := svc.messageElement(context.Background(), pipeline, storemodel.Message{Id: msgId})
	require.NoError(t, err)
	require.Equal(t, 1, gw.getEventIdsCalls)

	ids, ok := el.AttachedEventIds()
	require.True(t, ok)
	require.Equal(t, []string{string(childId)}, ids)

	parent, ok := el.ParentEventId()
	require.True(t, ok)
	require.Equal(t, string(parentId), parent)
}

func TestService_MessageElement_SkipsStoreLookupWhenFiltersAbsent(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewService(gw, nil, nil, nil, testConfig(), nil, logger.NopLogger())
	pipeline := filter.NewPipeline([]filter.Filter{{Kind: filter.KindMessageType, Values: []string{"x"}}})

	msgId := storemodel.MessageId{Stream: storemodel.StreamKey{Name: "a", Direction: storemodel.StreamFirst}, Sequence: 1}
	el, err := svc.messageElement(context.Background(), pipeline, storemodel.Message{Id: msgId})
	require.NoError(t, err)
	require.Equal(t, 0, gw.getEventIdsCalls)

	_, ok := el.AttachedEventIds()
	require.False(t, ok)
}
