package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsgate/internal/logger"
	"tsgate/internal/search"
)

type fakeProducer struct {
	mu       sync.Mutex
	topic    string
	key      string
	payload  interface{}
	err      error
	publishedCh chan struct{}
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{publishedCh: make(chan struct{}, 1)}
}

func (f *fakeProducer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	f.mu.Lock()
	f.topic, f.key, f.payload = topic, key, payload
	f.mu.Unlock()
	f.publishedCh <- struct{}{}
	return f.err
}

func (f *fakeProducer) Close() error { return nil }

func (f *fakeProducer) awaitPublish(t *testing.T) {
	t.Helper()
	select {
	case <-f.publishedCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for publish")
	}
}

func TestRecorder_Record_PublishesEvent(t *testing.T) {
	producer := newFakeProducer()
	rec := NewRecorder(producer, "search-audit", logger.NopLogger())

	rec.Record(context.Background(), search.AuditRecord{
		SearchId:     "s-1",
		Direction:    "forward",
		StreamCount:  2,
		EmittedCount: 5,
		DurationMs:   42,
	})

	producer.awaitPublish(t)

	producer.mu.Lock()
	defer producer.mu.Unlock()
	assert.Equal(t, "search-audit", producer.topic)
	assert.Equal(t, "s-1", producer.key)

	event, ok := producer.payload.(SearchCompletionEvent)
	require.True(t, ok)
	assert.Equal(t, "forward", event.Direction)
	assert.Equal(t, 2, event.StreamCount)
	assert.Equal(t, 5, event.EmittedCount)
	assert.Equal(t, int64(42), event.DurationMs)
}

func TestRecorder_Record_NoTopicIsNoop(t *testing.T) {
	producer := newFakeProducer()
	rec := NewRecorder(producer, "", logger.NopLogger())

	rec.Record(context.Background(), search.AuditRecord{SearchId: "s-2"})

	select {
	case <-producer.publishedCh:
		t.Fatal("expected no publish when topic is empty")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRecorder_Record_PublishErrorIsSwallowed(t *testing.T) {
	producer := newFakeProducer()
	producer.err = assert.AnError
	rec := NewRecorder(producer, "search-audit", logger.NopLogger())

	assert.NotPanics(t, func() {
		rec.Record(context.Background(), search.AuditRecord{SearchId: "s-3"})
		producer.awaitPublish(t)
	})
}
