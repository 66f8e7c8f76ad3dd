package audit

import (
	"context"
	"time"

	"tsgate/internal/broker"
	"tsgate/internal/logger"
	"tsgate/internal/search"
)

const publishTimeout = 5 * time.Second

// Recorder is the search.AuditRecorder of SPEC_FULL.md section 3.2: a
// fire-and-forget publisher of search-completion telemetry. Record never
// blocks its caller and never propagates a publish failure — it only logs
// one, the same "best effort, not a domain write" contract the teacher's
// ConfigEventProducer gives its config-change notifications.
type Recorder struct {
	producer broker.Producer
	topic    string
	log      logger.Logger
}

func NewRecorder(producer broker.Producer, topic string, log logger.Logger) *Recorder {
	return &Recorder{producer: producer, topic: topic, log: log}
}

func (r *Recorder) Record(ctx context.Context, rec search.AuditRecord) {
	if r.producer == nil || r.topic == "" {
		return
	}

	event := SearchCompletionEvent{
		SearchId:          rec.SearchId,
		Direction:         rec.Direction,
		StreamCount:       rec.StreamCount,
		EmittedCount:      rec.EmittedCount,
		ResumeFromId:      rec.ResumeFromId,
		DurationMs:        rec.DurationMs,
		TerminalErrorKind: rec.TerminalErrorKind,
		Timestamp:         time.Now(),
	}

	go r.publish(event)
}

func (r *Recorder) publish(event SearchCompletionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := r.producer.Publish(ctx, r.topic, event.SearchId, event); err != nil {
		r.log.Errorw("failed to publish search audit event", "error", err, "searchId", event.SearchId)
	}
}
