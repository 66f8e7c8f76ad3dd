package store

import (
	"context"
	"time"

	"tsgate/internal/storemodel"
	"tsgate/pkg/circuitbreaker"
	apperrors "tsgate/pkg/errors"
	"tsgate/pkg/retry"
)

type sseModeKey struct{}

// WithSSEMode marks ctx as belonging to a streaming (SSE) search. Retries
// only apply in this mode, per spec.md section 7: bounded result-list
// searches fail fast instead.
func WithSSEMode(ctx context.Context) context.Context {
	return context.WithValue(ctx, sseModeKey{}, true)
}

func isSSEMode(ctx context.Context) bool {
	v, _ := ctx.Value(sseModeKey{}).(bool)
	return v
}

// RetryConfig configures the fixed-delay, bounded-attempt retry policy
// applied to StoreTransient failures in SSE mode.
type RetryConfig struct {
	Delay       time.Duration
	MaxAttempts int
}

// Resilient wraps a StoreGateway with the retry and circuit-breaker
// policies from spec.md sections 4.1/5/7.
type Resilient struct {
	inner   StoreGateway
	retryCfg RetryConfig
	breaker *circuitbreaker.Wrapper
}

func NewResilient(inner StoreGateway, retryCfg RetryConfig) *Resilient {
	return &Resilient{
		inner:   inner,
		retryCfg: retryCfg,
		breaker: circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("store-gateway")),
	}
}

func (r *Resilient) call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if !isSSEMode(ctx) {
		return r.breaker.ExecuteWithContext(ctx, fn)
	}

	policy := retry.Policy{
		MaxAttempts:     r.retryCfg.MaxAttempts,
		InitialInterval: r.retryCfg.Delay,
		MaxInterval:     r.retryCfg.Delay,
		Multiplier:      1.0,
	}

	var result interface{}
	err := retry.Retry(ctx, policy, func() error {
		v, err := r.breaker.ExecuteWithContext(ctx, fn)
		if err != nil {
			if apperrors.Kind(err) == apperrors.ErrStoreTransient.Code {
				return retry.NewRetryableError(err)
			}
			return retry.NewFatalError(err)
		}
		result = v
		return nil
	})
	return result, err
}

func (r *Resilient) GetEvents(ctx context.Context, start, end time.Time, dir storemodel.Direction) ([]storemodel.EventWrapper, error) {
	v, err := r.call(ctx, func() (interface{}, error) { return r.inner.GetEvents(ctx, start, end, dir) })
	if err != nil {
		return nil, err
	}
	return v.([]storemodel.EventWrapper), nil
}

func (r *Resilient) GetEventsFromResume(ctx context.Context, resumeId storemodel.ProviderEventId, end time.Time, dir storemodel.Direction) ([]storemodel.EventWrapper, error) {
	v, err := r.call(ctx, func() (interface{}, error) { return r.inner.GetEventsFromResume(ctx, resumeId, end, dir) })
	if err != nil {
		return nil, err
	}
	return v.([]storemodel.EventWrapper), nil
}

func (r *Resilient) GetEventsToResume(ctx context.Context, start time.Time, resumeId storemodel.ProviderEventId, dir storemodel.Direction) ([]storemodel.EventWrapper, error) {
	v, err := r.call(ctx, func() (interface{}, error) { return r.inner.GetEventsToResume(ctx, start, resumeId, dir) })
	if err != nil {
		return nil, err
	}
	return v.([]storemodel.EventWrapper), nil
}

func (r *Resilient) GetEvent(ctx context.Context, id storemodel.ProviderEventId) (storemodel.EventWrapper, bool, error) {
	type pair struct {
		w     storemodel.EventWrapper
		found bool
	}
	v, err := r.call(ctx, func() (interface{}, error) {
		w, found, err := r.inner.GetEvent(ctx, id)
		return pair{w, found}, err
	})
	if err != nil {
		return storemodel.EventWrapper{}, false, err
	}
	p := v.(pair)
	return p.w, p.found, nil
}

func (r *Resilient) GetEventBatch(ctx context.Context, batchId string) (storemodel.BatchEvent, bool, error) {
	type pair struct {
		b     storemodel.BatchEvent
		found bool
	}
	v, err := r.call(ctx, func() (interface{}, error) {
		b, found, err := r.inner.GetEventBatch(ctx, batchId)
		return pair{b, found}, err
	})
	if err != nil {
		return storemodel.BatchEvent{}, false, err
	}
	p := v.(pair)
	return p.b, p.found, nil
}

func (r *Resilient) GetEventFromBatch(ctx context.Context, batchId string, eventId storemodel.EventId) (storemodel.SingleEvent, bool, error) {
	type pair struct {
		e     storemodel.SingleEvent
		found bool
	}
	v, err := r.call(ctx, func() (interface{}, error) {
		e, found, err := r.inner.GetEventFromBatch(ctx, batchId, eventId)
		return pair{e, found}, err
	})
	if err != nil {
		return storemodel.SingleEvent{}, false, err
	}
	p := v.(pair)
	return p.e, p.found, nil
}

func (r *Resilient) GetMessageBatches(ctx context.Context, stream storemodel.StreamKey, dir storemodel.Direction, from *storemodel.MessageId, bound *time.Time) ([]storemodel.MessageBatch, error) {
	v, err := r.call(ctx, func() (interface{}, error) { return r.inner.GetMessageBatches(ctx, stream, dir, from, bound) })
	if err != nil {
		return nil, err
	}
	return v.([]storemodel.MessageBatch), nil
}

func (r *Resilient) GetMessage(ctx context.Context, id storemodel.MessageId) (storemodel.Message, bool, error) {
	type pair struct {
		m     storemodel.Message
		found bool
	}
	v, err := r.call(ctx, func() (interface{}, error) {
		m, found, err := r.inner.GetMessage(ctx, id)
		return pair{m, found}, err
	})
	if err != nil {
		return storemodel.Message{}, false, err
	}
	p := v.(pair)
	return p.m, p.found, nil
}

func (r *Resilient) GetFirstMessageId(ctx context.Context, ts time.Time, stream storemodel.StreamKey, dir storemodel.Direction, relation FirstMessageRelation) (*storemodel.MessageId, error) {
	v, err := r.call(ctx, func() (interface{}, error) { return r.inner.GetFirstMessageId(ctx, ts, stream, dir, relation) })
	if err != nil {
		return nil, err
	}
	return v.(*storemodel.MessageId), nil
}

func (r *Resilient) GetFirstMessageSequence(ctx context.Context, stream storemodel.StreamKey, dir storemodel.Direction) (int64, error) {
	v, err := r.call(ctx, func() (interface{}, error) { return r.inner.GetFirstMessageSequence(ctx, stream, dir) })
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (r *Resilient) GetEventIds(ctx context.Context, id storemodel.MessageId) ([]storemodel.EventId, error) {
	v, err := r.call(ctx, func() (interface{}, error) { return r.inner.GetEventIds(ctx, id) })
	if err != nil {
		return nil, err
	}
	return v.([]storemodel.EventId), nil
}

func (r *Resilient) GetMessageIds(ctx context.Context, id storemodel.EventId) ([]storemodel.MessageId, error) {
	v, err := r.call(ctx, func() (interface{}, error) { return r.inner.GetMessageIds(ctx, id) })
	if err != nil {
		return nil, err
	}
	return v.([]storemodel.MessageId), nil
}
