package eventsearch

import (
	"context"
	"time"

	"tsgate/internal/interval"
	"tsgate/internal/logger"
	"tsgate/internal/store"
	"tsgate/internal/storemodel"
	apperrors "tsgate/pkg/errors"
	"tsgate/pkg/metrics"
)

// Predicate is the FilterPipeline's boolean verdict for one event, kept as
// a plain function type here so eventsearch never imports internal/filter
// directly (filter, in turn, has no need to import eventsearch).
type Predicate func(ctx context.Context, e storemodel.SingleEvent) (bool, error)

type Config struct {
	EventSearchGap            time.Duration
	EventSearchPipelineBuffer int
	DefaultLimitForParent     int
	DefaultResultCountLimit   int
}

// Engine is the EventSearchEngine of spec.md section 4.2.
type Engine struct {
	gateway store.StoreGateway
	cfg     Config
	log     logger.Logger
}

func NewEngine(gateway store.StoreGateway, cfg Config, log logger.Logger) *Engine {
	return &Engine{gateway: gateway, cfg: cfg, log: log}
}

// Result is one item of the engine's output channel. Err, when set, is
// terminal: the channel is closed immediately after.
type Result struct {
	Event storemodel.SingleEvent
	Err   error
}

// Search runs the full event-search pipeline and streams results on the
// returned channel, closing it on completion, cancellation, or error.
func (e *Engine) Search(ctx context.Context, req storemodel.SearchRequest, filter Predicate) (<-chan Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	out := make(chan Result, e.cfg.EventSearchPipelineBuffer)

	limitForParent := e.cfg.DefaultLimitForParent
	if req.LimitForParent != nil {
		limitForParent = *req.LimitForParent
	}
	resultLimit := e.cfg.DefaultResultCountLimit
	if req.Limit != nil {
		resultLimit = *req.Limit
	}

	go func() {
		defer close(out)

		if req.ParentEvent.IsBatched() {
			e.runSingleShotBatch(ctx, req, filter, limitForParent, resultLimit, out)
			return
		}

		e.runIntervalScan(ctx, req, filter, limitForParent, resultLimit, out)
	}()

	return out, nil
}

func (e *Engine) runSingleShotBatch(ctx context.Context, req storemodel.SearchRequest, filter Predicate, limitForParent, resultLimit int, out chan<- Result) {
	batch, found, err := e.gateway.GetEventBatch(ctx, req.ParentEvent.BatchId)
	if err != nil {
		out <- Result{Err: err}
		return
	}
	if !found {
		return
	}

	wrapper := storemodel.WrapBatch(batch)
	events := orderedExpand(wrapper, req.ParentEvent.EventId, req.Direction)

	counter := NewParentEventCounter()
	emitted := 0
	for _, ev := range events {
		if resultLimit > 0 && emitted >= resultLimit {
			return
		}
		ok, err := e.admitAndFilter(ctx, ev, filter, counter, limitForParent)
		if err != nil {
			out <- Result{Err: err}
			return
		}
		if !ok {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case out <- Result{Event: ev}:
			emitted++
		}
	}
}

func (e *Engine) runIntervalScan(ctx context.Context, req storemodel.SearchRequest, filter Predicate, limitForParent, resultLimit int, out chan<- Result) {
	t0, err := e.resolveStart(ctx, req)
	if err != nil {
		out <- Result{Err: err}
		return
	}

	gen := interval.New(req.Direction, t0, req.EndTimestamp, req.ResumeFromId, e.cfg.EventSearchGap)
	counter := NewParentEventCounter()
	trimmer := newResumeTrimmer(req.ResumeFromId, req.Direction, derefTime(req.StartTimestamp))

	emitted := 0
	firstInterval := true

	for {
		win, ok := gen.Next()
		if !ok {
			return
		}

		wrappers, err := e.fetchInterval(ctx, req, win, firstInterval)
		if err != nil {
			out <- Result{Err: err}
			return
		}
		metrics.IncEventSearchBatch("ok")

		for _, w := range wrappers {
			for _, ev := range orderedExpand(w, "", req.Direction) {
				if firstInterval && trimmer.active() {
					held, flush := trimmer.observe(ev)
					for _, h := range held {
						if resultLimit > 0 && emitted >= resultLimit {
							return
						}
						if !e.emitIfAdmitted(ctx, h, filter, counter, limitForParent, out, &emitted) {
							return
						}
					}
					if !flush {
						continue
					}
				}

				if resultLimit > 0 && emitted >= resultLimit {
					return
				}
				if !e.emitIfAdmitted(ctx, ev, filter, counter, limitForParent, out, &emitted) {
					return
				}
			}
		}

		firstInterval = false
	}
}

func (e *Engine) emitIfAdmitted(ctx context.Context, ev storemodel.SingleEvent, filter Predicate, counter *ParentEventCounter, limitForParent int, out chan<- Result, emitted *int) bool {
	ok, err := e.admitAndFilter(ctx, ev, filter, counter, limitForParent)
	if err != nil {
		out <- Result{Err: err}
		return false
	}
	if !ok {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case out <- Result{Event: ev}:
		*emitted++
	}
	return true
}

func (e *Engine) admitAndFilter(ctx context.Context, ev storemodel.SingleEvent, filter Predicate, counter *ParentEventCounter, limitForParent int) (bool, error) {
	if filter != nil {
		passed, err := filter(ctx, ev)
		if err != nil {
			return false, err
		}
		if !passed {
			return false, nil
		}
	}
	if !counter.Admit(ev.ParentId, ev.Id, limitForParent) {
		return false, nil
	}
	return true, nil
}

func (e *Engine) fetchInterval(ctx context.Context, req storemodel.SearchRequest, win interval.SearchInterval, first bool) ([]storemodel.EventWrapper, error) {
	from, to := win.From, win.To
	if win.HasStartWithGap {
		// The overlap lies just ahead of the window in scan order: below
		// From for AFTER, above To for BEFORE.
		if req.Direction == storemodel.DirectionBefore {
			to = win.StartWithGap
		} else {
			from = win.StartWithGap
		}
	}

	if first && win.ResumeId != "" {
		resumeId := storemodel.ProviderEventId{EventId: storemodel.EventId(win.ResumeId)}
		if req.Direction == storemodel.DirectionAfter {
			return e.gateway.GetEventsFromResume(ctx, resumeId, to, req.Direction)
		}
		return e.gateway.GetEventsToResume(ctx, from, resumeId, req.Direction)
	}
	return e.gateway.GetEvents(ctx, from, to, req.Direction)
}

func (e *Engine) resolveStart(ctx context.Context, req storemodel.SearchRequest) (time.Time, error) {
	if req.ResumeFromId != "" {
		resumeId := storemodel.ProviderEventId{EventId: storemodel.EventId(req.ResumeFromId)}
		w, found, err := e.gateway.GetEvent(ctx, resumeId)
		if err != nil {
			return time.Time{}, err
		}
		if !found {
			return time.Time{}, apperrors.ErrInvalidRequest.WithDetail("message", "resume event not found")
		}
		if req.Direction == storemodel.DirectionAfter {
			return w.Timestamp(req.Direction), nil
		}
		return w.Timestamp(req.Direction), nil
	}
	if req.StartTimestamp != nil {
		return *req.StartTimestamp, nil
	}
	return time.Time{}, apperrors.ErrInvalidRequest.WithDetail("message", "startTimestamp or resumeFromId required")
}

func orderedExpand(w storemodel.EventWrapper, parentFilter storemodel.EventId, dir storemodel.Direction) []storemodel.SingleEvent {
	events := w.Expand(parentFilter)
	if dir == storemodel.DirectionBefore {
		reversed := make([]storemodel.SingleEvent, len(events))
		for i, e := range events {
			reversed[len(events)-1-i] = e
		}
		return reversed
	}
	return events
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
