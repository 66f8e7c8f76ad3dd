package codec

import (
	"context"
	"sync"
	"time"

	"tsgate/internal/logger"
	"tsgate/internal/storemodel"
	apperrors "tsgate/pkg/errors"
	"tsgate/pkg/metrics"
)

// CodecRequest is one raw batch dispatched to the external decoder.
type CodecRequest struct {
	RequestId  string
	StreamName string
	Messages   []storemodel.Message
}

// CodecResponse is the decoder's reply, correlated by RequestId.
type CodecResponse struct {
	RequestId string
	Messages  []storemodel.Message
}

// Transport is the duplex codec wire contract (spec.md section 6). Send
// dispatches a request; a dispatch error is treated as an immediate
// dispatch-failure for that request. Responses arrive later via the
// broker's HandleResponse, called by whatever reads the transport's
// receive side.
type Transport interface {
	Send(ctx context.Context, req CodecRequest) error
}

type pendingRequest struct {
	done       chan *CodecResponse
	startTime  time.Time
	streamName string
	timer      *time.Timer
}

type Config struct {
	MaxPendingRequests    int
	ResponseTimeout       time.Duration
	RequestThreadPoolSize int
	CallbackThreadPoolSize int
	AdmissionPollInterval time.Duration
}

// Broker is the CodecBroker of spec.md section 4.5: bounded concurrent RPC
// with at-most-one pending slot per requestId, admission control, and
// per-request deadlines.
type Broker struct {
	transport Transport
	cfg       Config
	log       logger.Logger

	mu      sync.Mutex
	pending map[string]*pendingRequest

	senderSem   chan struct{}
	callbackSem chan struct{}
}

func NewBroker(transport Transport, cfg Config, log logger.Logger) *Broker {
	if cfg.AdmissionPollInterval == 0 {
		cfg.AdmissionPollInterval = 100 * time.Millisecond
	}
	senderSize := cfg.RequestThreadPoolSize
	if senderSize <= 0 {
		senderSize = 1
	}
	callbackSize := cfg.CallbackThreadPoolSize
	if callbackSize <= 0 {
		callbackSize = 1
	}
	return &Broker{
		transport:   transport,
		cfg:         cfg,
		log:         log,
		pending:     make(map[string]*pendingRequest),
		senderSem:   make(chan struct{}, senderSize),
		callbackSem: make(chan struct{}, callbackSize),
	}
}

func (b *Broker) pendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Send admits, registers, and dispatches req, returning a channel that
// receives exactly one value: the decoded response, or nil on timeout or
// dispatch failure.
func (b *Broker) Send(ctx context.Context, req CodecRequest) (<-chan *CodecResponse, error) {
	if err := b.awaitAdmission(ctx); err != nil {
		return nil, err
	}

	slot := &pendingRequest{
		done:       make(chan *CodecResponse, 1),
		startTime:  time.Now(),
		streamName: req.StreamName,
	}

	b.mu.Lock()
	b.pending[req.RequestId] = slot
	b.mu.Unlock()
	metrics.CodecPendingRequests.Inc()
	metrics.IncCodecRequest("sent")

	b.armDeadline(req.RequestId, slot)

	select {
	case b.senderSem <- struct{}{}:
	case <-ctx.Done():
		b.resolve(req.RequestId, slot, nil)
		return nil, ctx.Err()
	}

	go func() {
		defer func() { <-b.senderSem }()
		if err := b.transport.Send(ctx, req); err != nil {
			b.log.WarnwCtx(ctx, "codec dispatch failed", "request_id", req.RequestId, "error", err)
			metrics.IncCodecRequest("dispatch_failed")
			b.resolve(req.RequestId, slot, nil)
		}
	}()

	return slot.done, nil
}

func (b *Broker) awaitAdmission(ctx context.Context) error {
	if b.cfg.MaxPendingRequests <= 0 {
		return nil
	}
	ticker := time.NewTicker(b.cfg.AdmissionPollInterval)
	defer ticker.Stop()

	for b.pendingCount() > b.cfg.MaxPendingRequests {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (b *Broker) armDeadline(requestId string, slot *pendingRequest) {
	timer := time.AfterFunc(b.cfg.ResponseTimeout, func() {
		b.mu.Lock()
		current, ok := b.pending[requestId]
		// Identity check: a stale timer must not close a slot that was
		// already resolved and reused for a different request.
		if !ok || current != slot {
			b.mu.Unlock()
			return
		}
		delete(b.pending, requestId)
		b.mu.Unlock()

		b.log.WarnwCtx(context.Background(), "codec response timed out", "request_id", requestId, "stream", slot.streamName)
		metrics.IncCodecTimeout("response_timeout")
		metrics.CodecPendingRequests.Dec()
		select {
		case slot.done <- nil:
		default:
		}
	})
	slot.timer = timer
}

// resolve removes requestId's slot if it still belongs to slot and
// delivers value (nil on failure). No-op if the slot was already resolved
// (by deadline or a prior callback).
func (b *Broker) resolve(requestId string, slot *pendingRequest, value *CodecResponse) {
	b.mu.Lock()
	current, ok := b.pending[requestId]
	if !ok || current != slot {
		b.mu.Unlock()
		return
	}
	delete(b.pending, requestId)
	b.mu.Unlock()

	if slot.timer != nil {
		slot.timer.Stop()
	}
	metrics.CodecPendingRequests.Dec()

	status := "failed"
	if value != nil {
		status = "ok"
		metrics.ObserveCodecResponseDuration(status, time.Since(slot.startTime))
	}
	metrics.IncCodecRequest(status)

	select {
	case slot.done <- value:
	default:
	}
}

// HandleResponse is invoked by the transport's receive loop for every
// decoded response; it resolves the matching pending request if one still
// exists.
func (b *Broker) HandleResponse(ctx context.Context, resp CodecResponse) {
	select {
	case b.callbackSem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-b.callbackSem }()

	b.mu.Lock()
	slot, ok := b.pending[resp.RequestId]
	b.mu.Unlock()
	if !ok {
		return
	}
	b.resolve(resp.RequestId, slot, &resp)
}

// ErrDispatch is this package's name for apperrors.ErrCodecDispatchFailed.
// No code in the module returns it.
var ErrDispatch = apperrors.ErrCodecDispatchFailed
