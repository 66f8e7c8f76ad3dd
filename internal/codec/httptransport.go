package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tsgate/internal/logger"
	"tsgate/internal/storemodel"
	"tsgate/pkg/circuitbreaker"
)

// HTTPTransport is the concrete, swappable wire adapter for the codec
// transport boundary spec.md leaves undefined beyond "duplex: send
// RawBatch; receive DecodedBatch". It dispatches one CodecRequest per
// JSON POST to the configured decoder address and, on reply, hands the
// response to the Broker that is waiting on it — matching the "transport
// dispatches, broker correlates by requestId" split Transport/HandleResponse
// already encode. No ecosystem client fits this exact duplex shape in the
// retrieved examples, so this adapter is built directly on net/http and
// encoding/json rather than importing one to force a fit; it carries no
// business logic of its own, consistent with this being an out-of-scope
// external collaborator.
type HTTPTransport struct {
	address string
	client  *http.Client
	broker  *Broker
	breaker *circuitbreaker.Wrapper
	log     logger.Logger
}

func NewHTTPTransport(address string, timeout time.Duration, broker *Broker, log logger.Logger) *HTTPTransport {
	return &HTTPTransport{
		address: address,
		client:  &http.Client{Timeout: timeout},
		broker:  broker,
		breaker: circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("codec-transport")),
		log:     log,
	}
}

// SetBroker wires the broker after construction, breaking the
// Broker-needs-Transport/Transport-needs-Broker construction cycle:
// callers build the transport with a nil broker, construct the broker
// around it, then call SetBroker before the transport ever sees traffic.
func (t *HTTPTransport) SetBroker(broker *Broker) {
	t.broker = broker
}

type wireCodecRequest struct {
	RequestId  string               `json:"requestId"`
	StreamName string               `json:"streamName"`
	Messages   []wireMessage        `json:"messages"`
}

type wireMessage struct {
	SequenceId  int64  `json:"sequenceId"`
	Payload     []byte `json:"payload"`
}

type wireCodecResponse struct {
	RequestId string                 `json:"requestId"`
	Messages  []wireDecodedMessage   `json:"messages"`
}

type wireDecodedMessage struct {
	SequenceId  int64  `json:"sequenceId"`
	DecodedType string `json:"decodedType"`
	DecodedBody []byte `json:"decodedBody"`
}

// Send dispatches req and, asynchronously, resolves it through the
// broker once the decoder replies. A failed HTTP round trip is only
// logged; the broker's response deadline then resolves the pending slot
// to nil. The broker's own per-request deadline is what actually bounds how long
// a caller waits; a slow or hung HTTP response beyond that is simply
// irrelevant by the time it arrives.
func (t *HTTPTransport) Send(ctx context.Context, req CodecRequest) error {
	wire := wireCodecRequest{
		RequestId:  req.RequestId,
		StreamName: req.StreamName,
		Messages:   make([]wireMessage, len(req.Messages)),
	}
	for i, m := range req.Messages {
		wire.Messages[i] = wireMessage{SequenceId: m.Id.Sequence, Payload: m.Payload}
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("failed to marshal codec request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.address+"/decode", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build codec request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	go t.roundTrip(req, httpReq)
	return nil
}

// roundTrip executes the HTTP call and decoder-response parsing behind the
// breaker, so a decoder that is down or erroring past DefaultConfig's
// failure ratio trips open and fails fast instead of piling up one
// in-flight request per stream against a dead endpoint, the same
// protection store.Resilient gives the store gateway.
func (t *HTTPTransport) roundTrip(req CodecRequest, httpReq *http.Request) {
	ctx := httpReq.Context()

	wire, err := t.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		resp, err := t.client.Do(httpReq)
		if err != nil {
			return wireCodecResponse{}, err
		}
		defer resp.Body.Close()

		var w wireCodecResponse
		if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
			return wireCodecResponse{}, err
		}
		return w, nil
	})
	if err != nil {
		t.log.WarnwCtx(ctx, "codec decode request failed", "error", err, "requestId", req.RequestId)
		return
	}

	t.broker.HandleResponse(ctx, t.toCodecResponse(req, wire.(wireCodecResponse)))
}

// toCodecResponse re-attaches each decoded message to the original
// request message's full MessageId (stream, sequence, timestamp) by
// sequence number, since the wire response only carries back what the
// decoder produced, not the identifiers it received.
func (t *HTTPTransport) toCodecResponse(req CodecRequest, wire wireCodecResponse) CodecResponse {
	bySequence := make(map[int64]wireDecodedMessage, len(wire.Messages))
	for _, m := range wire.Messages {
		bySequence[m.SequenceId] = m
	}

	messages := make([]storemodel.Message, 0, len(req.Messages))
	for _, orig := range req.Messages {
		decoded, ok := bySequence[orig.Id.Sequence]
		if !ok {
			continue
		}
		messages = append(messages, storemodel.Message{
			Id:          orig.Id,
			Payload:     orig.Payload,
			DecodedType: decoded.DecodedType,
			DecodedBody: decoded.DecodedBody,
		})
	}

	return CodecResponse{RequestId: req.RequestId, Messages: messages}
}
