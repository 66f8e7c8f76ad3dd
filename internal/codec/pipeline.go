package codec

import (
	"context"

	"github.com/google/uuid"

	"tsgate/internal/storemodel"
)

// Pipeline is the Converter/Decoder/Unpacker trio of spec.md section 4.7:
// it wraps a RawBatch into a codec request, awaits the broker's response,
// and unpacks it back into a DecodedBatch, preserving batch framing and
// per-stream ordering.
type Pipeline struct {
	broker *Broker
}

func NewPipeline(broker *Broker) *Pipeline {
	return &Pipeline{broker: broker}
}

// Process converts, dispatches, and unpacks one RawBatch. A failed or
// timed-out round-trip yields DecodedBatch{Failed: true} rather than an
// error, so the caller can surface it per-record (spec.md section 7)
// instead of terminating the whole search.
func (p *Pipeline) Process(ctx context.Context, raw storemodel.RawBatch, streamName string) (storemodel.DecodedBatch, error) {
	req := CodecRequest{
		RequestId:  uuid.NewString(),
		StreamName: streamName,
		Messages:   raw.Batch.Messages,
	}

	respCh, err := p.broker.Send(ctx, req)
	if err != nil {
		return storemodel.DecodedBatch{ItemMeta: raw.ItemMeta, Failed: true}, err
	}

	select {
	case <-ctx.Done():
		return storemodel.DecodedBatch{}, ctx.Err()
	case resp := <-respCh:
		if resp == nil {
			return storemodel.DecodedBatch{ItemMeta: raw.ItemMeta, Decoded: raw.Batch, Failed: true}, nil
		}
		return storemodel.DecodedBatch{ItemMeta: raw.ItemMeta, Decoded: unpack(raw.Batch, *resp)}, nil
	}
}

// unpack merges a codec response's decoded fields back onto the original
// batch's messages, matched by sequence, so fields the decoder never saw
// (the raw Payload) survive alongside the newly decoded content.
func unpack(original storemodel.MessageBatch, resp CodecResponse) storemodel.MessageBatch {
	decodedBySeq := make(map[int64]storemodel.Message, len(resp.Messages))
	for _, m := range resp.Messages {
		decodedBySeq[m.Id.Sequence] = m
	}

	merged := make([]storemodel.Message, len(original.Messages))
	for i, m := range original.Messages {
		merged[i] = m
		if decoded, ok := decodedBySeq[m.Id.Sequence]; ok {
			merged[i].DecodedType = decoded.DecodedType
			merged[i].DecodedBody = decoded.DecodedBody
		}
	}

	return storemodel.MessageBatch{Stream: original.Stream, Messages: merged}
}
