package storemodel

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Direction string

const (
	DirectionAfter  Direction = "AFTER"
	DirectionBefore Direction = "BEFORE"
)

func (d Direction) Valid() bool {
	return d == DirectionAfter || d == DirectionBefore
}

type StreamSubDirection string

const (
	StreamFirst  StreamSubDirection = "FIRST"
	StreamSecond StreamSubDirection = "SECOND"
)

// StreamKey identifies a logical conversation: a name plus which side of it.
type StreamKey struct {
	Name      string
	Direction StreamSubDirection
}

func (k StreamKey) String() string {
	return fmt.Sprintf("%s:%s", k.Name, k.Direction)
}

// MessageId is monotonic per StreamKey: Sequence increases strictly within
// a stream, Timestamp is non-decreasing.
type MessageId struct {
	Stream    StreamKey
	Sequence  int64
	Timestamp time.Time
}

func (id MessageId) String() string {
	return fmt.Sprintf("%s/%d", id.Stream, id.Sequence)
}

// ResumeToken encodes a MessageId as a message-search resumeFromId: the
// wire format spec.md leaves as an opaque "prior record id" string. The
// timestamp is embedded because the store locates batches by time range,
// not by sequence alone (internal/store's GetMessageBatches).
func (id MessageId) ResumeToken() string {
	return fmt.Sprintf("%d|%s|%s|%d", id.Timestamp.UnixNano(), id.Stream.Name, id.Stream.Direction, id.Sequence)
}

// ParseMessageResumeToken reverses MessageId.ResumeToken.
func ParseMessageResumeToken(token string) (MessageId, error) {
	parts := strings.SplitN(token, "|", 4)
	if len(parts) != 4 {
		return MessageId{}, fmt.Errorf("storemodel: malformed resume token %q", token)
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return MessageId{}, fmt.Errorf("storemodel: malformed resume token timestamp %q", token)
	}
	seq, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return MessageId{}, fmt.Errorf("storemodel: malformed resume token sequence %q", token)
	}
	return MessageId{
		Stream:    StreamKey{Name: parts[1], Direction: StreamSubDirection(parts[2])},
		Sequence:  seq,
		Timestamp: time.Unix(0, nanos).UTC(),
	}, nil
}

type EventId string

// ProviderEventId addresses an event inside an optional batch. BatchId is
// empty for a single (non-batched) event.
type ProviderEventId struct {
	BatchId string
	EventId EventId
}

func (p ProviderEventId) IsBatched() bool {
	return p.BatchId != ""
}
