package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixFirstMessageID = "tsgate:first-message-id:"
)

const (
	DefaultAuditTopic = "search_audit_events"
)

const (
	DefaultMongoDBName = "tsgate"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit       = 100
	MaxLimit           = 1000
	DefaultTruncateLen = 100
)

const (
	DefaultTTLSeconds = 3600
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

// SSE frame kinds, spec.md section 6.
const (
	FrameKindEvent     = "event"
	FrameKindMessage   = "message"
	FrameKindKeepAlive = "keep_alive"
	FrameKindError     = "error"
	FrameKindClose     = "close"
)

// Search directions, spec.md sections 1 and 6.
const (
	DirectionAfter  = "AFTER"
	DirectionBefore = "BEFORE"
)

// Stream sub-direction, spec.md section 3.
const (
	StreamFirst  = "FIRST"
	StreamSecond = "SECOND"
)
