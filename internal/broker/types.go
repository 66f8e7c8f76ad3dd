package broker

import "context"

// Producer publishes operational telemetry (internal/audit) to the
// configured broker. This service is a read-only data provider: it never
// consumes a domain topic, so no Consumer interface exists here — see
// DESIGN.md for why the teacher's Consumer was dropped rather than adapted.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload interface{}) error
	Close() error
}
