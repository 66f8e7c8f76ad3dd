package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tsgate/internal/constants"
	"tsgate/internal/logger"
	"tsgate/internal/storemodel"
	"tsgate/pkg/metrics"
)

// CachedGateway memoizes GetFirstMessageId, the one StoreGateway call that
// MessageStreamInitializer repeats identically across SSE reconnects
// (spec.md section 4.3). Every other method passes through untouched — this
// is a pure latency optimization, never a source of truth.
type CachedGateway struct {
	StoreGateway
	redis *redis.Client
	log   logger.Logger
	ttl   time.Duration
}

func NewCachedGateway(inner StoreGateway, client *redis.Client, log logger.Logger, ttl time.Duration) *CachedGateway {
	return &CachedGateway{
		StoreGateway: inner,
		redis:        client,
		log:          log,
		ttl:          ttl,
	}
}

func firstMessageCacheKey(ts time.Time, stream storemodel.StreamKey, dir storemodel.Direction, relation FirstMessageRelation) string {
	rounded := ts.Truncate(time.Second)
	return fmt.Sprintf("%s%s:%s:%s:%d", constants.CacheKeyPrefixFirstMessageID, stream.String(), dir, relation, rounded.Unix())
}

func (c *CachedGateway) GetFirstMessageId(ctx context.Context, ts time.Time, stream storemodel.StreamKey, dir storemodel.Direction, relation FirstMessageRelation) (*storemodel.MessageId, error) {
	key := firstMessageCacheKey(ts, stream, dir, relation)

	if cached, ok := c.lookup(ctx, key); ok {
		metrics.IncCacheHit("first_message_id", "hit")
		return cached, nil
	}
	metrics.IncCacheHit("first_message_id", "miss")

	id, err := c.StoreGateway.GetFirstMessageId(ctx, ts, stream, dir, relation)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, id)
	return id, nil
}

func (c *CachedGateway) lookup(ctx context.Context, key string) (*storemodel.MessageId, bool) {
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.WarnwCtx(ctx, "first-message-id cache lookup failed", "error", err)
		return nil, false
	}
	if val == "" {
		// Cached absence of a message id.
		return nil, true
	}
	var id storemodel.MessageId
	if err := json.Unmarshal([]byte(val), &id); err != nil {
		c.log.WarnwCtx(ctx, "first-message-id cache decode failed", "error", err)
		return nil, false
	}
	return &id, true
}

func (c *CachedGateway) store(ctx context.Context, key string, id *storemodel.MessageId) {
	var payload []byte
	if id != nil {
		encoded, err := json.Marshal(id)
		if err != nil {
			c.log.WarnwCtx(ctx, "first-message-id cache encode failed", "error", err)
			return
		}
		payload = encoded
	}
	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.WarnwCtx(ctx, "first-message-id cache write failed", "error", err)
	}
}
