// Package messaging provides the redis stream adapters for triage events.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/redis/go-redis/v9"
)

// Stream names
const (
	StreamVisibility = "triage:visibility"
	StreamBilling    = "triage:billing"
)

// Streams lists every stream the worker consumes.
var Streams = []string{StreamVisibility, StreamBilling}

// StreamFor routes an event type to its stream.
func StreamFor(t domain.EventType) string {
	switch t {
	case domain.EventPlanChanged, domain.EventUsageReset:
		return StreamBilling
	default:
		return StreamVisibility
	}
}

// streamClient is the subset of redis.UniversalClient the stream adapters use.
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XRange(ctx context.Context, stream, start, stop string) *redis.XMessageSliceCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd
	XClaim(ctx context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd
}

// RedisProducer implements out.EventPublisher using Redis Streams.
type RedisProducer struct {
	client streamClient
	maxLen int64
}

// NewRedisProducer creates a producer. Streams are approximately trimmed to maxLen
// entries when maxLen is positive.
func NewRedisProducer(client redis.UniversalClient, maxLen int64) *RedisProducer {
	return &RedisProducer{client: client, maxLen: maxLen}
}

// Publish appends the event to its stream under the "data" field.
func (p *RedisProducer) Publish(ctx context.Context, ev *domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	stream := StreamFor(ev.Type)
	args := &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}

var _ out.EventPublisher = (*RedisProducer)(nil)
