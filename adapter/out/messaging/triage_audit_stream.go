package messaging

import (
	"context"
	"fmt"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// StreamAudit holds audit records. Nothing in this process consumes it.
const StreamAudit = "audit:events"

// AuditStream appends audit records to StreamAudit.
type AuditStream struct {
	client streamClient
	maxLen int64
}

func NewAuditStream(client redis.UniversalClient, maxLen int64) *AuditStream {
	return &AuditStream{client: client, maxLen: maxLen}
}

func (a *AuditStream) RecordAudit(ctx context.Context, ev *domain.AuditEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: StreamAudit,
		Values: map[string]interface{}{"event": string(data)},
	}
	if a.maxLen > 0 {
		args.MaxLen = a.maxLen
		args.Approx = true
	}
	if err := a.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

var _ out.AuditSink = (*AuditStream)(nil)
