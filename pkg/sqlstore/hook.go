package sqlstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
)

// slowQueryHook logs statements that take longer than slowTime
type slowQueryHook struct {
	logger   *slog.Logger
	slowTime time.Duration
}

var _ bun.QueryHook = (*slowQueryHook)(nil)

func (h *slowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err != nil {
		return
	}

	duration := time.Since(event.StartTime)
	if duration > h.slowTime {
		h.logger.WarnContext(ctx, "slow query",
			slog.Duration("duration", duration),
			slog.Duration("threshold", h.slowTime),
			slog.String("query", event.Query),
		)
	}
}
