package presence

import (
	"context"
	"time"

	"AProject/logger"
	"AProject/service/metrics"
	"AProject/service/storage/mgo"
	"AProject/tools/errs"
)

// StatusSource 同步任务对快存的只读依赖面
type StatusSource interface {
	GetOnline(ctx context.Context, identityID string) bool
	GetLastActivity(ctx context.Context, token string) int64
	ListIdentitySessions(ctx context.Context, email string) []string
}

// DurableSink 持久库侧写回接口
type DurableSink interface {
	ListIdentities(ctx context.Context) ([]mgo.IdentityRef, error)
	SetPresence(ctx context.Context, identityID string, online bool, lastSeen time.Time) error
}

// Syncer 状态同步任务（Job B）。
// 单向镜像：快存 -> 持久库，is_online 和派生的 last_seen。
// 持久库在正常运行期间不是这两个字段的事实来源。
type Syncer struct {
	Fast    StatusSource
	Durable DurableSink
}

func NewSyncer(fast StatusSource, durable DurableSink) *Syncer {
	return &Syncer{Fast: fast, Durable: durable}
}

// Sync 跑一轮镜像。任务级失败包成 ErrStatusSync；
// 单个身份写回失败只记日志继续。
func (s *Syncer) Sync(ctx context.Context) error {
	ids, err := s.Durable.ListIdentities(ctx)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return errs.ErrStatusSync.WrapMsg("list identities", "err", err)
	}

	failed := 0
	for _, ref := range ids {
		online := s.Fast.GetOnline(ctx, ref.ID)
		lastSeen := s.deriveLastSeen(ctx, ref.Email)

		if err := s.Durable.SetPresence(ctx, ref.ID, online, lastSeen); err != nil {
			failed++
			logger.Warnf("status sync: identity=%s: %v", ref.ID, err)
		}
	}

	if failed > 0 {
		metrics.SyncRuns.WithLabelValues("partial").Inc()
		return errs.ErrStatusSync.WrapMsg("partial sync", "failed", failed, "total", len(ids))
	}
	metrics.SyncRuns.WithLabelValues("ok").Inc()
	return nil
}

// deriveLastSeen 身份级 last_seen = 该身份所有会话活跃时间的最大值
func (s *Syncer) deriveLastSeen(ctx context.Context, email string) time.Time {
	var latest int64
	for _, token := range s.Fast.ListIdentitySessions(ctx, email) {
		if ts := s.Fast.GetLastActivity(ctx, token); ts > latest {
			latest = ts
		}
	}
	if latest == 0 {
		return time.Time{}
	}
	return time.Unix(latest, 0).UTC()
}
