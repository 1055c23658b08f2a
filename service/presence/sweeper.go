package presence

import (
	"context"
	"time"

	"AProject/logger"
	"AProject/service/events"
	"AProject/service/metrics"
	"AProject/service/storage"
	"AProject/tools/errs"
	"AProject/tools/security"
)

// SessionOps 清理任务对快存的依赖面
type SessionOps interface {
	ListAllTokens(ctx context.Context) ([]string, error)
	GetIdentityByToken(ctx context.Context, token string) *storage.Identity
	GetLastActivity(ctx context.Context, token string) int64
	SetOnline(ctx context.Context, identityID string, online bool) error
	RemoveSession(ctx context.Context, token string) error
}

// TokenDecoder 校验签名并取出声明；过期判定由调用方做
type TokenDecoder func(token string) (security.Claims, error)

// Sweeper 会话清理任务（Job A）。
// 逐 token 判定：签名坏/已过期/超过静默阈值的会话统一下线并删除。
// 单条失败只记日志，不中断整轮。
type Sweeper struct {
	Sessions          SessionOps
	Decode            TokenDecoder
	Events            events.Sink
	InactivityTimeout time.Duration

	now func() time.Time
}

func NewSweeper(sessions SessionOps, decode TokenDecoder, sink events.Sink, inactivity time.Duration) *Sweeper {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Sweeper{
		Sessions:          sessions,
		Decode:            decode,
		Events:            sink,
		InactivityTimeout: inactivity,
		now:               time.Now,
	}
}

// Sweep 跑一轮清理。任务级失败包成 ErrSessionCheck，
// 由调度器记日志，下个周期自然重试。
func (s *Sweeper) Sweep(ctx context.Context) error {
	tokens, err := s.Sessions.ListAllTokens(ctx)
	if err != nil {
		return errs.ErrSessionCheck.WrapMsg("list tokens", "err", err)
	}
	for _, token := range tokens {
		if err := s.sweepOne(ctx, token); err != nil {
			logger.Warnf("session sweep: token skipped: %v", err)
		}
	}
	return nil
}

func (s *Sweeper) sweepOne(ctx context.Context, token string) error {
	now := s.now().UTC()

	claims, err := s.Decode(token)
	var reason string
	switch {
	case err != nil:
		// 签名坏/格式坏：保守处理，直接清掉这条会话
		logger.Warnf("session sweep: undecodable token: %v", err)
		reason = events.ReasonMalformed
	case claims.Expired(now):
		reason = events.ReasonExpired
	default:
		// 密码学上仍有效，但静默太久也强制下线
		last := s.Sessions.GetLastActivity(ctx, token)
		if now.Unix()-last <= int64(s.InactivityTimeout.Seconds()) {
			return nil // 还活跃，留着
		}
		reason = events.ReasonInactivity
	}

	// 身份优先取声明里的 sub；声明拿不到（坏token）时回退会话记录
	identityID := claims.Identity
	var email string
	if id := s.Sessions.GetIdentityByToken(ctx, token); id != nil {
		email = id.Email
		if identityID == "" {
			identityID = id.ID
		}
	}

	if identityID != "" {
		if err := s.Sessions.SetOnline(ctx, identityID, false); err != nil {
			return err
		}
	}
	if err := s.Sessions.RemoveSession(ctx, token); err != nil {
		return err
	}

	metrics.SweepRemoved.WithLabelValues(reason).Inc()
	s.Events.Emit(events.Event{
		IdentityID: identityID,
		Email:      email,
		Status:     events.StatusOffline,
		Reason:     reason,
		At:         now,
	})
	logger.Infof("session sweep: removed token, reason=%s identity=%s", reason, identityID)
	return nil
}
