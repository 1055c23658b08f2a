package rpc

import (
	"context"
	"time"

	"AProject/logger"
	"AProject/service/metrics"
)

const (
	DefaultAttempts    = 3
	DefaultBackoffBase = 4 * time.Second
	DefaultBackoffCap  = 10 * time.Second
)

// CallFunc 与 Client.Call 同形，便于测试时替换传输层
type CallFunc func(ctx context.Context, subject string, payload any, timeout time.Duration) (Reply, Kind)

// SyncCaller 同步调用器（带重试）。
// 只对瞬时失败（timeout/connection）重试；对端返回的业务错误体
// 是一次成功的往返，不重试。重试耗尽后原样返回最后一次结果。
type SyncCaller struct {
	Call        CallFunc
	Attempts    int           // 总尝试次数，默认 3
	BackoffBase time.Duration // 首个退避间隔，默认 4s
	BackoffCap  time.Duration // 退避上限，默认 10s

	sleep func(ctx context.Context, d time.Duration)
}

func NewSyncCaller(c *Client) *SyncCaller {
	return &SyncCaller{
		Call:        c.Call,
		Attempts:    DefaultAttempts,
		BackoffBase: DefaultBackoffBase,
		BackoffCap:  DefaultBackoffCap,
	}
}

func (sc *SyncCaller) Do(ctx context.Context, subject string, payload any, timeout time.Duration) (Reply, Kind) {
	attempts := sc.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	base := sc.BackoffBase
	if base <= 0 {
		base = DefaultBackoffBase
	}
	limit := sc.BackoffCap
	if limit <= 0 {
		limit = DefaultBackoffCap
	}

	var (
		reply Reply
		kind  Kind
	)
	for i := 1; ; i++ {
		reply, kind = sc.Call(ctx, subject, payload, timeout)
		if !kind.Transient() || i >= attempts {
			return reply, kind
		}

		delay := base << (i - 1)
		if delay > limit {
			delay = limit
		}
		logger.Warnf("rpc retry: subject=%s kind=%s attempt=%d/%d delay=%s",
			subject, kind, i+1, attempts, delay)
		metrics.RPCRetries.Inc()
		sc.doSleep(ctx, delay)

		select {
		case <-ctx.Done():
			return reply, kind
		default:
		}
	}
}

func (sc *SyncCaller) doSleep(ctx context.Context, d time.Duration) {
	if sc.sleep != nil {
		sc.sleep(ctx, d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
