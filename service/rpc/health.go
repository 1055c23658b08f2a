package rpc

import (
	"context"
	"time"

	"AProject/logger"
)

// HealthStatus 健康检查结果分类
type HealthStatus string

const (
	HealthHealthy         HealthStatus = "healthy"
	HealthTimeout         HealthStatus = "timeout"
	HealthConnectionError HealthStatus = "connection_error"
	HealthUnknownError    HealthStatus = "unknown_error"
)

// CheckHealth 向 health_check 队列发零负载探针。
// 活着的响应端回 {"status": "healthy"}；超时内没有任何应答视为不健康。
func CheckHealth(ctx context.Context, sc *SyncCaller, timeout time.Duration) (bool, HealthStatus) {
	reply, kind := sc.Do(ctx, SubjectHealth, map[string]any{"status": "check"}, timeout)

	switch kind {
	case KindTimeout:
		return false, HealthTimeout
	case KindConnection:
		return false, HealthConnectionError
	case KindUnknown:
		return false, HealthUnknownError
	}

	healthy := reply["status"] == "healthy"
	if !healthy {
		logger.Warnf("health check: unexpected reply %v", reply)
		return false, HealthUnknownError
	}
	return true, HealthHealthy
}
