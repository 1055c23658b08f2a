package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCalls 按队列与结果分类统计 RPC 调用
	RPCCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authbridge",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "RPC calls by destination queue and outcome kind.",
	}, []string{"subject", "kind"})

	// RPCRetries 重试次数（每次退避睡眠记一次）
	RPCRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "authbridge",
		Subsystem: "rpc",
		Name:      "retries_total",
		Help:      "Retry sleeps performed by the sync caller.",
	})

	// SweepRemoved 清理任务移除的会话数，按原因分
	SweepRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authbridge",
		Subsystem: "presence",
		Name:      "sweep_removed_total",
		Help:      "Sessions removed by the sweep job, by reason.",
	}, []string{"reason"})

	// SyncRuns 状态同步任务执行次数
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authbridge",
		Subsystem: "presence",
		Name:      "sync_runs_total",
		Help:      "Durable status sync runs, by result.",
	}, []string{"result"})
)
