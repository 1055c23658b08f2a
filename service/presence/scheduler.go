package presence

import (
	"context"
	"sync"
	"time"

	"AProject/logger"
	"AProject/tools/safe"
)

// 周期任务名
const (
	JobSessionSweep = "session_sweep"
	JobStatusSync   = "status_sync"
)

// Scheduler 进程内周期任务调度。每个任务独立 goroutine 跑，
// 任务返回的错误只记日志，下个周期照常触发；panic 由 safe.Go 兜住。
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]context.CancelFunc
}

func NewScheduler() *Scheduler {
	return &Scheduler{jobs: make(map[string]context.CancelFunc)}
}

// Schedule 注册周期任务。幂等：同名任务已在跑则什么都不做。
func (s *Scheduler) Schedule(ctx context.Context, name string, interval time.Duration, run func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return
	}
	jobCtx, cancel := context.WithCancel(ctx)
	s.jobs[name] = cancel

	safe.Go(func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				if err := run(jobCtx); err != nil {
					logger.Error("scheduled job failed: " + name + ": " + err.Error())
				}
			}
		}
	})
	logger.Infof("scheduler: job %s registered, interval=%s", name, interval)
}

// Unschedule 注销任务。幂等：任务不存在时静默。
func (s *Scheduler) Unschedule(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.jobs[name]; ok {
		cancel()
		delete(s.jobs, name)
		logger.Infof("scheduler: job %s deregistered", name)
	}
}

// Active 任务是否已注册
func (s *Scheduler) Active(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	return ok
}

// Stop 注销全部任务
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, cancel := range s.jobs {
		cancel()
		delete(s.jobs, name)
	}
}

// SessionLister 调度门只需要知道"有没有会话"
type SessionLister interface {
	HasSessions(ctx context.Context) (bool, error)
}

// Gate 调度门：有会话才让两个周期任务跑，没人登录时不空转。
// 两态状态机（idle/active），转移只由会话集合是否为空驱动。
type Gate struct {
	Sessions SessionLister
	Sched    *Scheduler

	Interval      time.Duration // 门检查周期，默认 1 分钟
	SweepInterval time.Duration
	SyncInterval  time.Duration
	SweepJob      func(ctx context.Context) error
	SyncJob       func(ctx context.Context) error

	active bool
}

// Run 阻塞运行门控循环，直到 ctx 结束。
func (g *Gate) Run(ctx context.Context) {
	interval := g.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			g.Sched.Stop()
			return
		case <-t.C:
			g.Check(ctx)
		}
	}
}

// Check 单次门检查。快存探测失败时保持当前状态不变。
func (g *Gate) Check(ctx context.Context) {
	has, err := g.Sessions.HasSessions(ctx)
	if err != nil {
		logger.Warnf("scheduler gate: session probe failed: %v", err)
		return
	}

	switch {
	case has && !g.active:
		g.Sched.Schedule(ctx, JobSessionSweep, g.SweepInterval, g.SweepJob)
		g.Sched.Schedule(ctx, JobStatusSync, g.SyncInterval, g.SyncJob)
		g.active = true
		logger.Info("scheduler gate: sessions present, jobs scheduled")
	case !has && g.active:
		g.Sched.Unschedule(JobSessionSweep)
		g.Sched.Unschedule(JobStatusSync)
		g.active = false
		logger.Info("scheduler gate: no sessions, jobs deregistered")
	}
}
