package presence

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeLister struct{ has atomic.Bool }

func (f *fakeLister) HasSessions(context.Context) (bool, error) {
	return f.has.Load(), nil
}

func noopJob(context.Context) error { return nil }

func newTestGate(lister *fakeLister) *Gate {
	return &Gate{
		Sessions:      lister,
		Sched:         NewScheduler(),
		SweepInterval: time.Hour,
		SyncInterval:  time.Hour,
		SweepJob:      noopJob,
		SyncJob:       noopJob,
	}
}

// 从零会话到有会话：一次门检查内两个任务都被注册；
// 回到零会话：一次门检查内都被注销
func TestGateTransitions(t *testing.T) {
	lister := &fakeLister{}
	g := newTestGate(lister)
	defer g.Sched.Stop()
	ctx := context.Background()

	g.Check(ctx)
	assert.False(t, g.Sched.Active(JobSessionSweep))
	assert.False(t, g.Sched.Active(JobStatusSync))

	lister.has.Store(true)
	g.Check(ctx)
	assert.True(t, g.Sched.Active(JobSessionSweep))
	assert.True(t, g.Sched.Active(JobStatusSync))

	// 再查一次：幂等，不重复注册
	g.Check(ctx)
	assert.True(t, g.Sched.Active(JobSessionSweep))

	lister.has.Store(false)
	g.Check(ctx)
	assert.False(t, g.Sched.Active(JobSessionSweep))
	assert.False(t, g.Sched.Active(JobStatusSync))
}

func TestSchedulerRunsJobPeriodically(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs atomic.Int32
	s.Schedule(context.Background(), "tick", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Unschedule("tick")
	stopped := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), stopped+1)
}

func TestSchedulerScheduleIsIdempotent(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs atomic.Int32
	job := func(context.Context) error { runs.Add(1); return nil }
	ctx := context.Background()

	s.Schedule(ctx, "once", 20*time.Millisecond, job)
	s.Schedule(ctx, "once", 20*time.Millisecond, job)
	assert.True(t, s.Active("once"))

	time.Sleep(70 * time.Millisecond)
	// 只有一个定时器在跑
	assert.LessOrEqual(t, runs.Load(), int32(4))
}

func TestSchedulerUnscheduleMissingIsNoop(t *testing.T) {
	s := NewScheduler()
	s.Unschedule("ghost")
	assert.False(t, s.Active("ghost"))
}

// 任务报错只记日志，下个周期照常触发
func TestSchedulerKeepsRunningAfterJobError(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs atomic.Int32
	s.Schedule(context.Background(), "flaky", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return assert.AnError
	})

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
}
