package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要本地 NATS；连不上就跳过
func testConn(t *testing.T) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(nats.DefaultURL, nats.Timeout(time.Second))
	if err != nil {
		t.Skipf("nats unavailable: %v", err)
	}
	t.Cleanup(func() { nc.Close() })
	return nc
}

func TestCallRoundTrip(t *testing.T) {
	nc := testConn(t)

	subject := "rpc.test.echo"
	sub, err := nc.Subscribe(subject, func(m *nats.Msg) {
		var req Request
		_ = json.Unmarshal(m.Data, &req)
		raw, _ := json.Marshal(map[string]any{"echo": req.Action})
		_ = m.Respond(raw)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	c := NewClient(nc)
	reply, kind := c.Call(context.Background(), subject, Request{Action: "ping"}, 2*time.Second)

	assert.Equal(t, KindNone, kind)
	assert.Equal(t, "ping", reply["echo"])
}

// 并发调用各用各的私有回复地址，不串扰
func TestCallCorrelationIsolation(t *testing.T) {
	nc := testConn(t)

	subject := "rpc.test.correlate"
	sub, err := nc.Subscribe(subject, func(m *nats.Msg) {
		var req Request
		_ = json.Unmarshal(m.Data, &req)
		n := req.Data["n"]
		// 故意打乱响应时序
		go func() {
			if fmt.Sprint(n) == "0" {
				time.Sleep(150 * time.Millisecond)
			}
			raw, _ := json.Marshal(map[string]any{"n": n})
			_ = nc.PublishMsg(&nats.Msg{Subject: m.Reply, Data: raw})
		}()
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	c := NewClient(nc)
	const concurrency = 8

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			reply, kind := c.Call(context.Background(), subject, Request{
				Action: "correlate",
				Data:   map[string]any{"n": n},
			}, 3*time.Second)
			assert.Equal(t, KindNone, kind)
			assert.EqualValues(t, n, reply["n"])
		}(i)
	}
	wg.Wait()
}

// 没人应答：在超时窗口附近返回 timeout，应答体是合成的 {"error": "Timeout"}
func TestCallTimeout(t *testing.T) {
	nc := testConn(t)

	c := NewClient(nc)
	start := time.Now()
	reply, kind := c.Call(context.Background(), "rpc.test.nobody", Request{Action: "void"}, 300*time.Millisecond)
	elapsed := time.Since(start)

	assert.Equal(t, KindTimeout, kind)
	assert.Equal(t, Reply{"error": "Timeout"}, reply)
	assert.Less(t, elapsed, time.Second)
}

// 连接已关闭：分类为 connection
func TestCallConnectionFailure(t *testing.T) {
	nc, err := nats.Connect(nats.DefaultURL, nats.Timeout(time.Second))
	if err != nil {
		t.Skipf("nats unavailable: %v", err)
	}
	nc.Close()

	c := NewClient(nc)
	reply, kind := c.Call(context.Background(), "rpc.test.closed", Request{Action: "void"}, time.Second)

	assert.Equal(t, KindConnection, kind)
	assert.Equal(t, Reply{"error": "Connection failed"}, reply)
}

func TestHealthCheckAgainstResponder(t *testing.T) {
	nc := testConn(t)

	sub, err := nc.QueueSubscribe(SubjectHealth, "test_workers", func(m *nats.Msg) {
		raw, _ := json.Marshal(map[string]any{"status": "healthy"})
		_ = m.Respond(raw)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	sc := NewSyncCaller(NewClient(nc))
	ok, status := CheckHealth(context.Background(), sc, 2*time.Second)

	assert.True(t, ok)
	assert.Equal(t, HealthHealthy, status)
}
