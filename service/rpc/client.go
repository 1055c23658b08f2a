package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"AProject/service/metrics"
)

// 认证链路的目的队列与动作名
const (
	SubjectAuth   = "auth_queue"
	SubjectHealth = "health_check"

	ActionAuthenticate = "authenticate"
	ActionLogout       = "logout"
	ActionRegister     = "register"
	ActionOAuth        = "oauth_authenticate"
)

// HeaderExpiration 消息过期时间（毫秒），随消息元数据携带
const HeaderExpiration = "Expiration"

const (
	DefaultResponseTimeout   = 30 * time.Second
	DefaultMessageExpiration = 60 * time.Second
)

// Kind 一次调用的传输层结果分类
type Kind string

const (
	KindNone       Kind = ""           // 拿到了对端应答（可能携带业务错误）
	KindTimeout    Kind = "timeout"    // 等待应答超时
	KindConnection Kind = "connection" // 连接/传输失败
	KindUnknown    Kind = "unknown"    // 其他异常，不重试
)

// Transient 是否传输层瞬时失败（可重试）
func (k Kind) Transient() bool {
	return k == KindTimeout || k == KindConnection
}

// Request 请求信封：{"action": ..., "data": {...}}
type Request struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data"`
}

// Reply 对端应答或本地合成的错误体
type Reply map[string]any

// BusinessError 对端应答里携带的业务错误（成功的往返，不重试）
func (r Reply) BusinessError() (string, bool) {
	v, ok := r["error"].(string)
	return v, ok && v != ""
}

func errReply(msg string) Reply { return Reply{"error": msg} }

// Client 经 NATS 的相关请求/应答客户端。
// 每次调用建一个私有回复 inbox，等第一条相关应答或超时，
// 无论结果如何都会退订（不泄漏 broker 资源）。
type Client struct {
	nc                *nats.Conn
	ResponseTimeout   time.Duration
	MessageExpiration time.Duration
}

func NewClient(nc *nats.Conn) *Client {
	return &Client{
		nc:                nc,
		ResponseTimeout:   DefaultResponseTimeout,
		MessageExpiration: DefaultMessageExpiration,
	}
}

// Call 发送 payload 到 subject 并同步等待相关应答。
// 只挂起当前调用方；并发调用各用各的 inbox，互不串扰。
// 返回值约定：要么原样返回对端 payload，要么本地合成
// {"error": "Timeout"} / {"error": "Connection failed"} / {"error": <msg>}。
func (c *Client) Call(ctx context.Context, subject string, payload any, timeout time.Duration) (Reply, Kind) {
	if timeout <= 0 {
		timeout = c.ResponseTimeout
	}
	expiration := c.MessageExpiration
	if expiration < timeout {
		// 消息必须活得比等待久，否则可能在等待结束前消失
		expiration = timeout
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return c.fail(subject, err, KindUnknown)
	}

	inbox := c.nc.NewRespInbox()
	sub, err := c.nc.SubscribeSync(inbox)
	if err != nil {
		return c.fail(subject, err, classify(err))
	}
	// 私有回复 inbox 只消费一条，函数返回时必定退订
	defer func() { _ = sub.Unsubscribe() }()
	_ = sub.AutoUnsubscribe(1)

	msg := nats.NewMsg(subject)
	msg.Reply = inbox
	msg.Data = body
	msg.Header.Set(HeaderExpiration, strconv.FormatInt(expiration.Milliseconds(), 10))

	if err := c.nc.PublishMsg(msg); err != nil {
		return c.fail(subject, err, classify(err))
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := sub.NextMsgWithContext(waitCtx)
	if err != nil {
		return c.fail(subject, err, classify(err))
	}

	var reply Reply
	if err := json.Unmarshal(resp.Data, &reply); err != nil {
		return c.fail(subject, err, KindUnknown)
	}
	metrics.RPCCalls.WithLabelValues(subject, "ok").Inc()
	return reply, KindNone
}

func (c *Client) fail(subject string, err error, kind Kind) (Reply, Kind) {
	metrics.RPCCalls.WithLabelValues(subject, string(kind)).Inc()
	switch kind {
	case KindTimeout:
		return errReply("Timeout"), KindTimeout
	case KindConnection:
		return errReply("Connection failed"), KindConnection
	default:
		return errReply(err.Error()), KindUnknown
	}
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nats.ErrTimeout):
		return KindTimeout
	case errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionDraining),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrInvalidConnection),
		errors.Is(err, nats.ErrNoServers):
		return KindConnection
	default:
		return KindUnknown
	}
}
