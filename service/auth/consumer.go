package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"

	"AProject/logger"
	"AProject/service/rpc"
	"AProject/tools/decode"
	"AProject/tools/errs"
)

// 认证动作的负载，按 json tag 从 data map 解出来
type authPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type logoutPayload struct {
	Token string `json:"token"`
}

type oauthPayload struct {
	Provider string `json:"provider"`
	Email    string `json:"email"`
}

// ActionHandler 单个动作的处理函数
type ActionHandler func(ctx context.Context, data map[string]any) (map[string]any, error)

// Consumer 认证节点的队列消费端：auth_queue 按 action 分发，
// health_check 直接回活。应答发回请求消息携带的私有回复地址。
type Consumer struct {
	nc       *nats.Conn
	svc      *Service
	handlers map[string]ActionHandler
	subs     []*nats.Subscription

	HandleTimeout time.Duration
}

func NewConsumer(nc *nats.Conn, svc *Service) *Consumer {
	c := &Consumer{
		nc:            nc,
		svc:           svc,
		HandleTimeout: 15 * time.Second,
	}
	c.handlers = map[string]ActionHandler{
		rpc.ActionAuthenticate: c.handleAuthenticate,
		rpc.ActionLogout:       c.handleLogout,
		rpc.ActionRegister:     c.handleRegister,
		rpc.ActionOAuth:        c.handleOAuth,
	}
	return c
}

// Start 建立队列订阅。同组多实例分摊消费。
func (c *Consumer) Start() error {
	authSub, err := c.nc.QueueSubscribe(rpc.SubjectAuth, "auth_workers", c.onAuthMsg)
	if err != nil {
		return err
	}
	c.subs = append(c.subs, authSub)

	healthSub, err := c.nc.QueueSubscribe(rpc.SubjectHealth, "auth_workers", c.onHealthMsg)
	if err != nil {
		return err
	}
	c.subs = append(c.subs, healthSub)

	logger.Infof("auth consumer: subscribed to %s and %s", rpc.SubjectAuth, rpc.SubjectHealth)
	return nil
}

func (c *Consumer) Close() {
	for _, sub := range c.subs {
		_ = sub.Drain()
	}
	c.subs = nil
}

func (c *Consumer) onAuthMsg(msg *nats.Msg) {
	if msg.Reply == "" {
		logger.Warn("auth consumer: message without reply destination dropped")
		return
	}

	var req rpc.Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		c.respond(msg, map[string]any{"error": "bad_request"})
		return
	}

	h, ok := c.handlers[req.Action]
	if !ok {
		logger.Warnf("auth consumer: unknown action %q", req.Action)
		c.respond(msg, map[string]any{"error": "unknown_action"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.HandleTimeout)
	defer cancel()

	result, err := h(ctx, req.Data)
	if err != nil {
		// 业务失败也是一次成功的往返：错误进应答体，调用方不重试
		c.respond(msg, businessError(err))
		return
	}
	c.respond(msg, result)
}

func (c *Consumer) onHealthMsg(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	c.respond(msg, map[string]any{"status": "healthy"})
}

func (c *Consumer) respond(msg *nats.Msg, body map[string]any) {
	raw, err := json.Marshal(body)
	if err != nil {
		logger.Errorf("auth consumer: marshal reply: %v", err)
		return
	}
	if err := msg.Respond(raw); err != nil {
		logger.Errorf("auth consumer: respond: %v", err)
	}
}

func businessError(err error) map[string]any {
	var codeErr *errs.CodeError
	if errors.As(err, &codeErr) {
		return map[string]any{"error": codeErr.Msg, "code": codeErr.Code}
	}
	return map[string]any{"error": err.Error()}
}

func (c *Consumer) handleAuthenticate(ctx context.Context, data map[string]any) (map[string]any, error) {
	p, err := decode.DecodeMap[authPayload](data)
	if err != nil {
		return nil, errs.ErrArgs.Wrap(err)
	}
	return c.svc.Authenticate(ctx, p.Email, p.Password)
}

func (c *Consumer) handleLogout(ctx context.Context, data map[string]any) (map[string]any, error) {
	p, err := decode.DecodeMap[logoutPayload](data)
	if err != nil {
		return nil, errs.ErrArgs.Wrap(err)
	}
	return c.svc.Logout(ctx, p.Token)
}

func (c *Consumer) handleRegister(ctx context.Context, data map[string]any) (map[string]any, error) {
	p, err := decode.DecodeMap[authPayload](data)
	if err != nil {
		return nil, errs.ErrArgs.Wrap(err)
	}
	return c.svc.Register(ctx, p.Email, p.Password)
}

func (c *Consumer) handleOAuth(ctx context.Context, data map[string]any) (map[string]any, error) {
	p, err := decode.DecodeMap[oauthPayload](data)
	if err != nil {
		return nil, errs.ErrArgs.Wrap(err)
	}
	return c.svc.OAuthAuthenticate(ctx, p.Provider, p.Email)
}
