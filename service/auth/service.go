package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"AProject/service/events"
	"AProject/service/storage"
	"AProject/service/storage/mgo"
	"AProject/tools/errs"
	"AProject/tools/security"
)

// Service 认证节点的业务核心：校验凭据、签发令牌、维护会话。
// 依赖全部注入，不碰全局状态。
type Service struct {
	Users     *mgo.UserStore
	Sessions  *storage.SessionStore
	TokenOpts security.Options
	Events    events.Sink
}

func NewService(users *mgo.UserStore, sessions *storage.SessionStore, tokenOpts security.Options, sink events.Sink) *Service {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Service{Users: users, Sessions: sessions, TokenOpts: tokenOpts, Events: sink}
}

// Authenticate 按邮箱+密码登录，签发令牌并落会话。
func (s *Service) Authenticate(ctx context.Context, email, password string) (map[string]any, error) {
	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, errs.ErrInternalServer.Wrap(err)
	}
	if u == nil {
		return nil, errs.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)) != nil {
		return nil, errs.ErrInvalidCredentials
	}
	return s.issueSession(ctx, u)
}

// Logout 删除会话并置离线。幂等：token 已失效也返回成功。
func (s *Service) Logout(ctx context.Context, token string) (map[string]any, error) {
	id := s.Sessions.GetIdentityByToken(ctx, token)
	if err := s.Sessions.RemoveSession(ctx, token); err != nil {
		return nil, err
	}
	if id != nil {
		if err := s.Sessions.SetOnline(ctx, id.ID, false); err != nil {
			return nil, err
		}
		s.Events.Emit(events.Event{
			IdentityID: id.ID,
			Email:      id.Email,
			Status:     events.StatusOffline,
			Reason:     events.ReasonLogout,
		})
	}
	return map[string]any{"message": "logged out"}, nil
}

// Register 新建用户。重复邮箱返回业务错误。
func (s *Service) Register(ctx context.Context, email, password string) (map[string]any, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.ErrInternalServer.Wrap(err)
	}
	u := &mgo.User{Email: email, HashedPassword: string(hashed)}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	return map[string]any{"message": "registered", "id": u.ID.Hex()}, nil
}

// OAuthAuthenticate 通用令牌交换：外部 provider 已经确认过身份，
// 这里只做 find-or-create 再走同一条发令牌路径。
// provider 侧握手细节不归这层管。
func (s *Service) OAuthAuthenticate(ctx context.Context, provider, email string) (map[string]any, error) {
	if email == "" {
		return nil, errs.ErrArgs.WrapMsg("oauth email missing")
	}
	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, errs.ErrInternalServer.Wrap(err)
	}
	if u == nil {
		u = &mgo.User{Email: email, Provider: provider}
		if err := s.Users.Create(ctx, u); err != nil {
			return nil, err
		}
	}
	return s.issueSession(ctx, u)
}

func (s *Service) issueSession(ctx context.Context, u *mgo.User) (map[string]any, error) {
	token, expireAt, err := security.Generate(s.TokenOpts, u.ID.Hex())
	if err != nil {
		return nil, errs.ErrInternalServer.Wrap(err)
	}

	id := storage.Identity{ID: u.ID.Hex(), Email: u.Email}
	if err := s.Sessions.SaveSession(ctx, id, token, time.Until(expireAt)); err != nil {
		// 快存写不进去必须让上层看到，否则在线标记会卡死
		return nil, err
	}

	s.Events.Emit(events.Event{
		IdentityID: id.ID,
		Email:      id.Email,
		Status:     events.StatusOnline,
		Reason:     events.ReasonLogin,
	})

	return map[string]any{
		"access_token": token,
		"token_type":   "bearer",
	}, nil
}
