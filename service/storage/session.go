package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"AProject/logger"
	"AProject/tools/errs"
)

// key namespace:
//
//	token:<token>          -> serialized SessionRecord
//	sessions:<email>       -> set of tokens
//	last_activity:<token>  -> unix timestamp
//	online:<identity_id>   -> "True" / "False"
const (
	tokenKeyPrefix        = "token:"
	sessionsKeyPrefix     = "sessions:"
	lastActivityKeyPrefix = "last_activity:"
	onlineKeyPrefix       = "online:"
)

// Identity 已认证主体的最小快照
type Identity struct {
	ID    string         `json:"id"`
	Email string         `json:"email"`
	Extra map[string]any `json:"extra,omitempty"`
}

// SessionRecord 快存里的会话记录，按 token 取。
// 活跃时间不在记录里改，单独放 last_activity:<token>。
type SessionRecord struct {
	Token     string    `json:"token"`
	Identity  Identity  `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore Redis 会话与在线状态存储。
// 读路径在快存不可用时一律按"无会话"降级；
// 写路径（登录/登出）返回 ErrStoreUnavailable，让上层能看到会话没存上。
type SessionStore struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewSessionStore(rdb redis.Cmdable) *SessionStore {
	return &SessionStore{rdb: rdb, now: time.Now}
}

func tokenKey(token string) string        { return tokenKeyPrefix + token }
func sessionsKey(email string) string     { return sessionsKeyPrefix + email }
func lastActivityKey(token string) string { return lastActivityKeyPrefix + token }
func onlineKey(identityID string) string  { return onlineKeyPrefix + identityID }

// SaveSession 登录成功后落会话：记录、会话集合、在线标记、活跃时间。
// 集合本身不设过期，由清理任务显式维护。
func (s *SessionStore) SaveSession(ctx context.Context, id Identity, token string, ttl time.Duration) error {
	rec := SessionRecord{
		Token:     token,
		Identity:  id,
		ExpiresAt: s.now().UTC().Add(ttl),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return errs.ErrArgs.WrapMsg("marshal session", "err", err)
	}

	if err := s.rdb.Set(ctx, tokenKey(token), raw, ttl).Err(); err != nil {
		return errs.ErrStoreUnavailable.WrapMsg("set session", "err", err)
	}
	if err := s.rdb.SAdd(ctx, sessionsKey(id.Email), token).Err(); err != nil {
		return errs.ErrStoreUnavailable.WrapMsg("add session member", "err", err)
	}
	if err := s.SetOnline(ctx, id.ID, true); err != nil {
		return err
	}
	if err := s.UpdateLastActivity(ctx, token); err != nil {
		return err
	}
	return nil
}

// GetSession 按 token 取会话记录；不存在或快存不可用都返回 nil。
func (s *SessionStore) GetSession(ctx context.Context, token string) *SessionRecord {
	raw, err := s.rdb.Get(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		logger.Warnf("session store read degraded: %v", err)
		return nil
	}
	var rec SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		logger.Warnf("session record corrupt, token=%s: %v", token, err)
		return nil
	}
	return &rec
}

// GetIdentityByToken 解析当前用户；过期/被清理的 token 返回 nil。
func (s *SessionStore) GetIdentityByToken(ctx context.Context, token string) *Identity {
	rec := s.GetSession(ctx, token)
	if rec == nil {
		return nil
	}
	return &rec.Identity
}

// RemoveSession 删除会话。幂等：token 已不存在不算错。
// 先摘集合成员再删记录，保证集合里不会留下孤儿 token。
func (s *SessionStore) RemoveSession(ctx context.Context, token string) error {
	rec := s.GetSession(ctx, token)
	if rec != nil {
		if err := s.rdb.SRem(ctx, sessionsKey(rec.Identity.Email), token).Err(); err != nil {
			return errs.ErrStoreUnavailable.WrapMsg("remove session member", "err", err)
		}
	}
	if err := s.rdb.Del(ctx, tokenKey(token), lastActivityKey(token)).Err(); err != nil {
		return errs.ErrStoreUnavailable.WrapMsg("delete session", "err", err)
	}
	return nil
}

// ListAllTokens 全量扫描会话 key。只给清理任务用，不保证顺序。
func (s *SessionStore) ListAllTokens(ctx context.Context) ([]string, error) {
	var (
		tokens []string
		cursor uint64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, tokenKeyPrefix+"*", 200).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			tokens = append(tokens, strings.TrimPrefix(k, tokenKeyPrefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return tokens, nil
}

// HasSessions 是否存在任何会话（调度门用）。
func (s *SessionStore) HasSessions(ctx context.Context) (bool, error) {
	keys, _, err := s.rdb.Scan(ctx, 0, tokenKeyPrefix+"*", 1).Result()
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

func (s *SessionStore) UpdateLastActivity(ctx context.Context, token string) error {
	ts := strconv.FormatInt(s.now().Unix(), 10)
	if err := s.rdb.Set(ctx, lastActivityKey(token), ts, 0).Err(); err != nil {
		return errs.ErrStoreUnavailable.WrapMsg("set last activity", "err", err)
	}
	return nil
}

// GetLastActivity 返回 unix 秒；无标记或快存不可用返回 0。
func (s *SessionStore) GetLastActivity(ctx context.Context, token string) int64 {
	raw, err := s.rdb.Get(ctx, lastActivityKey(token)).Result()
	if err != nil {
		return 0
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

func (s *SessionStore) SetOnline(ctx context.Context, identityID string, online bool) error {
	val := "False"
	if online {
		val = "True"
	}
	if err := s.rdb.Set(ctx, onlineKey(identityID), val, 0).Err(); err != nil {
		return errs.ErrStoreUnavailable.WrapMsg("set online flag", "err", err)
	}
	return nil
}

// GetOnline 缺失视为离线。
func (s *SessionStore) GetOnline(ctx context.Context, identityID string) bool {
	raw, err := s.rdb.Get(ctx, onlineKey(identityID)).Result()
	if err != nil {
		return false
	}
	return raw == "True"
}

// ListIdentitySessions 某身份当前有效的全部 token。
func (s *SessionStore) ListIdentitySessions(ctx context.Context, email string) []string {
	members, err := s.rdb.SMembers(ctx, sessionsKey(email)).Result()
	if err != nil {
		return nil
	}
	return members
}
