package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"AProject/service/storage"
	"AProject/tools/errs"
)

// —— context key ——
// 后续 handler 统一用这俩 key 读取
const (
	CtxTokenKey    = "authToken"    // string
	CtxIdentityKey = "authIdentity" // *storage.Identity
)

type Options struct {
	// 读取哪个请求头
	HeaderToken               string // 默认 "authorization"
	EnableAuthorizationBearer bool   // 默认 true
}

func DefaultOptions() *Options {
	return &Options{
		HeaderToken:               "authorization",
		EnableAuthorizationBearer: true,
	}
}

// Middleware bearer 令牌校验：会话存在即放行，当前身份写入 context，
// 并顺手刷新该 token 的活跃时间。会话缺失一律当"请重新登录"。
func Middleware(sessions *storage.SessionStore, opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))

		// 兼容 Authorization: Bearer xxx
		if token == "" && opts.EnableAuthorizationBearer {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
				if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					token = strings.TrimSpace(authz[len("bearer "):])
				}
			}
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenMissing)
			return
		}

		id := sessions.GetIdentityByToken(c.Request.Context(), token)
		if id == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired)
			return
		}

		// 每个带会话的请求都算一次活跃；写失败不挡请求
		_ = sessions.UpdateLastActivity(c.Request.Context(), token)

		c.Set(CtxTokenKey, token)
		c.Set(CtxIdentityKey, id)
		c.Next()
	}
}

// IdentityFrom 从 gin context 取当前身份
func IdentityFrom(c *gin.Context) *storage.Identity {
	v, ok := c.Get(CtxIdentityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*storage.Identity)
	return id
}

// TokenFrom 从 gin context 取当前 token
func TokenFrom(c *gin.Context) string {
	v, ok := c.Get(CtxTokenKey)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
