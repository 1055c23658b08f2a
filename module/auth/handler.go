package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mid "AProject/middleware/security"
	"AProject/service/rpc"
	"AProject/service/storage"
	"AProject/tools/errs"
)

// Deps 网关 handler 的依赖，全部显式注入
type Deps struct {
	Caller   *rpc.SyncCaller
	Sessions *storage.SessionStore
	Timeout  time.Duration
}

type credentialsReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type oauthReq struct {
	Provider string `json:"provider" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

// RegisterRoutes 挂网关路由。认证类操作全部经 broker 转发给认证节点。
func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", d.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/auth", d.handleLogin)
		v1.POST("/register", d.handleRegister)
		v1.POST("/oauth", d.handleOAuth)
	}

	authed := v1.Group("")
	authed.Use(mid.Middleware(d.Sessions, nil))
	{
		authed.POST("/logout", d.handleLogout)
		authed.GET("/me", d.handleMe)
	}
}

func (d Deps) handleLogin(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}
	d.forward(c, rpc.ActionAuthenticate, map[string]any{
		"email":    req.Email,
		"password": req.Password,
	})
}

func (d Deps) handleRegister(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}
	d.forward(c, rpc.ActionRegister, map[string]any{
		"email":    req.Email,
		"password": req.Password,
	})
}

func (d Deps) handleOAuth(c *gin.Context) {
	var req oauthReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}
	d.forward(c, rpc.ActionOAuth, map[string]any{
		"provider": req.Provider,
		"email":    req.Email,
	})
}

func (d Deps) handleLogout(c *gin.Context) {
	token := mid.TokenFrom(c)
	d.forward(c, rpc.ActionLogout, map[string]any{"token": token})
}

func (d Deps) handleMe(c *gin.Context) {
	id := mid.IdentityFrom(c)
	if id == nil {
		c.JSON(http.StatusUnauthorized, errs.ErrTokenExpired)
		return
	}
	c.JSON(http.StatusOK, id)
}

func (d Deps) handleHealth(c *gin.Context) {
	ok, status := rpc.CheckHealth(c.Request.Context(), d.Caller, d.Timeout)
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": string(status)})
}

// forward 经 broker 转发一次认证动作并把结果翻译成 HTTP。
// 传输层失败 -> 503；对端业务错误 -> 对应状态码；其余原样透传。
func (d Deps) forward(c *gin.Context, action string, data map[string]any) {
	reply, kind := d.Caller.Do(c.Request.Context(), rpc.SubjectAuth, rpc.Request{
		Action: action,
		Data:   data,
	}, d.Timeout)

	if kind.Transient() || kind == rpc.KindUnknown {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": reply["error"]})
		return
	}
	if msg, ok := reply.BusinessError(); ok {
		c.JSON(statusForReply(reply), gin.H{"detail": msg})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func statusForReply(reply rpc.Reply) int {
	code, _ := reply["code"].(float64)
	switch int(code) {
	case errs.InvalidCredentialsCode, errs.TokenExpiredError, errs.TokenMissingError:
		return http.StatusUnauthorized
	case errs.UserExistsCode:
		return http.StatusConflict
	case errs.UserNotFoundCode:
		return http.StatusNotFound
	case errs.ArgsError:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
