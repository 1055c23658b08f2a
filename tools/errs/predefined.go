package errs

// 错误码分段：5xx 系统/基础设施，14xx 令牌，15xx 会话与状态
const (
	ServerInternalError = 500
	ArgsError           = 400

	TokenExpiredError   = 1401
	TokenMalformedError = 1402
	TokenMissingError   = 1403

	InvalidCredentialsCode = 1501
	UserExistsCode         = 1502
	UserNotFoundCode       = 1503
	StoreUnavailableCode   = 1504
	SessionCheckCode       = 1505
	StatusSyncCode         = 1506
)

var (
	ErrInternalServer = NewCodeError(ServerInternalError, "server internal error")
	ErrArgs           = NewCodeError(ArgsError, "args error")

	ErrTokenExpired   = NewCodeError(TokenExpiredError, "token expired")
	ErrTokenMalformed = NewCodeError(TokenMalformedError, "token malformed")
	ErrTokenMissing   = NewCodeError(TokenMissingError, "token missing")

	ErrInvalidCredentials = NewCodeError(InvalidCredentialsCode, "invalid credentials")
	ErrUserExists         = NewCodeError(UserExistsCode, "user already exists")
	ErrUserNotFound       = NewCodeError(UserNotFoundCode, "user not found")

	// ErrStoreUnavailable 快存写入失败；登录/登出关键路径必须暴露，
	// 否则在线标记会卡在旧状态
	ErrStoreUnavailable = NewCodeError(StoreUnavailableCode, "session store unavailable")

	// ErrSessionCheck / ErrStatusSync 调度任务级错误，只进日志不外抛
	ErrSessionCheck = NewCodeError(SessionCheckCode, "session check failed")
	ErrStatusSync   = NewCodeError(StatusSyncCode, "status sync failed")
)
