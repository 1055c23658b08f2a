package security

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"AProject/tools/errs"
)

// ExpiresAtLayout 令牌里 expires_at 声明的格式（UTC）
const ExpiresAtLayout = "2006-01-02 15:04:05"

// Options 控制签名与TTL等参数。
type Options struct {
	Secret []byte        // HMAC 密钥（生产用ENV/KMS）
	Alg    string        // HS256/HS384/HS512（默认 HS256）
	TTL    time.Duration // 令牌有效期（默认 24h）
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 24 * time.Hour}
}

// Claims 解码后的最小载荷：主体身份 + 过期时间
type Claims struct {
	Identity  string
	ExpiresAt time.Time
}

func (c Claims) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

// Generate issues a signed token carrying sub and a formatted expires_at claim.
func Generate(opts Options, identity string) (token string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	now := time.Now().UTC()
	exp := now.Add(opts.TTL)

	claims := jwtlib.MapClaims{
		"sub":        identity,
		"iat":        now.Unix(),
		"expires_at": exp.Format(ExpiresAtLayout),
	}

	tok := jwtlib.NewWithClaims(method, claims)
	signed, err := tok.SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Decode verifies the signature and returns the claims.
// Expiry is not enforced here: callers decide (the sweep needs to see
// expired tokens to resolve the identity they belonged to).
// Returns ErrTokenMalformed on anything that fails signature or shape checks.
func Decode(opts Options, token string) (Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, errs.ErrTokenMissing
	}
	if _, err := signingMethod(opts.Alg); err != nil {
		return Claims{}, err
	}
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// 仅允许 HMAC 家族
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, errs.ErrTokenMalformed.WrapMsg("parse", "err", err)
	}
	mc, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, errs.ErrTokenMalformed.WrapMsg("claims type mismatch")
	}
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return Claims{}, errs.ErrTokenMalformed.WrapMsg("missing sub")
	}
	raw, _ := mc["expires_at"].(string)
	exp, err := time.ParseInLocation(ExpiresAtLayout, raw, time.UTC)
	if err != nil {
		return Claims{}, errs.ErrTokenMalformed.WrapMsg("bad expires_at", "value", raw)
	}
	return Claims{Identity: sub, ExpiresAt: exp}, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
}
