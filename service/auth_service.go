package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"
)

// AuthService 提供“鉴权核心能力”，供调用方自建中间件/拦截器使用。
// - 解析 token（Bearer 优先，其次 query）
// - 校验 token -> userID（JWT 验签 + Redis 会话 TTL）
// - 注销会话 / 注销用户全部会话
//
// Gin 等框架的中间件建议作为单独适配层，内部调用该 service。
type AuthService struct {
	token *TokenService
}

func NewAuthService(rdb *redis.Client, secret []byte) *AuthService {
	return &AuthService{token: NewTokenService(rdb, secret)}
}

// Token 暴露底层 TokenService（签发/注销用）。
func (a *AuthService) Token() *TokenService {
	return a.token
}

// ExtractToken 从 HTTP 请求中提取 token：优先 Authorization: Bearer，其次 query: token。
func (a *AuthService) ExtractToken(r *http.Request) string {
	if r == nil {
		return ""
	}

	// Authorization: Bearer <token>
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah != "" {
		parts := strings.SplitN(ah, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// query: ?token=xxx
	q := r.URL.Query().Get("token")
	return strings.TrimSpace(q)
}

// Authenticate 根据 token 获取 userID。
func (a *AuthService) Authenticate(ctx context.Context, token string) (uint64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, fmt.Errorf("missing token")
	}
	return a.token.ValidateToken(ctx, token)
}

// AuthenticateRequest 从请求里抽 token 并鉴权。
func (a *AuthService) AuthenticateRequest(ctx context.Context, r *http.Request) (uint64, string, error) {
	t := a.ExtractToken(r)
	uid, err := a.Authenticate(ctx, t)
	return uid, t, err
}

// RevokeToken 注销单个 token 的会话。
func (a *AuthService) RevokeToken(ctx context.Context, token string) error {
	return a.token.RevokeToken(ctx, token)
}

// RevokeAllSessionsByUser 注销用户全部会话。
func (a *AuthService) RevokeAllSessionsByUser(ctx context.Context, userID uint64) error {
	return a.token.RevokeAllSessionsByUser(ctx, userID)
}
