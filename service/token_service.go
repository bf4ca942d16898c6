package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// 默认会话过期时间（服务端滑动过期；“记住我”时更长）
	defaultSessionTTL  = 20 * 24 * time.Hour
	rememberSessionTTL = 30 * 24 * time.Hour
)

// AccessClaims 访问令牌负载。
// 注意：JWT 自带的 exp 只是形式上存在，真正的过期由服务端会话 TTL 决定，
// 这样可以做到服务端强制下线（删除会话 key 即可，不用等 token 过期）。
type AccessClaims struct {
	UserID     uint64 `json:"user_id"`
	LoginEpoch int64  `json:"login_epoch"` // 登录时刻（秒），参与会话 key
	Remember   bool   `json:"remember"`    // 记住我：会话 TTL 30 天，否则 20 天
	jwt.RegisteredClaims
}

// TokenService 负责访问令牌的签发、校验与注销。
// Redis Key 设计：
// - im:session:{userID}:session-{loginEpoch} -> "1" (String, TTL = 会话有效期)
// - im:user_sessions:{userID} -> Set(loginEpoch...) (Set, 用于全端注销)
//
// 校验流程：
// 1. 验签（HS256），忽略 token 自带的 exp
// 2. 查会话 key 的 TTL，非正值一律视为已注销/过期
// 3. 校验通过后对会话续期（滑动过期）
type TokenService struct {
	rdb    *redis.Client
	secret []byte

	sessionTTL  time.Duration
	rememberTTL time.Duration
}

func NewTokenService(rdb *redis.Client, secret []byte) *TokenService {
	return &TokenService{
		rdb:         rdb,
		secret:      secret,
		sessionTTL:  defaultSessionTTL,
		rememberTTL: rememberSessionTTL,
	}
}

func (s *TokenService) ensure() error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	if len(s.secret) == 0 {
		return fmt.Errorf("jwt secret is empty")
	}
	return nil
}

func (s *TokenService) sessionKey(userID uint64, loginEpoch int64) string {
	return fmt.Sprintf("im:session:%d:session-%d", userID, loginEpoch)
}

func (s *TokenService) userSessionsKey(userID uint64) string {
	return fmt.Sprintf("im:user_sessions:%d", userID)
}

func (s *TokenService) ttlFor(remember bool) time.Duration {
	if remember {
		return s.rememberTTL
	}
	return s.sessionTTL
}

// IssueToken 签发访问令牌并建立服务端会话。
func (s *TokenService) IssueToken(ctx context.Context, userID uint64, remember bool) (string, error) {
	if err := s.ensure(); err != nil {
		return "", err
	}
	now := time.Now()
	ttl := s.ttlFor(remember)
	claims := &AccessClaims{
		UserID:     userID,
		LoginEpoch: now.Unix(),
		Remember:   remember,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.sessionKey(userID, claims.LoginEpoch), "1", ttl)
	pipe.SAdd(ctx, s.userSessionsKey(userID), claims.LoginEpoch)
	// user session set 的 TTL 不是必须；设置为略大于会话 TTL，方便自动清理
	pipe.Expire(ctx, s.userSessionsKey(userID), ttl+24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

// ParseClaims 只做验签（忽略 exp），不查会话。
func (s *TokenService) ParseClaims(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("token 无效: %w", err)
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("token 无效: 缺少 user_id")
	}
	return claims, nil
}

// ValidateToken 完整校验：验签 + 服务端会话 TTL，成功后滑动续期。
func (s *TokenService) ValidateToken(ctx context.Context, token string) (uint64, error) {
	if err := s.ensure(); err != nil {
		return 0, err
	}
	claims, err := s.ParseClaims(token)
	if err != nil {
		return 0, err
	}

	key := s.sessionKey(claims.UserID, claims.LoginEpoch)
	ttl, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// -2: key 不存在；-1: 无 TTL（不应出现）。非正值一律视为已注销。
	if ttl <= 0 {
		return 0, fmt.Errorf("会话已过期或已被注销")
	}

	// 滑动过期：校验成功就续期
	_ = s.rdb.Expire(ctx, key, s.ttlFor(claims.Remember)).Err()
	return claims.UserID, nil
}

// RevokeToken 注销单个 token 对应的会话（服务端强制下线）。
func (s *TokenService) RevokeToken(ctx context.Context, token string) error {
	if err := s.ensure(); err != nil {
		return err
	}
	claims, err := s.ParseClaims(token)
	if err != nil {
		// 验签都过不了的 token 无会话可注销
		return nil
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.sessionKey(claims.UserID, claims.LoginEpoch))
	pipe.SRem(ctx, s.userSessionsKey(claims.UserID), claims.LoginEpoch)
	_, err = pipe.Exec(ctx)
	return err
}

// RevokeAllSessionsByUser 注销用户全部会话（全端强制下线）。
func (s *TokenService) RevokeAllSessionsByUser(ctx context.Context, userID uint64) error {
	if err := s.ensure(); err != nil {
		return err
	}
	epochs, err := s.rdb.SMembers(ctx, s.userSessionsKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return err
	}
	pipe := s.rdb.TxPipeline()
	for _, e := range epochs {
		var epoch int64
		if _, err := fmt.Sscanf(e, "%d", &epoch); err != nil {
			continue
		}
		pipe.Del(ctx, s.sessionKey(userID, epoch))
	}
	pipe.Del(ctx, s.userSessionsKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}
