package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenService_IssueAndValidate(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewTokenService(rdb, []byte("secret"))
	ctx := context.Background()

	token, err := s.IssueToken(ctx, 42, false)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	uid, err := s.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if uid != 42 {
		t.Fatalf("uid = %d, want 42", uid)
	}
}

func TestTokenService_RejectsTamperedToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewTokenService(rdb, []byte("secret"))
	ctx := context.Background()

	token, err := s.IssueToken(ctx, 42, false)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	other := NewTokenService(rdb, []byte("other-secret"))
	if _, err := other.ValidateToken(ctx, token); err == nil {
		t.Fatal("token signed with different secret must be rejected")
	}
}

func TestTokenService_SessionExpiryWins(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewTokenService(rdb, []byte("secret"))
	ctx := context.Background()

	token, err := s.IssueToken(ctx, 42, false)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	// 服务端会话过期后，JWT 即便验签通过也必须被拒绝
	mr.FastForward(defaultSessionTTL + time.Hour)
	if _, err := s.ValidateToken(ctx, token); err == nil {
		t.Fatal("expired server session must invalidate the token")
	}
}

func TestTokenService_ExpiredJWTStillValidWhileSessionAlive(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewTokenService(rdb, []byte("secret"))
	ctx := context.Background()

	// token 自带的 exp 已过期，但过期判定以服务端会话为准
	epoch := time.Now().Add(-48 * time.Hour)
	claims := &AccessClaims{
		UserID:     42,
		LoginEpoch: epoch.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(epoch),
			ExpiresAt: jwt.NewNumericDate(epoch.Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	key := fmt.Sprintf("im:session:%d:session-%d", 42, epoch.Unix())
	if err := rdb.Set(ctx, key, "1", time.Hour).Err(); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	uid, err := s.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if uid != 42 {
		t.Fatalf("uid = %d, want 42", uid)
	}
}

func TestTokenService_ValidateSlidesExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewTokenService(rdb, []byte("secret"))
	ctx := context.Background()

	token, err := s.IssueToken(ctx, 42, false)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	mr.FastForward(defaultSessionTTL - time.Hour)
	if _, err := s.ValidateToken(ctx, token); err != nil {
		t.Fatalf("validate near expiry: %v", err)
	}

	// 上一次校验已经续期，再过原本会过期的时长仍然有效
	mr.FastForward(defaultSessionTTL - time.Hour)
	if _, err := s.ValidateToken(ctx, token); err != nil {
		t.Fatalf("sliding expiry not applied: %v", err)
	}
}

func TestTokenService_RememberMeLongerTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewTokenService(rdb, []byte("secret"))
	ctx := context.Background()

	token, err := s.IssueToken(ctx, 42, true)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	// 超过普通会话 TTL 但在“记住我” TTL 之内
	mr.FastForward(defaultSessionTTL + 24*time.Hour)
	if _, err := s.ValidateToken(ctx, token); err != nil {
		t.Fatalf("remember-me session expired too early: %v", err)
	}
}

func TestTokenService_RevokeToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewTokenService(rdb, []byte("secret"))
	ctx := context.Background()

	token, err := s.IssueToken(ctx, 42, false)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if err := s.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if _, err := s.ValidateToken(ctx, token); err == nil {
		t.Fatal("revoked token must be rejected")
	}
}

func TestTokenService_RevokeAllSessionsByUser(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewTokenService(rdb, []byte("secret"))
	ctx := context.Background()

	token, err := s.IssueToken(ctx, 42, false)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if err := s.RevokeAllSessionsByUser(ctx, 42); err != nil {
		t.Fatalf("RevokeAllSessionsByUser: %v", err)
	}
	if _, err := s.ValidateToken(ctx, token); err == nil {
		t.Fatal("token must be invalid after revoking all sessions")
	}
}

func TestTokenService_RejectsZeroUserID(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewTokenService(rdb, []byte("secret"))

	claims := &AccessClaims{LoginEpoch: time.Now().Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.ParseClaims(token); err == nil {
		t.Fatal("claims without user_id must be rejected")
	}
}
