package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimitConfig 单个动作的限流配置
type RateLimitConfig struct {
	MaxRequests int           // 窗口内最大请求数
	Window      time.Duration // 滑动窗口长度
	KeyPrefix   string        // Redis key 前缀（区分动作）
}

// 预定义限流配置（按动作）
var (
	RateLimitSendMessage = RateLimitConfig{MaxRequests: 5, Window: 10 * time.Second, KeyPrefix: "send_message"}
	RateLimitJoinRoom    = RateLimitConfig{MaxRequests: 10, Window: 60 * time.Second, KeyPrefix: "join_room"}
	RateLimitTyping      = RateLimitConfig{MaxRequests: 20, Window: 10 * time.Second, KeyPrefix: "typing"}
	RateLimitReadAck     = RateLimitConfig{MaxRequests: 20, Window: 10 * time.Second, KeyPrefix: "read_ack"}

	// REST 分级
	RateLimitCreateRoom = RateLimitConfig{MaxRequests: 5, Window: 300 * time.Second, KeyPrefix: "room_create"}
	RateLimitInvite     = RateLimitConfig{MaxRequests: 20, Window: 300 * time.Second, KeyPrefix: "room_invite"}
	RateLimitMutation   = RateLimitConfig{MaxRequests: 100, Window: 60 * time.Second, KeyPrefix: "mutation"}
)

// RateLimitResult 限流检查结果
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration // 仅 denied 时有意义
}

// RateLimitService 滑动窗口限流器（Redis ZSet 实现）。
// 每次检查在一个 pipeline 里完成：清理过期 marker -> 读基数 -> 写入新 marker -> 续期。
// 拒绝时会尽力移除刚写入的 marker（第二次网络往返），使计数对后续调用尽量准确；
// 高并发下该补偿可能与并发请求交错，窗口计数视为近似值而非精确值。
// 任何 Redis 故障都 fail open：记日志并放行，可用性优先于严格限流。
type RateLimitService struct {
	rdb *redis.Client
}

func NewRateLimitService(rdb *redis.Client) *RateLimitService {
	return &RateLimitService{rdb: rdb}
}

func (s *RateLimitService) key(cfg RateLimitConfig, identifier string) string {
	return fmt.Sprintf("im:rl:%s:%s", cfg.KeyPrefix, identifier)
}

// failOpen 构造放行结果（后端故障时）
func failOpen(cfg RateLimitConfig, now time.Time) RateLimitResult {
	return RateLimitResult{
		Allowed:   true,
		Remaining: cfg.MaxRequests - 1,
		ResetTime: now.Add(cfg.Window),
	}
}

// Check 检查 identifier 在该动作上是否超限。
func (s *RateLimitService) Check(ctx context.Context, identifier string, cfg RateLimitConfig) RateLimitResult {
	now := time.Now()
	if s == nil || s.rdb == nil {
		return failOpen(cfg, now)
	}

	key := s.key(cfg, identifier)
	windowStart := now.Add(-cfg.Window)
	// 随机后缀防止同毫秒 marker 碰撞
	member := fmt.Sprintf("%d-%d", now.UnixMilli(), rand.Int63())

	pipe := s.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixMilli(), 10))
	cardCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe.Expire(ctx, key, cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("rate limit check failed (fail open): key=%s err=%v", key, err)
		return failOpen(cfg, now)
	}

	count := int(cardCmd.Val()) // 插入前的窗口计数
	if count >= cfg.MaxRequests {
		// 拒绝：把刚加的 marker 移除，保持计数准确（尽力而为）
		if err := s.rdb.ZRem(ctx, key, member).Err(); err != nil {
			log.Printf("rate limit marker rollback failed: key=%s err=%v", key, err)
		}

		retryAfter := cfg.Window
		if oldest, err := s.rdb.ZRangeWithScores(ctx, key, 0, 0).Result(); err == nil && len(oldest) > 0 {
			oldestAt := time.UnixMilli(int64(oldest[0].Score))
			if d := oldestAt.Add(cfg.Window).Sub(now); d > 0 {
				retryAfter = d
			}
		}

		remaining := cfg.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		return RateLimitResult{
			Allowed:    false,
			Remaining:  remaining,
			ResetTime:  now.Add(retryAfter),
			RetryAfter: retryAfter,
		}
	}

	remaining := cfg.MaxRequests - count - 1
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{
		Allowed:   true,
		Remaining: remaining,
		ResetTime: now.Add(cfg.Window),
	}
}
