package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cydxin/roomchat-sdk/response"
	"github.com/cydxin/roomchat-sdk/service"
)

// pickRateLimitRule 按方法 + 路径选限流档位。
// 普通 GET 不限流；创建房间和邀请有独立的更严档位；其余写操作走通用档。
func pickRateLimitRule(method, path string) *service.RateLimitConfig {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return nil
	}
	if method == http.MethodPost {
		if strings.HasSuffix(path, "/invite") {
			return &service.RateLimitInvite
		}
		if strings.HasSuffix(path, "/rooms") {
			return &service.RateLimitCreateRoom
		}
	}
	return &service.RateLimitMutation
}

// GinRateLimitMiddleware REST 分级限流。
// 已登录按 userID 计数，匿名按客户端 IP；响应带 X-RateLimit-* 头，
// 超限返回 429 + Retry-After。
func GinRateLimitMiddleware(limiter *service.RateLimitService) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := pickRateLimitRule(c.Request.Method, c.FullPath())
		if cfg == nil {
			c.Next()
			return
		}

		identifier := "ip:" + c.ClientIP()
		if uid, ok := c.Get(ContextUserIDKey); ok {
			if id, ok := uid.(uint64); ok && id > 0 {
				identifier = "user:" + strconv.FormatUint(id, 10)
			}
		}

		rl := limiter.Check(c.Request.Context(), identifier, *cfg)
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(rl.ResetTime.Unix(), 10))

		if !rl.Allowed {
			retry := int64(rl.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retry, 10))
			response.AbortFail(c, http.StatusTooManyRequests, "请求太频繁，请稍后再试", gin.H{
				"retryAfter": retry,
			})
			return
		}
		c.Next()
	}
}
