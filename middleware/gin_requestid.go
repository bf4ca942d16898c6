package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cydxin/roomchat-sdk/response"
)

// GinRequestID 为每个请求生成 requestId，写入 context 和响应头。
// 客户端带了 X-Request-ID 则沿用（便于跨服务追踪）。
func GinRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(response.ContextRequestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
