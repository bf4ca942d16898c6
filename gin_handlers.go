package roomchat_sdk

import (
	"github.com/gin-gonic/gin"

	"github.com/cydxin/roomchat-sdk/metrics"
	"github.com/cydxin/roomchat-sdk/middleware"
)

// RegisterRoutes 把 SDK 的全部 REST 路由挂到 Gin 引擎上。
// 中间件链：请求 ID → 指标 → (鉴权 → 限流，仅受保护路由)。
//
// 使用示例：
//
//	engine := roomchat_sdk.NewEngine(...)
//	r := gin.Default()
//	engine.RegisterRoutes(r)
//	r.Run(":6789")
func (c *ChatEngine) RegisterRoutes(r *gin.Engine) {
	r.Use(middleware.GinRequestID(), metrics.GinMiddleware())

	api := r.Group("/api/v1")

	// 公开接口
	api.POST("/user/register", c.GinHandleUserRegister)
	api.POST("/user/login", c.GinHandleUserLogin)

	// 受保护接口
	authed := api.Group("")
	authed.Use(c.GinAuthMiddleware(nil), c.GinRateLimitMiddleware())
	{
		authed.POST("/user/logout", c.GinHandleUserLogout)
		authed.GET("/user/me", c.GinHandleGetMe)
		authed.GET("/user/:id", c.GinHandleGetUserInfo)

		authed.POST("/rooms", c.GinHandleCreateRoom)
		authed.GET("/rooms", c.GinHandleGetUserRooms)
		authed.POST("/rooms/:roomId/join", c.GinHandleJoinRoom)
		authed.POST("/rooms/:roomId/leave", c.GinHandleLeaveRoom)
		authed.POST("/rooms/:roomId/invite", c.GinHandleCreateInvite)
		authed.GET("/rooms/:roomId/members", c.GinHandleGetRoomMembers)
		authed.GET("/rooms/:roomId/presence", c.GinHandleGetRoomPresence)
		authed.GET("/rooms/:roomId/messages", c.GinHandleGetRoomMessages)

		authed.GET("/messages/:messageId/receipts", c.GinHandleGetMessageReceipts)
		authed.GET("/messages/unread", c.GinHandleGetUnreadMessages)
	}

	// WebSocket 网关，鉴权在升级前由 ServeWS 自己完成
	r.GET("/ws", gin.WrapF(c.ServeWS))
}
