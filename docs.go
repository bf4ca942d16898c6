// Package roomchat_sdk 提供房间制实时聊天后端核心能力
// @title RoomChat SDK API
// @version 1.0
// @description 房间制聊天 SDK 的 RESTful API 文档，包含用户、房间、消息、回执、在线状态等模块
// @description
// @description ## 响应格式
// @description 所有接口统一返回格式：
// @description ```json
// @description {
// @description   "success": true,
// @description   "message": "OK",
// @description   "statusCode": 200,
// @description   "timestamp": "2026-01-01T00:00:00Z",
// @description   "requestId": "…",
// @description   "data": {}
// @description }
// @description ```
// @description
// @description ## 限流
// @description 写接口按用户分级限流，命中后返回 429，响应头携带
// @description X-RateLimit-Limit / X-RateLimit-Remaining / X-RateLimit-Reset / Retry-After。
//
// @termsOfService https://github.com/cydxin/roomchat-sdk
//
// @contact.name API Support
// @contact.url https://github.com/cydxin/roomchat-sdk/issues
// @contact.email support@example.com
//
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
//
// @host localhost:6789
// @BasePath /api/v1
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description 格式：Bearer <token>
//
// @securityDefinitions.apikey QueryToken
// @in query
// @name token
// @description 用于 WebSocket 等无法传 header 的场景
package roomchat_sdk
