package roomchat_sdk

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/cydxin/roomchat-sdk/metrics"
	"github.com/cydxin/roomchat-sdk/middleware"
	"github.com/cydxin/roomchat-sdk/models"
	"github.com/cydxin/roomchat-sdk/service"
)

type ChatEngine struct {
	config *Config

	UserService      *service.UserService
	RoomService      *service.RoomService
	MsgService       *service.MessageService
	MemberService    *service.MemberService
	AuthService      *service.AuthService // 鉴权服务
	ReceiptService   *service.ReceiptService
	PresenceService  *service.PresenceService
	RateLimitService *service.RateLimitService
	WsServer         *WsServer
}

var (
	Instance *ChatEngine
	once     sync.Once
)

// NewEngine 创建实例
// 使用选项模式传入配置，Option回调
func NewEngine(opts ...Option) *ChatEngine {
	once.Do(func() {
		c := &Config{
			TablePrefix: "im_", // Default
		}
		for _, opt := range opts {
			opt(c)
		}
		if c.JWTSecret == "" {
			log.Println("warning: JWTSecret 未配置，令牌签发/校验将不可用")
		}
		// 表前缀要在任何 DAO/迁移动作之前生效
		models.SetTablePrefix(c.TablePrefix)

		Instance = &ChatEngine{config: c}

		// 初始化 WS
		Instance.WsServer = NewWsServer()
		go Instance.WsServer.Run()

		// 初始化基础 Service，注入 WsNotifier 回调
		baseService := &service.Service{
			DB:          c.DB,
			RDB:         c.RDB,
			TablePrefix: c.TablePrefix,
			WsNotifier:  Instance.WsServer.SendToUser, // 注入 WebSocket 通知函数
		}

		// 回执/在线状态先建好，挂回 baseService 供其他 service 使用
		Instance.ReceiptService = service.NewReceiptService(baseService)
		Instance.PresenceService = service.NewPresenceService(baseService)
		baseService.Receipt = Instance.ReceiptService
		baseService.Presence = Instance.PresenceService

		Instance.AuthService = service.NewAuthService(c.RDB, []byte(c.JWTSecret))
		Instance.RateLimitService = service.NewRateLimitService(c.RDB)
		Instance.UserService = service.NewUserService(baseService, Instance.AuthService.Token())
		Instance.RoomService = service.NewRoomService(baseService)
		Instance.MsgService = service.NewMessageService(baseService)
		Instance.MemberService = service.NewMemberService(baseService, c.JWTSecret)

		// 迁移表
		if err := Instance.AutoMigrate(); err != nil {
			log.Printf("AutoMigrate failed: %v", err)
		}

		// 绑定 WS 事件回调
		Instance.bindWsHandlers()
	})

	return Instance
}

// ServeWS 处理 WebSocket 请求。
// 升级前完成鉴权：JWT 验签（忽略自带 exp）+ Redis 会话 TTL；失败回 401，不升级。
func (c *ChatEngine) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, _, err := c.AuthService.AuthenticateRequest(r.Context(), r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := c.UserService.GetUser(userID)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	metrics.WsConnections.Inc()
	c.PresenceService.SetUserOnline(r.Context(), userID, "")
	c.WsServer.ServeWS(w, r, userID, user.Username, user.FirstName, user.LastName)
}

// HandleWS 返回 WebSocket 的Handler
func (c *ChatEngine) HandleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.ServeWS(w, r)
	}
}

// GinAuthMiddleware 返回配置好的 Gin 鉴权中间件
// 使用 ChatEngine 内部的 AuthService 和 Redis 配置
//
// 使用示例:
//
//	engine := roomchat_sdk.NewEngine(...)
//	r := gin.Default()
//	r.Use(engine.GinAuthMiddleware(nil)) // 使用默认配置
func (c *ChatEngine) GinAuthMiddleware(opt *middleware.AuthOptions) gin.HandlerFunc {
	return middleware.GinAuthMiddleware(c.AuthService, opt)
}

// GinRateLimitMiddleware 返回 REST 分级限流中间件。
func (c *ChatEngine) GinRateLimitMiddleware() gin.HandlerFunc {
	return middleware.GinRateLimitMiddleware(c.RateLimitService)
}

// RevokeAllSessions 注销用户全部会话的快捷入口（管理用）。
func (c *ChatEngine) RevokeAllSessions(ctx context.Context, userID uint64) error {
	return c.AuthService.RevokeAllSessionsByUser(ctx, userID)
}
