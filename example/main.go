package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	roomchat_sdk "github.com/cydxin/roomchat-sdk"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	// 1. 初始化数据库连接
	dsn := envOr("ROOMCHAT_DSN", "root:password@tcp(127.0.0.1:3306)/roomchat?charset=utf8mb4&parseTime=True&loc=Local")
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("数据库连接失败:", err)
	}

	// 2. 初始化 Redis（会话 / 限流 / 在线状态都依赖它）
	rdb := redis.NewClient(&redis.Options{
		Addr: envOr("ROOMCHAT_REDIS_ADDR", "127.0.0.1:6379"),
	})

	// 3. 初始化 Chat Engine（单例模式，全局只需调用一次）
	engine := roomchat_sdk.NewEngine(
		roomchat_sdk.WithDB(db),
		roomchat_sdk.WithRDB(rdb),
		roomchat_sdk.WithJWTSecret(envOr("ROOMCHAT_JWT_SECRET", "dev-secret-change-me")),
		roomchat_sdk.WithBlockedWords("spam", "scam"),
	)

	// 4. 创建 Gin 路由
	r := gin.Default()

	// CORS（按需收紧）
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// 注册 Swagger UI
	roomchat_sdk.RegisterSwagger(r, "/swagger/*any")

	// Prometheus 指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 5. REST + WebSocket 路由
	// 客户端连接：ws://localhost:6789/ws?token=<登录返回的JWT>
	engine.RegisterRoutes(r)

	// 6. 启动服务器
	log.Println("RoomChat Server 启动在 :6789")
	log.Println("Swagger UI: http://localhost:6789/swagger/index.html")
	log.Println("WebSocket 地址: ws://localhost:6789/ws?token=YOUR_TOKEN")
	if err := r.Run(":6789"); err != nil {
		log.Fatal("服务器启动失败:", err)
	}
}
