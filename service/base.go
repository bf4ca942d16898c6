package service

import (
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Service 基础服务，包含数据库和配置
type Service struct {
	DB          *gorm.DB
	RDB         *redis.Client
	TablePrefix string

	// WsNotifier 用于发送 WebSocket 通知的回调函数
	// 避免循环依赖，通过函数注入的方式
	WsNotifier func(userID uint64, message []byte)

	// Receipt 回执服务（消息投递/已读账本）
	Receipt *ReceiptService

	// Presence 在线状态服务
	Presence *PresenceService
}

// Table 按裸表名（不含前缀）取查询句柄
func (s *Service) Table(name string) *gorm.DB {
	return s.DB.Table(s.TablePrefix + name)
}
