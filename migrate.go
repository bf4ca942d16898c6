package roomchat_sdk

import (
	"log"

	model "github.com/cydxin/roomchat-sdk/models"
)

// AutoMigrate 建表/补列。五张表：用户、房间、成员、消息、回执。
func (c *ChatEngine) AutoMigrate() error {
	db := c.config.DB
	log.Println("AutoMigrate...")
	return db.AutoMigrate(
		&model.User{},
		&model.Room{},
		&model.RoomMember{},
		&model.Message{},
		&model.MessageReceipt{},
	)
}
