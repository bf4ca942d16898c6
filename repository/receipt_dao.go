package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cydxin/roomchat-sdk/models"
)

// ReceiptDAO 封装 MessageReceipt 相关的数据库操作
//
// 约定：
// - 只做“数据访问”（CRUD/查询封装），不做业务编排（日志、降级策略等在 service 层）。
// - 事务边界应由 service 控制；如需在事务中执行，请使用 WithDB(tx)。
type ReceiptDAO struct {
	db *gorm.DB
}

func NewReceiptDAO(db *gorm.DB) *ReceiptDAO {
	return &ReceiptDAO{db: db}
}

// WithDB 用于在事务（tx）中复用 DAO
func (dao *ReceiptDAO) WithDB(db *gorm.DB) *ReceiptDAO {
	if db == nil {
		return dao
	}
	return &ReceiptDAO{db: db}
}

// BatchInsertIgnoreDuplicates 批量插入投递回执；撞 (message_id, recipient_id) 唯一索引时静默跳过。
func (dao *ReceiptDAO) BatchInsertIgnoreDuplicates(receipts []models.MessageReceipt) error {
	if len(receipts) == 0 {
		return nil
	}
	return dao.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipts).Error
}

// MarkRead 把指定接收者的若干消息回执从未读翻到已读（只触碰 read_at IS NULL 的行）。
// 返回实际翻转的行数。
func (dao *ReceiptDAO) MarkRead(messageIDs []uint64, recipientID uint64, readAt time.Time) (int64, error) {
	res := dao.db.Model(&models.MessageReceipt{}).
		Where("message_id IN ? AND recipient_id = ? AND read_at IS NULL", messageIDs, recipientID).
		Update("read_at", readAt)
	return res.RowsAffected, res.Error
}

// MarkReadOne 把单条消息对某接收者置为已读。不限定当前未读，
// 重复标记会刷新 read_at。返回命中的行数。
func (dao *ReceiptDAO) MarkReadOne(messageID, recipientID uint64, readAt time.Time) (int64, error) {
	res := dao.db.Model(&models.MessageReceipt{}).
		Where("message_id = ? AND recipient_id = ?", messageID, recipientID).
		Update("read_at", readAt)
	return res.RowsAffected, res.Error
}

// ReceiptCountRow 按消息聚合的回执计数
type ReceiptCountRow struct {
	MessageID uint64
	Total     int64
	ReadCount int64
}

// CountsByMessage 批量统计每条消息的回执总数/已读数。
func (dao *ReceiptDAO) CountsByMessage(messageIDs []uint64) ([]ReceiptCountRow, error) {
	var rows []ReceiptCountRow
	err := dao.db.Model(&models.MessageReceipt{}).
		Select("message_id, COUNT(*) AS total, COUNT(read_at) AS read_count").
		Where("message_id IN ?", messageIDs).
		Group("message_id").
		Scan(&rows).Error
	return rows, err
}

// ReceiptDetailRow 单条回执明细（带接收者用户名）
type ReceiptDetailRow struct {
	RecipientID uint64
	Username    string
	DeliveredAt time.Time
	ReadAt      *time.Time
}

// ListDetailsByMessage 查询一条消息的全部回执明细（JOIN 用户表取用户名）。
func (dao *ReceiptDAO) ListDetailsByMessage(messageID uint64) ([]ReceiptDetailRow, error) {
	receiptTable := models.MessageReceipt{}.TableName()
	userTable := models.User{}.TableName()

	var rows []ReceiptDetailRow
	err := dao.db.Model(&models.MessageReceipt{}).
		Select(fmt.Sprintf("%s.recipient_id, %s.username, %s.delivered_at, %s.read_at",
			receiptTable, userTable, receiptTable, receiptTable)).
		Joins(fmt.Sprintf("JOIN %s ON %s.id = %s.recipient_id", userTable, userTable, receiptTable)).
		Where(fmt.Sprintf("%s.message_id = ?", receiptTable), messageID).
		Scan(&rows).Error
	return rows, err
}

// UnreadRow 未读消息条目（回执 JOIN 消息）
type UnreadRow struct {
	MessageID   uint64
	RoomID      uint64
	SenderID    uint64
	Content     string
	DeliveredAt time.Time
}

// ListUnread 查询接收者的未读消息；roomID > 0 时限定单个房间。
func (dao *ReceiptDAO) ListUnread(recipientID, roomID uint64) ([]UnreadRow, error) {
	receiptTable := models.MessageReceipt{}.TableName()
	msgTable := models.Message{}.TableName()

	q := dao.db.Model(&models.MessageReceipt{}).
		Select(fmt.Sprintf("%s.id AS message_id, %s.room_id, %s.sender_id, %s.content, %s.delivered_at",
			msgTable, msgTable, msgTable, msgTable, receiptTable)).
		Joins(fmt.Sprintf("JOIN %s ON %s.id = %s.message_id", msgTable, msgTable, receiptTable)).
		Where(fmt.Sprintf("%s.recipient_id = ? AND %s.read_at IS NULL", receiptTable, receiptTable), recipientID)
	if roomID > 0 {
		q = q.Where(fmt.Sprintf("%s.room_id = ?", msgTable), roomID)
	}

	var rows []UnreadRow
	err := q.Order(msgTable + ".id ASC").Scan(&rows).Error
	return rows, err
}

// ListUnreadIDsInRoom 接收者在某房间内未读的 message_id 列表。
func (dao *ReceiptDAO) ListUnreadIDsInRoom(recipientID, roomID uint64) ([]uint64, error) {
	receiptTable := models.MessageReceipt{}.TableName()
	msgTable := models.Message{}.TableName()

	var ids []uint64
	err := dao.db.Model(&models.MessageReceipt{}).
		Joins(fmt.Sprintf("JOIN %s ON %s.id = %s.message_id", msgTable, msgTable, receiptTable)).
		Where(fmt.Sprintf("%s.recipient_id = ? AND %s.read_at IS NULL", receiptTable, receiptTable), recipientID).
		Where(fmt.Sprintf("%s.room_id = ?", msgTable), roomID).
		Pluck(receiptTable+".message_id", &ids).Error
	return ids, err
}
