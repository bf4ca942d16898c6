package service

import (
	"log"
	"time"

	"github.com/cydxin/roomchat-sdk/cons"
	"github.com/cydxin/roomchat-sdk/models"
	"github.com/cydxin/roomchat-sdk/repository"
)

// ReceiptService 消息回执台账：投递记录 + 已读标记。
// 回执属于尽力而为的辅助数据，所有方法吞掉存储错误并记日志，
// 返回安全零值，绝不让回执失败阻断消息主链路。
type ReceiptService struct {
	*Service
	dao *repository.ReceiptDAO
}

func NewReceiptService(s *Service) *ReceiptService {
	return &ReceiptService{Service: s, dao: repository.NewReceiptDAO(s.DB)}
}

// CreateDeliveryReceipts 为一条消息的全部接收者批量写投递回执。
// (message_id, recipient_id) 唯一索引 + skip duplicates，重复投递静默跳过。
func (s *ReceiptService) CreateDeliveryReceipts(messageID uint64, recipientIDs []uint64) {
	if messageID == 0 || len(recipientIDs) == 0 {
		return
	}

	receipts := make([]models.MessageReceipt, 0, len(recipientIDs))
	for _, rid := range recipientIDs {
		if rid == 0 {
			continue
		}
		receipts = append(receipts, models.MessageReceipt{
			MessageID:   messageID,
			RecipientID: rid,
		})
	}
	if err := s.dao.BatchInsertIgnoreDuplicates(receipts); err != nil {
		log.Printf("create delivery receipts failed: msg=%d err=%v", messageID, err)
	}
}

// MarkAsRead 标记单条消息对某接收者已读；重复标记会刷新 read_at。
// 返回是否有回执行被命中。
func (s *ReceiptService) MarkAsRead(messageID, recipientID uint64) bool {
	if messageID == 0 || recipientID == 0 {
		return false
	}
	n, err := s.dao.MarkReadOne(messageID, recipientID, time.Now())
	if err != nil {
		log.Printf("mark as read failed: msg=%d user=%d err=%v", messageID, recipientID, err)
		return false
	}
	return n > 0
}

// MarkMultipleAsRead 批量标记已读，只触碰未读的行，返回实际翻转的条数。
// 幂等：重复调用返回 0。
func (s *ReceiptService) MarkMultipleAsRead(messageIDs []uint64, recipientID uint64) int64 {
	if len(messageIDs) == 0 || recipientID == 0 {
		return 0
	}
	n, err := s.dao.MarkRead(messageIDs, recipientID, time.Now())
	if err != nil {
		log.Printf("mark multiple as read failed: user=%d err=%v", recipientID, err)
		return 0
	}
	return n
}

// MessageReceiptDetail 单条回执明细（带接收者信息）
type MessageReceiptDetail struct {
	RecipientID uint64     `json:"recipientId"`
	Username    string     `json:"username"`
	DeliveredAt time.Time  `json:"deliveredAt"`
	ReadAt      *time.Time `json:"readAt"`
}

// GetMessageReceipts 查询一条消息的全部回执明细。
func (s *ReceiptService) GetMessageReceipts(messageID uint64) []MessageReceiptDetail {
	if messageID == 0 {
		return nil
	}
	rows, err := s.dao.ListDetailsByMessage(messageID)
	if err != nil {
		log.Printf("get message receipts failed: msg=%d err=%v", messageID, err)
		return nil
	}
	out := make([]MessageReceiptDetail, len(rows))
	for i, r := range rows {
		out[i] = MessageReceiptDetail{
			RecipientID: r.RecipientID,
			Username:    r.Username,
			DeliveredAt: r.DeliveredAt,
			ReadAt:      r.ReadAt,
		}
	}
	return out
}

// MessageReadSummary 消息的聚合已读状态
type MessageReadSummary struct {
	MessageID  uint64 `json:"messageId"`
	Total      int64  `json:"total"`
	ReadCount  int64  `json:"readCount"`
	ReadStatus string `json:"readStatus"`
}

// computeReadStatus 聚合状态是 (total, read) 的纯函数。
func computeReadStatus(total, read int64) string {
	switch {
	case total == 0:
		return cons.ReadStatusNoRecipients
	case read == 0:
		return cons.ReadStatusUnread
	case read < total:
		return cons.ReadStatusPartiallyRead
	default:
		return cons.ReadStatusAllRead
	}
}

// GetMessagesWithReceipts 批量查询消息的聚合已读状态。
// 没有任何回执行的消息也会出现在结果里（no_recipients）。
func (s *ReceiptService) GetMessagesWithReceipts(messageIDs []uint64) map[uint64]MessageReadSummary {
	result := make(map[uint64]MessageReadSummary, len(messageIDs))
	for _, id := range messageIDs {
		result[id] = MessageReadSummary{MessageID: id, ReadStatus: cons.ReadStatusNoRecipients}
	}
	if len(messageIDs) == 0 {
		return result
	}

	rows, err := s.dao.CountsByMessage(messageIDs)
	if err != nil {
		log.Printf("get messages with receipts failed: err=%v", err)
		return result
	}
	for _, row := range rows {
		result[row.MessageID] = MessageReadSummary{
			MessageID:  row.MessageID,
			Total:      row.Total,
			ReadCount:  row.ReadCount,
			ReadStatus: computeReadStatus(row.Total, row.ReadCount),
		}
	}
	return result
}

// UnreadMessage 未读消息条目
type UnreadMessage struct {
	MessageID   uint64    `json:"messageId"`
	RoomID      uint64    `json:"roomId"`
	SenderID    uint64    `json:"senderId"`
	Content     string    `json:"content"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// GetUnreadMessages 查询用户的未读消息；roomID > 0 时限定单个房间。
func (s *ReceiptService) GetUnreadMessages(userID uint64, roomID uint64) []UnreadMessage {
	if userID == 0 {
		return nil
	}
	rows, err := s.dao.ListUnread(userID, roomID)
	if err != nil {
		log.Printf("get unread messages failed: user=%d err=%v", userID, err)
		return nil
	}
	out := make([]UnreadMessage, len(rows))
	for i, r := range rows {
		out[i] = UnreadMessage{
			MessageID:   r.MessageID,
			RoomID:      r.RoomID,
			SenderID:    r.SenderID,
			Content:     r.Content,
			DeliveredAt: r.DeliveredAt,
		}
	}
	return out
}

// GetUnreadMessageIDs 用户在某房间内未读的 message_id 列表（join 自动已读用）。
func (s *ReceiptService) GetUnreadMessageIDs(userID, roomID uint64) []uint64 {
	if userID == 0 || roomID == 0 {
		return nil
	}
	ids, err := s.dao.ListUnreadIDsInRoom(userID, roomID)
	if err != nil {
		log.Printf("get unread message ids failed: user=%d room=%d err=%v", userID, roomID, err)
		return nil
	}
	return ids
}
