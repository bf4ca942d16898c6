package service

import (
	"log"
	"time"

	"gorm.io/datatypes"

	"github.com/cydxin/roomchat-sdk/models"
)

type MessageService struct {
	*Service
}

func NewMessageService(s *Service) *MessageService {
	log.Println("NewMessageService")
	return &MessageService{Service: s}
}

// SenderDTO 发送人信息（用于消息列表返回）
type SenderDTO struct {
	ID        uint64 `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Avatar    string `json:"avatar"`
}

// MessageListItemDTO 消息列表项（带发送人信息；不返回 Room，避免冗余/递归）
type MessageListItemDTO struct {
	ID        uint64         `json:"id"`
	RoomID    uint64         `json:"roomId"`
	SenderID  uint64         `json:"senderId"`
	Sender    *SenderDTO     `json:"sender,omitempty"`
	Content   string         `json:"content"`
	Extra     datatypes.JSON `json:"extra,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func toSenderDTO(u *models.User) *SenderDTO {
	if u == nil {
		return nil
	}
	return &SenderDTO{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName, Avatar: u.Avatar}
}

func toMessageListItemDTO(m *models.Message) *MessageListItemDTO {
	if m == nil {
		return nil
	}
	return &MessageListItemDTO{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Sender:    toSenderDTO(&m.Sender),
		Content:   m.Content,
		Extra:     m.Extra,
		CreatedAt: m.CreatedAt,
	}
}

// SaveMessage 持久化一条消息。content 必须已经过校验和净化。
func (s *MessageService) SaveMessage(roomID, senderID uint64, content string, extra datatypes.JSON) (*models.Message, error) {
	msg := &models.Message{
		RoomID:   roomID,
		SenderID: senderID,
		Content:  content,
		Extra:    extra,
	}
	if err := s.DB.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// GetRoomMessages 分页拉取房间消息（新的在前），附带发送人信息。
func (s *MessageService) GetRoomMessages(roomID uint64, page, pageSize int) ([]MessageListItemDTO, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	var total int64
	if err := s.DB.Model(&models.Message{}).Where("room_id = ?", roomID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var msgs []models.Message
	err := s.DB.Preload("Sender").
		Where("room_id = ?", roomID).
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&msgs).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]MessageListItemDTO, 0, len(msgs))
	for i := range msgs {
		if dto := toMessageListItemDTO(&msgs[i]); dto != nil {
			out = append(out, *dto)
		}
	}
	return out, total, nil
}

// GetMessageByID 查询单条消息（回执详情接口用）。
func (s *MessageService) GetMessageByID(messageID uint64) (*models.Message, error) {
	var msg models.Message
	err := s.DB.First(&msg, messageID).Error
	return &msg, err
}
