// Package message 定义 WS 协议的上/下行报文结构。
// 所有报文带 type 字段（事件名），payload 字段内联。
package message

import "time"

// ---------- 上行（client -> server） ----------

// JoinRoomReq 加入房间（仅把当前连接挂到房间的广播通道上；
// 成员资格必须事先通过 REST join/invite 流程建立）。
type JoinRoomReq struct {
	Type   string `json:"type"`    // join_room
	RoomID string `json:"room_id"` // 房间对外 ID（UUID）
}

// SendMessageReq 发送消息
type SendMessageReq struct {
	Type    string `json:"type"`    // send_message
	RoomID  string `json:"room_id"` // 房间对外 ID（UUID）
	Content string `json:"content"` // 消息内容（原始，服务端负责校验+清洗）
}

// TypingReq 输入中状态
type TypingReq struct {
	Type     string `json:"type"` // typing
	RoomID   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

// MessageReadReq 单条消息已读回执
type MessageReadReq struct {
	Type      string `json:"type"` // message_read
	MessageID uint64 `json:"message_id"`
	RoomID    string `json:"room_id"`
}

// MarkMessagesReadReq 批量已读回执
type MarkMessagesReadReq struct {
	Type       string   `json:"type"` // mark_messages_read
	MessageIDs []uint64 `json:"message_ids"`
	RoomID     string   `json:"room_id"`
}

// LeaveRoomReq 离开房间
type LeaveRoomReq struct {
	Type   string `json:"type"` // leave_room
	RoomID string `json:"room_id"`
}

// ---------- 下行（server -> client） ----------

// SenderInfo 消息发送者身份（客户端无需再查）
type SenderInfo struct {
	ID        uint64 `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// PresenceInfo 在线状态条目
type PresenceInfo struct {
	UserID   uint64    `json:"user_id"`
	Status   string    `json:"status"` // online/offline
	LastSeen time.Time `json:"last_seen"`
}

// JoinedRoomResp join_room 成功应答
type JoinedRoomResp struct {
	Type        string         `json:"type"` // joined_room
	RoomID      string         `json:"room_id"`
	Presence    []PresenceInfo `json:"presence"`
	UnreadCount int64          `json:"unread_count"` // 本次 join 自动标记为已读的消息数
	Timestamp   time.Time      `json:"timestamp"`
}

// ErrorResp 统一的 scoped 错误应答（join_room_error / message_error / ...）
type ErrorResp struct {
	Type       string   `json:"type"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors,omitempty"`
	RetryAfter int64    `json:"retry_after,omitempty"` // 秒
	Remaining  int      `json:"remaining,omitempty"`
}

// ReceiveMessageResp 房间内广播的消息（发送方也会收到，作为权威回显）
type ReceiveMessageResp struct {
	Type      string     `json:"type"` // receive_message
	ID        uint64     `json:"id"`
	RoomID    string     `json:"room_id"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Sender    SenderInfo `json:"sender"`
}

// TypingResp typing 广播（发送方无 ack）
type TypingResp struct {
	Type      string    `json:"type"` // typing
	UserID    uint64    `json:"user_id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsTyping  bool      `json:"is_typing"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageReceiptResp 单条消息已读广播
type MessageReceiptResp struct {
	Type        string    `json:"type"` // message_receipt
	MessageID   uint64    `json:"message_id"`
	RecipientID uint64    `json:"recipient_id"`
	Status      string    `json:"status"` // read
	Username    string    `json:"username"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Timestamp   time.Time `json:"timestamp"`
}

// MessagesReadResp 批量已读广播（只有实际发生 null->read 转换才会发出）
type MessagesReadResp struct {
	Type         string    `json:"type"` // messages_read
	RecipientID  uint64    `json:"recipient_id"`
	MessageCount int64     `json:"message_count"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Timestamp    time.Time `json:"timestamp"`
}

// LeftRoomResp leave_room 成功应答（发给操作者本人）
type LeftRoomResp struct {
	Type      string    `json:"type"` // left_room
	RoomID    string    `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
}

// UserLeftResp 成员离开广播
type UserLeftResp struct {
	Type      string    `json:"type"` // user_left
	UserID    uint64    `json:"user_id"`
	Username  string    `json:"username"`
	RoomID    string    `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
}

// UserStatusResp 在线状态变化广播
type UserStatusResp struct {
	Type      string    `json:"type"` // user_status
	UserID    uint64    `json:"user_id"`
	Status    string    `json:"status"` // online/offline
	LastSeen  time.Time `json:"last_seen"`
	Timestamp time.Time `json:"timestamp"`
}
