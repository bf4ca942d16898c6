package cons

// WS 上行事件类型（client -> server）
const (
	EventJoinRoom         = "join_room"
	EventSendMessage      = "send_message"
	EventTyping           = "typing"
	EventMessageRead      = "message_read"
	EventMarkMessagesRead = "mark_messages_read"
	EventLeaveRoom        = "leave_room"
)

// WS 下行事件类型（server -> client）
const (
	EventJoinedRoom     = "joined_room"
	EventReceiveMessage = "receive_message"
	EventMessageReceipt = "message_receipt"
	EventMessagesRead   = "messages_read"
	EventLeftRoom       = "left_room"
	EventUserLeft       = "user_left"
	EventUserStatus     = "user_status"
)

// WS 错误事件类型（scoped error：不断开连接，只回给发送方）
const (
	EventJoinRoomError         = "join_room_error"
	EventMessageError          = "message_error"
	EventMessageReadError      = "message_read_error"
	EventMarkMessagesReadError = "mark_messages_read_error"
	EventLeaveRoomError        = "leave_room_error"
)

// 回执聚合状态（getMessagesWithReceipts.readStatus）
const (
	ReadStatusNoRecipients  = "no_recipients"
	ReadStatusUnread        = "unread"
	ReadStatusPartiallyRead = "partially_read"
	ReadStatusAllRead       = "all_read"
)

// 用户在线状态
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)
