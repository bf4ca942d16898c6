package roomchat_sdk

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/cydxin/roomchat-sdk/cons"
	"github.com/cydxin/roomchat-sdk/message"
	"github.com/cydxin/roomchat-sdk/metrics"
	"github.com/cydxin/roomchat-sdk/service"
	"github.com/cydxin/roomchat-sdk/validate"
)

// bindWsHandlers 将 WS 回调从 engine.go 抽出来，避免 engine.go 臃肿。
// 放在包根目录（同 WsServer/engine.go 同级），可以直接访问 Instance 与 Client 类型，
// 避免 service 层循环依赖。
//
// 每个上行事件走同一条流水线：限流 -> 校验 -> 成员资格复查 -> 落库 -> 房间广播。
// 任何一步失败都只回错误给发送方（scoped error），不断开连接。
func (c *ChatEngine) bindWsHandlers() {
	c.WsServer.onMessage = c.dispatchWsEvent
	c.WsServer.onDisconnect = c.onWsDisconnect
	c.WsServer.onHeartbeat = func(client *Client) {
		c.PresenceService.Heartbeat(context.Background(), client.UserID)
	}
}

func (c *ChatEngine) dispatchWsEvent(client *Client, msg []byte) {
	if client == nil {
		return
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &probe); err != nil {
		log.Printf("Invalid message format: %v", err)
		return
	}
	metrics.WsEventsTotal.WithLabelValues(probe.Type).Inc()

	switch probe.Type {
	case cons.EventJoinRoom:
		c.onJoinRoom(client, msg)
	case cons.EventSendMessage:
		c.onSendMessage(client, msg)
	case cons.EventTyping:
		c.onTyping(client, msg)
	case cons.EventMessageRead:
		c.onMessageRead(client, msg)
	case cons.EventMarkMessagesRead:
		c.onMarkMessagesRead(client, msg)
	case cons.EventLeaveRoom:
		c.onLeaveRoom(client, msg)
	default:
		log.Printf("unknown ws event: %q from user=%d", probe.Type, client.UserID)
	}
}

// rateLimited 检查限流；超限时回 scoped error 并返回 true。
func (c *ChatEngine) rateLimited(client *Client, cfg service.RateLimitConfig, errType string) bool {
	rl := c.RateLimitService.Check(context.Background(), rlUserKey(client.UserID), cfg)
	if rl.Allowed {
		return false
	}
	client.emit(message.ErrorResp{
		Type:       errType,
		Message:    "操作太频繁，请稍后再试",
		RetryAfter: int64(rl.RetryAfter.Seconds()),
		Remaining:  rl.Remaining,
	})
	return true
}

func rlUserKey(userID uint64) string {
	return "user:" + strconv.FormatUint(userID, 10)
}

// checkMembership 存储层成员资格复查；失败回 scoped error。
func (c *ChatEngine) checkMembership(client *Client, roomAccount string, errType string) (roomID uint64, ok bool) {
	room, err := c.RoomService.GetRoomByAccount(roomAccount)
	if err != nil {
		client.emit(message.ErrorResp{Type: errType, Message: "房间不存在"})
		return 0, false
	}
	isMember, err := c.RoomService.CheckRoomMember(room.ID, client.UserID)
	if err != nil {
		log.Printf("member check failed: %v", err)
		client.emit(message.ErrorResp{Type: errType, Message: "服务暂不可用"})
		return 0, false
	}
	if !isMember {
		client.emit(message.ErrorResp{Type: errType, Message: "你不是房间成员"})
		return 0, false
	}
	return room.ID, true
}

// onJoinRoom 把连接挂载到房间的广播通道上。
// 成员资格必须事先通过 REST join/invite 建立；join_room 不会创建成员。
// 成功时自动把该用户在房间内的未读消息标记为已读。
func (c *ChatEngine) onJoinRoom(client *Client, msg []byte) {
	var req message.JoinRoomReq
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}

	if c.rateLimited(client, service.RateLimitJoinRoom, cons.EventJoinRoomError) {
		return
	}
	if r := validate.ValidateRoomID(req.RoomID); !r.IsValid {
		client.emit(message.ErrorResp{Type: cons.EventJoinRoomError, Message: "房间 ID 无效", Errors: r.Errors})
		return
	}
	roomID, ok := c.checkMembership(client, req.RoomID, cons.EventJoinRoomError)
	if !ok {
		return
	}

	ctx := context.Background()
	client.attachRoom(req.RoomID)
	c.PresenceService.SetUserOnline(ctx, client.UserID, req.RoomID)

	// 自动已读：把房间内的未读消息全部翻转，有变化才广播
	var marked int64
	if ids := c.ReceiptService.GetUnreadMessageIDs(client.UserID, roomID); len(ids) > 0 {
		marked = c.ReceiptService.MarkMultipleAsRead(ids, client.UserID)
	}
	now := time.Now()
	if marked > 0 {
		b, _ := json.Marshal(message.MessagesReadResp{
			Type:         cons.EventMessagesRead,
			RecipientID:  client.UserID,
			MessageCount: marked,
			Username:     client.Username,
			FirstName:    client.FirstName,
			LastName:     client.LastName,
			Timestamp:    now,
		})
		c.WsServer.BroadcastToRoom(req.RoomID, b)
	}

	// 房间成员的在线状态快照
	var presence []message.PresenceInfo
	if memberIDs, err := c.RoomService.GetRoomMembers(roomID); err == nil {
		records := c.PresenceService.GetMultiplePresence(ctx, memberIDs)
		presence = make([]message.PresenceInfo, 0, len(memberIDs))
		for _, id := range memberIDs {
			rec := records[id]
			presence = append(presence, message.PresenceInfo{
				UserID:   id,
				Status:   rec.Status,
				LastSeen: time.Unix(rec.LastSeen, 0),
			})
		}
	}

	client.emit(message.JoinedRoomResp{
		Type:        cons.EventJoinedRoom,
		RoomID:      req.RoomID,
		Presence:    presence,
		UnreadCount: marked,
		Timestamp:   now,
	})

	// 在线状态变化广播给房间其他人
	b, _ := json.Marshal(message.UserStatusResp{
		Type:      cons.EventUserStatus,
		UserID:    client.UserID,
		Status:    cons.PresenceOnline,
		LastSeen:  now,
		Timestamp: now,
	})
	c.WsServer.BroadcastToRoomExcept(req.RoomID, client.UserID, b)
}

// onSendMessage 校验 + 清洗 + 落库 + 回执 + 广播。发送方也收到广播，作为权威回显。
func (c *ChatEngine) onSendMessage(client *Client, msg []byte) {
	var req message.SendMessageReq
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}

	if c.rateLimited(client, service.RateLimitSendMessage, cons.EventMessageError) {
		return
	}
	if r := validate.ValidateRoomID(req.RoomID); !r.IsValid {
		client.emit(message.ErrorResp{Type: cons.EventMessageError, Message: "房间 ID 无效", Errors: r.Errors})
		return
	}
	// 连接必须先 join（挂载），光有成员资格不够
	if !client.attachedTo(req.RoomID) {
		client.emit(message.ErrorResp{Type: cons.EventMessageError, Message: "请先加入房间"})
		return
	}
	if r := validate.ValidateMessage(req.Content, c.config.MessageOptions); !r.IsValid {
		client.emit(message.ErrorResp{Type: cons.EventMessageError, Message: "消息不合规", Errors: r.Errors})
		return
	}
	roomID, ok := c.checkMembership(client, req.RoomID, cons.EventMessageError)
	if !ok {
		return
	}

	content := validate.SanitizeMessage(req.Content)
	savedMsg, err := c.MsgService.SaveMessage(roomID, client.UserID, content, nil)
	if err != nil {
		log.Printf("Failed to save message: %v", err)
		client.emit(message.ErrorResp{Type: cons.EventMessageError, Message: "消息发送失败"})
		return
	}
	metrics.MessagesTotal.Inc()

	// 给除发送者外的全部成员写投递回执
	if members, err := c.RoomService.GetRoomMembers(roomID); err == nil {
		recipients := make([]uint64, 0, len(members))
		for _, id := range members {
			if id == client.UserID {
				continue
			}
			recipients = append(recipients, id)
		}
		c.ReceiptService.CreateDeliveryReceipts(savedMsg.ID, recipients)
	} else {
		log.Printf("Failed to get room members: %v", err)
	}

	b, _ := json.Marshal(message.ReceiveMessageResp{
		Type:      cons.EventReceiveMessage,
		ID:        savedMsg.ID,
		RoomID:    req.RoomID,
		Content:   savedMsg.Content,
		Timestamp: savedMsg.CreatedAt,
		Sender: message.SenderInfo{
			ID:        client.UserID,
			Username:  client.Username,
			FirstName: client.FirstName,
			LastName:  client.LastName,
		},
	})
	c.WsServer.BroadcastToRoom(req.RoomID, b)
}

// onTyping 输入状态广播。没有应答；限流/校验失败直接丢弃。
func (c *ChatEngine) onTyping(client *Client, msg []byte) {
	var req message.TypingReq
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}

	rl := c.RateLimitService.Check(context.Background(), rlUserKey(client.UserID), service.RateLimitTyping)
	if !rl.Allowed {
		return
	}
	if r := validate.ValidateRoomID(req.RoomID); !r.IsValid {
		return
	}
	if !client.attachedTo(req.RoomID) {
		return
	}

	b, _ := json.Marshal(message.TypingResp{
		Type:      cons.EventTyping,
		UserID:    client.UserID,
		Username:  client.Username,
		FirstName: client.FirstName,
		LastName:  client.LastName,
		IsTyping:  req.IsTyping,
		Timestamp: time.Now(),
	})
	c.WsServer.BroadcastToRoomExcept(req.RoomID, client.UserID, b)
}

// onMessageRead 单条消息已读回执。
func (c *ChatEngine) onMessageRead(client *Client, msg []byte) {
	var req message.MessageReadReq
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}

	if c.rateLimited(client, service.RateLimitReadAck, cons.EventMessageReadError) {
		return
	}
	if r := validate.ValidateRoomID(req.RoomID); !r.IsValid {
		client.emit(message.ErrorResp{Type: cons.EventMessageReadError, Message: "房间 ID 无效", Errors: r.Errors})
		return
	}
	if req.MessageID == 0 {
		client.emit(message.ErrorResp{Type: cons.EventMessageReadError, Message: "消息 ID 无效"})
		return
	}
	if _, ok := c.checkMembership(client, req.RoomID, cons.EventMessageReadError); !ok {
		return
	}

	c.ReceiptService.MarkAsRead(req.MessageID, client.UserID)

	b, _ := json.Marshal(message.MessageReceiptResp{
		Type:        cons.EventMessageReceipt,
		MessageID:   req.MessageID,
		RecipientID: client.UserID,
		Status:      "read",
		Username:    client.Username,
		FirstName:   client.FirstName,
		LastName:    client.LastName,
		Timestamp:   time.Now(),
	})
	c.WsServer.BroadcastToRoom(req.RoomID, b)
}

// onMarkMessagesRead 批量已读。只有实际发生 null->read 转换才广播。
func (c *ChatEngine) onMarkMessagesRead(client *Client, msg []byte) {
	var req message.MarkMessagesReadReq
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}

	if c.rateLimited(client, service.RateLimitReadAck, cons.EventMarkMessagesReadError) {
		return
	}
	if r := validate.ValidateRoomID(req.RoomID); !r.IsValid {
		client.emit(message.ErrorResp{Type: cons.EventMarkMessagesReadError, Message: "房间 ID 无效", Errors: r.Errors})
		return
	}
	if len(req.MessageIDs) == 0 {
		client.emit(message.ErrorResp{Type: cons.EventMarkMessagesReadError, Message: "消息列表为空"})
		return
	}
	if _, ok := c.checkMembership(client, req.RoomID, cons.EventMarkMessagesReadError); !ok {
		return
	}

	marked := c.ReceiptService.MarkMultipleAsRead(req.MessageIDs, client.UserID)
	if marked == 0 {
		return
	}

	b, _ := json.Marshal(message.MessagesReadResp{
		Type:         cons.EventMessagesRead,
		RecipientID:  client.UserID,
		MessageCount: marked,
		Username:     client.Username,
		FirstName:    client.FirstName,
		LastName:     client.LastName,
		Timestamp:    time.Now(),
	})
	c.WsServer.BroadcastToRoom(req.RoomID, b)
}

// onLeaveRoom 把连接从房间摘下（不动存储层的成员资格，退出房间走 REST）。
func (c *ChatEngine) onLeaveRoom(client *Client, msg []byte) {
	var req message.LeaveRoomReq
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}

	if r := validate.ValidateRoomID(req.RoomID); !r.IsValid {
		client.emit(message.ErrorResp{Type: cons.EventLeaveRoomError, Message: "房间 ID 无效", Errors: r.Errors})
		return
	}
	if !client.attachedTo(req.RoomID) {
		client.emit(message.ErrorResp{Type: cons.EventLeaveRoomError, Message: "未加入该房间"})
		return
	}

	client.detachRoom(req.RoomID)
	c.PresenceService.SetUserOffline(context.Background(), client.UserID, req.RoomID)

	now := time.Now()
	client.emit(message.LeftRoomResp{
		Type:      cons.EventLeftRoom,
		RoomID:    req.RoomID,
		Timestamp: now,
	})

	b, _ := json.Marshal(message.UserLeftResp{
		Type:      cons.EventUserLeft,
		UserID:    client.UserID,
		Username:  client.Username,
		RoomID:    req.RoomID,
		Timestamp: now,
	})
	c.WsServer.BroadcastToRoom(req.RoomID, b)

	// 主动离开和断连一样要同步 presence 变化，订阅方才不会留着过期的 online
	b, _ = json.Marshal(message.UserStatusResp{
		Type:      cons.EventUserStatus,
		UserID:    client.UserID,
		Status:    cons.PresenceOffline,
		LastSeen:  now,
		Timestamp: now,
	})
	c.WsServer.BroadcastToRoom(req.RoomID, b)
}

// onWsDisconnect 传输层断开时的收尾：presence 下线 + 给最后所在房间广播。
// 由 hub 在 unregister 后异步调用，此时连接已从房间通道摘除。
func (c *ChatEngine) onWsDisconnect(client *Client) {
	metrics.WsConnections.Dec()

	room := client.lastRoom()
	c.PresenceService.HandleUserDisconnect(context.Background(), client.UserID, room)
	if room == "" {
		return
	}

	now := time.Now()
	b, _ := json.Marshal(message.UserLeftResp{
		Type:      cons.EventUserLeft,
		UserID:    client.UserID,
		Username:  client.Username,
		RoomID:    room,
		Timestamp: now,
	})
	c.WsServer.BroadcastToRoom(room, b)

	b, _ = json.Marshal(message.UserStatusResp{
		Type:      cons.EventUserStatus,
		UserID:    client.UserID,
		Status:    cons.PresenceOffline,
		LastSeen:  now,
		Timestamp: now,
	})
	c.WsServer.BroadcastToRoom(room, b)
}
