package roomchat_sdk

import (
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/cydxin/roomchat-sdk/cons"
	"github.com/cydxin/roomchat-sdk/message"
	"github.com/cydxin/roomchat-sdk/service"
)

func newLeaveTestEngine(t *testing.T) *ChatEngine {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return &ChatEngine{
		WsServer:        NewWsServer(),
		PresenceService: service.NewPresenceService(&service.Service{RDB: rdb}),
	}
}

// leave_room 除 user_left 外还必须向留在房间里的成员广播 user_status(offline)，
// 和断连路径保持一致，否则订阅方的在线视图会留着过期的 online。
func TestOnLeaveRoom_BroadcastsUserLeftThenOfflineStatus(t *testing.T) {
	engine := newLeaveTestEngine(t)
	const room = "0b9e1d6c-3f2a-4e8b-9c61-2f3a4b5c6d7e"

	leaver := &Client{
		hub:      engine.WsServer,
		send:     make(chan []byte, 8),
		done:     make(chan struct{}),
		rooms:    make(map[string]bool),
		UserID:   42,
		Username: "alice",
	}
	observer := &Client{
		hub:    engine.WsServer,
		send:   make(chan []byte, 8),
		done:   make(chan struct{}),
		rooms:  make(map[string]bool),
		UserID: 7,
	}
	leaver.attachRoom(room)
	observer.attachRoom(room)

	req, _ := json.Marshal(message.LeaveRoomReq{Type: cons.EventLeaveRoom, RoomID: room})
	engine.onLeaveRoom(leaver, req)

	if n := len(observer.send); n != 2 {
		t.Fatalf("observer got %d broadcasts, want user_left + user_status", n)
	}

	var left message.UserLeftResp
	if err := json.Unmarshal(<-observer.send, &left); err != nil {
		t.Fatalf("unmarshal first broadcast: %v", err)
	}
	if left.Type != cons.EventUserLeft || left.UserID != 42 || left.RoomID != room {
		t.Fatalf("first broadcast = %+v, want user_left for user 42", left)
	}

	var status message.UserStatusResp
	if err := json.Unmarshal(<-observer.send, &status); err != nil {
		t.Fatalf("unmarshal second broadcast: %v", err)
	}
	if status.Type != cons.EventUserStatus || status.UserID != 42 {
		t.Fatalf("second broadcast = %+v, want user_status for user 42", status)
	}
	if status.Status != cons.PresenceOffline {
		t.Fatalf("status = %q, want offline", status.Status)
	}

	// 离开者已从房间摘下，不应收到广播，只有 left_room 应答
	if n := len(leaver.send); n != 1 {
		t.Fatalf("leaver got %d messages, want left_room ack only", n)
	}
}
