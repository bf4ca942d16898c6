package roomchat_sdk

import (
	"sync"
	"testing"
)

const raceTestRoom = "0b9e1d6c-3f2a-4e8b-9c61-2f3a4b5c6d7e"

func newRaceTestClient(h *WsServer, userID uint64) *Client {
	return &Client{
		hub:    h,
		send:   make(chan []byte, 1),
		done:   make(chan struct{}),
		rooms:  make(map[string]bool),
		UserID: userID,
	}
}

// 房间广播和连接注销并发时，不允许向已被 hub 关闭的 send 通道写入。
func TestBroadcastToRoom_RacesUnregister(t *testing.T) {
	h := NewWsServer()
	go h.Run()

	payload := []byte(`{"type":"user_status"}`)
	for i := 0; i < 5000; i++ {
		client := newRaceTestClient(h, 42)
		// 缓冲占满：正常情况下广播走丢弃分支，
		// 只有通道被关闭后发送才会“就绪”（并 panic）
		client.send <- payload

		h.register <- client
		client.attachRoom(raceTestRoom)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				h.BroadcastToRoom(raceTestRoom, payload)
			}
		}()
		h.unregister <- client
		wg.Wait()
	}
}

// SendToUser 与注销并发时同样不允许触碰已关闭的通道。
func TestSendToUser_RacesUnregister(t *testing.T) {
	h := NewWsServer()
	go h.Run()

	payload := []byte(`{"type":"receive_message"}`)
	for i := 0; i < 5000; i++ {
		client := newRaceTestClient(h, 7)
		client.send <- payload

		h.register <- client

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				h.SendToUser(7, payload)
			}
		}()
		h.unregister <- client
		wg.Wait()
	}
}
