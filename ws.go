package roomchat_sdk

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cydxin/roomchat-sdk/service"
)

const (
	// Time 写入超时时间
	writeWait = 10 * time.Second

	// Time pong超时时间
	pongWait = 60 * time.Second

	// Send 对应的ping 必须小于pong
	pingPeriod = (pongWait * 9) / 10

	// Maximum 对等端允许消息大小（消息上限 2000 字符，UTF-8 最多 4 字节/字符，留余量）
	maxMessageSize = 16 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for SDK
	},
}

// Client ws和hub的连接
// Client 代表“某个具体 websocket 连接”；同一用户多设备会有多个 Client。
type Client struct {
	hub *WsServer

	// 🔗链接
	conn *websocket.Conn

	// 消息缓冲区
	send chan []byte

	// UserID 和用户关联
	UserID uint64

	// 展示字段（建连时从 DB 加载，避免每条消息再查）
	Username  string
	FirstName string
	LastName  string

	// done 关闭时通知心跳协程退出
	done chan struct{}

	// roomMu 保护 rooms / currentRoom
	roomMu sync.Mutex
	// rooms 该连接已挂载的房间（room_account 集合）。join_room 不会卸载旧房间。
	rooms map[string]bool
	// currentRoom 最近一次 join 的房间，断连广播 user_left 用
	currentRoom string
}

// emit 序列化并写入发送缓冲；缓冲满则丢弃（慢消费者不阻塞 hub）。
func (c *Client) emit(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("emit marshal failed: %v", err)
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

// attachRoom 把连接挂到房间广播通道上，并记为 currentRoom。
func (c *Client) attachRoom(roomAccount string) {
	c.roomMu.Lock()
	if c.rooms == nil {
		c.rooms = make(map[string]bool)
	}
	c.rooms[roomAccount] = true
	c.currentRoom = roomAccount
	c.roomMu.Unlock()

	c.hub.mu.Lock()
	if c.hub.roomClients[roomAccount] == nil {
		c.hub.roomClients[roomAccount] = make(map[*Client]bool)
	}
	c.hub.roomClients[roomAccount][c] = true
	c.hub.mu.Unlock()
}

// detachRoom 把连接从房间广播通道上摘下。
func (c *Client) detachRoom(roomAccount string) {
	c.roomMu.Lock()
	delete(c.rooms, roomAccount)
	if c.currentRoom == roomAccount {
		c.currentRoom = ""
	}
	c.roomMu.Unlock()

	c.hub.mu.Lock()
	if clients, ok := c.hub.roomClients[roomAccount]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(c.hub.roomClients, roomAccount)
		}
	}
	c.hub.mu.Unlock()
}

// attachedTo 连接是否已挂载到房间（send_message 的前置条件之一）。
func (c *Client) attachedTo(roomAccount string) bool {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.rooms[roomAccount]
}

// lastRoom 最近一次 join 的房间（断连广播用）。
func (c *Client) lastRoom() string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.currentRoom
}

// readPump 将消息从client (websocket 连接) 到hub管理。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { _ = c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("readPump error: %v", err)
			}
			break
		}
		c.hub.handleMessage(c, message)
	}
}

// writePump 将消息从hub管理写到具体的client (websocket 连接)。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			// 一次性发送管道剩余全部的消息，不重新走message, ok := <-c.send，提升性能
			n := len(c.send)
			for i := 0; i < n; i++ {
				_, _ = w.Write([]byte{'\n'})
				_, _ = w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("writePump 写入ping失败")
				return
			}
		}
	}
}

// heartbeatLoop 周期性刷新 presence TTL；连接关闭即退出。
func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(service.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.hub.onHeartbeat != nil {
				c.hub.onHeartbeat(c)
			}
		}
	}
}

type WsServer struct {
	clients map[*Client]bool
	// 用户ID -> 该用户所有活跃的Websocket连接（支持多设备）
	userClients map[uint64][]*Client
	// room_account -> 已挂载到该房间的连接
	roomClients map[string]map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	// 回调处理消息
	onMessage func(client *Client, msg []byte)
	// 断连清理（presence 下线 + user_left/user_status 广播）
	onDisconnect func(client *Client)
	// 心跳回调（presence TTL 续期）
	onHeartbeat func(client *Client)
}

func NewWsServer() *WsServer {
	return &WsServer{
		broadcast:   make(chan []byte),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[*Client]bool),
		userClients: make(map[uint64][]*Client),
		roomClients: make(map[string]map[*Client]bool),
	}
}

func (h *WsServer) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.userClients[client.UserID] = append(h.userClients[client.UserID], client)
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				close(client.done)

				if userConns, exists := h.userClients[client.UserID]; exists {
					for i, conn := range userConns {
						if conn == client {
							h.userClients[client.UserID] = append(userConns[:i], userConns[i+1:]...)
							break
						}
					}
					if len(h.userClients[client.UserID]) == 0 {
						delete(h.userClients, client.UserID)
					}
				}

				// 从所有已挂载房间摘除
				client.roomMu.Lock()
				rooms := make([]string, 0, len(client.rooms))
				for r := range client.rooms {
					rooms = append(rooms, r)
				}
				client.roomMu.Unlock()
				for _, r := range rooms {
					if clients, ok := h.roomClients[r]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.roomClients, r)
						}
					}
				}
			}
			h.mu.Unlock()

			// 断连清理（DB/Redis IO），不阻塞 hub 主循环
			if h.onDisconnect != nil {
				go h.onDisconnect(client)
			}

		case message := <-h.broadcast:
			var toRemove []*Client
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}
			h.mu.RUnlock()

			// 慢消费者直接断开，交给 unregister 统一清理
			for _, client := range toRemove {
				_ = client.conn.Close()
			}
		}
	}
}

func (h *WsServer) handleMessage(client *Client, msg []byte) {
	if h.onMessage != nil {
		h.onMessage(client, msg)
	}
}

// ServeWS 处理ws的请求（调用前必须已完成鉴权）
func (h *WsServer) ServeWS(w http.ResponseWriter, r *http.Request, userID uint64, username, firstName, lastName string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		done:      make(chan struct{}),
		rooms:     make(map[string]bool),
	}
	client.hub.register <- client
	log.Println("注册进去: ", client.UserID)

	go client.writePump()
	go client.readPump()
	go client.heartbeatLoop()
}

// SendToUser 发送消息到用户（所有设备）。
// 发送必须持读锁进行：close(send) 只在 Run 的 unregister 分支持写锁时发生，
// 读写锁互斥保证不会向已关闭的通道写入。发送是非阻塞的，持锁不会卡住 hub。
func (h *WsServer) SendToUser(userID uint64, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.userClients[userID] {
		select {
		case client.send <- msg:
		default:
			// 丢弃避免阻塞
		}
	}
}

// BroadcastToRoom 广播给房间内所有已挂载连接。
func (h *WsServer) BroadcastToRoom(roomAccount string, msg []byte) {
	h.broadcastRoom(roomAccount, msg, 0)
}

// BroadcastToRoomExcept 广播给房间，跳过指定用户的全部连接。
func (h *WsServer) BroadcastToRoomExcept(roomAccount string, exceptUserID uint64, msg []byte) {
	h.broadcastRoom(roomAccount, msg, exceptUserID)
}

// broadcastRoom 发送同样必须持读锁，与 unregister 分支的 close(send) 互斥。
func (h *WsServer) broadcastRoom(roomAccount string, msg []byte, exceptUserID uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.roomClients[roomAccount] {
		if exceptUserID != 0 && client.UserID == exceptUserID {
			continue
		}
		select {
		case client.send <- msg:
		default:
		}
	}
}

// RoomOnlineUserIDs 房间内已挂载连接的用户 ID（去重）。
func (h *WsServer) RoomOnlineUserIDs(roomAccount string) []uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[uint64]bool)
	ids := make([]uint64, 0, len(h.roomClients[roomAccount]))
	for client := range h.roomClients[roomAccount] {
		if seen[client.UserID] {
			continue
		}
		seen[client.UserID] = true
		ids = append(ids, client.UserID)
	}
	return ids
}
