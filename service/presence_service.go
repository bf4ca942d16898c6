package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/cydxin/roomchat-sdk/cons"
	"github.com/go-redis/redis/v8"
)

const (
	presenceOnlineTTL  = 30 * time.Second
	presenceOfflineTTL = 24 * time.Hour
	presenceRoomTTL    = 24 * time.Hour

	// HeartbeatInterval 网关侧心跳刷新周期，须小于 presenceOnlineTTL
	HeartbeatInterval = 15 * time.Second
)

// PresenceRecord 用户在线状态记录（JSON 存于 Redis）
type PresenceRecord struct {
	UserID   uint64 `json:"userId"`
	Status   string `json:"status"` // online / offline
	LastSeen int64  `json:"lastSeen"`
	RoomID   string `json:"roomId,omitempty"` // 最近加入的房间（room_account）
}

// PresenceService 在线状态追踪。
// 所有读操作失败时降级为离线/空集合并记日志，绝不向调用方返回错误；
// 在线状态属于可再生数据，丢失只影响展示。
type PresenceService struct {
	*Service
}

func NewPresenceService(base *Service) *PresenceService {
	return &PresenceService{Service: base}
}

func presenceUserKey(userID uint64) string {
	return fmt.Sprintf("im:presence:user:%d", userID)
}

func presenceRoomKey(roomID string) string {
	return fmt.Sprintf("im:presence:room:%s", roomID)
}

// SetUserOnline 标记用户在线并记录所在房间，TTL 30 秒，需靠心跳续命。
func (s *PresenceService) SetUserOnline(ctx context.Context, userID uint64, roomID string) {
	rec := PresenceRecord{
		UserID:   userID,
		Status:   cons.PresenceOnline,
		LastSeen: time.Now().Unix(),
		RoomID:   roomID,
	}
	data, _ := json.Marshal(rec)

	pipe := s.RDB.TxPipeline()
	pipe.Set(ctx, presenceUserKey(userID), data, presenceOnlineTTL)
	if roomID != "" {
		key := presenceRoomKey(roomID)
		pipe.SAdd(ctx, key, strconv.FormatUint(userID, 10))
		pipe.Expire(ctx, key, presenceRoomTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("presence set online failed: user=%d err=%v", userID, err)
	}
}

// SetUserOffline 标记用户离线（保留 24h 供 last seen 查询），并离开房间集合。
func (s *PresenceService) SetUserOffline(ctx context.Context, userID uint64, roomID string) {
	rec := PresenceRecord{
		UserID:   userID,
		Status:   cons.PresenceOffline,
		LastSeen: time.Now().Unix(),
	}
	data, _ := json.Marshal(rec)

	pipe := s.RDB.TxPipeline()
	pipe.Set(ctx, presenceUserKey(userID), data, presenceOfflineTTL)
	if roomID != "" {
		pipe.SRem(ctx, presenceRoomKey(roomID), strconv.FormatUint(userID, 10))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("presence set offline failed: user=%d err=%v", userID, err)
	}
}

// Heartbeat 心跳续期：在线则刷新 TTL 和 lastSeen。
func (s *PresenceService) Heartbeat(ctx context.Context, userID uint64) {
	key := presenceUserKey(userID)
	data, err := s.RDB.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("presence heartbeat read failed: user=%d err=%v", userID, err)
		}
		return
	}
	var rec PresenceRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.Status != cons.PresenceOnline {
		return
	}
	rec.LastSeen = time.Now().Unix()
	fresh, _ := json.Marshal(rec)
	if err := s.RDB.Set(ctx, key, fresh, presenceOnlineTTL).Err(); err != nil {
		log.Printf("presence heartbeat refresh failed: user=%d err=%v", userID, err)
	}
}

// GetUserPresence 查询单个用户状态。
// 记录缺失或 online 记录 TTL 已耗尽（心跳断了但尚未过期清理）都降级为 offline。
func (s *PresenceService) GetUserPresence(ctx context.Context, userID uint64) PresenceRecord {
	offline := PresenceRecord{UserID: userID, Status: cons.PresenceOffline}

	key := presenceUserKey(userID)
	data, err := s.RDB.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("presence get failed: user=%d err=%v", userID, err)
		}
		return offline
	}
	var rec PresenceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("presence record corrupt: user=%d err=%v", userID, err)
		return offline
	}
	if rec.Status == cons.PresenceOnline {
		// 惰性降级：online 记录却没有正 TTL，说明心跳早已停止。
		// 降级结果回写，后续读者直接拿到 offline 记录。
		if ttl, err := s.RDB.PTTL(ctx, key).Result(); err != nil || ttl <= 0 {
			offline.LastSeen = rec.LastSeen
			if fresh, err := json.Marshal(offline); err == nil {
				if err := s.RDB.Set(ctx, key, fresh, presenceOfflineTTL).Err(); err != nil {
					log.Printf("presence demote failed: user=%d err=%v", userID, err)
				}
			}
			return offline
		}
	}
	return rec
}

// GetMultiplePresence 批量查询，单次 MGET；缺失或损坏的条目用离线默认值填充。
func (s *PresenceService) GetMultiplePresence(ctx context.Context, userIDs []uint64) map[uint64]PresenceRecord {
	result := make(map[uint64]PresenceRecord, len(userIDs))
	for _, id := range userIDs {
		result[id] = PresenceRecord{UserID: id, Status: cons.PresenceOffline}
	}
	if len(userIDs) == 0 {
		return result
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceUserKey(id)
	}
	vals, err := s.RDB.MGet(ctx, keys...).Result()
	if err != nil {
		log.Printf("presence mget failed: err=%v", err)
		return result
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec PresenceRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			continue
		}
		result[userIDs[i]] = rec
	}
	return result
}

// GetRoomPresence 房间内有 presence 记录的成员 ID 集合。
func (s *PresenceService) GetRoomPresence(ctx context.Context, roomID string) []uint64 {
	members, err := s.RDB.SMembers(ctx, presenceRoomKey(roomID)).Result()
	if err != nil {
		log.Printf("presence room members failed: room=%s err=%v", roomID, err)
		return nil
	}
	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// HandleUserDisconnect 连接断开时的清理：标记离线并退出房间集合。
func (s *PresenceService) HandleUserDisconnect(ctx context.Context, userID uint64, roomID string) {
	s.SetUserOffline(ctx, userID, roomID)
}
