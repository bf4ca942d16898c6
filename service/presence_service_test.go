package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/cydxin/roomchat-sdk/cons"
)

func newTestPresence(t *testing.T) (*PresenceService, *miniredis.Miniredis) {
	t.Helper()
	mr, rdb := newTestRedis(t)
	return NewPresenceService(&Service{RDB: rdb}), mr
}

func TestPresence_OnlineOfflineRoundtrip(t *testing.T) {
	s, _ := newTestPresence(t)
	ctx := context.Background()

	s.SetUserOnline(ctx, 7, "room-a")

	rec := s.GetUserPresence(ctx, 7)
	if rec.Status != cons.PresenceOnline {
		t.Fatalf("status = %q, want online", rec.Status)
	}
	if rec.RoomID != "room-a" {
		t.Fatalf("roomID = %q, want room-a", rec.RoomID)
	}
	if ids := s.GetRoomPresence(ctx, "room-a"); len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("room presence = %v, want [7]", ids)
	}

	s.SetUserOffline(ctx, 7, "room-a")

	rec = s.GetUserPresence(ctx, 7)
	if rec.Status != cons.PresenceOffline {
		t.Fatalf("status after offline = %q", rec.Status)
	}
	if rec.LastSeen == 0 {
		t.Fatal("offline record must keep lastSeen")
	}
	if ids := s.GetRoomPresence(ctx, "room-a"); len(ids) != 0 {
		t.Fatalf("room presence after offline = %v, want empty", ids)
	}
}

func TestPresence_UnknownUserIsOffline(t *testing.T) {
	s, _ := newTestPresence(t)

	rec := s.GetUserPresence(context.Background(), 404)
	if rec.Status != cons.PresenceOffline {
		t.Fatalf("status = %q, want offline", rec.Status)
	}
	if rec.UserID != 404 {
		t.Fatalf("userID = %d, want 404", rec.UserID)
	}
}

func TestPresence_OnlineExpiresWithoutHeartbeat(t *testing.T) {
	s, mr := newTestPresence(t)
	ctx := context.Background()

	s.SetUserOnline(ctx, 7, "")
	mr.FastForward(31 * time.Second)

	rec := s.GetUserPresence(ctx, 7)
	if rec.Status != cons.PresenceOffline {
		t.Fatalf("status after TTL expiry = %q, want offline", rec.Status)
	}
}

func TestPresence_HeartbeatExtendsTTL(t *testing.T) {
	s, mr := newTestPresence(t)
	ctx := context.Background()

	s.SetUserOnline(ctx, 7, "")
	mr.FastForward(20 * time.Second)
	s.Heartbeat(ctx, 7)
	mr.FastForward(20 * time.Second)

	rec := s.GetUserPresence(ctx, 7)
	if rec.Status != cons.PresenceOnline {
		t.Fatalf("status after heartbeat = %q, want online", rec.Status)
	}
}

func TestPresence_HeartbeatIgnoresOffline(t *testing.T) {
	s, _ := newTestPresence(t)
	ctx := context.Background()

	s.SetUserOffline(ctx, 7, "")
	s.Heartbeat(ctx, 7)

	rec := s.GetUserPresence(ctx, 7)
	if rec.Status != cons.PresenceOffline {
		t.Fatalf("heartbeat must not revive offline user, status = %q", rec.Status)
	}
}

func TestPresence_LazyDemotionWhenTTLMissing(t *testing.T) {
	s, mr := newTestPresence(t)
	ctx := context.Background()

	// 人为制造 online 记录却没有 TTL 的异常态
	data, _ := json.Marshal(PresenceRecord{UserID: 7, Status: cons.PresenceOnline, LastSeen: time.Now().Unix()})
	if err := mr.Set("im:presence:user:7", string(data)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := s.GetUserPresence(ctx, 7)
	if rec.Status != cons.PresenceOffline {
		t.Fatalf("online record without TTL must demote to offline, got %q", rec.Status)
	}

	// 降级必须回写：存储里的记录本身要翻成 offline
	raw, err := mr.Get("im:presence:user:7")
	if err != nil {
		t.Fatalf("read demoted record: %v", err)
	}
	var stored PresenceRecord
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("unmarshal demoted record: %v", err)
	}
	if stored.Status != cons.PresenceOffline {
		t.Fatalf("stored status after demotion = %q, want offline", stored.Status)
	}
	if ttl := mr.TTL("im:presence:user:7"); ttl <= 0 {
		t.Fatalf("demoted record must carry the offline TTL, got %v", ttl)
	}
}

func TestPresence_GetMultiplePresence(t *testing.T) {
	s, _ := newTestPresence(t)
	ctx := context.Background()

	s.SetUserOnline(ctx, 1, "")
	s.SetUserOffline(ctx, 2, "")

	got := s.GetMultiplePresence(ctx, []uint64{1, 2, 3})
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[1].Status != cons.PresenceOnline {
		t.Fatalf("user 1 status = %q", got[1].Status)
	}
	if got[2].Status != cons.PresenceOffline {
		t.Fatalf("user 2 status = %q", got[2].Status)
	}
	if got[3].Status != cons.PresenceOffline || got[3].UserID != 3 {
		t.Fatalf("user 3 must default to offline, got %+v", got[3])
	}
}

func TestPresence_HandleUserDisconnect(t *testing.T) {
	s, _ := newTestPresence(t)
	ctx := context.Background()

	s.SetUserOnline(ctx, 7, "room-a")
	s.HandleUserDisconnect(ctx, 7, "room-a")

	if rec := s.GetUserPresence(ctx, 7); rec.Status != cons.PresenceOffline {
		t.Fatalf("status = %q, want offline", rec.Status)
	}
	if ids := s.GetRoomPresence(ctx, "room-a"); len(ids) != 0 {
		t.Fatalf("room presence = %v, want empty", ids)
	}
}
