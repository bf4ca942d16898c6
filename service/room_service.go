package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cydxin/roomchat-sdk/models"
)

type RoomService struct {
	*Service
}

func NewRoomService(s *Service) *RoomService {
	log.Println("NewRoomService")
	return &RoomService{Service: s}
}

// CreateRoom 创建房间，创建者自动成为 owner 成员（同一事务）。
func (s *RoomService) CreateRoom(name, description string, isPrivate bool, creatorID uint64) (*models.Room, error) {
	if name == "" {
		return nil, fmt.Errorf("房间名称不能为空")
	}
	if creatorID == 0 {
		return nil, fmt.Errorf("创建者无效")
	}

	now := time.Now()
	room := &models.Room{
		RoomAccount: uuid.New().String(),
		Name:        name,
		Description: description,
		IsPrivate:   isPrivate,
		CreatorID:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx := s.DB.Begin()
	defer tx.Rollback()

	if err := tx.Create(room).Error; err != nil {
		return nil, err
	}

	owner := &models.RoomMember{
		RoomID:    room.ID,
		MemberID:  creatorID,
		Role:      models.RoomRoleOwner,
		JoinedAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Create(owner).Error; err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return room, nil
}

// GetRoomByAccount 根据对外房间号（UUID）查询房间
func (s *RoomService) GetRoomByAccount(account string) (*models.Room, error) {
	var room models.Room
	err := s.DB.Where("room_account = ?", account).First(&room).Error
	return &room, err
}

// GetRoomByID 根据内部 ID 查询房间
func (s *RoomService) GetRoomByID(roomID uint64) (*models.Room, error) {
	var room models.Room
	err := s.DB.First(&room, roomID).Error
	return &room, err
}

// GetRoomMembers 获取房间成员的用户ID列表
func (s *RoomService) GetRoomMembers(roomID uint64) ([]uint64, error) {
	var members []uint64
	err := s.DB.Model(&models.RoomMember{}).
		Where("room_id = ?", roomID).
		Pluck("member_id", &members).Error
	return members, err
}

// CheckRoomMember 检查用户是否是房间成员
func (s *RoomService) CheckRoomMember(roomID, userID uint64) (bool, error) {
	var count int64
	err := s.DB.Model(&models.RoomMember{}).
		Where("room_id = ? AND member_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}

// RoomDTO 房间列表返回结构
type RoomDTO struct {
	RoomID      string    `json:"roomId"` // 对外 UUID
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPrivate   bool      `json:"isPrivate"`
	CreatorID   uint64    `json:"creatorId"`
	MemberCount int64     `json:"memberCount"`
	UnreadCount int64     `json:"unreadCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toRoomDTO(r *models.Room) RoomDTO {
	return RoomDTO{
		RoomID:      r.RoomAccount,
		Name:        r.Name,
		Description: r.Description,
		IsPrivate:   r.IsPrivate,
		CreatorID:   r.CreatorID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// GetUserRooms 分页获取用户参与的房间，附带成员数和未读数。
func (s *RoomService) GetUserRooms(userID uint64, page, pageSize int) ([]RoomDTO, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	roomTable := models.Room{}.TableName()
	memberTable := models.RoomMember{}.TableName()

	base := s.DB.Model(&models.Room{}).
		Joins(fmt.Sprintf("JOIN %s ON %s.id = %s.room_id", memberTable, roomTable, memberTable)).
		Where(fmt.Sprintf("%s.member_id = ? AND %s.deleted_at IS NULL", memberTable, memberTable), userID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rooms []models.Room
	err := base.
		Order(fmt.Sprintf("%s.updated_at DESC", roomTable)).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rooms).Error
	if err != nil {
		return nil, 0, err
	}
	if len(rooms) == 0 {
		return []RoomDTO{}, total, nil
	}

	roomIDs := make([]uint64, len(rooms))
	for i, r := range rooms {
		roomIDs[i] = r.ID
	}

	// 批量查成员数
	memberCounts := make(map[uint64]int64, len(roomIDs))
	{
		var rows []struct {
			RoomID uint64
			Cnt    int64
		}
		err := s.DB.Model(&models.RoomMember{}).
			Select("room_id, COUNT(*) AS cnt").
			Where("room_id IN ?", roomIDs).
			Group("room_id").
			Scan(&rows).Error
		if err != nil {
			log.Printf("GetUserRooms member counts error: %v", err)
		}
		for _, row := range rows {
			memberCounts[row.RoomID] = row.Cnt
		}
	}

	// 批量查未读数（回执表 read_at IS NULL）
	unreadCounts := make(map[uint64]int64, len(roomIDs))
	if s.Receipt != nil {
		for _, m := range s.Receipt.GetUnreadMessages(userID, 0) {
			unreadCounts[m.RoomID]++
		}
	}

	dtos := make([]RoomDTO, len(rooms))
	for i := range rooms {
		dto := toRoomDTO(&rooms[i])
		dto.MemberCount = memberCounts[rooms[i].ID]
		dto.UnreadCount = unreadCounts[rooms[i].ID]
		dtos[i] = dto
	}
	return dtos, total, nil
}

// RoomMemberListItemDTO 房间成员列表项（带在线状态）
type RoomMemberListItemDTO struct {
	UserID    uint64    `json:"userId"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Avatar    string    `json:"avatar"`
	Role      uint8     `json:"role"`
	JoinedAt  time.Time `json:"joinedAt"`
	Status    string    `json:"status"`
	LastSeen  int64     `json:"lastSeen,omitempty"`
}

// GetRoomMemberList 获取房间成员列表，逐条附上 presence 状态（批量 MGET）。
func (s *RoomService) GetRoomMemberList(ctx context.Context, roomID uint64) ([]RoomMemberListItemDTO, error) {
	var roomMembers []models.RoomMember
	err := s.DB.Preload("Member").
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Find(&roomMembers).Error
	if err != nil {
		return nil, err
	}
	if len(roomMembers) == 0 {
		return []RoomMemberListItemDTO{}, nil
	}

	memberIDs := make([]uint64, 0, len(roomMembers))
	for _, rm := range roomMembers {
		memberIDs = append(memberIDs, rm.MemberID)
	}

	presence := map[uint64]PresenceRecord{}
	if s.Presence != nil {
		presence = s.Presence.GetMultiplePresence(ctx, memberIDs)
	}

	out := make([]RoomMemberListItemDTO, 0, len(roomMembers))
	for _, rm := range roomMembers {
		u := rm.Member
		item := RoomMemberListItemDTO{
			UserID:    rm.MemberID,
			Username:  u.Username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Avatar:    u.Avatar,
			Role:      rm.Role,
			JoinedAt:  rm.JoinedAt,
		}
		if rec, ok := presence[rm.MemberID]; ok {
			item.Status = rec.Status
			item.LastSeen = rec.LastSeen
		}
		out = append(out, item)
	}
	return out, nil
}
