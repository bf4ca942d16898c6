package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/cydxin/roomchat-sdk/models"
)

// 加入房间的失败原因（哨兵错误，handler 层据此映射状态码）
var (
	ErrRoomNotFound    = errors.New("房间不存在")
	ErrAlreadyMember   = errors.New("已经是房间成员")
	ErrNotMember       = errors.New("不是房间成员")
	ErrInviteRequired  = errors.New("私有房间需要邀请")
	ErrInviteInvalid   = errors.New("邀请无效或已过期")
	ErrInviteMismatch  = errors.New("邀请与当前用户或房间不匹配")
	ErrOwnerCannotQuit = errors.New("房主不能退出自己的房间")
)

const defaultInviteTTL = 72 * time.Hour

type MemberService struct {
	*Service
	jwtSecret []byte
}

func NewMemberService(s *Service, jwtSecret string) *MemberService {
	log.Println("NewMemberService")
	return &MemberService{Service: s, jwtSecret: []byte(jwtSecret)}
}

// InviteClaims 邀请令牌载荷：一房间、一受邀人、限时。
type InviteClaims struct {
	RoomAccount string `json:"roomAccount"`
	InviteeID   uint64 `json:"inviteeId"`
	InviterID   uint64 `json:"inviterId"`
	jwt.RegisteredClaims
}

// CreateInvite 由房间成员签发定向邀请令牌（HS256，默认 72h 有效）。
func (s *MemberService) CreateInvite(roomAccount string, inviterID, inviteeID uint64) (string, error) {
	room, err := s.findRoom(roomAccount)
	if err != nil {
		return "", err
	}

	// 只有成员能发出邀请
	isMember, err := s.isActiveMember(room.ID, inviterID)
	if err != nil {
		return "", err
	}
	if !isMember {
		return "", ErrNotMember
	}

	now := time.Now()
	claims := InviteClaims{
		RoomAccount: roomAccount,
		InviteeID:   inviteeID,
		InviterID:   inviterID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(defaultInviteTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// parseInvite 校验邀请令牌（签名 + 过期）。
func (s *MemberService) parseInvite(tokenStr string) (*InviteClaims, error) {
	claims := &InviteClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInviteInvalid
	}
	return claims, nil
}

// JoinRoom 加入房间。
// 公开房间直接加入；私有房间必须携带匹配本人和本房间的有效邀请令牌。
// 重复加入返回 ErrAlreadyMember；曾退出过的成员复用原行（清除软删除标记）。
func (s *MemberService) JoinRoom(roomAccount string, userID uint64, inviteToken string) (*models.Room, error) {
	room, err := s.findRoom(roomAccount)
	if err != nil {
		return nil, err
	}

	if room.IsPrivate {
		if inviteToken == "" {
			return nil, ErrInviteRequired
		}
		claims, err := s.parseInvite(inviteToken)
		if err != nil {
			return nil, err
		}
		if claims.RoomAccount != roomAccount || claims.InviteeID != userID {
			return nil, ErrInviteMismatch
		}
	}

	now := time.Now()

	// Unscoped 查找：命中软删除行则恢复，而不是撞唯一索引
	var existing models.RoomMember
	err = s.DB.Unscoped().
		Where("room_id = ? AND member_id = ?", room.ID, userID).
		First(&existing).Error
	switch {
	case err == nil:
		if !existing.DeletedAt.Valid {
			return room, ErrAlreadyMember
		}
		err = s.DB.Unscoped().Model(&models.RoomMember{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"deleted_at": nil,
				"role":       models.RoomRoleMember,
				"joined_at":  now,
				"updated_at": now,
			}).Error
		if err != nil {
			return nil, err
		}
		return room, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		member := &models.RoomMember{
			RoomID:    room.ID,
			MemberID:  userID,
			Role:      models.RoomRoleMember,
			JoinedAt:  now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.DB.Create(member).Error; err != nil {
			// 并发加入：唯一索引兜底，当作已加入处理
			var check int64
			s.DB.Model(&models.RoomMember{}).
				Where("room_id = ? AND member_id = ?", room.ID, userID).
				Count(&check)
			if check > 0 {
				return room, ErrAlreadyMember
			}
			return nil, err
		}
		return room, nil
	default:
		return nil, err
	}
}

// LeaveRoom 退出房间（软删除成员行）。房主不允许退出。
func (s *MemberService) LeaveRoom(roomAccount string, userID uint64) (*models.Room, error) {
	room, err := s.findRoom(roomAccount)
	if err != nil {
		return nil, err
	}

	var member models.RoomMember
	err = s.DB.Where("room_id = ? AND member_id = ?", room.ID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, err
	}
	if member.Role == models.RoomRoleOwner {
		return nil, ErrOwnerCannotQuit
	}

	if err := s.DB.Delete(&models.RoomMember{}, member.ID).Error; err != nil {
		return nil, err
	}
	return room, nil
}

func (s *MemberService) findRoom(roomAccount string) (*models.Room, error) {
	var room models.Room
	err := s.DB.Where("room_account = ?", roomAccount).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *MemberService) isActiveMember(roomID, userID uint64) (bool, error) {
	var count int64
	err := s.DB.Model(&models.RoomMember{}).
		Where("room_id = ? AND member_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}
