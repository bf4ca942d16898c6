package roomchat_sdk

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cydxin/roomchat-sdk/cons"
	"github.com/cydxin/roomchat-sdk/middleware"
	"github.com/cydxin/roomchat-sdk/response"
	"github.com/cydxin/roomchat-sdk/service"
	"github.com/cydxin/roomchat-sdk/validate"
)

// -------------------- 房间（Room）相关接口 --------------------

// currentUserID 从 gin context 取鉴权中间件写入的 user id。
func currentUserID(ctx *gin.Context) (uint64, bool) {
	uid, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := uid.(uint64)
	return id, ok && id > 0
}

func requireUser(ctx *gin.Context) (uint64, bool) {
	id, ok := currentUserID(ctx)
	if !ok {
		response.Fail(ctx, http.StatusUnauthorized, "未登录")
	}
	return id, ok
}

// roomFromParam 解析 :roomId 并做成员检查以外的基础校验。
func (c *ChatEngine) roomFromParam(ctx *gin.Context) (string, bool) {
	roomID := ctx.Param("roomId")
	if r := validate.ValidateRoomID(roomID); !r.IsValid {
		response.Fail(ctx, http.StatusBadRequest, "房间 ID 无效", r.Errors)
		return "", false
	}
	return roomID, true
}

type CreateRoomReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
}

// GinHandleCreateRoom 创建房间
// @Summary 创建房间
// @Description 创建新的聊天房间，创建者自动成为房主
// @Tags 房间
// @Accept json
// @Produce json
// @Param req body CreateRoomReq true "创建参数"
// @Success 201 {object} response.Response{data=service.RoomDTO} "房间信息"
// @Failure 400 {object} response.Response "请求错误"
// @Failure 429 {object} response.Response "创建太频繁"
// @Security BearerAuth
// @Router /rooms [post]
func (c *ChatEngine) GinHandleCreateRoom(ctx *gin.Context) {
	uid, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req CreateRoomReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.Fail(ctx, http.StatusBadRequest, err.Error())
		return
	}

	room, err := c.RoomService.CreateRoom(req.Name, req.Description, req.IsPrivate, uid)
	if err != nil {
		response.Fail(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	response.Created(ctx, gin.H{
		"roomId":      room.RoomAccount,
		"name":        room.Name,
		"description": room.Description,
		"isPrivate":   room.IsPrivate,
		"creatorId":   room.CreatorID,
		"createdAt":   room.CreatedAt,
	})
}

// GinHandleGetUserRooms 获取当前用户的房间列表
// @Summary 获取用户房间列表
// @Description 分页获取当前用户参与的房间（带成员数和未读数）
// @Tags 房间
// @Produce json
// @Param page query int false "页码（默认 1）"
// @Param pageSize query int false "每页数量（默认 20）"
// @Success 200 {object} response.Response{data=[]service.RoomDTO} "房间列表"
// @Security BearerAuth
// @Router /rooms [get]
func (c *ChatEngine) GinHandleGetUserRooms(ctx *gin.Context) {
	uid, ok := requireUser(ctx)
	if !ok {
		return
	}
	page := queryInt(ctx, "page", 1)
	pageSize := queryInt(ctx, "pageSize", 20)

	rooms, total, err := c.RoomService.GetUserRooms(uid, page, pageSize)
	if err != nil {
		response.Fail(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	response.OK(ctx, gin.H{"rooms": rooms, "total": total, "page": page, "pageSize": pageSize})
}

type JoinRoomRESTReq struct {
	InviteToken string `json:"inviteToken"`
}

// GinHandleJoinRoom 加入房间
// @Summary 加入房间
// @Description 公开房间直接加入；私有房间需携带邀请令牌
// @Tags 房间
// @Accept json
// @Produce json
// @Param roomId path string true "房间 ID（UUID）"
// @Param req body JoinRoomRESTReq false "邀请令牌（私有房间必填）"
// @Success 200 {object} response.Response "加入成功"
// @Failure 403 {object} response.Response "需要邀请或邀请无效"
// @Failure 404 {object} response.Response "房间不存在"
// @Failure 409 {object} response.Response "已是房间成员"
// @Security BearerAuth
// @Router /rooms/{roomId}/join [post]
func (c *ChatEngine) GinHandleJoinRoom(ctx *gin.Context) {
	uid, ok := requireUser(ctx)
	if !ok {
		return
	}
	roomID, ok := c.roomFromParam(ctx)
	if !ok {
		return
	}
	var req JoinRoomRESTReq
	_ = ctx.ShouldBindJSON(&req)

	room, err := c.MemberService.JoinRoom(roomID, uid, req.InviteToken)
	switch {
	case err == nil:
		response.OK(ctx, gin.H{"roomId": room.RoomAccount, "name": room.Name}, "已加入房间")
	case errors.Is(err, service.ErrRoomNotFound):
		response.Fail(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyMember):
		response.Fail(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInviteRequired),
		errors.Is(err, service.ErrInviteInvalid),
		errors.Is(err, service.ErrInviteMismatch):
		response.Fail(ctx, http.StatusForbidden, err.Error())
	default:
		response.Fail(ctx, http.StatusInternalServerError, err.Error())
	}
}

// GinHandleLeaveRoom 退出房间
// @Summary 退出房间
// @Description 退出房间（软删除成员资格）；房主不能退出
// @Tags 房间
// @Produce json
// @Param roomId path string true "房间 ID（UUID）"
// @Success 200 {object} response.Response "已退出"
// @Failure 403 {object} response.Response "房主不能退出"
// @Failure 404 {object} response.Response "房间不存在或不是成员"
// @Security BearerAuth
// @Router /rooms/{roomId}/leave [post]
func (c *ChatEngine) GinHandleLeaveRoom(ctx *gin.Context) {
	uid, ok := requireUser(ctx)
	if !ok {
		return
	}
	roomID, ok := c.roomFromParam(ctx)
	if !ok {
		return
	}

	_, err := c.MemberService.LeaveRoom(roomID, uid)
	switch {
	case err == nil:
		response.OK(ctx, nil, "已退出房间")
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, service.ErrNotMember):
		response.Fail(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrOwnerCannotQuit):
		response.Fail(ctx, http.StatusForbidden, err.Error())
	default:
		response.Fail(ctx, http.StatusInternalServerError, err.Error())
	}
}

type CreateInviteReq struct {
	UserID uint64 `json:"userId" binding:"required"`
}

// GinHandleCreateInvite 签发房间邀请
// @Summary 邀请用户
// @Description 为指定用户签发定向邀请令牌（一房间一用户，限时有效）
// @Tags 房间
// @Accept json
// @Produce json
// @Param roomId path string true "房间 ID（UUID）"
// @Param req body CreateInviteReq true "受邀用户"
// @Success 201 {object} response.Response "邀请令牌"
// @Failure 403 {object} response.Response "不是房间成员"
// @Failure 429 {object} response.Response "邀请太频繁"
// @Security BearerAuth
// @Router /rooms/{roomId}/invite [post]
func (c *ChatEngine) GinHandleCreateInvite(ctx *gin.Context) {
	uid, ok := requireUser(ctx)
	if !ok {
		return
	}
	roomID, ok := c.roomFromParam(ctx)
	if !ok {
		return
	}
	var req CreateInviteReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.Fail(ctx, http.StatusBadRequest, err.Error())
		return
	}

	token, err := c.MemberService.CreateInvite(roomID, uid, req.UserID)
	switch {
	case err == nil:
		response.Created(ctx, gin.H{"inviteToken": token})
	case errors.Is(err, service.ErrRoomNotFound):
		response.Fail(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotMember):
		response.Fail(ctx, http.StatusForbidden, err.Error())
	default:
		response.Fail(ctx, http.StatusInternalServerError, err.Error())
	}
}

// GinHandleGetRoomMembers 房间成员列表
// @Summary 房间成员列表
// @Description 获取房间成员（带在线状态），仅成员可见
// @Tags 房间
// @Produce json
// @Param roomId path string true "房间 ID（UUID）"
// @Success 200 {object} response.Response{data=[]service.RoomMemberListItemDTO} "成员列表"
// @Failure 403 {object} response.Response "不是房间成员"
// @Security BearerAuth
// @Router /rooms/{roomId}/members [get]
func (c *ChatEngine) GinHandleGetRoomMembers(ctx *gin.Context) {
	uid, ok := requireUser(ctx)
	if !ok {
		return
	}
	roomAccount, ok := c.roomFromParam(ctx)
	if !ok {
		return
	}
	room, ok := c.mustBeMember(ctx, roomAccount, uid)
	if !ok {
		return
	}

	members, err := c.RoomService.GetRoomMemberList(ctx.Request.Context(), room.ID)
	if err != nil {
		response.Fail(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	response.OK(ctx, members)
}

// GinHandleGetRoomPresence 房间在线状态摘要
// @Summary 房间在线状态
// @Description 房间内各成员的 online/offline 状态
// @Tags 房间
// @Produce json
// @Param roomId path string true "房间 ID（UUID）"
// @Success 200 {object} response.Response "在线状态列表"
// @Security BearerAuth
// @Router /rooms/{roomId}/presence [get]
func (c *ChatEngine) GinHandleGetRoomPresence(ctx *gin.Context) {
	uid, ok := requireUser(ctx)
	if !ok {
		return
	}
	roomAccount, ok := c.roomFromParam(ctx)
	if !ok {
		return
	}
	room, ok := c.mustBeMember(ctx, roomAccount, uid)
	if !ok {
		return
	}

	memberIDs, err := c.RoomService.GetRoomMembers(room.ID)
	if err != nil {
		response.Fail(ctx, http.StatusInternalServerError, err.Error())
		return
	}

	records := c.PresenceService.GetMultiplePresence(context.Background(), memberIDs)
	online := 0
	out := make([]gin.H, 0, len(memberIDs))
	for _, id := range memberIDs {
		rec := records[id]
		if rec.Status == cons.PresenceOnline {
			online++
		}
		out = append(out, gin.H{
			"userId":   id,
			"status":   rec.Status,
			"lastSeen": time.Unix(rec.LastSeen, 0),
		})
	}
	response.OK(ctx, gin.H{"members": out, "onlineCount": online, "totalCount": len(memberIDs)})
}

// mustBeMember 成员资格检查；失败写响应并返回 false。
func (c *ChatEngine) mustBeMember(ctx *gin.Context, roomAccount string, userID uint64) (*roomHandle, bool) {
	room, err := c.RoomService.GetRoomByAccount(roomAccount)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Fail(ctx, http.StatusNotFound, "房间不存在")
		} else {
			response.Fail(ctx, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	isMember, err := c.RoomService.CheckRoomMember(room.ID, userID)
	if err != nil {
		response.Fail(ctx, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if !isMember {
		response.Fail(ctx, http.StatusForbidden, "你不是房间成员")
		return nil, false
	}
	return &roomHandle{ID: room.ID, RoomAccount: room.RoomAccount, Name: room.Name}, true
}

type roomHandle struct {
	ID          uint64
	RoomAccount string
	Name        string
}

func queryInt(ctx *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(ctx.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
