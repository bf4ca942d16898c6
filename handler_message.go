package roomchat_sdk

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cydxin/roomchat-sdk/response"
)

// -------------------- 消息 / 回执相关接口 --------------------

// GinHandleGetRoomMessages 获取房间消息列表
// @Summary 获取房间消息
// @Description 分页获取房间历史消息（新的在前），同时自动把未读标记为已读；附带每条消息的聚合已读状态
// @Tags 消息
// @Produce json
// @Param roomId path string true "房间 ID（UUID）"
// @Param page query int false "页码（默认 1）"
// @Param pageSize query int false "每页数量（默认 50）"
// @Success 200 {object} response.Response{data=[]service.MessageListItemDTO} "消息列表"
// @Failure 403 {object} response.Response "不是房间成员"
// @Security BearerAuth
// @Router /rooms/{roomId}/messages [get]
func (c *ChatEngine) GinHandleGetRoomMessages(ctx *gin.Context) {
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

	page := queryInt(ctx, "page", 1)
	pageSize := queryInt(ctx, "pageSize", 50)

	messages, total, err := c.MsgService.GetRoomMessages(room.ID, page, pageSize)
	if err != nil {
		response.Fail(ctx, http.StatusInternalServerError, err.Error())
		return
	}

	// 拉取即已读：翻转未读回执
	var marked int64
	if ids := c.ReceiptService.GetUnreadMessageIDs(uid, room.ID); len(ids) > 0 {
		marked = c.ReceiptService.MarkMultipleAsRead(ids, uid)
	}

	// 每条消息的聚合已读状态
	msgIDs := make([]uint64, len(messages))
	for i := range messages {
		msgIDs[i] = messages[i].ID
	}
	summaries := c.ReceiptService.GetMessagesWithReceipts(msgIDs)

	items := make([]gin.H, len(messages))
	for i := range messages {
		s := summaries[messages[i].ID]
		items[i] = gin.H{
			"message":    messages[i],
			"readStatus": s.ReadStatus,
			"readCount":  s.ReadCount,
			"total":      s.Total,
		}
	}

	response.OK(ctx, gin.H{
		"messages":   items,
		"total":      total,
		"page":       page,
		"pageSize":   pageSize,
		"markedRead": marked,
	})
}

// GinHandleGetMessageReceipts 消息回执明细
// @Summary 消息回执明细
// @Description 查询一条消息的投递/已读回执明细（仅消息所在房间成员可见）
// @Tags 消息
// @Produce json
// @Param messageId path uint64 true "消息 ID"
// @Success 200 {object} response.Response{data=[]service.MessageReceiptDetail} "回执明细"
// @Failure 403 {object} response.Response "不是房间成员"
// @Failure 404 {object} response.Response "消息不存在"
// @Security BearerAuth
// @Router /messages/{messageId}/receipts [get]
func (c *ChatEngine) GinHandleGetMessageReceipts(ctx *gin.Context) {
	uid, ok := requireUser(ctx)
	if !ok {
		return
	}
	msgID, err := strconv.ParseUint(ctx.Param("messageId"), 10, 64)
	if err != nil || msgID == 0 {
		response.Fail(ctx, http.StatusBadRequest, "消息 ID 无效")
		return
	}

	msg, err := c.MsgService.GetMessageByID(msgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Fail(ctx, http.StatusNotFound, "消息不存在")
		} else {
			response.Fail(ctx, http.StatusInternalServerError, err.Error())
		}
		return
	}

	isMember, err := c.RoomService.CheckRoomMember(msg.RoomID, uid)
	if err != nil {
		response.Fail(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	if !isMember {
		response.Fail(ctx, http.StatusForbidden, "你不是房间成员")
		return
	}

	details := c.ReceiptService.GetMessageReceipts(msgID)
	summary := c.ReceiptService.GetMessagesWithReceipts([]uint64{msgID})[msgID]
	response.OK(ctx, gin.H{
		"receipts":   details,
		"readStatus": summary.ReadStatus,
		"readCount":  summary.ReadCount,
		"total":      summary.Total,
	})
}

// GinHandleGetUnreadMessages 未读消息列表
// @Summary 未读消息
// @Description 当前用户的未读消息；roomId 可选，限定单个房间
// @Tags 消息
// @Produce json
// @Param roomId query string false "房间 ID（UUID）"
// @Success 200 {object} response.Response{data=[]service.UnreadMessage} "未读消息列表"
// @Security BearerAuth
// @Router /messages/unread [get]
func (c *ChatEngine) GinHandleGetUnreadMessages(ctx *gin.Context) {
	uid, ok := requireUser(ctx)
	if !ok {
		return
	}

	var roomID uint64
	if account := ctx.Query("roomId"); account != "" {
		room, err := c.RoomService.GetRoomByAccount(account)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				response.Fail(ctx, http.StatusNotFound, "房间不存在")
			} else {
				response.Fail(ctx, http.StatusInternalServerError, err.Error())
			}
			return
		}
		roomID = room.ID
	}

	unread := c.ReceiptService.GetUnreadMessages(uid, roomID)
	response.OK(ctx, gin.H{"messages": unread, "count": len(unread)})
}
