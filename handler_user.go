package roomchat_sdk

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cydxin/roomchat-sdk/middleware"
	"github.com/cydxin/roomchat-sdk/response"
	"github.com/cydxin/roomchat-sdk/service"
)

// -------------------- 用户（User）相关接口 --------------------

// GinHandleUserRegister 用户注册
// @Summary 用户注册
// @Description 创建新用户账号
// @Tags 用户
// @Accept json
// @Produce json
// @Param req body service.RegisterReq true "注册信息"
// @Success 201 {object} response.Response{data=service.UserDTO} "注册成功"
// @Failure 400 {object} response.Response "请求错误"
// @Router /user/register [post]
func (c *ChatEngine) GinHandleUserRegister(ctx *gin.Context) {
	var req service.RegisterReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.Fail(ctx, http.StatusBadRequest, err.Error())
		return
	}

	u, err := c.UserService.Register(req)
	if err != nil {
		response.Fail(ctx, http.StatusBadRequest, err.Error())
		return
	}
	response.Created(ctx, u)
}

// GinHandleUserLogin 用户登录
// @Summary 用户登录
// @Description 登录并返回访问令牌；remember=true 时服务端会话 30 天
// @Tags 用户
// @Accept json
// @Produce json
// @Param req body service.LoginReq true "登录信息"
// @Success 200 {object} response.Response{data=service.LoginResp} "登录响应（token + 用户信息）"
// @Failure 401 {object} response.Response "认证失败"
// @Router /user/login [post]
func (c *ChatEngine) GinHandleUserLogin(ctx *gin.Context) {
	var req service.LoginReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.Fail(ctx, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := c.UserService.Login(ctx.Request.Context(), req)
	if err != nil {
		response.Fail(ctx, http.StatusUnauthorized, err.Error())
		return
	}
	response.OK(ctx, resp)
}

// GinHandleUserLogout 用户登出
// @Summary 用户登出
// @Description 注销服务端会话，token 立即失效（无论 token 本身是否过期）
// @Tags 用户
// @Produce json
// @Success 200 {object} response.Response "已登出"
// @Security BearerAuth
// @Router /user/logout [post]
func (c *ChatEngine) GinHandleUserLogout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	if token == "" {
		response.Fail(ctx, http.StatusUnauthorized, "未登录")
		return
	}
	if err := c.UserService.Logout(ctx.Request.Context(), token); err != nil {
		response.Fail(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	response.OK(ctx, nil, "已登出")
}

// GinHandleGetMe 当前用户信息
// @Summary 当前用户信息
// @Tags 用户
// @Produce json
// @Success 200 {object} response.Response{data=service.UserDTO} "用户信息"
// @Security BearerAuth
// @Router /user/me [get]
func (c *ChatEngine) GinHandleGetMe(ctx *gin.Context) {
	uid, ok := requireUser(ctx)
	if !ok {
		return
	}
	u, err := c.UserService.GetUser(uid)
	if err != nil {
		response.Fail(ctx, http.StatusNotFound, "用户不存在")
		return
	}
	response.OK(ctx, u)
}

// GinHandleGetUserInfo 获取用户信息
// @Summary 获取用户信息
// @Description 根据 user id 查询用户公开信息
// @Tags 用户
// @Produce json
// @Param id path uint64 true "用户ID"
// @Success 200 {object} response.Response{data=service.UserDTO} "用户信息"
// @Failure 404 {object} response.Response "用户不存在"
// @Router /user/{id} [get]
func (c *ChatEngine) GinHandleGetUserInfo(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Fail(ctx, http.StatusBadRequest, "用户 ID 无效")
		return
	}
	u, err := c.UserService.GetUser(id)
	if err != nil {
		response.Fail(ctx, http.StatusNotFound, "用户不存在")
		return
	}
	response.OK(ctx, u)
}
