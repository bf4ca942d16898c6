// Package response 统一的 REST 响应包装。
// 所有接口返回同一个信封：success/message/statusCode/timestamp/requestId + data 或 error。
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ContextRequestIDKey gin context 里保存 request id 的 key（由 RequestID 中间件写入）
const ContextRequestIDKey = "request_id"

// Response 统一响应结构
type Response struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Timestamp  time.Time   `json:"timestamp"`
	RequestID  string      `json:"requestId,omitempty"`
	Data       interface{} `json:"data,omitempty" swaggertype:"object"`
	Error      interface{} `json:"error,omitempty" swaggertype:"object"`
}

func build(c *gin.Context, status int, msg string) *Response {
	r := &Response{
		Success:    status < http.StatusBadRequest,
		Message:    msg,
		StatusCode: status,
		Timestamp:  time.Now(),
	}
	if c != nil {
		r.RequestID = c.GetString(ContextRequestIDKey)
	}
	return r
}

// OK 200 成功响应
func OK(c *gin.Context, data interface{}, args ...string) {
	msg := "success"
	for _, arg := range args {
		msg = arg
	}
	r := build(c, http.StatusOK, msg)
	r.Data = data
	c.JSON(http.StatusOK, r)
}

// Created 201 成功响应
func Created(c *gin.Context, data interface{}, args ...string) {
	msg := "created"
	for _, arg := range args {
		msg = arg
	}
	r := build(c, http.StatusCreated, msg)
	r.Data = data
	c.JSON(http.StatusCreated, r)
}

// Fail 错误响应；detail 放进 error 字段（校验错误列表等）。
func Fail(c *gin.Context, status int, msg string, detail ...interface{}) {
	r := build(c, status, msg)
	if len(detail) > 0 {
		r.Error = detail[0]
	}
	c.JSON(status, r)
}

// AbortFail 中间件用：写响应并终止后续 handler。
func AbortFail(c *gin.Context, status int, msg string, detail ...interface{}) {
	r := build(c, status, msg)
	if len(detail) > 0 {
		r.Error = detail[0]
	}
	c.AbortWithStatusJSON(status, r)
}
