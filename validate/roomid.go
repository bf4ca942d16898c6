package validate

import (
	"strings"

	"github.com/google/uuid"
)

// ValidateRoomID 校验对外房间 ID（room_account，UUID 字符串）。
// 任何格式不合法的 ID 在触达存储层之前就被拒绝。
func ValidateRoomID(id string) Result {
	id = strings.TrimSpace(id)
	if id == "" {
		return Result{IsValid: false, Errors: []string{"房间 ID 不能为空"}}
	}
	if _, err := uuid.Parse(id); err != nil {
		return Result{IsValid: false, Errors: []string{"房间 ID 格式不合法"}}
	}
	return Result{IsValid: true, Errors: []string{}}
}
