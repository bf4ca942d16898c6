package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// prefix 表名前缀；引擎初始化时通过 SetTablePrefix 注入，默认 im_。
var prefix = "im_"

// SetTablePrefix 设置全部表名的前缀。
// 必须在任何查询/迁移之前调用（NewEngine 里完成）；空串不生效。
func SetTablePrefix(p string) {
	if p != "" {
		prefix = p
	}
}

// User 用户表
type User struct {
	ID        uint64 `gorm:"primarykey"`
	UID       string `gorm:"size:36;uniqueIndex;not null"` // 对外用户 ID
	Username  string `gorm:"size:50;uniqueIndex;not null"` // 用户名
	FirstName string `gorm:"size:50"`                      // 名
	LastName  string `gorm:"size:50"`                      // 姓
	Nickname  string `gorm:"size:100"`                     // 昵称
	Password  string `gorm:"size:255;not null"`            // 密码（bcrypt）
	Avatar    string `gorm:"size:500"`                     // 头像
	Email     string `gorm:"size:100;uniqueIndex;default:null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	// 关联关系
	Rooms    []RoomMember `gorm:"foreignKey:MemberID"`
	Messages []Message    `gorm:"foreignKey:SenderID"`
}

func (User) TableName() string {
	return prefix + "user"
}

// 成员角色
const (
	RoomRoleMember = 0 // 普通成员
	RoomRoleOwner  = 1 // 房主（创建者）
)

// Room 聊天房间表
type Room struct {
	ID uint64 `gorm:"primarykey"`

	// RoomAccount 对外房间 ID（UUID 字符串），所有 wire 协议里的 roomId 都是它；
	// 不参与任何外键关联，避免被 GORM 推断成 bigint。
	RoomAccount string `gorm:"column:room_account;type:varchar(36);uniqueIndex;not null"`

	Name        string `gorm:"size:100;not null"` // 房间名称
	Description string `gorm:"size:500"`          // 描述
	IsPrivate   bool   `gorm:"default:false"`     // 是否私有（仅邀请可加入）
	CreatorID   uint64 `gorm:"index"`             // 创建者 ID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`

	// 关联关系
	Creator  User         `gorm:"foreignKey:CreatorID"`
	Members  []RoomMember `gorm:"foreignKey:RoomID;references:ID"`
	Messages []Message    `gorm:"foreignKey:RoomID;references:ID"`
}

func (Room) TableName() string {
	return prefix + "room"
}

// RoomMember 房间成员表
// 唯一约束 (room_id, member_id)：并发重复加入由存储层兜底（skip duplicates），
// 应用层的 check-then-act 只是尽力而为。
type RoomMember struct {
	ID        uint64    `gorm:"primarykey"`
	RoomID    uint64    `gorm:"index:idx_room_member,unique;not null"` // 房间 ID (对应 Room.ID)
	MemberID  uint64    `gorm:"index:idx_room_member,unique;not null"` // 成员用户 ID
	Role      uint8     `gorm:"type:tinyint;default:0"`                // 角色: 0-普通成员 1-房主
	JoinedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP"`             // 加入时间
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"` // 软删除 = 退出房间

	// 关联关系
	Room   Room `gorm:"foreignKey:RoomID;references:ID"`
	Member User `gorm:"foreignKey:MemberID"`
}

func (RoomMember) TableName() string {
	return prefix + "room_member"
}

// Message 消息表（一经创建不可修改；不支持编辑）
type Message struct {
	ID        uint64         `gorm:"primarykey"`
	RoomID    uint64         `gorm:"index;not null"`     // 房间 ID (对应 Room.ID)
	SenderID  uint64         `gorm:"index;not null"`     // 发送者 ID
	Content   string         `gorm:"type:text;not null"` // 消息内容（已经过 sanitize）
	Extra     datatypes.JSON `gorm:"column:extra;type:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	// 关联关系
	Room   Room `gorm:"foreignKey:RoomID;references:ID"`
	Sender User `gorm:"foreignKey:SenderID"`
}

func (Message) TableName() string {
	return prefix + "message"
}

// MessageReceipt 消息回执表（每条消息 × 每个接收者一行）
// 唯一约束 (message_id, recipient_id)：批量插入使用 skip-duplicates 语义，
// 重复投递/重试不会产生第二行。
type MessageReceipt struct {
	ID          uint64     `gorm:"primarykey"`
	MessageID   uint64     `gorm:"index:idx_msg_recipient,unique;not null"` // 消息 ID
	RecipientID uint64     `gorm:"index:idx_msg_recipient,unique;not null"` // 接收者用户 ID
	DeliveredAt time.Time  `gorm:"default:CURRENT_TIMESTAMP"`               // 送达时间（由存储层默认填充）
	ReadAt      *time.Time // 阅读时间（null = 未读）
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// 关联关系
	Message   Message `gorm:"foreignKey:MessageID"`
	Recipient User    `gorm:"foreignKey:RecipientID"`
}

func (MessageReceipt) TableName() string {
	return prefix + "message_receipt"
}
