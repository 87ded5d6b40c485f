package models

import (
	"time"

	"gorm.io/gorm"
)

// ChatRoom 表示一個聊天室（私聊或群聊）
// 房間一旦建立，其身份永遠不變；停用時只把 IsActive 設為 false，不做刪除
type ChatRoom struct {
	gorm.Model
	Name         string    `gorm:"not null" json:"name"`
	Type         RoomType  `gorm:"type:varchar(10);not null;default:'direct'" json:"room_type"`
	Participants []User    `gorm:"many2many:room_participants" json:"participants"` // 參與者集合
	CreatedByID  uint      `gorm:"not null" json:"created_by_id"`                   // 建立者，建立時必定在參與者集合內
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	LastActivity time.Time `json:"last_activity"` // 最後一次有消息的時間，用於房間列表排序
}

// RoomType 定義房間類型
type RoomType string

const (
	RoomTypeDirect RoomType = "direct" // 一對一私聊
	RoomTypeGroup  RoomType = "group"  // 群組聊天
)

// HasParticipant 檢查指定用戶是否在參與者集合內
// 只適用於已經 Preload 參與者的房間實例
func (r *ChatRoom) HasParticipant(userID uint) bool {
	for _, p := range r.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}
