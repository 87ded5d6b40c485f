package models

import (
	"time"

	"gorm.io/gorm"
)

// Message 代表房間內的一條消息
// 消息一旦寫入即不可變，只有編輯狀態與已讀狀態兩組欄位允許更新；
// 內容本身視為不透明的加密負載，服務端只負責存轉，不做任何解密
type Message struct {
	gorm.Model
	RoomID    uint        `gorm:"index;not null" json:"room_id"`
	SenderID  uint        `gorm:"not null" json:"sender_id"`
	Sender    User        `json:"sender"`
	Type      MessageType `gorm:"type:varchar(10);not null;default:'text'" json:"message_type"`
	Content   string      `gorm:"type:text" json:"content"` // 文字消息為負載本身；檔案消息為原始檔名
	FileURL   string      `gorm:"type:varchar(500)" json:"file_url,omitempty"`
	FileName  string      `gorm:"type:varchar(255)" json:"file_name,omitempty"`
	FileSize  int64       `json:"file_size,omitempty"`
	Timestamp time.Time   `gorm:"index" json:"timestamp"` // 持久化時指定，同一房間內隨寫入順序遞增
	IsEdited  bool        `gorm:"default:false" json:"is_edited"`
	EditedAt  *time.Time  `json:"edited_at,omitempty"`
	IsRead    bool        `gorm:"default:false" json:"is_read"`
	ReadAt    *time.Time  `json:"read_at,omitempty"`
}

// MessageType 定義消息類型
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeFile     MessageType = "file"
	MessageTypeImage    MessageType = "image"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
)

// HasFilePayload 回報這個類型的消息是否攜帶檔案欄位
// 客戶端依類型與檔案欄位決定渲染方式，所以事件的欄位形狀必須與類型一致
func (t MessageType) HasFilePayload() bool {
	switch t {
	case MessageTypeFile, MessageTypeImage, MessageTypeAudio, MessageTypeVideo, MessageTypeDocument:
		return true
	case MessageTypeText:
		return false
	}
	return false
}

// MessageTypeFromExtension 依副檔名歸類消息類型
func MessageTypeFromExtension(ext string) MessageType {
	switch ext {
	case "jpg", "jpeg", "png", "gif", "webp":
		return MessageTypeImage
	case "mp4", "mov", "avi":
		return MessageTypeVideo
	case "mp3", "wav":
		return MessageTypeAudio
	}
	return MessageTypeFile
}

// MessageReadReceipt 記錄某個用戶讀取某條消息的時間
// 同一 (message, user) 組合最多只會有一筆記錄
type MessageReadReceipt struct {
	gorm.Model
	MessageID uint      `gorm:"not null;uniqueIndex:idx_message_user" json:"message_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_message_user" json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}
