package service

import (
	"time"

	"private_chat/internal/models"
)

// 客戶端送上來的事件類型
const (
	EventTypeText = "text" // 文字消息
	EventTypeFile = "file" // 引用已由上傳端點寫入的檔案消息
)

// InboundEvent 是客戶端經由即時通道送上來的事件
// 檔案內容不走這條路：file 事件只攜帶上傳端點已寫入消息的識別碼
type InboundEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	MessageID uint   `json:"message_id,omitempty"`
}

// ChatEvent 是推送給客戶端的事件
// text 消息不帶檔案欄位、檔案類消息必帶，客戶端依此分支渲染，
// 這是欄位形狀的約定而不只是外觀
type ChatEvent struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	MessageType string `json:"message_type,omitempty"`
	Sender      string `json:"sender,omitempty"`
	SenderID    uint   `json:"sender_id,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	MessageID   uint   `json:"message_id,omitempty"`
	FileURL     string `json:"file_url,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	// 指標讓零位元組的檔案仍然帶著 file_size:0，而文字消息完全不出現這個欄位
	FileSize *int64 `json:"file_size,omitempty"`
}

// NewConnectionEvent 建立連線成功的確認事件
func NewConnectionEvent() *ChatEvent {
	return &ChatEvent{
		Type:    "connection",
		Message: "Connected to chat room",
	}
}

// NewMessageEvent 由持久化後的消息建立廣播事件
// sender 與 sender_id 一律是觸發這次廣播的連線身分：檔案引用事件
// 可能由上傳者以外的成員送出，兩個欄位必須指向同一個人，
// 客戶端才能用 sender_id 對帳出自己的消息。
// 只有攜帶檔案負載的消息類型會填入檔案欄位
func NewMessageEvent(message *models.Message, senderID uint, senderName string) *ChatEvent {
	event := &ChatEvent{
		Type:        "message",
		Message:     message.Content,
		MessageType: string(message.Type),
		Sender:      senderName,
		SenderID:    senderID,
		Timestamp:   message.Timestamp.Format(time.RFC3339Nano),
		MessageID:   message.ID,
	}

	if message.Type.HasFilePayload() {
		size := message.FileSize
		event.FileURL = message.FileURL
		event.FileName = message.FileName
		event.FileSize = &size
	}

	return event
}
