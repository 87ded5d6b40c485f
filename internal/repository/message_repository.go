package repository

import (
	"time"

	"gorm.io/gorm"

	"private_chat/internal/models"
	"private_chat/internal/storage"
)

type MessageRepository interface {
	Append(message *models.Message) error
	ListSince(roomID, sinceID uint, limit int) ([]models.Message, error)
	FindInRoom(messageID, roomID uint) (*models.Message, error)
	MarkRead(messageID, userID uint, at time.Time) error
	ExistsByFileURL(url string) (bool, error)
}

type messageRepository struct {
	db *storage.PostgresDB
}

func NewMessageRepository(db *storage.PostgresDB) MessageRepository {
	return &messageRepository{db: db}
}

// Append 寫入一條新消息
// 時間戳在持久化的當下指定，同一房間內消息以 (timestamp, id) 形成全序；
// 寫入是原子的，呼叫方不會觀察到寫了一半的消息
func (r *messageRepository) Append(message *models.Message) error {
	message.Timestamp = time.Now().UTC()
	return r.db.Create(message).Error
}

// ListSince 回傳房間內 id 大於等於 sinceID 的消息，按寫入順序排列
// 供進入房間時補歷史使用，cursor 可以在任何請求重新開始
func (r *messageRepository) ListSince(roomID, sinceID uint, limit int) ([]models.Message, error) {
	var messages []models.Message
	q := r.db.Preload("Sender").
		Where("room_id = ? AND id >= ?", roomID, sinceID).
		Order("timestamp ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&messages).Error
	return messages, err
}

// FindInRoom 依識別碼查詢消息，且限定在指定房間內
// 跨房間的識別碼誤用與不存在的識別碼回傳相同的 not found
func (r *messageRepository) FindInRoom(messageID, roomID uint) (*models.Message, error) {
	var message models.Message
	err := r.db.Where("id = ? AND room_id = ?", messageID, roomID).First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// MarkRead 記錄用戶讀取消息，重複呼叫不產生第二筆記錄也不回報錯誤
func (r *messageRepository) MarkRead(messageID, userID uint, at time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var receipt models.MessageReadReceipt
		res := tx.Where(models.MessageReadReceipt{MessageID: messageID, UserID: userID}).
			Attrs(models.MessageReadReceipt{ReadAt: at}).
			FirstOrCreate(&receipt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 已經有讀取記錄
			return nil
		}

		return tx.Model(&models.Message{}).
			Where("id = ? AND is_read = ?", messageID, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": at}).Error
	})
}

// ExistsByFileURL 檢查是否有消息引用指定的檔案 URL，供孤兒回收比對
func (r *messageRepository) ExistsByFileURL(url string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Message{}).Where("file_url = ?", url).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
