package repository

import (
	"time"

	"private_chat/internal/models"
	"private_chat/internal/storage"
)

type RoomRepository interface {
	Create(room *models.ChatRoom) error
	FindByID(id uint) (*models.ChatRoom, error)
	FindByIDWithParticipants(id uint) (*models.ChatRoom, error)
	FindActiveByUser(userID uint) ([]models.ChatRoom, error)
	IsParticipant(roomID, userID uint) (bool, error)
	AddParticipant(roomID uint, user *models.User) error
	RemoveParticipant(roomID, userID uint) error
	Touch(roomID uint, at time.Time) error
	Deactivate(roomID uint) error
}

type roomRepository struct {
	db *storage.PostgresDB
}

func NewRoomRepository(db *storage.PostgresDB) RoomRepository {
	return &roomRepository{db: db}
}

// Create 建立房間並一併寫入參與者關聯
func (r *roomRepository) Create(room *models.ChatRoom) error {
	return r.db.Create(room).Error
}

func (r *roomRepository) FindByID(id uint) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.First(&room, id).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) FindByIDWithParticipants(id uint) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.Preload("Participants").First(&room, id).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// FindActiveByUser 查詢用戶參與中的所有啟用房間，依最後活動時間排序
func (r *roomRepository) FindActiveByUser(userID uint) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := r.db.
		Joins("JOIN room_participants ON room_participants.chat_room_id = chat_rooms.id").
		Where("room_participants.user_id = ? AND chat_rooms.is_active = ?", userID, true).
		Preload("Participants").
		Order("chat_rooms.last_activity DESC").
		Find(&rooms).Error
	return rooms, err
}

// IsParticipant 檢查用戶是否為啟用房間的參與者
// 授權判定必須每次重新查詢資料庫，不能沿用先前連線的結果
func (r *roomRepository) IsParticipant(roomID, userID uint) (bool, error) {
	var count int64
	err := r.db.Table("room_participants").
		Joins("JOIN chat_rooms ON chat_rooms.id = room_participants.chat_room_id").
		Where("room_participants.chat_room_id = ? AND room_participants.user_id = ?", roomID, userID).
		Where("chat_rooms.is_active = ? AND chat_rooms.deleted_at IS NULL", true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *roomRepository) AddParticipant(roomID uint, user *models.User) error {
	room := models.ChatRoom{}
	room.ID = roomID
	return r.db.Model(&room).Association("Participants").Append(user)
}

func (r *roomRepository) RemoveParticipant(roomID, userID uint) error {
	room := models.ChatRoom{}
	room.ID = roomID
	user := models.User{}
	user.ID = userID
	return r.db.Model(&room).Association("Participants").Delete(&user)
}

// Touch 更新房間的最後活動時間
func (r *roomRepository) Touch(roomID uint, at time.Time) error {
	return r.db.Model(&models.ChatRoom{}).
		Where("id = ?", roomID).
		Update("last_activity", at).Error
}

// Deactivate 停用房間；房間永遠不會被實際刪除
func (r *roomRepository) Deactivate(roomID uint) error {
	return r.db.Model(&models.ChatRoom{}).
		Where("id = ?", roomID).
		Update("is_active", false).Error
}
