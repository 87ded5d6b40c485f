package service

import (
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"private_chat/internal/models"
	"private_chat/internal/repository"
	"private_chat/pkg/apperrors"
)

// RoomService 管理房間與成員資格，同時是連線授權的判定來源
type RoomService struct {
	roomRepo    repository.RoomRepository
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	wsManager   *WebSocketManager
}

func NewRoomService(roomRepo repository.RoomRepository, userRepo repository.UserRepository,
	messageRepo repository.MessageRepository, wsManager *WebSocketManager) *RoomService {
	return &RoomService{
		roomRepo:    roomRepo,
		userRepo:    userRepo,
		messageRepo: messageRepo,
		wsManager:   wsManager,
	}
}

// Authorize 判定用戶是否可以連入房間
// 每次呼叫都重新查詢成員資格；房間不存在與不是成員回傳同一個錯誤，
// 避免從拒絕結果推斷房間是否存在
func (s *RoomService) Authorize(roomID, userID uint) error {
	ok, err := s.roomRepo.IsParticipant(roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrNotAuthorized
	}
	return nil
}

// CreateRoom 建立房間，建立者一定會被加入參與者集合
// 名單中找不到的用戶名只記錄日誌、不中斷建立
func (s *RoomService) CreateRoom(creatorID uint, name string, roomType models.RoomType, participantNames []string) (*models.ChatRoom, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.ErrInvalidInput
	}
	switch roomType {
	case models.RoomTypeDirect, models.RoomTypeGroup:
	default:
		return nil, apperrors.ErrInvalidInput
	}

	creator, err := s.userRepo.FindByID(creatorID)
	if err != nil {
		return nil, err
	}

	participants := []models.User{*creator}
	seen := map[string]bool{creator.Username: true}
	for _, username := range participantNames {
		if seen[username] {
			continue
		}
		seen[username] = true
		user, err := s.userRepo.FindByUsername(username)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("create room: user %q not found, skipped", username)
				continue
			}
			return nil, err
		}
		participants = append(participants, *user)
	}

	room := &models.ChatRoom{
		Name:         name,
		Type:         roomType,
		Participants: participants,
		CreatedByID:  creatorID,
		IsActive:     true,
		LastActivity: time.Now().UTC(),
	}

	if err := s.roomRepo.Create(room); err != nil {
		return nil, err
	}
	return room, nil
}

// ListRooms 回傳用戶參與中的啟用房間，依最後活動時間排序
func (s *RoomService) ListRooms(userID uint) ([]models.ChatRoom, error) {
	return s.roomRepo.FindActiveByUser(userID)
}

// GetRoom 回傳單一房間，只限成員查詢
func (s *RoomService) GetRoom(roomID, userID uint) (*models.ChatRoom, error) {
	if err := s.Authorize(roomID, userID); err != nil {
		return nil, err
	}
	return s.roomRepo.FindByIDWithParticipants(roomID)
}

// History 回傳房間內的消息歷史，只限成員查詢
// sinceID 為續讀游標，0 表示從頭開始
func (s *RoomService) History(roomID, userID, sinceID uint, limit int) ([]models.Message, error) {
	if err := s.Authorize(roomID, userID); err != nil {
		return nil, err
	}
	return s.messageRepo.ListSince(roomID, sinceID, limit)
}

// MarkRead 記錄用戶讀取消息，重複標記沒有效果
func (s *RoomService) MarkRead(roomID, userID, messageID uint) error {
	if err := s.Authorize(roomID, userID); err != nil {
		return err
	}

	// 消息必須屬於這個房間
	if _, err := s.messageRepo.FindInRoom(messageID, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return err
	}

	return s.messageRepo.MarkRead(messageID, userID, time.Now().UTC())
}

// AddParticipant 把用戶加入房間，呼叫者必須是成員
func (s *RoomService) AddParticipant(roomID, callerID uint, username string) error {
	if err := s.Authorize(roomID, callerID); err != nil {
		return err
	}

	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return err
	}

	return s.roomRepo.AddParticipant(roomID, user)
}

// RemoveParticipant 把用戶移出房間並立即斷開他在這個房間的即時連線
// 不採取放任連線存活到下次重連的做法，移除後即時通道馬上失效
func (s *RoomService) RemoveParticipant(roomID, callerID, targetID uint) error {
	if err := s.Authorize(roomID, callerID); err != nil {
		return err
	}

	if err := s.roomRepo.RemoveParticipant(roomID, targetID); err != nil {
		return err
	}

	s.wsManager.DisconnectUser(roomID, targetID)
	return nil
}

// DeactivateRoom 停用房間，只有建立者可以操作；房間本身永遠不會被刪除
func (s *RoomService) DeactivateRoom(roomID, callerID uint) error {
	if err := s.Authorize(roomID, callerID); err != nil {
		return err
	}

	room, err := s.roomRepo.FindByID(roomID)
	if err != nil {
		return err
	}
	if room.CreatedByID != callerID {
		return apperrors.ErrNotAuthorized
	}

	return s.roomRepo.Deactivate(roomID)
}

// TouchActivity 更新房間的最後活動時間，失敗只記錄日誌不影響消息流程
func (s *RoomService) TouchActivity(roomID uint, at time.Time) {
	if err := s.roomRepo.Touch(roomID, at); err != nil {
		log.Printf("failed to touch room %d activity: %v", roomID, err)
	}
}
