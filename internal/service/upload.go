package service

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"private_chat/internal/models"
	"private_chat/internal/repository"
	"private_chat/internal/storage"
	"private_chat/pkg/apperrors"
	"private_chat/pkg/config"
)

// UploadService 是檔案消息的旁路寫入口
// 大檔案不經過即時通道：這裡把內容寫進 blob 儲存、建立對應的消息記錄，
// 客戶端再經由即時通道引用該消息觸發廣播
type UploadService struct {
	roomService *RoomService
	messageRepo repository.MessageRepository
	blobs       storage.BlobStore
	maxFileSize int64
	allowedExts map[string]bool
}

func NewUploadService(roomService *RoomService, messageRepo repository.MessageRepository,
	blobs storage.BlobStore, cfg config.UploadConfig) *UploadService {
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &UploadService{
		roomService: roomService,
		messageRepo: messageRepo,
		blobs:       blobs,
		maxFileSize: cfg.MaxFileSize,
		allowedExts: allowed,
	}
}

// UploadResult 是上傳成功後回給呼叫方的資料
type UploadResult struct {
	MessageID   uint               `json:"message_id"`
	FileURL     string             `json:"file_url"`
	FileName    string             `json:"file_name"`
	FileSize    int64              `json:"file_size"`
	MessageType models.MessageType `json:"message_type"`
}

// Upload 處理一次檔案上傳
// 前置檢查依序為：成員資格、大小上限、副檔名白名單；
// 任何一項不通過就中止，不會留下半套狀態（沒有消息記錄、也沒有 blob 寫入）
func (s *UploadService) Upload(roomID, senderID uint, fileName string, size int64, r io.Reader) (*UploadResult, error) {
	if err := s.roomService.Authorize(roomID, senderID); err != nil {
		return nil, err
	}

	if size > s.maxFileSize {
		return nil, fmt.Errorf("%w: max size %dMB", apperrors.ErrPayloadTooLarge, s.maxFileSize/(1024*1024))
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if ext == "" || !s.allowedExts[ext] {
		return nil, apperrors.ErrUnsupportedType
	}

	messageType := models.MessageTypeFromExtension(ext)

	// 以房間為範圍、隨機生成不會碰撞的對象名稱
	key := fmt.Sprintf("chat_files/%d/%s.%s", roomID, uuid.NewString(), ext)

	fileURL, err := s.blobs.Put(key, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageFailure, err)
	}

	message := &models.Message{
		RoomID:   roomID,
		SenderID: senderID,
		Type:     messageType,
		Content:  fileName,
		FileURL:  fileURL,
		FileName: fileName,
		FileSize: size,
	}

	if err := s.messageRepo.Append(message); err != nil {
		// blob 已經寫入但消息沒建立：留下的孤兒對象交給 SweepOrphans 回收
		log.Printf("orphaned blob %s: message persistence failed: %v", key, err)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageFailure, err)
	}
	s.roomService.TouchActivity(roomID, message.Timestamp)

	return &UploadResult{
		MessageID:   message.ID,
		FileURL:     fileURL,
		FileName:    fileName,
		FileSize:    size,
		MessageType: messageType,
	}, nil
}

// SweepOrphans 回收沒有任何消息引用的 blob 對象
// 只處理超過寬限期的對象，避免刪到正在寫入流程中的檔案；回傳清掉的數量
func (s *UploadService) SweepOrphans(grace time.Duration) (int, error) {
	objects, err := s.blobs.List()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-grace)
	removed := 0
	for _, obj := range objects {
		if obj.ModTime.After(cutoff) {
			continue
		}
		referenced, err := s.messageRepo.ExistsByFileURL(obj.URL)
		if err != nil {
			return removed, err
		}
		if referenced {
			continue
		}
		if err := s.blobs.Delete(obj.Key); err != nil {
			log.Printf("failed to remove orphaned blob %s: %v", obj.Key, err)
			continue
		}
		removed++
	}
	return removed, nil
}
