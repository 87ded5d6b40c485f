package service

import (
	"private_chat/internal/repository"
	"private_chat/internal/storage"
	"private_chat/pkg/config"
)

type Services struct {
	User      *UserService
	Room      *RoomService
	Chat      *ChatService
	Upload    *UploadService
	WebSocket *WebSocketManager
}

func NewServices(repos *repository.Repositories, blobs storage.BlobStore, uploadCfg config.UploadConfig) *Services {
	wsManager := NewWebSocketManager()

	userService := NewUserService(repos.User)
	roomService := NewRoomService(repos.Room, repos.User, repos.Message, wsManager)
	chatService := NewChatService(wsManager, roomService, repos.Message)
	uploadService := NewUploadService(roomService, repos.Message, blobs, uploadCfg)

	return &Services{
		User:      userService,
		Room:      roomService,
		Chat:      chatService,
		Upload:    uploadService,
		WebSocket: wsManager,
	}
}
