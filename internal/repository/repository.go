package repository

import "private_chat/internal/storage"

type Repositories struct {
	User    UserRepository
	Room    RoomRepository
	Message MessageRepository
}

func NewRepositories(db *storage.PostgresDB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Room:    NewRoomRepository(db),
		Message: NewMessageRepository(db),
	}
}
