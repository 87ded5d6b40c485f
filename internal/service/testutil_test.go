package service

import (
	"bytes"
	"io"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"private_chat/internal/models"
	"private_chat/internal/repository"
	"private_chat/internal/storage"
	"private_chat/pkg/config"
)

// setupTestDB 建立一個 in-memory SQLite 資料庫供測試使用
func setupTestDB(t *testing.T) *storage.PostgresDB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.ChatRoom{}, &models.Message{}, &models.MessageReadReceipt{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return &storage.PostgresDB{DB: db}
}

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		MaxFileSize:       50 * 1024 * 1024,
		AllowedExtensions: []string{"jpg", "jpeg", "png", "gif", "webp", "pdf", "mp4", "mov", "mp3", "wav", "zip"},
		MediaDir:          "",
		MediaBaseURL:      "/media",
	}
}

// fixture 集中一次測試需要的服務與資料庫
type fixture struct {
	db       *storage.PostgresDB
	repos    *repository.Repositories
	services *Services
	blobs    *memBlobStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	blobs := newMemBlobStore()
	services := NewServices(repos, blobs, testUploadConfig())

	return &fixture{db: db, repos: repos, services: services, blobs: blobs}
}

func (f *fixture) createUser(t *testing.T, username string) *models.User {
	t.Helper()

	user := &models.User{Username: username, Password: "hashed"}
	if err := f.repos.User.Create(user); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func (f *fixture) createRoom(t *testing.T, name string, creator *models.User, others ...*models.User) *models.ChatRoom {
	t.Helper()

	participants := []models.User{*creator}
	for _, u := range others {
		participants = append(participants, *u)
	}
	room := &models.ChatRoom{
		Name:         name,
		Type:         models.RoomTypeGroup,
		Participants: participants,
		CreatedByID:  creator.ID,
		IsActive:     true,
		LastActivity: time.Now().UTC(),
	}
	if err := f.repos.Room.Create(room); err != nil {
		t.Fatalf("failed to create room %s: %v", name, err)
	}
	return room
}

// memBlobStore 是測試用的記憶體 blob 儲存
type memBlobStore struct {
	objects map[string]storage.BlobObject
	data    map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{
		objects: make(map[string]storage.BlobObject),
		data:    make(map[string][]byte),
	}
}

func (s *memBlobStore) Put(key string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	url := "https://blobs.test/" + key
	s.data[key] = buf.Bytes()
	s.objects[key] = storage.BlobObject{
		Key:     key,
		URL:     url,
		Size:    int64(buf.Len()),
		ModTime: time.Now(),
	}
	return url, nil
}

func (s *memBlobStore) Delete(key string) error {
	delete(s.objects, key)
	delete(s.data, key)
	return nil
}

func (s *memBlobStore) List() ([]storage.BlobObject, error) {
	objects := make([]storage.BlobObject, 0, len(s.objects))
	for _, obj := range s.objects {
		objects = append(objects, obj)
	}
	return objects, nil
}

// setModTime 把既有對象的時間往回撥，供孤兒回收測試使用
func (s *memBlobStore) setModTime(key string, at time.Time) {
	obj := s.objects[key]
	obj.ModTime = at
	s.objects[key] = obj
}
