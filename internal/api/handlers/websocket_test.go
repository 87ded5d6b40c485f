package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"private_chat/internal/api"
	"private_chat/internal/models"
	"private_chat/internal/repository"
	"private_chat/internal/service"
	"private_chat/internal/storage"
	"private_chat/internal/utils"
	"private_chat/pkg/config"
)

const eventWait = 2 * time.Second

type serverFixture struct {
	srv      *httptest.Server
	db       *storage.PostgresDB
	repos    *repository.Repositories
	services *service.Services
}

// newServerFixture 架起完整的 HTTP/WebSocket 伺服器供整合測試使用
func newServerFixture(t *testing.T, uploadCfg config.UploadConfig) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db := &storage.PostgresDB{DB: gdb}
	if err := db.AutoMigrate(&models.User{}, &models.ChatRoom{}, &models.Message{}, &models.MessageReadReceipt{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	if uploadCfg.MediaDir == "" {
		uploadCfg.MediaDir = t.TempDir()
	}
	blobs, err := storage.NewLocalBlobStore(uploadCfg.MediaDir, uploadCfg.MediaBaseURL)
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, blobs, uploadCfg)

	r := gin.New()
	api.SetupRoutes(r, services)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &serverFixture{srv: srv, db: db, repos: repos, services: services}
}

func defaultUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		MaxFileSize:       50 * 1024 * 1024,
		AllowedExtensions: []string{"jpg", "jpeg", "png", "gif", "webp", "pdf", "mp4", "mp3"},
		MediaBaseURL:      "/media",
	}
}

func (f *serverFixture) createUser(t *testing.T, username string) (*models.User, string) {
	t.Helper()

	user := &models.User{Username: username, Password: "hashed"}
	if err := f.repos.User.Create(user); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	token, err := utils.GenerateToken(user.ID, user.Username)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return user, token
}

func (f *serverFixture) createRoom(t *testing.T, name string, creator *models.User, others ...*models.User) *models.ChatRoom {
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
		t.Fatalf("failed to create room: %v", err)
	}
	return room
}

// dial 連上房間的 WebSocket 端點
func (f *serverFixture) dial(t *testing.T, roomID uint, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") +
		fmt.Sprintf("/api/rooms/%d/ws?token=%s", roomID, token)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

// readEvent 讀取下一個事件，解析為通用 map
func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(eventWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	var event map[string]interface{}
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("failed to decode event %s: %v", data, err)
	}
	return event
}

// expectConnected 消化連線確認事件
func expectConnected(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	event := readEvent(t, conn)
	if event["type"] != "connection" {
		t.Fatalf("first event type = %v, want connection", event["type"])
	}
	if event["message"] != "Connected to chat room" {
		t.Fatalf("connection message = %v", event["message"])
	}
}

func TestWebSocketMemberAdmitted(t *testing.T) {
	f := newServerFixture(t, defaultUploadConfig())
	alice, token := f.createUser(t, "alice")
	room := f.createRoom(t, "team", alice)

	conn, _, err := f.dial(t, room.ID, token)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	expectConnected(t, conn)

	if got := f.services.WebSocket.RoomClientCount(room.ID); got != 1 {
		t.Errorf("RoomClientCount = %d, want 1", got)
	}
}

func TestWebSocketNonMemberRejectedBeforeRegistration(t *testing.T) {
	f := newServerFixture(t, defaultUploadConfig())
	alice, _ := f.createUser(t, "alice")
	_, eveToken := f.createUser(t, "eve")
	room := f.createRoom(t, "private", alice)

	conn, _, err := f.dial(t, room.ID, eveToken)
	if err != nil {
		// 握手直接失敗也算拒絕成功
		return
	}

	// 連線在收到任何事件之前就被關閉
	conn.SetReadDeadline(time.Now().Add(eventWait))
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Fatalf("non-member received event: %s", data)
	}
	if got := f.services.WebSocket.RoomClientCount(room.ID); got != 0 {
		t.Errorf("RoomClientCount = %d, want 0 (no registration leak)", got)
	}
}

func TestWebSocketUnauthenticatedRejected(t *testing.T) {
	f := newServerFixture(t, defaultUploadConfig())
	alice, _ := f.createUser(t, "alice")
	room := f.createRoom(t, "team", alice)

	_, resp, err := f.dial(t, room.ID, "")
	if err == nil {
		t.Fatal("dial without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("handshake response = %v, want 401", resp)
	}
}

func TestTextMessageFanOut(t *testing.T) {
	f := newServerFixture(t, defaultUploadConfig())
	alice, aliceToken := f.createUser(t, "alice")
	bob, bobToken := f.createUser(t, "bob")
	room := f.createRoom(t, "team", alice, bob)

	aliceConn, _, err := f.dial(t, room.ID, aliceToken)
	if err != nil {
		t.Fatalf("alice dial failed: %v", err)
	}
	expectConnected(t, aliceConn)

	bobConn, _, err := f.dial(t, room.ID, bobToken)
	if err != nil {
		t.Fatalf("bob dial failed: %v", err)
	}
	expectConnected(t, bobConn)

	if err := aliceConn.WriteJSON(map[string]interface{}{"type": "text", "message": "hello"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// 發送者本身也會收到事件，供客戶端做樂觀更新的對帳
	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		event := readEvent(t, conn)
		if event["type"] != "message" || event["message"] != "hello" {
			t.Fatalf("event = %v, want message hello", event)
		}
		if event["message_type"] != "text" {
			t.Errorf("message_type = %v, want text", event["message_type"])
		}
		if event["sender"] != "alice" || uint(event["sender_id"].(float64)) != alice.ID {
			t.Errorf("sender = %v/%v, want alice/%d", event["sender"], event["sender_id"], alice.ID)
		}
		if event["message_id"] == nil || event["timestamp"] == nil {
			t.Error("message_id or timestamp missing")
		}
		// 文字消息不帶檔案欄位
		if _, ok := event["file_url"]; ok {
			t.Error("text message carries file_url")
		}
	}

	// 消息同時落盤
	messages, err := f.repos.Message.ListSince(room.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListSince failed: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "hello" || messages[0].SenderID != alice.ID {
		t.Errorf("persisted messages = %v, want one hello from alice", messages)
	}
}

func TestSequentialMessagesDeliveredInOrder(t *testing.T) {
	f := newServerFixture(t, defaultUploadConfig())
	alice, aliceToken := f.createUser(t, "alice")
	bob, bobToken := f.createUser(t, "bob")
	room := f.createRoom(t, "team", alice, bob)

	aliceConn, _, err := f.dial(t, room.ID, aliceToken)
	if err != nil {
		t.Fatalf("alice dial failed: %v", err)
	}
	expectConnected(t, aliceConn)

	bobConn, _, err := f.dial(t, room.ID, bobToken)
	if err != nil {
		t.Fatalf("bob dial failed: %v", err)
	}
	expectConnected(t, bobConn)

	// 同一個發送者連續送出兩條消息，所有連線看到的順序必須跟送出順序一致
	contents := []string{"first", "second"}
	for _, content := range contents {
		if err := aliceConn.WriteJSON(map[string]interface{}{"type": "text", "message": content}); err != nil {
			t.Fatalf("write %q failed: %v", content, err)
		}
	}

	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		var lastID float64
		for i, want := range contents {
			event := readEvent(t, conn)
			if event["message"] != want {
				t.Fatalf("delivery %d = %v, want %q", i, event["message"], want)
			}
			id := event["message_id"].(float64)
			if id <= lastID {
				t.Errorf("message_id %v does not advance past %v", id, lastID)
			}
			lastID = id
		}
	}
}

func TestEmptyTextMessageIgnored(t *testing.T) {
	f := newServerFixture(t, defaultUploadConfig())
	alice, token := f.createUser(t, "alice")
	room := f.createRoom(t, "team", alice)

	conn, _, err := f.dial(t, room.ID, token)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	expectConnected(t, conn)

	// 空白消息靜默忽略，之後的正常消息照常送達
	if err := conn.WriteJSON(map[string]interface{}{"type": "text", "message": "   "}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := conn.WriteJSON(map[string]interface{}{"type": "text", "message": "real"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	event := readEvent(t, conn)
	if event["message"] != "real" {
		t.Errorf("first delivered message = %v, want real", event["message"])
	}

	messages, _ := f.repos.Message.ListSince(room.ID, 0, 0)
	if len(messages) != 1 {
		t.Errorf("persisted %d messages, want 1 (whitespace dropped)", len(messages))
	}
}

// uploadFile 以 multipart 形式上傳檔案並回傳解析後的回應
func (f *serverFixture) uploadFile(t *testing.T, roomID uint, token, fileName string, content []byte) (*http.Response, map[string]interface{}) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("failed to build multipart body: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write multipart body: %v", err)
	}
	writer.Close()

	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("%s/api/rooms/%d/upload", f.srv.URL, roomID), &body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	defer resp.Body.Close()

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode upload response: %v", err)
	}
	return resp, payload
}

func TestUploadThenFileReferenceBroadcast(t *testing.T) {
	f := newServerFixture(t, defaultUploadConfig())
	alice, aliceToken := f.createUser(t, "alice")
	bob, bobToken := f.createUser(t, "bob")
	room := f.createRoom(t, "team", alice, bob)

	resp, payload := f.uploadFile(t, room.ID, aliceToken, "photo.png", bytes.Repeat([]byte{1}, 2048))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d, body %v", resp.StatusCode, payload)
	}
	if payload["success"] != true || payload["message_type"] != "image" {
		t.Fatalf("upload response = %v", payload)
	}
	messageID := uint(payload["message_id"].(float64))

	aliceConn, _, err := f.dial(t, room.ID, aliceToken)
	if err != nil {
		t.Fatalf("alice dial failed: %v", err)
	}
	expectConnected(t, aliceConn)
	bobConn, _, err := f.dial(t, room.ID, bobToken)
	if err != nil {
		t.Fatalf("bob dial failed: %v", err)
	}
	expectConnected(t, bobConn)

	// 上傳完成後，客戶端經由即時通道引用消息識別碼觸發廣播
	if err := aliceConn.WriteJSON(map[string]interface{}{"type": "file", "message_id": messageID}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		event := readEvent(t, conn)
		if event["type"] != "message" || event["message_type"] != "image" {
			t.Fatalf("event = %v, want image message", event)
		}
		if event["file_url"] == nil || event["file_name"] != "photo.png" || event["file_size"] == nil {
			t.Errorf("file metadata missing from event: %v", event)
		}
	}
}

func TestFileReferenceSenderIsReferencingUser(t *testing.T) {
	f := newServerFixture(t, defaultUploadConfig())
	alice, aliceToken := f.createUser(t, "alice")
	bob, bobToken := f.createUser(t, "bob")
	room := f.createRoom(t, "team", alice, bob)

	// alice 上傳檔案，由 bob 經即時通道送出引用
	_, payload := f.uploadFile(t, room.ID, aliceToken, "photo.png", []byte{1, 2, 3})
	messageID := uint(payload["message_id"].(float64))

	aliceConn, _, err := f.dial(t, room.ID, aliceToken)
	if err != nil {
		t.Fatalf("alice dial failed: %v", err)
	}
	expectConnected(t, aliceConn)
	bobConn, _, err := f.dial(t, room.ID, bobToken)
	if err != nil {
		t.Fatalf("bob dial failed: %v", err)
	}
	expectConnected(t, bobConn)

	if err := bobConn.WriteJSON(map[string]interface{}{"type": "file", "message_id": messageID}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// sender 與 sender_id 必須一致地指向送出引用的 bob，
	// 客戶端靠 sender_id 對帳自己的消息
	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		event := readEvent(t, conn)
		if event["sender"] != "bob" || uint(event["sender_id"].(float64)) != bob.ID {
			t.Errorf("sender = %v/%v, want bob/%d", event["sender"], event["sender_id"], bob.ID)
		}
		if uint(event["message_id"].(float64)) != messageID {
			t.Errorf("message_id = %v, want %d", event["message_id"], messageID)
		}
	}
}

func TestFileReferenceFromAnotherRoomDropped(t *testing.T) {
	f := newServerFixture(t, defaultUploadConfig())
	alice, aliceToken := f.createUser(t, "alice")
	roomA := f.createRoom(t, "a", alice)
	roomB := f.createRoom(t, "b", alice)

	_, payload := f.uploadFile(t, roomA.ID, aliceToken, "photo.png", []byte{1, 2, 3})
	messageID := uint(payload["message_id"].(float64))

	conn, _, err := f.dial(t, roomB.ID, aliceToken)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	expectConnected(t, conn)

	// 引用別的房間的消息：事件被丟棄，連線不中斷
	if err := conn.WriteJSON(map[string]interface{}{"type": "file", "message_id": messageID}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := conn.WriteJSON(map[string]interface{}{"type": "text", "message": "still alive"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	event := readEvent(t, conn)
	if event["message"] != "still alive" {
		t.Errorf("next event = %v, want the follow-up text message", event)
	}
}

func TestUploadTooLargeRejected(t *testing.T) {
	cfg := defaultUploadConfig()
	cfg.MaxFileSize = 1024 // 1KB 的上限
	f := newServerFixture(t, cfg)
	alice, token := f.createUser(t, "alice")
	room := f.createRoom(t, "team", alice)

	resp, payload := f.uploadFile(t, room.ID, token, "big.png", bytes.Repeat([]byte{1}, 4096))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if payload["error"] == nil {
		t.Error("error field missing from rejection response")
	}

	messages, _ := f.repos.Message.ListSince(room.ID, 0, 0)
	if len(messages) != 0 {
		t.Errorf("persisted %d messages, want 0", len(messages))
	}
}

func TestUploadByNonMemberHidesRoom(t *testing.T) {
	f := newServerFixture(t, defaultUploadConfig())
	alice, _ := f.createUser(t, "alice")
	_, eveToken := f.createUser(t, "eve")
	room := f.createRoom(t, "private", alice)

	resp, payload := f.uploadFile(t, room.ID, eveToken, "photo.png", []byte{1})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if payload["error"] == nil {
		t.Error("error field missing from rejection response")
	}
}

// getStatus 以授權身分發出 GET 請求並回傳狀態碼
func (f *serverFixture) getStatus(t *testing.T, path, token string) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+path, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestGetMessagesRejectsMalformedQuery(t *testing.T) {
	f := newServerFixture(t, defaultUploadConfig())
	alice, token := f.createUser(t, "alice")
	room := f.createRoom(t, "team", alice)

	base := fmt.Sprintf("/api/rooms/%d/messages", room.ID)
	for _, query := range []string{"?since=abc", "?limit=abc", "?since=-1"} {
		if got := f.getStatus(t, base+query, token); got != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, got)
		}
	}

	// 合法的游標照常回應
	if got := f.getStatus(t, base+"?since=0&limit=10", token); got != http.StatusOK {
		t.Errorf("valid query: status = %d, want 200", got)
	}
}
