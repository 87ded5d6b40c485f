package service

import (
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"private_chat/internal/models"
	"private_chat/internal/repository"
)

const (
	maxInboundSize = 4096             // 即時通道只走小型 JSON 事件，大檔案一律走上傳端點
	pongWait       = 60 * time.Second // 等待 pong 的上限
	pingPeriod     = 54 * time.Second // 心跳間隔，必須小於 pongWait
	writeWait      = 10 * time.Second // 單次寫入的超時
)

// ChatService 驅動每條連線的生命週期：授權、註冊、收發與清理
type ChatService struct {
	wsManager   *WebSocketManager
	roomService *RoomService
	messageRepo repository.MessageRepository
}

func NewChatService(wsManager *WebSocketManager, roomService *RoomService, messageRepo repository.MessageRepository) *ChatService {
	return &ChatService{
		wsManager:   wsManager,
		roomService: roomService,
		messageRepo: messageRepo,
	}
}

// HandleConnection 處理一條已完成傳輸建立的 WebSocket 連線
// 授權每次都重新查詢房間成員資格，通過後才註冊並送出連線確認事件；
// 被拒絕的連線直接關閉，不會收到任何事件，也不會留下任何註冊
func (s *ChatService) HandleConnection(conn *websocket.Conn, roomID, userID uint, username string) {
	client := NewClient(conn, roomID, userID, username)

	client.setState(stateAuthorizing)
	if err := s.roomService.Authorize(roomID, userID); err != nil {
		log.Printf("websocket rejected: room=%d user=%d: %v", roomID, userID, err)
		client.close()
		return
	}

	s.wsManager.Register(client)
	client.setState(stateActive)

	// active 狀態的每一條離開路徑都要執行清理
	defer func() {
		s.wsManager.Unregister(client)
		client.close()
	}()

	go s.writePump(client)

	// 送出連線確認事件
	client.SendChan <- NewConnectionEvent()

	s.readPump(client)
}

// readPump 持續監聽並處理從客戶端接收的事件
func (s *ChatService) readPump(client *Client) {
	client.Conn.SetReadLimit(maxInboundSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket unexpected close error: %v", err)
			}
			break
		}

		var event InboundEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("inbound event parse error: %v", err)
			continue
		}

		s.dispatch(client, &event)
	}
}

// dispatch 依事件類型分派處理，未知類型丟棄不中斷連線
func (s *ChatService) dispatch(client *Client, event *InboundEvent) {
	switch event.Type {
	case EventTypeText:
		s.handleText(client, event.Message)
	case EventTypeFile:
		s.handleFileReference(client, event.MessageID)
	default:
		log.Printf("unknown inbound event type %q from user %d", event.Type, client.UserID)
	}
}

// handleText 處理一條文字消息：先持久化、再廣播
// 空白消息靜默忽略，不持久化、不廣播、也不回報錯誤
func (s *ChatService) handleText(client *Client, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}

	message := &models.Message{
		RoomID:   client.RoomID,
		SenderID: client.UserID,
		Type:     models.MessageTypeText,
		Content:  content,
	}

	if err := s.messageRepo.Append(message); err != nil {
		log.Printf("failed to persist message: room=%d user=%d: %v", client.RoomID, client.UserID, err)
		return
	}
	s.roomService.TouchActivity(client.RoomID, message.Timestamp)

	s.wsManager.BroadcastToRoom(client.RoomID, NewMessageEvent(message, client.UserID, client.Username))
}

// handleFileReference 處理檔案消息的引用
// 消息本體已由上傳端點寫入，這裡只負責查出並廣播；
// 查不到或屬於別的房間就丟棄這個事件，上傳端點的 HTTP 回應才是上傳者的權威確認
func (s *ChatService) handleFileReference(client *Client, messageID uint) {
	message, err := s.messageRepo.FindInRoom(messageID, client.RoomID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("file message lookup failed: id=%d room=%d: %v", messageID, client.RoomID, err)
		}
		return
	}

	// 引用到的消息必須是檔案類型
	if !message.Type.HasFilePayload() {
		return
	}

	s.wsManager.BroadcastToRoom(client.RoomID, NewMessageEvent(message, client.UserID, client.Username))
}

// writePump 處理向客戶端發送事件的邏輯，並維持心跳
func (s *ChatService) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.close()
	}()

	for {
		select {
		case event := <-client.SendChan:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			// 發送心跳包
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.done:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
