package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"private_chat/internal/service"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 注意：在生產環境中，應該檢查 origin
	},
}

// WebSocketHandler 處理 WebSocket 連接
type WebSocketHandler struct {
	chatService *service.ChatService
}

// NewWebSocketHandler 創建一個新的 WebSocketHandler 實例
func NewWebSocketHandler(chatService *service.ChatService) *WebSocketHandler {
	return &WebSocketHandler{chatService: chatService}
}

// HandleWebSocket 把 HTTP 請求升級為 WebSocket 連接並交給聊天服務
// 身份由中間件驗證；房間成員資格在連線流程內重新查核，
// 未通過的連線會在收到任何事件之前被關閉
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失敗時 gorilla 已經回應了客戶端
		return
	}

	h.chatService.HandleConnection(conn, roomID, currentUserID(c), currentUsername(c))
}
