package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"private_chat/internal/models"
	"private_chat/internal/service"
	"private_chat/pkg/apperrors"
)

// RoomHandler 處理房間相關的請求
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 創建一個新的 RoomHandler 實例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// CreateRoomInput 定義創建房間請求的結構
type CreateRoomInput struct {
	Name         string   `json:"name" binding:"required"`
	RoomType     string   `json:"room_type"`
	Participants []string `json:"participants"` // 參與者用戶名列表，建立者自動加入
}

// CreateRoom 創建新房間
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var input CreateRoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	roomType := models.RoomType(input.RoomType)
	if input.RoomType == "" {
		roomType = models.RoomTypeDirect
	}

	room, err := h.roomService.CreateRoom(currentUserID(c), input.Name, roomType, input.Participants)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, room)
}

// ListRooms 回傳目前用戶參與中的房間列表
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRooms(currentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list rooms"})
		return
	}

	c.JSON(http.StatusOK, rooms)
}

// GetRoom 回傳單一房間資訊，只限成員
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	room, err := h.roomService.GetRoom(roomID, currentUserID(c))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, room)
}

// GetMessages 回傳房間的消息歷史，只限成員
// 進入房間時用這個端點補齊加入前後可能錯過的消息
func (h *RoomHandler) GetMessages(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	sinceID, err := strconv.ParseUint(c.DefaultQuery("since", "0"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since cursor"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	messages, err := h.roomService.History(roomID, currentUserID(c), uint(sinceID), limit)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, messages)
}

// MarkRead 標記消息為已讀，重複標記沒有效果
func (h *RoomHandler) MarkRead(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	messageID, err := strconv.ParseUint(c.Param("message_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	if err := h.roomService.MarkRead(roomID, currentUserID(c), uint(messageID)); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AddParticipantInput 定義加入參與者請求的結構
type AddParticipantInput struct {
	Username string `json:"username" binding:"required"`
}

// AddParticipant 把用戶加入房間
func (h *RoomHandler) AddParticipant(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	var input AddParticipantInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.roomService.AddParticipant(roomID, currentUserID(c), input.Username); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RemoveParticipant 把用戶移出房間，他在房間內的即時連線會立即斷開
func (h *RoomHandler) RemoveParticipant(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	targetID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if err := h.roomService.RemoveParticipant(roomID, currentUserID(c), uint(targetID)); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeactivateRoom 停用房間，只有建立者可以操作
func (h *RoomHandler) DeactivateRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	if err := h.roomService.DeactivateRoom(roomID, currentUserID(c)); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// roomIDParam 解析路徑中的房間 ID，失敗時直接回應 400
func roomIDParam(c *gin.Context) (uint, bool) {
	roomID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID"})
		return 0, false
	}
	return uint(roomID), true
}

// currentUserID 從中間件設置的上下文取出用戶 ID
func currentUserID(c *gin.Context) uint {
	userID, _ := c.Get("userID")
	id, _ := userID.(uint)
	return id
}

// currentUsername 從中間件設置的上下文取出用戶名
func currentUsername(c *gin.Context) string {
	username, _ := c.Get("username")
	name, _ := username.(string)
	return name
}
