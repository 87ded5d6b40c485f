package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"private_chat/internal/service"
	"private_chat/pkg/apperrors"
)

// UploadHandler 處理檔案上傳請求
type UploadHandler struct {
	uploadService *service.UploadService
}

// NewUploadHandler 創建一個新的 UploadHandler 實例
func NewUploadHandler(uploadService *service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// UploadFile 接收 multipart 的 file 欄位並建立對應的檔案消息
// 上傳走 HTTP 而不走即時通道；成功後客戶端再經由即時通道引用
// 回傳的 message_id 觸發房間廣播
func (h *UploadHandler) UploadFile(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	result, err := h.uploadService.Upload(roomID, currentUserID(c), fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message_id":   result.MessageID,
		"file_url":     result.FileURL,
		"file_name":    result.FileName,
		"file_size":    result.FileSize,
		"message_type": result.MessageType,
	})
}
