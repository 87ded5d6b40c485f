package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"private_chat/internal/api/handlers"
	"private_chat/internal/middleware"
	"private_chat/internal/service"
)

func SetupRoutes(r *gin.Engine, services *service.Services) {
	// 初始化 handlers
	authHandler := handlers.NewAuthHandler(services.User)
	roomHandler := handlers.NewRoomHandler(services.Room)
	uploadHandler := handlers.NewUploadHandler(services.Upload)
	wsHandler := handlers.NewWebSocketHandler(services.Chat)

	// API 路由群組
	api := r.Group("/api")

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Not found",
		})
	})

	// 公開路由
	{
		// 用戶認證相關
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	// 需要驗證的路由
	authorized := api.Group("/")
	authorized.Use(middleware.AuthMiddleware())
	{
		// 聊天室相關
		rooms := authorized.Group("/rooms")
		{
			// 基本操作
			rooms.GET("", roomHandler.ListRooms)             // 獲取房間列表
			rooms.POST("", roomHandler.CreateRoom)           // 創建房間
			rooms.GET("/:id", roomHandler.GetRoom)           // 獲取房間信息
			rooms.DELETE("/:id", roomHandler.DeactivateRoom) // 停用房間

			// 消息歷史與已讀
			rooms.GET("/:id/messages", roomHandler.GetMessages)
			rooms.POST("/:id/messages/:message_id/read", roomHandler.MarkRead)

			// 參與者管理
			rooms.POST("/:id/participants", roomHandler.AddParticipant)
			rooms.DELETE("/:id/participants/:user_id", roomHandler.RemoveParticipant)

			// 檔案上傳（消息經由 WebSocket 引用後廣播）
			rooms.POST("/:id/upload", uploadHandler.UploadFile)

			// WebSocket 連接點
			rooms.GET("/:id/ws", wsHandler.HandleWebSocket)
		}
	}
}
