package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"private_chat/internal/api"
	"private_chat/internal/models"
	"private_chat/internal/repository"
	"private_chat/internal/service"
	"private_chat/internal/storage"
	"private_chat/internal/utils"
	"private_chat/pkg/config"
)

func main() {
	// 載入應用程式配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	utils.InitJWTSecret(cfg.JWT.Secret)

	// 初始化資料庫連接
	db, err := storage.NewPostgresDB(cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// 自動遷移資料庫結構
	if err := db.AutoMigrate(&models.User{}, &models.ChatRoom{}, &models.Message{}, &models.MessageReadReceipt{}); err != nil {
		log.Fatalf("Failed to auto migrate database: %v", err)
	}

	// 初始化 blob 儲存（本機目錄，經由 /media 靜態路由對外提供）
	blobs, err := storage.NewLocalBlobStore(cfg.Upload.MediaDir, cfg.Upload.MediaBaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}

	// 初始化 repositories 與 services
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, blobs, cfg.Upload)

	// 定期回收上傳中途失敗留下的孤兒 blob
	go func() {
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			removed, err := services.Upload.SweepOrphans(24 * time.Hour)
			if err != nil {
				log.Printf("orphan sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("orphan sweep removed %d blobs", removed)
			}
		}
	}()

	// 設置 Gin 路由
	r := gin.Default()
	r.Static(cfg.Upload.MediaBaseURL, cfg.Upload.MediaDir)
	api.SetupRoutes(r, services)

	// 啟動伺服器
	if err := r.Run(cfg.Server.Address); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
