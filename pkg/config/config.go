package config

import (
	"errors"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	JWT    JWTConfig
	Upload UploadConfig
}

type ServerConfig struct {
	Address string
}

type DBConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     int
}

type JWTConfig struct {
	Secret string
}

// UploadConfig 是上傳路徑的設定面
type UploadConfig struct {
	MaxFileSize       int64    // 單檔大小上限（bytes）
	AllowedExtensions []string // 允許的副檔名白名單
	MediaDir          string   // 本機 blob 儲存目錄
	MediaBaseURL      string   // 對外提供檔案的 URL 前綴
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./pkg/config")
	viper.AddConfigPath(".")

	setDefaults()

	// 找不到配置文件時使用預設值，其他讀取錯誤照常回報
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.user", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.name", "private_chat")
	viper.SetDefault("db.port", 5432)
	viper.SetDefault("jwt.secret", "change_me_in_production")
	viper.SetDefault("upload.maxfilesize", 50*1024*1024) // 50MB
	viper.SetDefault("upload.allowedextensions", []string{
		"jpg", "jpeg", "png", "gif", "webp", // 圖片
		"pdf", "doc", "docx", "txt", "xls", "xlsx", // 文件
		"mp4", "mov", "avi", // 影片
		"mp3", "wav", // 音訊
		"zip", "rar", // 壓縮檔
	})
	viper.SetDefault("upload.mediadir", "./media")
	viper.SetDefault("upload.mediabaseurl", "/media")
}
