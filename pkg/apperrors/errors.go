package apperrors

import (
	"errors"
	"net/http"
)

// 核心錯誤分類
// 注意 ErrNotAuthorized 刻意對應 404 而不是 403：
// 房間不存在與不是成員回傳相同結果，避免洩漏房間是否存在
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrNotAuthorized   = errors.New("chat room not found")
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrPayloadTooLarge = errors.New("file too large")
	ErrUnsupportedType = errors.New("file type not allowed")
	ErrStorageFailure  = errors.New("storage failure")
)

// HTTPStatus 把錯誤分類映射為 HTTP 狀態碼
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotAuthorized), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrPayloadTooLarge), errors.Is(err, ErrUnsupportedType):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
