// Package middleware 提供 HTTP 請求的中間件，
// 目前包含以 JWT 為基礎的身份驗證。
package middleware
