// Package api 負責組裝 HTTP 路由，
// 把 gin 路由群組接到各個 handler 上。
package api
