package service

import (
	"sync"
)

// WebSocketManager 管理所有房間的即時連線並負責事件扇出
// 它是一個可注入的服務實例，內部狀態自行加鎖保護，不依賴任何全域變數
type WebSocketManager struct {
	rooms map[uint]map[*Client]bool // 兩層 map: roomID -> client -> bool
	mu    sync.RWMutex              // 保護 rooms map 的讀寫鎖
}

// NewWebSocketManager 創建並初始化新的連線管理器
func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		rooms: make(map[uint]map[*Client]bool),
	}
}

// Register 把連線加入房間的集合，同一個連線重複註冊沒有效果
func (m *WebSocketManager) Register(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rooms[client.RoomID] == nil {
		m.rooms[client.RoomID] = make(map[*Client]bool)
	}
	m.rooms[client.RoomID][client] = true
}

// Unregister 把連線從房間集合移除，連線不在集合內時為 no-op
// 斷線清理與慢速消費者踢除可能競爭，重複移除是預期情況
func (m *WebSocketManager) Unregister(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if clients, ok := m.rooms[client.RoomID]; ok {
		delete(clients, client)
		// 房間空了就移除整個條目
		if len(clients) == 0 {
			delete(m.rooms, client.RoomID)
		}
	}
}

// BroadcastToRoom 向房間內目前註冊的所有連線廣播事件，包含發送者本身
// 先在讀鎖下取出成員快照，投遞時不持有任何鎖，
// 所以任何一條連線的阻塞都不會影響其他連線；
// 發送緩衝已滿的連線視為跟不上的消費者，直接移除並關閉，而不是讓廣播卡住
func (m *WebSocketManager) BroadcastToRoom(roomID uint, event *ChatEvent) {
	m.mu.RLock()
	clients := make([]*Client, 0, len(m.rooms[roomID]))
	for client := range m.rooms[roomID] {
		clients = append(clients, client)
	}
	m.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.SendChan <- event:
			// 事件成功加入發送隊列
		default:
			// 客戶端消息隊列已滿，移除並關閉這條連線
			m.Unregister(client)
			client.close()
		}
	}
}

// DisconnectUser 強制斷開指定用戶在某個房間的所有連線
// 參與者被移出房間時立即生效，不等到下一次重連才被拒絕
func (m *WebSocketManager) DisconnectUser(roomID, userID uint) {
	m.mu.Lock()
	var dropped []*Client
	if clients, ok := m.rooms[roomID]; ok {
		for client := range clients {
			if client.UserID == userID {
				delete(clients, client)
				dropped = append(dropped, client)
			}
		}
		if len(clients) == 0 {
			delete(m.rooms, roomID)
		}
	}
	m.mu.Unlock()

	for _, client := range dropped {
		client.close()
	}
}

// RoomClientCount 獲取指定房間目前的在線連線數量
func (m *WebSocketManager) RoomClientCount(roomID uint) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.rooms[roomID])
}
