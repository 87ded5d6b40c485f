package service

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// connState 表示一條連線在生命週期中的狀態
// 轉移順序固定為 connecting -> authorizing -> active -> closed，
// 授權失敗時直接從 authorizing 進入 closed
type connState int32

const (
	stateConnecting connState = iota
	stateAuthorizing
	stateActive
	stateClosed
)

// Client 代表一條即時連線，也就是 (房間, 用戶, 傳輸握把) 的組合
// 它只在會話存續期間存在，由建立它的連線處理流程獨佔持有，
// 管理器的索引只引用它、不擁有它
type Client struct {
	Conn     *websocket.Conn // WebSocket 連接
	UserID   uint            // 用戶 ID
	Username string          // 用戶名，廣播事件時作為 sender 欄位
	RoomID   uint            // 房間 ID
	SendChan chan *ChatEvent // 事件發送通道，緩衝即為背壓上限

	state     atomic.Int32
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient 建立一條新連線的狀態
func NewClient(conn *websocket.Conn, roomID, userID uint, username string) *Client {
	return &Client{
		Conn:     conn,
		UserID:   userID,
		Username: username,
		RoomID:   roomID,
		SendChan: make(chan *ChatEvent, 256), // 緩衝大小 256 的事件通道
		done:     make(chan struct{}),
	}
}

func (c *Client) setState(s connState) {
	c.state.Store(int32(s))
}

// State 回傳連線目前的狀態
func (c *Client) State() connState {
	return connState(c.state.Load())
}

// close 終止這條連線：之後的發送全部取消，傳輸層也一併關閉
// 可以被斷線清理、慢速消費者踢除與強制斷線並發呼叫，只會生效一次；
// 關閉只影響這條連線自己，其他連線的投遞不受影響
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.setState(stateClosed)
		close(c.done)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}
