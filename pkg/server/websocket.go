package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// safeConn serializes writes to a websocket connection.
type safeConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  bool
}

func newSafeConn(conn *websocket.Conn) *safeConn {
	return &safeConn{conn: conn}
}

// WriteJSON writes v as one text frame. Writes after Close are dropped.
func (sc *safeConn) WriteJSON(v any) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	if sc.closed {
		return nil
	}
	_ = sc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return sc.conn.WriteJSON(v)
}

// Close sends a normal closure frame and closes the connection.
func (sc *safeConn) Close() error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	if sc.closed {
		return nil
	}
	sc.closed = true
	_ = sc.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return sc.conn.Close()
}
