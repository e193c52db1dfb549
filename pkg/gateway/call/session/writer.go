package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of the websocket connection the session touches.
// Tests substitute an in-memory fake.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

// connWriter serializes outbound JSON frames. Both the read loop and the
// turn worker write to the socket, so every write takes the mutex and a
// fresh deadline.
type connWriter struct {
	mu      sync.Mutex
	conn    Conn
	timeout time.Duration
}

func newConnWriter(conn Conn, timeout time.Duration) *connWriter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &connWriter{conn: conn, timeout: timeout}
}

func (w *connWriter) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a control frame to keep idle intermediaries from dropping
// the call. WriteControl is concurrency-safe in gorilla, so data writes
// are never held up behind a ping.
func (w *connWriter) Ping() error {
	deadline := time.Now().Add(w.timeout)
	return w.conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline)
}

func (w *connWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	deadline := time.Now().Add(w.timeout)
	_ = w.conn.SetWriteDeadline(deadline)
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return w.conn.Close()
}
