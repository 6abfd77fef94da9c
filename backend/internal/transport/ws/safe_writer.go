package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// DefaultWriteTimeout максимальное время на одну запись в сокет
const DefaultWriteTimeout = 5 * time.Second

// ErrWriterClosed запись в закрытое соединение
var ErrWriterClosed = errors.New("websocket writer is closed")

// SafeWriter обеспечивает потокобезопасную запись в WebSocket.
// gorilla/websocket допускает только одного писателя одновременно.
type SafeWriter struct {
	conn         *websocket.Conn
	mutex        sync.Mutex
	writeTimeout time.Duration
	closed       bool
}

// NewSafeWriter создает новый экземпляр SafeWriter
func NewSafeWriter(conn *websocket.Conn) *SafeWriter {
	return NewSafeWriterWithTimeout(conn, DefaultWriteTimeout)
}

// NewSafeWriterWithTimeout создает SafeWriter с дедлайном на каждую запись.
// Нулевой timeout отключает дедлайн для сообщений, ping тогда ждет DefaultWriteTimeout.
func NewSafeWriterWithTimeout(conn *websocket.Conn, timeout time.Duration) *SafeWriter {
	return &SafeWriter{
		conn:         conn,
		writeTimeout: timeout,
	}
}

// WriteJSON потокобезопасно отправляет JSON данные через WebSocket
func (w *SafeWriter) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.WriteMessage(websocket.TextMessage, data)
}

// WriteMessage потокобезопасно отправляет сообщение заданного типа
func (w *SafeWriter) WriteMessage(messageType int, data []byte) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	if w.writeTimeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
			return err
		}
	}
	return w.conn.WriteMessage(messageType, data)
}

// WritePing отправляет управляющий ping
func (w *SafeWriter) WritePing() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	timeout := w.writeTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

// Close закрывает соединение WebSocket. Повторный вызов ничего не делает.
func (w *SafeWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.conn.Close()
}
