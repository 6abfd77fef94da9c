package ws

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialPeer поднимает сервер с обработчиком peer и возвращает клиентское соединение
func dialPeer(t *testing.T, peer func(conn *websocket.Conn)) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()
		peer(conn)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSafeWriter_WriteDeadlineUnblocksStalledPeer(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	// Собеседник не читает, буферы сокета заполняются
	conn := dialPeer(t, func(*websocket.Conn) { <-release })
	writer := NewSafeWriterWithTimeout(conn, 100*time.Millisecond)

	payload := []byte(strings.Repeat("x", 1<<20))
	start := time.Now()
	var err error
	for i := 0; i < 512 && err == nil; i++ {
		err = writer.WriteMessage(websocket.TextMessage, payload)
	}

	if err == nil {
		t.Fatal("Expected write to fail once the peer stops reading")
	}
	if errors.Is(err, ErrWriterClosed) {
		t.Errorf("Expected a deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Write blocked for %v despite the deadline", elapsed)
	}
}

func TestSafeWriter_PingsInterleaveWithMessages(t *testing.T) {
	const messages = 20

	var pings atomic.Int32
	received := make(chan []string, 1)
	conn := dialPeer(t, func(peer *websocket.Conn) {
		peer.SetPingHandler(func(string) error {
			pings.Add(1)
			return nil
		})
		var got []string
		for len(got) < messages+1 {
			_, msg, err := peer.ReadMessage()
			if err != nil {
				t.Errorf("Error reading message: %v", err)
				break
			}
			got = append(got, string(msg))
		}
		received <- got
	})
	writer := NewSafeWriter(conn)

	var wg sync.WaitGroup
	for i := 0; i < messages; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			if err := writer.WriteJSON(NewPongMessage(float64(id))); err != nil {
				t.Errorf("WriteJSON: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			if err := writer.WritePing(); err != nil {
				t.Errorf("WritePing: %v", err)
			}
		}()
	}
	wg.Wait()

	// Последнее сообщение уходит после всех ping
	if err := writer.WriteJSON(NewPongMessage(-1)); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	select {
	case got := <-received:
		uniq := make(map[string]struct{}, len(got))
		for _, msg := range got {
			if !strings.HasPrefix(msg, `{"type":"pong"`) {
				t.Errorf("Corrupted frame: %q", msg)
			}
			uniq[msg] = struct{}{}
		}
		if len(uniq) != messages+1 {
			t.Errorf("Expected %d distinct messages, got %d", messages+1, len(uniq))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for messages")
	}

	// Ping обрабатываются при чтении и пришли раньше последнего сообщения
	if got := pings.Load(); got != messages {
		t.Errorf("Expected %d pings, got %d", messages, got)
	}
}

func TestSafeWriter_ClosedWriterRejectsWrites(t *testing.T) {
	peerDone := make(chan error, 1)
	conn := dialPeer(t, func(peer *websocket.Conn) {
		_, _, err := peer.ReadMessage()
		peerDone <- err
	})

	writer := NewSafeWriter(conn)
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Собеседник видит обрыв соединения
	select {
	case err := <-peerDone:
		if err == nil {
			t.Error("Expected peer read to fail after Close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Peer did not observe the closed connection")
	}

	checks := map[string]func() error{
		"WriteJSON":    func() error { return writer.WriteJSON(NewPongMessage(1)) },
		"WriteMessage": func() error { return writer.WriteMessage(websocket.TextMessage, []byte("{}")) },
		"WritePing":    writer.WritePing,
	}
	for name, write := range checks {
		if err := write(); !errors.Is(err, ErrWriterClosed) {
			t.Errorf("%s after Close = %v, expected ErrWriterClosed", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Errorf("Second Close returned error: %v", err)
	}
}

func TestSafeWriter_WriteJSON_RejectsNaN(t *testing.T) {
	received := make(chan struct{}, 1)
	conn := dialPeer(t, func(peer *websocket.Conn) {
		if _, _, err := peer.ReadMessage(); err == nil {
			received <- struct{}{}
		}
	})
	writer := NewSafeWriter(conn)
	defer writer.Close()

	// NaN не сериализуется в JSON, ошибка должна вернуться до записи в сокет
	if err := writer.WriteJSON(map[string]float64{"x": math.NaN()}); err == nil {
		t.Error("Expected marshal error for NaN value, got nil")
	}
	// Соединение осталось пригодным
	if err := writer.WriteJSON(NewPongMessage(1)); err != nil {
		t.Fatalf("WriteJSON after marshal error: %v", err)
	}
	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("Valid message was not delivered")
	}
}
