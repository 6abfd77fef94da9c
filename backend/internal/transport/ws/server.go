package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"neo-viz/backend/internal/neo"
	"neo-viz/backend/internal/telemetry"
)

const (
	DefaultPingInterval = 30 * time.Second // Интервал отправки пингов
	pongWait            = 2 * DefaultPingInterval
	maxMessageSize      = 16 * 1024
)

// MessageHandler - тип функции обработчика сообщений
type MessageHandler func(s *Session, message interface{}) error

// ServerOptions настройки WebSocket сервера
type ServerOptions struct {
	Session         SessionOptions
	IngestOnConnect bool
	PingInterval    time.Duration
}

// WSServer WebSocket сервер: каждое соединение получает свою сессию
type WSServer struct {
	upgrader     websocket.Upgrader
	source       RecordSource
	opts         ServerOptions
	handlers     map[string]MessageHandler
	pingInterval time.Duration
	collector    *telemetry.Collector
	journal      *telemetry.Journal
	logger       *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	nextID   atomic.Uint64
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewWSServer создает новый экземпляр WebSocket сервера
func NewWSServer(source RecordSource, opts ServerOptions, collector *telemetry.Collector,
	journal *telemetry.Journal, logger *log.Logger) *WSServer {
	if logger == nil {
		logger = log.Default()
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.Session.Stars.Count == 0 && opts.Session.Stars.Positions == nil {
		opts.Session.Stars = DefaultStarField()
	}

	ctx, cancel := context.WithCancel(context.Background())
	server := &WSServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		source:       source,
		opts:         opts,
		handlers:     make(map[string]MessageHandler),
		pingInterval: opts.PingInterval,
		collector:    collector,
		journal:      journal,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		sessions:     make(map[string]*Session),
	}

	// Регистрируем стандартные обработчики
	server.RegisterHandler(MessageTypePing, server.handlePing)
	server.RegisterHandler(MessageTypeIngest, server.handleIngest)
	server.RegisterHandler(MessageTypeClick, server.handleClick)

	return server
}

// RegisterHandler регистрирует обработчик для конкретного типа сообщений
func (s *WSServer) RegisterHandler(messageType string, handler MessageHandler) {
	s.handlers[messageType] = handler
}

// SessionCount количество открытых сессий
func (s *WSServer) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown отменяет все сессии. Соединения закрываются их обработчиками.
func (s *WSServer) Shutdown() {
	s.cancel()

	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	for _, sess := range sessions {
		_ = sess.writer.Close()
	}
}

// HandleWS обрабатывает входящие WebSocket соединения
func (s *WSServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("[WSServer] Ошибка upgrade: %v", err)
		return
	}

	// Создаем потокобезопасную обертку для WebSocket соединения
	safeConn := NewSafeWriter(conn)
	defer safeConn.Close()

	s.logger.Printf("[WSServer] Новое соединение от %s", conn.RemoteAddr())

	// Отправляем приветственное сообщение
	if err := safeConn.WriteJSON(NewInfoMessage("Connected to neo-viz server")); err != nil {
		s.logger.Printf("[WSServer] Ошибка отправки приветствия: %v", err)
		return
	}

	id := fmt.Sprintf("s-%d", s.nextID.Add(1))
	session, err := NewSession(id, safeConn, s.source, s.opts.Session, s.collector, s.journal, s.logger)
	if err != nil {
		s.logger.Printf("[WSServer] Ошибка создания сессии: %v", err)
		return
	}
	defer session.Close()

	if err := session.Start(s.ctx); err != nil {
		s.logger.Printf("[WSServer] Ошибка запуска сессии %s: %v", id, err)
		return
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
	}()

	if s.opts.IngestOnConnect {
		if _, err := session.RequestIngest(""); err != nil {
			s.logger.Printf("[WSServer] Сессия %s: загрузка при подключении не запущена: %v", id, err)
		}
	}

	// Запускаем пинг для поддержания соединения
	stopPing := make(chan struct{})
	defer close(stopPing)
	if s.pingInterval > 0 {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go s.startPing(safeConn, stopPing)
	}
	conn.SetReadLimit(maxMessageSize)

	// Основной цикл обработки сообщений
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("[WSServer] Ошибка WebSocket: %v", err)
			}
			break
		}
		if s.pingInterval > 0 {
			conn.SetReadDeadline(time.Now().Add(pongWait))
		}

		// Разбираем сообщение
		message, err := ParseMessage(data)
		if err != nil {
			s.logger.Printf("[WSServer] Сессия %s: ошибка разбора сообщения: %v", id, err)
			session.send(NewErrorMessage(ErrorCodeBadMessage, err.Error(), 0))
			continue
		}

		// Ищем обработчик для данного типа сообщений
		messageType := messageType(message)
		handler, ok := s.handlers[messageType]
		if !ok {
			s.logger.Printf("[WSServer] Нет обработчика для типа сообщения: %s", messageType)
			continue
		}
		if err := handler(session, message); err != nil {
			s.logger.Printf("[WSServer] Сессия %s: ошибка обработки %s: %v", id, messageType, err)
			session.send(NewErrorMessage(errorCode(err), err.Error(), 0))
		}
	}

	s.logger.Printf("[WSServer] Соединение закрыто: %s", conn.RemoteAddr())
}

func (s *WSServer) startPing(writer *SafeWriter, stop <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := writer.WritePing(); err != nil {
				return
			}
		}
	}
}

// errorCode код ошибки для клиента
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrBusy):
		return ErrorCodeBusy
	case errors.Is(err, ErrInvalidMessage):
		return ErrorCodeBadMessage
	case errors.Is(err, neo.ErrBadDate):
		return ErrorCodeBadDate
	default:
		return ErrorCodeInternal
	}
}
