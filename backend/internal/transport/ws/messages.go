package ws

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/goccy/go-json"

	"neo-viz/backend/internal/world"
)

var (
	// ErrInvalidMessage сообщение не разбирается
	ErrInvalidMessage = errors.New("invalid message")
	// ErrUnknownMessageType тип сообщения не поддерживается
	ErrUnknownMessageType = errors.New("unknown message type")
)

// GetCurrentServerTime возвращает текущее серверное время в миллисекундах
func GetCurrentServerTime() int64 {
	return time.Now().UnixMilli()
}

// ParseMessage разбирает входящее сообщение по полю type
func ParseMessage(data []byte) (interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	var msg interface{}
	switch env.Type {
	case MessageTypePing:
		msg = &PingMessage{}
	case MessageTypeIngest:
		msg = &IngestMessage{}
	case MessageTypeClick:
		msg = &ClickMessage{}
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return msg, nil
}

// messageType тип уже разобранного сообщения
func messageType(msg interface{}) string {
	switch m := msg.(type) {
	case *PingMessage:
		return m.Type
	case *IngestMessage:
		return m.Type
	case *ClickMessage:
		return m.Type
	default:
		return ""
	}
}

// NewPongMessage создает новое сообщение-ответ на пинг
func NewPongMessage(clientTime float64) *PongMessage {
	return &PongMessage{
		Type:       MessageTypePong,
		ClientTime: clientTime,
		ServerTime: GetCurrentServerTime(),
	}
}

// NewInfoMessage создает новое информационное сообщение
func NewInfoMessage(message string) *InfoMessage {
	return &InfoMessage{
		Type:    MessageTypeInfo,
		Message: message,
	}
}

// NewErrorMessage создает сообщение об ошибке
func NewErrorMessage(code, message string, generation uint64) *ErrorMessage {
	return &ErrorMessage{
		Type:       MessageTypeError,
		Code:       code,
		Message:    message,
		Generation: generation,
	}
}

// NewSelectionMessage создает сообщение о выделении, info == nil снимает его
func NewSelectionMessage(info *world.EntityInfo) *SelectionMessage {
	msg := &SelectionMessage{Type: MessageTypeSelection}
	if info != nil {
		msg.ID = world.FormatHandle(info.Handle)
		msg.Entity = NewEntityRow(info)
	}
	return msg
}

// NewIngestReportMessage создает итог загрузки
func NewIngestReportMessage(generation uint64, date string, report world.IngestReport) *IngestReportMessage {
	msg := &IngestReportMessage{
		Type:       MessageTypeIngestReport,
		Generation: generation,
		Date:       date,
		Created:    report.Created,
		Skipped:    report.Skipped,
	}
	for _, err := range report.Errors {
		msg.Errors = append(msg.Errors, err.Error())
	}
	return msg
}

// ToCamera переводит камеру клиента в камеру сцены.
// Отсутствующий вектор up означает +Y.
func (c CameraDTO) ToCamera() world.Camera {
	up := mgl64.Vec3{0, 1, 0}
	if c.Up != nil {
		up = c.Up.vec()
	}
	return world.Camera{
		Position: c.Position.vec(),
		Target:   c.Target.vec(),
		Up:       up,
		FovY:     c.Fov,
		Aspect:   c.Aspect,
		Near:     c.Near,
		Far:      c.Far,
	}
}

// Validate проверяет координаты клика
func (m *ClickMessage) Validate() error {
	if !finite(m.X) || !finite(m.Y) {
		return fmt.Errorf("%w: click coordinates must be finite", ErrInvalidMessage)
	}
	if math.Abs(m.X) > 1 || math.Abs(m.Y) > 1 {
		return fmt.Errorf("%w: click outside viewport (%v, %v)", ErrInvalidMessage, m.X, m.Y)
	}
	return nil
}

func (v Vec3DTO) vec() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
