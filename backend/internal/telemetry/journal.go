package telemetry

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Event запись журнала событий сцены
type Event struct {
	Timestamp int64  `json:"timestamp"` // Время в миллисекундах
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"` // ingest, selection, error, ...
	Detail    string `json:"detail"`
	Value     int    `json:"value,omitempty"`
}

// Journal кольцевой буфер последних событий всех сессий
type Journal struct {
	enabled    bool
	data       []Event
	mutex      sync.RWMutex
	maxEntries int

	// Счетчики с последней сводки
	counters      map[string]int
	lastPrint     time.Time
	printInterval time.Duration

	logger *log.Logger
}

// NewJournal создает журнал на maxEntries событий
func NewJournal(maxEntries int, printInterval time.Duration, logger *log.Logger) *Journal {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Journal{
		enabled:       true,
		data:          make([]Event, 0, maxEntries),
		maxEntries:    maxEntries,
		counters:      make(map[string]int),
		lastPrint:     time.Now(),
		printInterval: printInterval,
		logger:        logger,
	}
}

// Record добавляет событие
func (j *Journal) Record(sessionID, kind, detail string, value int) {
	if j == nil {
		return
	}

	j.mutex.Lock()
	defer j.mutex.Unlock()

	if !j.enabled {
		return
	}

	j.data = append(j.data, Event{
		Timestamp: time.Now().UnixMilli(),
		SessionID: sessionID,
		Kind:      kind,
		Detail:    detail,
		Value:     value,
	})
	if len(j.data) > j.maxEntries {
		j.data = j.data[len(j.data)-j.maxEntries:]
	}

	j.counters[kind]++
}

// Recent копия последних событий, старые первыми
func (j *Journal) Recent() []Event {
	j.mutex.RLock()
	defer j.mutex.RUnlock()

	out := make([]Event, len(j.data))
	copy(out, j.data)
	return out
}

// PrintSummary пишет сводку счетчиков не чаще printInterval
func (j *Journal) PrintSummary() bool {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	now := time.Now()
	if !j.enabled || now.Sub(j.lastPrint) < j.printInterval {
		return false
	}

	j.logger.Printf("[Journal] Событий в буфере: %d", len(j.data))
	for kind, count := range j.counters {
		j.logger.Printf("[Journal] %s: %d", kind, count)
	}

	j.counters = make(map[string]int)
	j.lastPrint = now
	return true
}

// JSON журнал в JSON
func (j *Journal) JSON() ([]byte, error) {
	return json.MarshalIndent(j.Recent(), "", "  ")
}

// SetEnabled включает/выключает журнал
func (j *Journal) SetEnabled(enabled bool) {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	j.enabled = enabled
	j.logger.Printf("[Journal] Журнал %s", map[bool]string{true: "включен", false: "выключен"}[enabled])
}

// Clear очищает журнал
func (j *Journal) Clear() {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	j.data = j.data[:0]
	j.counters = make(map[string]int)
}

// Handler отдает журнал в JSON
func (j *Journal) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := j.JSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})
}
