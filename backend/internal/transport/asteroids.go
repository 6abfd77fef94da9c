package transport

import (
	"errors"
	"log"
	"net/http"

	"neo-viz/backend/internal/neo"
)

// AsteroidsHandler отдает очищенную ленту NeoWs за дату (?date=YYYY-MM-DD,
// по умолчанию сегодня)
type AsteroidsHandler struct {
	feed   FeedSource
	logger *log.Logger
}

// NewAsteroidsHandler создает обработчик /asteroids
func NewAsteroidsHandler(feed FeedSource, logger *log.Logger) *AsteroidsHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &AsteroidsHandler{feed: feed, logger: logger}
}

func (h *AsteroidsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := r.URL.Query().Get("date")
	body, err := h.feed.FetchSanitized(r.Context(), date)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, neo.ErrBadDate):
			status = http.StatusBadRequest
		case errors.Is(err, neo.ErrUpstream):
			status = http.StatusBadGateway
		}
		h.logger.Printf("[Asteroids] Ошибка получения ленты (date=%q): %v", date, err)
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(body)
	}
}
