package transport

import (
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPRateLimiter лимитер запросов на IP клиента
type IPRateLimiter struct {
	ips map[string]*limiterEntry
	mu  sync.Mutex
	r   rate.Limit
	b   int

	idleTTL time.Duration
	now     func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter создает лимитер: r запросов в секунду, всплеск b
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:     make(map[string]*limiterEntry),
		r:       r,
		b:       b,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

// PerMinute переводит лимит в минуту в rate.Limit
func PerMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60)
}

// GetLimiter возвращает лимитер для IP, создавая его при необходимости
func (l *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.ips[ip]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.r, l.b)}
		l.ips[ip] = entry
	}
	entry.lastSeen = l.now()

	return entry.limiter
}

// Allow проверяет, можно ли обслужить запрос с этого IP
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.GetLimiter(ip).Allow()
}

// Cleanup удаляет лимитеры IP, не обращавшихся дольше idleTTL
func (l *IPRateLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	removed := 0
	for ip, entry := range l.ips {
		if entry.lastSeen.Before(cutoff) {
			delete(l.ips, ip)
			removed++
		}
	}
	return removed
}

// Len количество отслеживаемых IP
func (l *IPRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ips)
}

// RateLimit оборачивает обработчик лимитером по IP. При превышении 429.
func RateLimit(limiter *IPRateLimiter, endpoint string, observer RejectObserver, logger *log.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if !limiter.Allow(ip) {
			if observer != nil {
				observer.ObserveRateLimited(endpoint)
			}
			logger.Printf("[RateLimit] Превышен лимит %s для %s", endpoint, ip)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP адрес клиента: первый X-Forwarded-For или RemoteAddr
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
