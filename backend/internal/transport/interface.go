package transport

import "context"

// FeedSource источник очищенной ленты NeoWs (neo.Client)
type FeedSource interface {
	FetchSanitized(ctx context.Context, date string) ([]byte, error)
}

// RejectObserver получает отказы лимитера (метрики)
type RejectObserver interface {
	ObserveRateLimited(endpoint string)
}
