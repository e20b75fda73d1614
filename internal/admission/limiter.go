// Package admission implements per-source sliding-window request counting.
package admission

import (
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// UnknownSource is used when the caller address cannot be determined.
const UnknownSource = "unknown"

// RateRecord tracks requests from one source within the current window.
type RateRecord struct {
	SourceKey   string
	WindowStart time.Time
	Count       int
}

// Limiter admits up to limit requests per source within window. Records live in
// a fixed-capacity LRU so memory stays bounded as new sources appear; an evicted
// source simply starts a fresh window on its next request.
type Limiter struct {
	mu      sync.Mutex
	records *lru.Cache[string, *RateRecord]
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewLimiter creates a limiter tracking at most maxSources distinct sources.
func NewLimiter(limit int, window time.Duration, maxSources int) (*Limiter, error) {
	if limit <= 0 {
		return nil, errors.New("admission: limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("admission: window must be positive")
	}
	records, err := lru.New[string, *RateRecord](maxSources)
	if err != nil {
		return nil, err
	}
	return &Limiter{
		records: records,
		limit:   limit,
		window:  window,
		now:     time.Now,
	}, nil
}

// CheckAndRecord counts one request for sourceKey and reports whether it is allowed.
// The request that pushes the count past the limit, and every later one inside
// the same window, is denied.
func (l *Limiter) CheckAndRecord(sourceKey string) bool {
	if sourceKey == "" {
		sourceKey = UnknownSource
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records.Get(sourceKey)
	if !ok || now.Sub(record.WindowStart) > l.window {
		l.records.Add(sourceKey, &RateRecord{SourceKey: sourceKey, WindowStart: now, Count: 1})
		return true
	}

	record.Count++
	return record.Count <= l.limit
}

// Tracked returns the number of sources currently held.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records.Len()
}
