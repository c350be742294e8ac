package tracker

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// opLimiter throttles each operation type independently per chat: at most one
// call per cool-down window, no bursting.
type opLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	limiters map[string]*rate.Limiter
}

func newOpLimiter(window time.Duration) *opLimiter {
	return &opLimiter{
		window:   window,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *opLimiter) allow(chatID int64, op string) bool {
	if l.window <= 0 {
		return true
	}
	key := fmt.Sprintf("%d:%s", chatID, op)

	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.window), 1)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
