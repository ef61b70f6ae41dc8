package server

import (
	"context"
	"sync"
	"time"
)

// IPLimiter caps how many confirmed registrations a single IP can complete
// inside a sliding window. Failed attempts are not counted, so a user whose
// document photo was blurry can try again.
type IPLimiter struct {
	limit  int
	window time.Duration

	mu   sync.Mutex
	seen map[string][]time.Time
}

func NewIPLimiter(limit int, window time.Duration) *IPLimiter {
	return &IPLimiter{
		limit:  limit,
		window: window,
		seen:   make(map[string][]time.Time),
	}
}

// Allow reports whether the IP still has budget in the current window
func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(ip)) < l.limit
}

// Record consumes one unit of budget for the IP
func (l *IPLimiter) Record(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[ip] = append(l.prune(ip), time.Now())
}

// prune 丢掉窗口外的旧记录，调用方必须持有锁
func (l *IPLimiter) prune(ip string) []time.Time {
	cutoff := time.Now().Add(-l.window)
	kept := l.seen[ip][:0]
	for _, t := range l.seen[ip] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.seen, ip)
		return nil
	}
	l.seen[ip] = kept
	return kept
}

// Start 定期清理整个表，防止一次性来访的 IP 常驻内存
func (l *IPLimiter) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.mu.Lock()
				for ip := range l.seen {
					l.prune(ip)
				}
				l.mu.Unlock()
			}
		}
	}()
}
