package app

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"car_feedback/internal/adapters/observability"
	"car_feedback/internal/domain"
)

// SessionCache memoizes a classifier by exact text for the lifetime of one session.
// Concurrent misses for the same text share a single upstream call; errors are not cached.
//
// The shared call is detached from every caller's cancellation and bounded by timeout
// instead, so one caller giving up never fails the others waiting on the same text.
type SessionCache struct {
	next    domain.SentimentClassifier
	timeout time.Duration
	mu      sync.RWMutex
	items   map[string]domain.Classification
	group   singleflight.Group
}

// NewSessionCache wraps next. timeout bounds each upstream call; 0 leaves it unbounded.
func NewSessionCache(next domain.SentimentClassifier, timeout time.Duration) *SessionCache {
	return &SessionCache{next: next, timeout: timeout, items: make(map[string]domain.Classification)}
}

func (c *SessionCache) Name() string { return c.next.Name() }

func (c *SessionCache) Classify(ctx context.Context, text string) (domain.Classification, error) {
	if v, ok := c.lookup(text); ok {
		observability.ObserveCache("session", "hit")
		return v, nil
	}
	observability.ObserveCache("session", "miss")

	ch := c.group.DoChan(text, func() (any, error) {
		// another flight may have filled it between lookup and DoChan
		if v, ok := c.lookup(text); ok {
			return v, nil
		}
		cctx, cancel := c.detach(ctx)
		defer cancel()

		cl, err := c.next.Classify(cctx, text)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if prev, ok := c.items[text]; ok {
			cl = prev
		} else {
			c.items[text] = cl
			observability.ObserveCache("session", "set")
		}
		c.mu.Unlock()
		return cl, nil
	})

	select {
	case <-ctx.Done():
		return domain.Classification{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Classification{}, res.Err
		}
		return res.Val.(domain.Classification), nil
	}
}

func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *SessionCache) lookup(text string) (domain.Classification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[text]
	return v, ok
}

// detach keeps ctx values (request id, loggers) but drops its deadline and cancellation.
func (c *SessionCache) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	d := context.WithoutCancel(ctx)
	if c.timeout <= 0 {
		return context.WithCancel(d)
	}
	return context.WithTimeout(d, c.timeout)
}
