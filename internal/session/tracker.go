// Package session tracks anonymous visitor sessions and their generation
// quota.
//
// A session is created on first visit and identified by an opaque token.
// Each session may run a fixed number of free-text generations (default 2).
// The count is authoritative on the server; clients only mirror it for
// display.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/voxpreview/internal/observe"
)

const (
	// DefaultLimit is the number of generations a session may run.
	DefaultLimit = 2

	// DefaultTTL is how long a session lives after creation.
	DefaultTTL = 24 * time.Hour

	defaultSweepInterval = 10 * time.Minute

	tokenPrefix = "session_"
)

var (
	// ErrUnknownSession is returned for tokens that were never issued or have
	// expired.
	ErrUnknownSession = errors.New("session: unknown or expired session")

	// ErrQuotaExceeded is returned when a session has used all its generations.
	ErrQuotaExceeded = errors.New("session: generation quota exceeded")
)

// Session is a visitor session.
type Session struct {
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Quota is the generation allowance of a session.
type Quota struct {
	Limit       int
	Used        int
	Remaining   int
	CanGenerate bool
}

func newQuota(limit, used int) Quota {
	rem := max(limit-used, 0)
	return Quota{Limit: limit, Used: used, Remaining: rem, CanGenerate: rem > 0}
}

type entry struct {
	Session
	used int
}

// Option configures a [Tracker].
type Option func(*Tracker)

// WithLimit sets the per-session generation limit. Default: 2.
func WithLimit(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.limit = n
		}
	}
}

// WithTTL sets the session lifetime. Default: 24h.
func WithTTL(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.ttl = d
		}
	}
}

// WithSweepInterval sets how often the janitor started by [Tracker.Start]
// removes expired sessions. Default: 10m.
func WithSweepInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.sweepInterval = d
		}
	}
}

// WithMetrics records active sessions and quota rejections on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func withClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker holds sessions in memory. All methods are safe for concurrent use.
type Tracker struct {
	limit         int
	ttl           time.Duration
	sweepInterval time.Duration
	metrics       *observe.Metrics
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry

	done     chan struct{}
	stopOnce sync.Once
}

// NewTracker creates a Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		limit:         DefaultLimit,
		ttl:           DefaultTTL,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		sessions:      make(map[string]*entry),
		done:          make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	return t
}

// Limit returns the per-session generation limit.
func (t *Tracker) Limit() int { return t.limit }

// Init creates a new session with a fresh quota.
func (t *Tracker) Init(ctx context.Context) (Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Session{}, fmt.Errorf("session: new token: %w", err)
	}
	now := t.now()
	s := Session{
		Token:     tokenPrefix + id.String(),
		CreatedAt: now,
		ExpiresAt: now.Add(t.ttl),
	}

	t.mu.Lock()
	t.sessions[s.Token] = &entry{Session: s}
	t.mu.Unlock()

	t.metrics.ActiveSessions.Add(ctx, 1)
	return s, nil
}

// lookup returns the live entry for token, dropping it if expired.
// Must be called with t.mu held.
func (t *Tracker) lookup(ctx context.Context, token string) (*entry, bool) {
	e, ok := t.sessions[token]
	if !ok {
		return nil, false
	}
	if !t.now().Before(e.ExpiresAt) {
		delete(t.sessions, token)
		t.metrics.ActiveSessions.Add(ctx, -1)
		return nil, false
	}
	return e, true
}

// Check reports the quota of token. Unknown, expired and empty tokens report
// a fresh quota: the caller has not generated anything under them yet.
func (t *Tracker) Check(ctx context.Context, token string) Quota {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.lookup(ctx, token); ok {
		return newQuota(t.limit, e.used)
	}
	return newQuota(t.limit, 0)
}

// Acquire atomically consumes one generation of token and returns the quota
// after the charge. Call [Tracker.Refund] if the generation then fails.
func (t *Tracker) Acquire(ctx context.Context, token string) (Quota, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.lookup(ctx, token)
	if !ok {
		return Quota{}, ErrUnknownSession
	}
	if e.used >= t.limit {
		t.metrics.QuotaRejections.Add(ctx, 1)
		return newQuota(t.limit, e.used), ErrQuotaExceeded
	}
	e.used++
	return newQuota(t.limit, e.used), nil
}

// Refund returns one generation to token. It is a no-op for unknown tokens
// and sessions that have nothing to refund.
func (t *Tracker) Refund(ctx context.Context, token string) Quota {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.lookup(ctx, token)
	if !ok {
		return newQuota(t.limit, 0)
	}
	if e.used > 0 {
		e.used--
	}
	return newQuota(t.limit, e.used)
}

// Record counts one generation against token without checking the limit.
func (t *Tracker) Record(ctx context.Context, token string) (Quota, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.lookup(ctx, token)
	if !ok {
		return Quota{}, ErrUnknownSession
	}
	e.used++
	return newQuota(t.limit, e.used), nil
}

// Len returns the number of tracked sessions, including expired sessions not
// yet swept.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (t *Tracker) Sweep(ctx context.Context) int {
	now := t.now()
	t.mu.Lock()
	n := 0
	for tok, e := range t.sessions {
		if !now.Before(e.ExpiresAt) {
			delete(t.sessions, tok)
			n++
		}
	}
	t.mu.Unlock()
	if n > 0 {
		t.metrics.ActiveSessions.Add(ctx, int64(-n))
	}
	return n
}

// Start runs the expiry janitor in a background goroutine until
// [Tracker.Stop] is called or ctx is cancelled.
func (t *Tracker) Start(ctx context.Context) {
	go t.loop(ctx)
}

// Stop halts the janitor. Safe to call multiple times.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

func (t *Tracker) loop(ctx context.Context) {
	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case <-ticker.C:
			if n := t.Sweep(ctx); n > 0 {
				slog.Debug("expired sessions swept", "count", n)
			}
		}
	}
}
