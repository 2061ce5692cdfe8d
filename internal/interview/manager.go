package interview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/prompt"
)

// Manager keeps one active session per owner (an HTTP client id or a
// Telegram chat). Sessions share nothing but the backend and the sink.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Controller
	backend  Backend
	sink     TranscriptSink
	prompts  *prompt.Builder
	idleTTL  time.Duration
	now      func() time.Time
}

func NewManager(backend Backend, sink TranscriptSink, prompts *prompt.Builder, idleTTL time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Controller),
		backend:  backend,
		sink:     sink,
		prompts:  prompts,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Begin starts a fresh session for owner, replacing any previous one
// unless that one is waiting on the provider.
func (m *Manager) Begin(ctx context.Context, owner string, dc domain.Context, settings domain.Settings) (*Controller, error) {
	m.mu.Lock()
	if prev, ok := m.sessions[owner]; ok {
		if _, busy := prev.idleSince(); busy {
			m.mu.Unlock()
			return nil, domain.ErrRequestInFlight
		}
	}
	c := NewController(owner, m.backend, m.sink, m.prompts.With(settings.Prompts), settings)
	m.sessions[owner] = c
	m.mu.Unlock()

	if err := c.Start(ctx, dc); err != nil {
		return nil, err
	}
	slog.Info("interview session started", "owner", owner, "session_id", c.ID())
	return c, nil
}

func (m *Manager) Get(owner string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[owner]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return c, nil
}

func (m *Manager) Drop(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, owner)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed. Sessions with a call in flight are kept.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for owner, c := range m.sessions {
		last, busy := c.idleSince()
		if busy || last.After(cutoff) {
			continue
		}
		delete(m.sessions, owner)
		removed++
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Info("idle sessions removed", "count", n)
			}
		}
	}
}
