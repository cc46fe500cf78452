package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/markview/internal/thumbnail"
	"github.com/dgallion1/markview/internal/viewer"
)

// SettingsStore persists the last-used settings per owner.
type SettingsStore interface {
	Load(ctx context.Context, owner string) (Settings, bool, error)
	Save(ctx context.Context, owner string, s Settings) error
}

// ManagerConfig sizes the session registry and the thumbnail workers.
type ManagerConfig struct {
	SessionTTL      time.Duration
	CleanupInterval time.Duration
	WorkerCount     int
	MaxQueueSize    int
	Thumbnails      thumbnail.Config
}

// Manager owns every live session. Thumbnail generation triggered by
// viewer events runs on a bounded queue served by worker goroutines.
type Manager struct {
	cfg       ManagerConfig
	newViewer func() viewer.Viewer
	store     SettingsStore
	stats     *thumbnail.Stats
	log       *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	stopped  bool

	queue  chan *Session
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager. store may be nil.
func NewManager(cfg ManagerConfig, newViewer func() viewer.Viewer, store SettingsStore, log *slog.Logger) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 64
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	return &Manager{
		cfg:       cfg,
		newViewer: newViewer,
		store:     store,
		stats:     thumbnail.NewStats(time.Hour),
		log:       log,
		sessions:  make(map[string]*Session),
		queue:     make(chan *Session, cfg.MaxQueueSize),
	}
}

// Start launches the thumbnail workers and the idle-session sweeper.
func (m *Manager) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for range m.cfg.WorkerCount {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case s := <-m.queue:
					s.EnsureThumbnails(workerCtx)
				}
			}
		}()
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if n := m.Cleanup(); n > 0 {
					m.log.Info("idle sessions evicted", "count", n)
				}
			}
		}
	}()
}

// Stop halts the workers and waits for them to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Create opens a session for owner, restoring the owner's saved settings.
func (m *Manager) Create(ctx context.Context, owner string) (*Session, error) {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return nil, ErrClosed
	}

	settings := DefaultSettings()
	if m.store != nil && owner != "" {
		saved, ok, err := m.store.Load(ctx, owner)
		switch {
		case err != nil:
			m.log.Warn("settings load failed", "owner", owner, "error", err)
		case ok:
			settings = saved
		}
	}

	s := New("", m.newViewer(), m.log, Options{
		Owner:      owner,
		Settings:   settings,
		Thumbnails: m.cfg.Thumbnails,
		Stats:      m.stats,
		Trigger:    m.enqueue,
		OnSettings: m.saveSettings,
	})

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.log.Info("session created", "session_id", s.ID, "owner", owner)
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Close removes a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.sessions, id)
	m.log.Info("session closed", "session_id", id)
	return nil
}

// Cleanup removes sessions idle for longer than SessionTTL and returns how
// many were removed.
func (m *Manager) Cleanup() int {
	if m.cfg.SessionTTL <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastUsed()) > m.cfg.SessionTTL {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// QueueDepth reports pending thumbnail jobs.
func (m *Manager) QueueDepth() int {
	return len(m.queue)
}

// RenderStats reports thumbnail rasterization latency.
func (m *Manager) RenderStats() thumbnail.StatsSnapshot {
	return m.stats.Snapshot()
}

// enqueue schedules thumbnail generation for s. A full queue drops the
// request; the next pagesLoaded event or an explicit ensure retries.
func (m *Manager) enqueue(_ context.Context, s *Session) {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return
	}
	select {
	case m.queue <- s:
	default:
		m.log.Warn("thumbnail queue full", "session_id", s.ID, "capacity", m.cfg.MaxQueueSize)
	}
}

func (m *Manager) saveSettings(ctx context.Context, owner string, s Settings) {
	if m.store == nil || owner == "" {
		return
	}
	if err := m.store.Save(ctx, owner, s); err != nil {
		m.log.Warn("settings save failed", "owner", owner, "error", err)
	}
}
