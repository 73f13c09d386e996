package throttle

import (
	"context"
	"sync"
	"time"
)

// Memory is the single-process Throttle backed by a mutex-guarded map.
// Suitable for one server instance; multi-instance deployments should use
// the redis driver so the increment-and-check stays atomic across replicas.
type Memory struct {
	cfg Config

	mu          sync.Mutex
	records     map[string]*record
	lastCleanup time.Time

	now func() time.Time // test hook
}

type record struct {
	count       int
	windowStart time.Time
}

func NewMemory(cfg Config) *Memory {
	return &Memory{
		cfg:         cfg.withDefaults(),
		records:     make(map[string]*record),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (m *Memory) RecordFailure(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	r := m.records[key]
	if r == nil || now.Sub(r.windowStart) >= m.cfg.Window {
		r = &record{count: 1, windowStart: now}
		m.records[key] = r
	} else {
		r.count++
	}

	m.maybeCleanupLocked(now)

	return r.count >= m.cfg.MaxAttempts, nil
}

func (m *Memory) IsLocked(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.records[key]
	if r == nil {
		return false, nil
	}
	if m.now().Sub(r.windowStart) >= m.cfg.Window {
		// Window elapsed; drop the stale record so the next failure starts
		// a fresh count.
		delete(m.records, key)
		return false, nil
	}
	return r.count >= m.cfg.MaxAttempts, nil
}

func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, key)
	return nil
}

// maybeCleanupLocked sweeps elapsed records so abandoned keys don't
// accumulate. Called with m.mu held.
func (m *Memory) maybeCleanupLocked(now time.Time) {
	if now.Sub(m.lastCleanup) < 5*time.Minute {
		return
	}
	m.lastCleanup = now

	for key, r := range m.records {
		if now.Sub(r.windowStart) >= m.cfg.Window {
			delete(m.records, key)
		}
	}
}
