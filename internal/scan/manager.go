package scan

import "sync"

// Manager hands out one engine per instructor, created on first use.
type Manager struct {
	mu      sync.Mutex
	engines map[string]*Engine
	build   func(instructorID string) *Engine
}

// NewManager creates a manager using build to construct missing engines.
func NewManager(build func(instructorID string) *Engine) *Manager {
	return &Manager{engines: make(map[string]*Engine), build: build}
}

// For returns the instructor's engine.
func (m *Manager) For(instructorID string) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.engines[instructorID]
	if !ok {
		e = m.build(instructorID)
		m.engines[instructorID] = e
	}
	return e
}
