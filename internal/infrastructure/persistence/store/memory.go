package store

import (
	"context"
	"sync"
	"time"

	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
)

type memoryCookie struct {
	value     string
	expiresAt time.Time // zero for session cookies
}

// MemoryBackend keeps cookies and local values in process memory.
type MemoryBackend struct {
	mu          sync.RWMutex
	cookies     map[string]memoryCookie
	values      map[string]string
	clock       clock.Clock
	unavailable bool
}

// NewMemoryBackend creates an empty in-memory backend. A nil clock uses the system clock.
func NewMemoryBackend(c clock.Clock) *MemoryBackend {
	if c == nil {
		c = clock.System{}
	}
	return &MemoryBackend{
		cookies: make(map[string]memoryCookie),
		values:  make(map[string]string),
		clock:   c,
	}
}

// SetAvailable toggles whether the backend accepts operations, mimicking a
// browser that blocks cookies or local storage.
func (m *MemoryBackend) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = !available
}

// EndBrowserSession drops every session cookie.
func (m *MemoryBackend) EndBrowserSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, c := range m.cookies {
		if c.expiresAt.IsZero() {
			delete(m.cookies, name)
		}
	}
}

// PurgeExpired implements Purger.
func (m *MemoryBackend) PurgeExpired(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return 0, ErrUnavailable
	}
	now := m.clock.Now()
	var purged int64
	for name, c := range m.cookies {
		if !c.expiresAt.IsZero() && !now.Before(c.expiresAt) {
			delete(m.cookies, name)
			purged++
		}
	}
	return purged, nil
}

// GetCookie implements Backend.
func (m *MemoryBackend) GetCookie(_ context.Context, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unavailable {
		return "", false, ErrUnavailable
	}
	c, ok := m.cookies[name]
	if !ok {
		return "", false, nil
	}
	if !c.expiresAt.IsZero() && !m.clock.Now().Before(c.expiresAt) {
		return "", false, nil
	}
	return c.value, true, nil
}

// SetCookie implements Backend.
func (m *MemoryBackend) SetCookie(_ context.Context, name, value string, days int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return ErrUnavailable
	}
	c := memoryCookie{value: value}
	if days != SessionCookie {
		c.expiresAt = m.clock.Now().Add(time.Duration(days) * 24 * time.Hour)
	}
	m.cookies[name] = c
	return nil
}

// DeleteCookie implements Backend.
func (m *MemoryBackend) DeleteCookie(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return ErrUnavailable
	}
	delete(m.cookies, name)
	return nil
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unavailable {
		return "", false, ErrUnavailable
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return ErrUnavailable
	}
	m.values[key] = value
	return nil
}

// Remove implements Backend.
func (m *MemoryBackend) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return ErrUnavailable
	}
	delete(m.values, key)
	return nil
}
