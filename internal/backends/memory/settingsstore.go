package memory

import (
	"captchaguard/internal/types"
	"context"
	"slices"
	"sync"
	"time"
)

// SettingsStore keeps records in process memory. It backs tests and single-node
// development setups.
type SettingsStore struct {
	mu   sync.RWMutex
	data map[string]types.Settings
}

func NewSettingsStore() *SettingsStore {
	return &SettingsStore{data: map[string]types.Settings{}}
}

func (s *SettingsStore) GetSettings(_ context.Context, siteID string) (types.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[siteID]
	if !ok {
		return types.Settings{}, types.ErrNotFound
	}
	return v.Clone(), nil
}

func (s *SettingsStore) PutSettings(_ context.Context, siteID string, settings types.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.data[siteID] = settings.Clone()
	s.mu.Unlock()
	return nil
}

func (s *SettingsStore) DeleteSettings(_ context.Context, siteID string) error {
	s.mu.Lock()
	delete(s.data, siteID)
	s.mu.Unlock()
	return nil
}

func (s *SettingsStore) ListSites(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for id := range s.data {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

// RateLimiter counts acquires per scope in fixed windows that start at the first acquire.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: map[string]window{}, now: time.Now}
}

func (r *RateLimiter) Acquire(_ context.Context, scope string, ratePerWindow int, win time.Duration) (bool, error) {
	if ratePerWindow <= 0 {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	w, ok := r.windows[scope]
	if !ok || now.Sub(w.start) >= win {
		w = window{start: now}
	}
	if w.count >= ratePerWindow {
		return false, nil
	}
	w.count++
	r.windows[scope] = w
	return true, nil
}
