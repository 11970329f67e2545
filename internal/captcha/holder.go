package captcha

import (
	"captchaguard/internal/hooks"
	"captchaguard/internal/types"
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// credentials is the part of the settings a Client is built from.
type credentials struct {
	apiKey       string
	customDomain string
	euIsolation  bool
}

func credentialsOf(s types.Settings) credentials {
	return credentials{apiKey: s.APIKey, customDomain: s.CustomDomain, euIsolation: s.EUIsolation}
}

// Holder owns the client built from the persisted settings. The client is replaced
// wholesale on every settings change and dropped when the site is not configured.
type Holder struct {
	cur  atomic.Pointer[Client]
	opts []Option

	mu    sync.Mutex
	built credentials
}

func NewHolder(opts ...Option) *Holder {
	return &Holder{opts: opts}
}

// Current returns the active client, or nil when the site is not configured.
func (h *Holder) Current() *Client {
	return h.cur.Load()
}

// Rebuild replaces the active client with one built from s.
func (h *Holder) Rebuild(s types.Settings) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rebuild(s)
}

func (h *Holder) rebuild(s types.Settings) error {
	c, err := New(s.APIKey, s.CustomDomain, s.EUIsolation, h.opts...)
	if err != nil {
		return err
	}
	h.cur.Store(c)
	h.built = credentialsOf(s)
	log.WithField("domain", c.Domain()).Info("Captcha client rebuilt")
	return nil
}

func (h *Holder) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cur.Store(nil)
	h.built = credentials{}
}

// Sync brings the client in line with s, which may have been written by another process.
// The client is only rebuilt when the api key, custom domain or EU isolation changed.
func (h *Holder) Sync(s types.Settings) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !s.Configured() {
		if h.cur.Load() != nil {
			h.cur.Store(nil)
			h.built = credentials{}
			log.Info("Captcha client dropped, site no longer configured")
		}
		return nil
	}
	if h.cur.Load() != nil && h.built == credentialsOf(s) {
		return nil
	}
	return h.rebuild(s)
}

// Handle implements hooks.Listener.
func (h *Holder) Handle(_ context.Context, ev hooks.Event, s types.Settings) error {
	if ev == hooks.SettingsReset || !s.Configured() {
		h.Reset()
		return nil
	}
	return h.Rebuild(s)
}
