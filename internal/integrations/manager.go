package integrations

import (
	"captchaguard/internal/captcha"
	"captchaguard/internal/hooks"
	"captchaguard/internal/types"
	"context"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Verifier checks a solution submitted with a protected form.
type Verifier interface {
	VerifySolution(ctx context.Context, solution string) (bool, error)
}

// VerifierSource returns the current verifier, or nil when the site is not configured.
type VerifierSource func() Verifier

// SettingsSource returns the current settings record. Implementations are expected to
// cache; it is consulted on every gated submission.
type SettingsSource func(ctx context.Context) (types.Settings, error)

// Manager is the registry of integrations and the shared verification entry point used by
// protected form surfaces.
type Manager struct {
	integrations []Integration
	source       VerifierSource
	settings     SettingsSource

	mu     sync.RWMutex
	active map[string]struct{}
}

func NewManager(source VerifierSource, integrations ...Integration) *Manager {
	return &Manager{
		integrations: integrations,
		source:       source,
		active:       map[string]struct{}{},
	}
}

// SetSettingsSource makes Verify and Refresh follow the stored record, so changes written by
// another process (the CLI recovery commands) take effect without a restart.
func (m *Manager) SetSettingsSource(src SettingsSource) {
	m.mu.Lock()
	m.settings = src
	m.mu.Unlock()
}

// Refresh re-reads the settings source, if any, and recomputes the protected surfaces.
// On a read error the last known state is kept.
func (m *Manager) Refresh(ctx context.Context) {
	m.mu.RLock()
	src := m.settings
	m.mu.RUnlock()
	if src == nil {
		return
	}
	s, err := src(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to refresh integration settings")
		return
	}
	m.Init(s)
}

func (m *Manager) Integrations() []Integration {
	return slices.Clone(m.integrations)
}

// Lookup finds the integration owning a setting name.
func (m *Manager) Lookup(setting string) (Integration, Field, bool) {
	for _, in := range m.integrations {
		for _, f := range in.Fields() {
			if f.Setting == setting {
				return in, f, true
			}
		}
	}
	return nil, Field{}, false
}

// Settings returns every integration setting name in registry order.
func (m *Manager) Settings() []string {
	var out []string
	for _, in := range m.integrations {
		for _, f := range in.Fields() {
			out = append(out, f.Setting)
		}
	}
	return out
}

// Init recomputes the protected surfaces: a field is active when its integration is
// available and the flag is set.
func (m *Manager) Init(s types.Settings) {
	active := map[string]struct{}{}
	for _, in := range m.integrations {
		if !in.Available() {
			continue
		}
		for _, f := range in.Fields() {
			if s.Flag(f.Setting) {
				active[f.Setting] = struct{}{}
			}
		}
	}
	m.mu.Lock()
	m.active = active
	m.mu.Unlock()
	log.WithField("active", len(active)).Debug("Integrations initialized")
}

// Active reports whether submissions of the surface behind setting require a solution.
func (m *Manager) Active(setting string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[setting]
	return ok
}

// Handle implements hooks.Listener.
func (m *Manager) Handle(_ context.Context, ev hooks.Event, s types.Settings) error {
	if ev == hooks.SettingsReset {
		s = types.DefaultSettings()
	}
	m.Init(s)
	return nil
}

// Verify gates one form submission. Surfaces that are not active pass through.
func (m *Manager) Verify(ctx context.Context, setting string, form map[string]string) error {
	m.Refresh(ctx)
	if !m.Active(setting) {
		return nil
	}
	var v Verifier
	if m.source != nil {
		v = m.source()
	}
	if v == nil {
		return types.ErrCaptchaUnavailable
	}
	ok, err := v.VerifySolution(ctx, form[captcha.FormField])
	if err != nil {
		log.WithError(err).WithField("setting", setting).Warn("Captcha verification error")
		return types.Err(types.ErrVerificationFailed, err, "")
	}
	if !ok {
		return types.ErrVerificationFailed
	}
	return nil
}
