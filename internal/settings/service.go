package settings

import (
	"captchaguard/internal/hooks"
	"captchaguard/internal/integrations"
	"captchaguard/internal/ports"
	"captchaguard/internal/types"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultCacheTTL = 30 * time.Second

type Options struct {
	Gate       Gate
	Guard      Guard
	Dispatcher *hooks.Dispatcher
	// CacheTTL controls how long reads are served from memory. Zero means DefaultCacheTTL.
	CacheTTL time.Duration
}

// Service owns the settings record of one site: it validates submissions, persists them
// and tells listeners about changes. It is constructed explicitly and handed to request
// handlers and CLI commands.
type Service struct {
	siteID     string
	store      ports.SettingsStore
	registry   []integrations.Integration
	gate       Gate
	guard      Guard
	dispatcher *hooks.Dispatcher
	cache      *TTL[string, types.Settings]
	cacheTTL   time.Duration
}

func NewService(siteID string, store ports.SettingsStore, registry []integrations.Integration, opts Options) *Service {
	s := &Service{
		siteID:     siteID,
		store:      store,
		registry:   registry,
		gate:       opts.Gate,
		guard:      opts.Guard,
		dispatcher: opts.Dispatcher,
		cache:      NewTTL[string, types.Settings](),
		cacheTTL:   opts.CacheTTL,
	}
	if s.dispatcher == nil {
		s.dispatcher = hooks.NewDispatcher()
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = DefaultCacheTTL
	}
	return s
}

func (s *Service) SiteID() string { return s.siteID }

func (s *Service) Dispatcher() *hooks.Dispatcher { return s.dispatcher }

// ValidateAndPersist runs a settings submission through sanitizing, the self-test gate and
// the lockout guard, then replaces the stored record. Listeners are notified only after the
// write succeeded. Diagnostics are returned even when the write fails.
func (s *Service) ValidateAndPersist(ctx context.Context, in types.RawInput) (types.Settings, types.Diagnostics, error) {
	previous, err := s.load(ctx)
	if err != nil {
		return types.Settings{}, nil, err
	}

	candidate, diags := Sanitize(in, previous, s.registry)

	triggered := s.gate.Triggered(candidate, s.registry)
	valid := false
	if triggered {
		valid = s.gate.Run(ctx, candidate)
	}
	s.guard.Apply(&candidate, &diags, s.registry, triggered, valid)

	logger := log.WithFields(log.Fields{
		"site":      s.siteID,
		"self_test": selfTestResult(triggered, valid),
		"enabled":   candidate.EnabledFlags(),
	})
	if err := s.persist(ctx, hooks.SettingsUpdated, candidate); err != nil {
		logger.WithError(err).Error("Failed to save settings")
		return candidate, diags, err
	}
	logger.Info("Settings saved")
	return candidate, diags, nil
}

// IsConfigured reports whether the stored record has both credentials.
func (s *Service) IsConfigured(ctx context.Context) bool {
	cur, err := s.GetAllSettings(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to read settings")
		return false
	}
	return cur.Configured()
}

// GetAllSettings returns the stored record, or defaults when none exists.
func (s *Service) GetAllSettings(ctx context.Context) (types.Settings, error) {
	if v, ok := s.cache.Get(s.siteID); ok {
		return v.Clone(), nil
	}
	cur, err := s.load(ctx)
	if err != nil {
		return types.Settings{}, err
	}
	s.cache.Set(s.siteID, cur, s.cacheTTL)
	return cur.Clone(), nil
}

// GetSetting returns one value by its stable setting name. Integration flags that were
// never stored read as false.
func (s *Service) GetSetting(ctx context.Context, name string) (any, error) {
	cur, err := s.GetAllSettings(ctx)
	if err != nil {
		return nil, err
	}
	v, err := cur.Get(name)
	if errors.Is(err, types.ErrUnknownSetting) && s.isIntegrationSetting(name) {
		return false, nil
	}
	return v, err
}

// Query evaluates a JMESPath expression against the redacted record.
func (s *Service) Query(ctx context.Context, expression string) (any, error) {
	cur, err := s.GetAllSettings(ctx)
	if err != nil {
		return nil, err
	}
	return Query(cur.Redacted(), expression)
}

// Reset deletes the record and writes fresh defaults back.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.DeleteSettings(ctx, s.siteID); err != nil {
		return types.Err(types.ErrDataStoreAccess, err, "delete settings of %s", s.siteID)
	}
	s.cache.Delete(s.siteID)
	if err := s.persist(ctx, hooks.SettingsReset, types.DefaultSettings()); err != nil {
		return err
	}
	log.WithField("site", s.siteID).Info("Settings reset to defaults")
	return nil
}

// Bootstrap makes sure a record exists and announces it so the client and integrations
// can initialize.
func (s *Service) Bootstrap(ctx context.Context) (types.Settings, error) {
	cur, err := s.store.GetSettings(ctx, s.siteID)
	switch {
	case errors.Is(err, types.ErrNotFound):
		cur = types.DefaultSettings()
		if err := s.store.PutSettings(ctx, s.siteID, cur); err != nil {
			return types.Settings{}, types.Err(types.ErrDataStoreAccess, err, "write default settings of %s", s.siteID)
		}
		log.WithField("site", s.siteID).Info("Default settings written")
	case err != nil:
		return types.Settings{}, types.Err(types.ErrDataStoreAccess, err, "load settings of %s", s.siteID)
	}
	s.cache.Set(s.siteID, cur, s.cacheTTL)
	s.dispatch(ctx, hooks.SettingsLoaded, cur)
	return cur.Clone(), nil
}

// ForceAPIKey replaces the API key directly, without sanitizing or self-testing. It is the
// recovery path for operators locked out of the web settings page.
func (s *Service) ForceAPIKey(ctx context.Context, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("api key must not be empty")
	}
	cur, err := s.load(ctx)
	if err != nil {
		return err
	}
	cur.APIKey = apiKey
	log.WithField("site", s.siteID).Warn("API key overridden without self-test")
	return s.persist(ctx, hooks.SettingsUpdated, cur)
}

// ForceFlag sets one integration flag directly, without self-testing.
func (s *Service) ForceFlag(ctx context.Context, name string, value bool) error {
	if !s.isIntegrationSetting(name) {
		return types.Err(types.ErrUnknownSetting, nil, "%q is not an integration setting", name)
	}
	cur, err := s.load(ctx)
	if err != nil {
		return err
	}
	cur.SetFlag(name, value)
	log.WithFields(log.Fields{"site": s.siteID, "setting": name, "value": value}).
		Warn("Integration flag overridden without self-test")
	return s.persist(ctx, hooks.SettingsUpdated, cur)
}

// load reads the stored record, bypassing the cache. A missing record reads as defaults.
func (s *Service) load(ctx context.Context) (types.Settings, error) {
	cur, err := s.store.GetSettings(ctx, s.siteID)
	if errors.Is(err, types.ErrNotFound) {
		return types.DefaultSettings(), nil
	}
	if err != nil {
		return types.Settings{}, types.Err(types.ErrDataStoreAccess, err, "load settings of %s", s.siteID)
	}
	if cur.Flags == nil {
		cur.Flags = map[string]bool{}
	}
	return cur, nil
}

func (s *Service) persist(ctx context.Context, ev hooks.Event, next types.Settings) error {
	if err := s.store.PutSettings(ctx, s.siteID, next); err != nil {
		return types.Err(types.ErrDataStoreAccess, err, "save settings of %s", s.siteID)
	}
	s.cache.Delete(s.siteID)
	s.dispatch(ctx, ev, next)
	return nil
}

func (s *Service) dispatch(ctx context.Context, ev hooks.Event, cur types.Settings) {
	if err := s.dispatcher.Dispatch(ctx, ev, cur); err != nil {
		log.WithError(err).WithField("event", ev).Warn("Settings stored but some listeners failed")
	}
}

func (s *Service) isIntegrationSetting(name string) bool {
	for _, integration := range s.registry {
		for _, f := range integration.Fields() {
			if f.Setting == name {
				return true
			}
		}
	}
	return false
}

func selfTestResult(triggered, valid bool) string {
	switch {
	case !triggered:
		return "skipped"
	case valid:
		return "passed"
	default:
		return "failed"
	}
}
