// Package app wires the settings service, the captcha client and the form integrations
// together for the HTTP server and the CLI.
package app

import (
	"captchaguard/internal/backends"
	"captchaguard/internal/captcha"
	"captchaguard/internal/hooks"
	"captchaguard/internal/integrations"
	"captchaguard/internal/ports"
	"captchaguard/internal/pub"
	"captchaguard/internal/settings"
	"captchaguard/internal/types"
	"context"

	log "github.com/sirupsen/logrus"
)

type App struct {
	Config       Config
	Store        ports.SettingsStore
	Limiter      ports.RateLimiter
	Holder       *captcha.Holder
	Integrations *integrations.Manager
	Settings     *settings.Service
}

// Deps are the outside-world collaborators of an App. Publisher may be nil.
type Deps struct {
	Store          ports.SettingsStore
	Limiter        ports.RateLimiter
	Publisher      ports.Publisher
	Env            integrations.Environment
	CaptchaOptions []captcha.Option
}

func New(cfg Config, deps Deps) *App {
	registry := integrations.Builtin(deps.Env)
	holder := captcha.NewHolder(deps.CaptchaOptions...)
	manager := integrations.NewManager(func() integrations.Verifier {
		// Keep the interface nil when there is no client.
		if c := holder.Current(); c != nil {
			return c
		}
		return nil
	}, registry...)

	d := hooks.NewDispatcher()
	d.RegisterAll(hooks.PriorityClient, "captcha_client", holder)
	d.RegisterAll(hooks.PriorityIntegrations, "integrations", manager)
	if deps.Publisher != nil && cfg.SNSTopicArn != "" {
		d.RegisterAll(hooks.PriorityNotify, "sns_notifier", pub.NewNotifier(cfg.SiteID, cfg.SNSTopicArn, deps.Publisher))
	}

	svc := settings.NewService(cfg.SiteID, deps.Store, registry, settings.Options{
		Gate:       settings.Gate{NewRemote: settings.ClientFactory(deps.CaptchaOptions...)},
		Guard:      settings.Guard{Strict: cfg.StrictGuard},
		Dispatcher: d,
	})
	// Records written by another process (the CLI recovery commands) reach this instance
	// through the service cache, within its TTL.
	manager.SetSettingsSource(func(ctx context.Context) (types.Settings, error) {
		cur, err := svc.GetAllSettings(ctx)
		if err != nil {
			return cur, err
		}
		if err := holder.Sync(cur); err != nil {
			log.WithError(err).Warn("Failed to sync captcha client")
		}
		return cur, nil
	})

	return &App{
		Config:       cfg,
		Store:        deps.Store,
		Limiter:      deps.Limiter,
		Holder:       holder,
		Integrations: manager,
		Settings:     svc,
	}
}

// FromEnv builds an App from the environment: backends, optional SNS publisher and the
// list of active plugins.
func FromEnv(ctx context.Context) (*App, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	store, err := backends.SettingsBackendFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	limiter, err := backends.RateLimiterFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	deps := Deps{Store: store, Limiter: limiter, Env: integrations.EnvironmentFromEnv()}
	if cfg.SNSTopicArn != "" {
		snsClient, err := pub.SNSClientFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		deps.Publisher = pub.NewSNS(snsClient)
	}
	log.WithFields(log.Fields{
		"site":   cfg.SiteID,
		"strict": cfg.StrictGuard,
		"sns":    cfg.SNSTopicArn != "",
	}).Debug("Application configured")
	return New(cfg, deps), nil
}

// Start loads the stored record and brings the client and integrations up to date.
func (a *App) Start(ctx context.Context) error {
	_, err := a.Settings.Bootstrap(ctx)
	return err
}
