package settings

import (
	"captchaguard/internal/captcha"
	"captchaguard/internal/integrations"
	"captchaguard/internal/types"
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// RemoteFactory builds a verification remote for candidate credentials.
type RemoteFactory func(apiKey, customDomain string, euIsolation bool) (captcha.Remote, error)

// ClientFactory returns a RemoteFactory producing real API clients.
func ClientFactory(opts ...captcha.Option) RemoteFactory {
	return func(apiKey, customDomain string, euIsolation bool) (captcha.Remote, error) {
		c, err := captcha.New(apiKey, customDomain, euIsolation, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Gate runs the live self-test before a record that enables gating integrations is
// persisted.
type Gate struct {
	NewRemote RemoteFactory
	// Timeout bounds the whole self-test round trip. Zero means captcha.DefaultTimeout.
	Timeout time.Duration
}

// Triggered reports whether the candidate needs a self-test: some gating field of an
// available integration is enabled and both credentials are present.
func (g Gate) Triggered(candidate types.Settings, registry []integrations.Integration) bool {
	return candidate.Configured() && gatingRequested(candidate, registry)
}

// Run self-tests the candidate's own credentials, never the persisted ones. It does not
// return errors: anything that goes wrong is a failed test.
func (g Gate) Run(ctx context.Context, candidate types.Settings) bool {
	factory := g.NewRemote
	if factory == nil {
		factory = ClientFactory()
	}
	remote, err := factory(candidate.APIKey, candidate.CustomDomain, candidate.EUIsolation)
	if err != nil {
		log.WithError(err).Warn("Settings self-test: failed to create client")
		return false
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = captcha.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return captcha.SelfTest(ctx, remote, candidate.SiteKey)
}

// availableGating lists the gating settings of integrations that are currently available.
func availableGating(registry []integrations.Integration) []string {
	var out []string
	for _, integration := range registry {
		if !integration.Available() {
			continue
		}
		for _, f := range integration.Fields() {
			if f.Gating {
				out = append(out, f.Setting)
			}
		}
	}
	return out
}

func gatingRequested(s types.Settings, registry []integrations.Integration) bool {
	for _, name := range availableGating(registry) {
		if s.Flag(name) {
			return true
		}
	}
	return false
}
