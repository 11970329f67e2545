package app

import (
	"captchaguard/internal/backends/memory"
	"captchaguard/internal/integrations"
	"captchaguard/internal/settings"
	"captchaguard/internal/types"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type publishCounter struct{ n int }

func (p *publishCounter) PublishRaw(context.Context, string, []byte) error {
	p.n++
	return nil
}

type AppTestSuite struct {
	suite.Suite

	pub *publishCounter
	app *App
}

func TestAppTestSuite(t *testing.T) {
	suite.Run(t, new(AppTestSuite))
}

func (s *AppTestSuite) SetupTest() {
	s.pub = &publishCounter{}
	s.app = New(Config{SiteID: "blog", SNSTopicArn: "arn:topic"}, Deps{
		Store:     memory.NewSettingsStore(),
		Limiter:   memory.NewRateLimiter(),
		Publisher: s.pub,
		Env:       integrations.NewStaticEnvironment(),
	})
}

func (s *AppTestSuite) TestListenerOrder() {
	s.Equal([]string{"captcha_client", "integrations", "sns_notifier"},
		s.app.Settings.Dispatcher().Listeners("settings_updated"))
}

func (s *AppTestSuite) TestStartAndSave() {
	ctx := context.Background()
	s.NoError(s.app.Start(ctx))
	s.Nil(s.app.Holder.Current())
	s.Equal(0, s.pub.n)

	_, diags, err := s.app.Settings.ValidateAndPersist(ctx, types.RawInput{
		types.SettingAPIKey:       "pc_key",
		types.SettingSiteKey:      "site",
		types.SettingCustomDomain: "https://api.example.org",
	})
	s.NoError(err)
	s.False(diags.HasErrors())
	s.Require().NotNil(s.app.Holder.Current())
	s.Equal("api.example.org", s.app.Holder.Current().Domain())
	s.Equal(1, s.pub.n)

	s.NoError(s.app.Settings.Reset(ctx))
	s.Nil(s.app.Holder.Current())
	s.False(s.app.Integrations.Active(types.SettingEnableLogin))
	s.Equal(2, s.pub.n)
}

func (s *AppTestSuite) TestNoNotifierWithoutTopic() {
	a := New(Config{SiteID: "blog"}, Deps{Store: memory.NewSettingsStore(), Publisher: s.pub})
	s.Equal([]string{"captcha_client", "integrations"}, a.Settings.Dispatcher().Listeners("settings_reset"))
}

func (s *AppTestSuite) TestConfigFromEnv() {
	s.T().Setenv(PortEnvKey, "")
	s.T().Setenv(SiteIDEnvKey, "")
	s.T().Setenv(SaveRPMEnvKey, "")
	s.T().Setenv(StrictGuardEnvKey, "true")
	s.T().Setenv(TrustProxyEnvKey, "")
	cfg, err := ConfigFromEnv()
	s.NoError(err)
	s.False(cfg.TrustProxy)
	s.Equal(DefaultPort, cfg.Port)
	s.Equal(DefaultSiteID, cfg.SiteID)
	s.Equal(DefaultSaveRPM, cfg.SaveRPM)
	s.True(cfg.StrictGuard)

	s.T().Setenv(TrustProxyEnvKey, "true")
	cfg, err = ConfigFromEnv()
	s.NoError(err)
	s.True(cfg.TrustProxy)

	s.T().Setenv(PortEnvKey, "eighty")
	_, err = ConfigFromEnv()
	s.ErrorContains(err, PortEnvKey)

	s.T().Setenv(PortEnvKey, "9000")
	s.T().Setenv(SaveRPMEnvKey, "-1")
	_, err = ConfigFromEnv()
	s.ErrorContains(err, SaveRPMEnvKey)
}

func (s *AppTestSuite) TestServerFollowsRecoveryCommands() {
	ctx := context.Background()
	store := memory.NewSettingsStore()
	seeded := types.DefaultSettings()
	seeded.APIKey = "pc_key"
	seeded.SiteKey = "site"
	seeded.SetFlag(types.SettingEnableLogin, true)
	s.Require().NoError(store.PutSettings(ctx, "blog", seeded))

	server := New(Config{SiteID: "blog"}, Deps{Store: store, Env: integrations.NewStaticEnvironment()})
	cli := New(Config{SiteID: "blog"}, Deps{Store: store, Env: integrations.NewStaticEnvironment()})
	s.Require().NoError(server.Start(ctx))
	s.ErrorIs(server.Integrations.Verify(ctx, types.SettingEnableLogin, nil), types.ErrVerificationFailed)
	before := server.Holder.Current()
	s.Require().NotNil(before)

	s.NoError(cli.Settings.ForceFlag(ctx, types.SettingEnableLogin, false))
	s.NoError(cli.Settings.ForceAPIKey(ctx, "pc_rotated"))

	// Within the cache TTL the server still serves what it last read.
	s.ErrorIs(server.Integrations.Verify(ctx, types.SettingEnableLogin, nil), types.ErrVerificationFailed)
	s.Same(before, server.Holder.Current())

	later := time.Now().Add(settings.DefaultCacheTTL + time.Second)
	settings.SetTimeNowFn(func() time.Time { return later })
	defer settings.RestoreTimeNow()

	s.NoError(server.Integrations.Verify(ctx, types.SettingEnableLogin, nil))
	s.False(server.Integrations.Active(types.SettingEnableLogin))
	s.Require().NotNil(server.Holder.Current())
	s.NotSame(before, server.Holder.Current())
}
