package settings

import (
	"captchaguard/internal/captcha"
	"captchaguard/internal/hooks"
	"captchaguard/internal/types"
	"context"
	"errors"
	"time"
)

func (s *UnitTestSuite) TestNoSelfTestWithoutGating() {
	ctx := context.Background()
	saved, diags, err := s.svc.ValidateAndPersist(ctx, validInput())
	s.NoError(err)
	s.False(diags.HasErrors())
	s.Equal(0, s.remote.calls)
	s.Empty(s.apiKeys)
	s.Equal(types.ThemeDark, saved.Theme)

	stored, err := s.store.GetSettings(ctx, testSiteID)
	s.NoError(err)
	s.Equal(saved, stored)
	s.Equal([]hooks.Event{hooks.SettingsUpdated}, s.events)
}

func (s *UnitTestSuite) TestNoSelfTestWithoutCredentials() {
	in := withFlags(types.RawInput{}, types.SettingEnableLogin)
	saved, diags, err := s.svc.ValidateAndPersist(context.Background(), in)
	s.NoError(err)
	s.Equal(0, s.remote.calls)
	s.True(diags.Has(types.DiagAPIKeyRequired))
	s.False(diags.Has(types.DiagSettingsTestFailed))
	s.True(saved.Flag(types.SettingEnableLogin))
}

func (s *UnitTestSuite) TestSelfTestPasses() {
	in := withFlags(validInput(), types.SettingEnableLogin, types.SettingWPFormsEnable)
	saved, diags, err := s.svc.ValidateAndPersist(context.Background(), in)
	s.NoError(err)
	s.Empty(diags)
	s.Equal(1, s.remote.calls)
	s.Equal([]string{"pc_abcdef0123456789"}, s.apiKeys)
	s.Equal("0123456789abcdef0123456789abcdef", s.remote.sitekey)
	s.Equal([]string{types.SettingEnableLogin, types.SettingWPFormsEnable}, saved.EnabledFlags())
}

func (s *UnitTestSuite) TestSelfTestFailureDisablesGating() {
	failures := map[string]func(){
		"wrong code": func() { s.remote.out = &captcha.VerifyOutput{Success: true, Code: captcha.NoError} },
		"not success": func() {
			s.remote.out = &captcha.VerifyOutput{Success: false, Code: captcha.TestPropertyError}
		},
		"invalid property": func() {
			s.remote.out = &captcha.VerifyOutput{Success: false, Code: captcha.InvalidPropertyError}
		},
		"puzzle error": func() { s.remote.err = errors.New("connection refused") },
		"nil result":   func() { s.remote.out = nil },
	}
	for name, setup := range failures {
		s.Run(name, func() {
			s.SetupTest()
			setup()
			in := withFlags(validInput(), types.SettingEnableLogin, types.SettingEnableCommentsGuest)
			in[types.SettingCustomStyles] = "a:1;"

			saved, diags, err := s.svc.ValidateAndPersist(context.Background(), in)
			s.NoError(err)
			s.True(diags.Has(types.DiagSettingsTestFailed))
			s.Empty(saved.EnabledFlags())

			// Everything that does not gate a flow is kept as submitted.
			s.Equal("pc_abcdef0123456789", saved.APIKey)
			s.Equal(types.ThemeDark, saved.Theme)
			s.Equal(types.StartModeClick, saved.StartMode)
			s.True(saved.DebugMode)
			s.Equal("a:1;", saved.CustomStyles)

			stored, err := s.store.GetSettings(context.Background(), testSiteID)
			s.NoError(err)
			s.Empty(stored.EnabledFlags())
		})
	}
}

func (s *UnitTestSuite) TestSelfTestClientFactoryError() {
	in := withFlags(validInput(), types.SettingEnableLogin)
	in[types.SettingAPIKey] = "broken"
	saved, diags, err := s.svc.ValidateAndPersist(context.Background(), in)
	s.NoError(err)
	s.True(diags.Has(types.DiagSettingsTestFailed))
	s.False(saved.Flag(types.SettingEnableLogin))
	s.Equal(0, s.remote.calls)
}

func (s *UnitTestSuite) TestUnavailableIntegrationIgnoredByGate() {
	ctx := context.Background()
	prev := types.DefaultSettings()
	prev.SetFlag(types.SettingContactForm7Enable, true)
	s.NoError(s.store.PutSettings(ctx, testSiteID, prev))

	// Only the unavailable integration is on: no self-test, flag untouched.
	saved, _, err := s.svc.ValidateAndPersist(ctx, validInput())
	s.NoError(err)
	s.Equal(0, s.remote.calls)
	s.True(saved.Flag(types.SettingContactForm7Enable))

	// A failing test clamps available gating flags only.
	s.remote.out = &captcha.VerifyOutput{Success: false, Code: captcha.ErrorOther}
	saved, diags, err := s.svc.ValidateAndPersist(ctx, withFlags(validInput(), types.SettingEnableLogin))
	s.NoError(err)
	s.True(diags.Has(types.DiagSettingsTestFailed))
	s.False(saved.Flag(types.SettingEnableLogin))
	s.True(saved.Flag(types.SettingContactForm7Enable))
}

func (s *UnitTestSuite) TestStrictGuard() {
	svc := s.newService(Guard{Strict: true})
	in := withFlags(types.RawInput{}, types.SettingEnableLogin)
	saved, diags, err := svc.ValidateAndPersist(context.Background(), in)
	s.NoError(err)
	s.True(diags.Has(types.DiagSettingsUntested))
	s.False(saved.Flag(types.SettingEnableLogin))
	s.Equal(0, s.remote.calls)

	// With nothing requested the strict guard stays quiet.
	_, diags, err = svc.ValidateAndPersist(context.Background(), types.RawInput{})
	s.NoError(err)
	s.False(diags.Has(types.DiagSettingsUntested))
}

func (s *UnitTestSuite) TestStoreFailure() {
	store := &failingStore{SettingsStore: s.store, putErr: errors.New("throttled")}
	svc := NewService(testSiteID, store, s.registry, Options{Gate: Gate{NewRemote: s.factory}, Dispatcher: s.dispatcher})

	_, diags, err := svc.ValidateAndPersist(context.Background(), types.RawInput{})
	s.ErrorIs(err, types.ErrDataStoreAccess)
	s.True(diags.Has(types.DiagAPIKeyRequired))
	s.Empty(s.events)
}

func (s *UnitTestSuite) TestAccessors() {
	ctx := context.Background()
	s.False(s.svc.IsConfigured(ctx))

	all, err := s.svc.GetAllSettings(ctx)
	s.NoError(err)
	s.Equal(types.DefaultSettings(), all)

	_, _, err = s.svc.ValidateAndPersist(ctx, withFlags(validInput(), types.SettingEnableLogin))
	s.NoError(err)
	s.True(s.svc.IsConfigured(ctx))

	v, err := s.svc.GetSetting(ctx, types.SettingTheme)
	s.NoError(err)
	s.Equal("dark", v)

	v, err = s.svc.GetSetting(ctx, types.SettingEnableLogin)
	s.NoError(err)
	s.Equal(true, v)

	_, err = s.svc.GetSetting(ctx, "bogus")
	s.ErrorIs(err, types.ErrUnknownSetting)

	// Callers cannot mutate the cached record.
	all, _ = s.svc.GetAllSettings(ctx)
	all.SetFlag(types.SettingEnableLogin, false)
	again, _ := s.svc.GetAllSettings(ctx)
	s.True(again.Flag(types.SettingEnableLogin))
}

func (s *UnitTestSuite) TestGetSettingUnsetIntegrationFlag() {
	v, err := s.svc.GetSetting(context.Background(), types.SettingWPFormsEnable)
	s.NoError(err)
	s.Equal(false, v)
}

func (s *UnitTestSuite) TestCacheExpiry() {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	SetTimeNowFn(func() time.Time { return now })

	_, err := s.svc.GetAllSettings(ctx)
	s.NoError(err)

	// Out-of-band writes show up once the cached copy expires.
	rec := types.DefaultSettings()
	rec.Theme = types.ThemeDark
	s.NoError(s.store.PutSettings(ctx, testSiteID, rec))
	cur, _ := s.svc.GetAllSettings(ctx)
	s.Equal(types.ThemeLight, cur.Theme)

	now = now.Add(DefaultCacheTTL + time.Second)
	cur, _ = s.svc.GetAllSettings(ctx)
	s.Equal(types.ThemeDark, cur.Theme)
}

func (s *UnitTestSuite) TestQueryRedactsAPIKey() {
	ctx := context.Background()
	_, _, err := s.svc.ValidateAndPersist(ctx, withFlags(validInput(), types.SettingEnableLogin))
	s.NoError(err)

	v, err := s.svc.Query(ctx, "api_key")
	s.NoError(err)
	s.Equal("********6789", v)

	v, err = s.svc.Query(ctx, "flags.enable_login")
	s.NoError(err)
	s.Equal(true, v)

	v, err = s.svc.Query(ctx, "[theme, language]")
	s.NoError(err)
	s.Equal([]any{"dark", "de"}, v)

	_, err = s.svc.Query(ctx, "[[")
	s.Error(err)
}

func (s *UnitTestSuite) TestReset() {
	ctx := context.Background()
	_, _, err := s.svc.ValidateAndPersist(ctx, withFlags(validInput(), types.SettingEnableLogin))
	s.NoError(err)

	s.NoError(s.svc.Reset(ctx))
	stored, err := s.store.GetSettings(ctx, testSiteID)
	s.NoError(err)
	s.Equal(types.DefaultSettings(), stored)
	s.Equal([]hooks.Event{hooks.SettingsUpdated, hooks.SettingsReset}, s.events)
	s.False(s.svc.IsConfigured(ctx))
}

func (s *UnitTestSuite) TestBootstrap() {
	ctx := context.Background()
	cur, err := s.svc.Bootstrap(ctx)
	s.NoError(err)
	s.Equal(types.DefaultSettings(), cur)
	_, err = s.store.GetSettings(ctx, testSiteID)
	s.NoError(err)

	rec := types.DefaultSettings()
	rec.APIKey = "k"
	s.NoError(s.store.PutSettings(ctx, testSiteID, rec))
	cur, err = s.svc.Bootstrap(ctx)
	s.NoError(err)
	s.Equal("k", cur.APIKey)
	s.Equal([]hooks.Event{hooks.SettingsLoaded, hooks.SettingsLoaded}, s.events)
}

func (s *UnitTestSuite) TestForceOverrides() {
	ctx := context.Background()
	_, _, err := s.svc.ValidateAndPersist(ctx, withFlags(validInput(), types.SettingEnableLogin))
	s.NoError(err)

	s.Error(s.svc.ForceAPIKey(ctx, "   "))
	s.NoError(s.svc.ForceAPIKey(ctx, " new-key "))
	s.NoError(s.svc.ForceFlag(ctx, types.SettingEnableLogin, false))
	s.ErrorIs(s.svc.ForceFlag(ctx, "theme", true), types.ErrUnknownSetting)

	stored, err := s.store.GetSettings(ctx, testSiteID)
	s.NoError(err)
	s.Equal("new-key", stored.APIKey)
	s.False(stored.Flag(types.SettingEnableLogin))
	s.Equal(types.ThemeDark, stored.Theme)
	// Overrides never run the self-test.
	s.Equal(1, s.remote.calls)
}
