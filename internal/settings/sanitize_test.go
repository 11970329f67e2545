package settings

import (
	"captchaguard/internal/types"

	"github.com/google/go-cmp/cmp"
)

func (s *UnitTestSuite) TestNormalizeDomain() {
	cases := map[string]string{
		"https://api.example.com/":     "example.com",
		"http://cdn.example.com//":     "example.com",
		"portal.example.com":           "example.com",
		"example.com":                  "example.com",
		"  example.com/":               "example.com",
		"https://www.example.com/path": "www.example.com/path",
		"":                             "",
	}
	for in, want := range cases {
		got := NormalizeDomain(in)
		s.Equal(want, got, "input %q", in)
		s.Equal(got, NormalizeDomain(got), "normalizing %q twice", in)
	}
}

func (s *UnitTestSuite) TestNormalizeStyles() {
	s.Equal("a:1; b:2; c:3;", NormalizeStyles("a:1;\n\n  b:2;\t\tc:3;"))
	s.Equal("a:1;", NormalizeStyles("  a:1;\r\n"))
	s.Equal("", NormalizeStyles(""))
}

func (s *UnitTestSuite) TestSanitizeEnumFallback() {
	in := validInput()
	in[types.SettingTheme] = "neon"
	in[types.SettingLanguage] = "xx"
	in[types.SettingStartMode] = "<b>click</b>"

	out, _ := Sanitize(in, types.DefaultSettings(), s.registry)
	s.Equal(types.ThemeLight, out.Theme)
	s.Equal(types.LanguageAuto, out.Language)
	s.Equal(types.StartModeAuto, out.StartMode)
	s.NoError(out.Validate())

	empty, _ := Sanitize(types.RawInput{}, types.DefaultSettings(), s.registry)
	s.Equal(types.ThemeLight, empty.Theme)
	s.Equal(types.LanguageAuto, empty.Language)
}

func (s *UnitTestSuite) TestSanitizeStrictBooleans() {
	for _, v := range []string{"true", "on", "yes", "0", " 1", "1 ", ""} {
		in := validInput()
		in[types.SettingDebugMode] = v
		in[types.SettingEUIsolation] = v
		in[types.SettingEnableCommentsGuest] = v
		out, _ := Sanitize(in, types.DefaultSettings(), s.registry)
		s.False(out.DebugMode, "value %q", v)
		s.False(out.EUIsolation, "value %q", v)
		s.False(out.Flag(types.SettingEnableCommentsGuest), "value %q", v)
	}

	in := withFlags(validInput(), types.SettingEUIsolation, types.SettingEnableCommentsGuest)
	out, _ := Sanitize(in, types.DefaultSettings(), s.registry)
	s.True(out.EUIsolation)
	s.True(out.Flag(types.SettingEnableCommentsGuest))
}

func (s *UnitTestSuite) TestSanitizeTextFields() {
	in := validInput()
	in[types.SettingAPIKey] = "  <script>x</script>pc_key\n"
	in[types.SettingSiteKey] = "site\tkey"
	in[types.SettingCustomStyles] = "<style>b</style>color: red;\n\nmargin: 0;"

	out, _ := Sanitize(in, types.DefaultSettings(), s.registry)
	s.Equal("pc_key", out.APIKey)
	s.Equal("site key", out.SiteKey)
	s.Equal("color: red; margin: 0;", out.CustomStyles)
}

func (s *UnitTestSuite) TestSanitizeEncodedTags() {
	in := validInput()
	in[types.SettingCustomStyles] = "&lt;style&gt;x&lt;/style&gt;a:1;"
	in[types.SettingSiteKey] = "&amp;lt;script&amp;gt;alert(1)&amp;lt;/script&amp;gt;site"
	in[types.SettingAPIKey] = "pc_a&amp;b"

	out, _ := Sanitize(in, types.DefaultSettings(), s.registry)
	s.Equal("a:1;", out.CustomStyles)
	s.Equal("site", out.SiteKey)
	s.Equal("pc_a&b", out.APIKey)

	for _, in := range []string{
		"&lt;style&gt;x&lt;/style&gt;",
		"&#60;img src=x onerror=alert(1)&#62;",
		"&amp;amp;lt;b&amp;amp;gt;bold",
	} {
		got := stripTags(in)
		s.NotContains(got, "<", "input %q", in)
		s.Equal(got, stripTags(got), "stripping %q twice", in)
	}
}

func (s *UnitTestSuite) TestSanitizeDiagnostics() {
	_, diags := Sanitize(types.RawInput{}, types.DefaultSettings(), s.registry)
	s.True(diags.HasErrors())
	s.True(diags.Has(types.DiagAPIKeyRequired))
	s.True(diags.Has(types.DiagSiteKeyRequired))

	in := validInput()
	in[types.SettingSiteKey] = types.DemoSiteKey
	_, diags = Sanitize(in, types.DefaultSettings(), s.registry)
	s.False(diags.HasErrors())
	s.True(diags.Has(types.DiagStubSiteKey))
}

func (s *UnitTestSuite) TestSanitizeKeepsUnavailableIntegrationFlags() {
	previous := types.DefaultSettings()
	previous.SetFlag(types.SettingContactForm7Enable, true)

	// Contact Form 7 is unavailable: the submitted value is ignored.
	in := validInput()
	out, _ := Sanitize(in, previous, s.registry)
	s.True(out.Flag(types.SettingContactForm7Enable))

	previous.SetFlag(types.SettingContactForm7Enable, false)
	out, _ = Sanitize(withFlags(validInput(), types.SettingContactForm7Enable), previous, s.registry)
	s.False(out.Flag(types.SettingContactForm7Enable))
}

func (s *UnitTestSuite) TestSanitizeFullRecord() {
	in := withFlags(validInput(), types.SettingEnableLogin)
	in[types.SettingCustomDomain] = "https://api.example.com/"

	out, _ := Sanitize(in, types.DefaultSettings(), s.registry)
	want := types.Settings{
		Version:      types.SettingsSchemaVersion,
		APIKey:       "pc_abcdef0123456789",
		SiteKey:      "0123456789abcdef0123456789abcdef",
		CustomDomain: "example.com",
		Theme:        types.ThemeDark,
		Language:     "de",
		StartMode:    types.StartModeClick,
		DebugMode:    true,
		Flags: map[string]bool{
			types.SettingEnableLogin:            true,
			types.SettingEnableRegistration:     false,
			types.SettingEnableResetPassword:    false,
			types.SettingEnableCommentsLoggedIn: false,
			types.SettingEnableCommentsGuest:    false,
			types.SettingWPFormsEnable:          false,
			types.SettingContactForm7Enable:     false,
		},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		s.Failf("unexpected record", "(-want +got):\n%s", diff)
	}
}
