package widget

import (
	"captchaguard/internal/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configured() types.Settings {
	s := types.DefaultSettings()
	s.APIKey = "pc_key"
	s.SiteKey = "0123456789abcdef0123456789abcdef"
	return s
}

func TestRenderAttributes(t *testing.T) {
	cases := []struct {
		name    string
		edit    func(s *types.Settings)
		opts    Options
		want    []string
		notWant []string
	}{
		{
			name: "defaults",
			want: []string{
				`<div class="private-captcha"`,
				`data-solution-field="private-captcha-solution"`,
				`data-sitekey="0123456789abcdef0123456789abcdef"`,
				`data-theme="light"`,
				`data-display-mode="widget"`,
				`data-start-mode="auto"`,
				`data-lang="auto"`,
				`></div>`,
			},
			notWant: []string{"data-debug", "data-eu", "data-puzzle-endpoint", "data-styles"},
		},
		{
			name: "stored choices",
			edit: func(s *types.Settings) {
				s.Theme = types.ThemeDark
				s.StartMode = types.StartModeClick
				s.Language = "fr"
			},
			want: []string{`data-theme="dark"`, `data-start-mode="click"`, `data-lang="fr"`},
		},
		{
			name: "extra class",
			opts: Options{Class: "wpforms-field"},
			want: []string{`class="private-captcha wpforms-field"`},
		},
		{
			name: "debug",
			edit: func(s *types.Settings) { s.DebugMode = true },
			want: []string{`data-debug="true"`},
		},
		{
			name:    "eu isolation",
			edit:    func(s *types.Settings) { s.EUIsolation = true },
			want:    []string{`data-eu="true"`},
			notWant: []string{"data-puzzle-endpoint"},
		},
		{
			name: "custom domain wins over eu isolation",
			edit: func(s *types.Settings) {
				s.CustomDomain = "example.com"
				s.EUIsolation = true
			},
			want:    []string{`data-puzzle-endpoint="https://api.example.com/puzzle"`},
			notWant: []string{"data-eu"},
		},
		{
			name: "custom domain with api prefix",
			edit: func(s *types.Settings) { s.CustomDomain = "api.example.com" },
			want: []string{`data-puzzle-endpoint="https://api.example.com/puzzle"`},
		},
		{
			name: "default styles",
			opts: Presets[types.SettingEnableLogin],
			want: []string{`data-styles="display: block; min-width: 0; height: 100%; --border-radius: 0.25rem;"`},
		},
		{
			name: "custom styles replace defaults",
			edit: func(s *types.Settings) { s.CustomStyles = "color: red; margin: 0;" },
			opts: Presets[types.SettingEnableLogin],
			want: []string{`data-styles="color: red; margin: 0;"`},
		},
		{
			name: "theme override",
			opts: Options{Theme: types.ThemeDark},
			want: []string{`data-theme="dark"`},
		},
		{
			name: "unknown theme override is ignored",
			opts: Options{Theme: "neon"},
			want: []string{`data-theme="light"`},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := configured()
			if tc.edit != nil {
				tc.edit(&s)
			}
			got, err := Render(s, tc.opts)
			require.NoError(t, err)
			for _, w := range tc.want {
				assert.Contains(t, string(got), w)
			}
			for _, w := range tc.notWant {
				assert.NotContains(t, string(got), w)
			}
		})
	}
}

func TestRenderUnconfigured(t *testing.T) {
	for _, edit := range []func(s *types.Settings){
		func(s *types.Settings) { s.APIKey = "" },
		func(s *types.Settings) { s.SiteKey = "" },
	} {
		s := configured()
		edit(&s)
		got, err := Render(s, Presets[types.SettingEnableLogin])
		require.NoError(t, err)
		assert.Empty(t, got)

		snippet, err := Snippet(s, Options{})
		require.NoError(t, err)
		assert.Empty(t, snippet)
	}
}

func TestRenderEscapesValues(t *testing.T) {
	s := configured()
	s.SiteKey = `x"><script>alert(1)</script>`
	got, err := Render(s, Options{Class: `a" onclick="b`})
	require.NoError(t, err)
	assert.NotContains(t, string(got), "<script>")
	assert.NotContains(t, string(got), `" onclick="`)
	assert.Contains(t, string(got), `data-sitekey="x&#34;&gt;&lt;script&gt;alert(1)&lt;/script&gt;"`)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, "wpforms-field", Presets[types.SettingWPFormsEnable].Class)
	assert.Equal(t, "wpcf7-form-control", Presets[types.SettingContactForm7Enable].Class)
	assert.Equal(t, "--border-radius: 0.25rem;", Presets[types.SettingEnableCommentsGuest].DefaultStyles)
	assert.Len(t, Presets, 7)
}

func TestSnippet(t *testing.T) {
	got, err := Snippet(configured(), Options{})
	require.NoError(t, err)
	assert.Contains(t, string(got),
		`<script type="text/javascript" src="https://cdn.privatecaptcha.com/widget/js/privatecaptcha.js" defer></script>`)
	assert.Contains(t, string(got), `<div class="private-captcha"`)

	s := configured()
	s.CustomDomain = "example.com"
	got, err = Snippet(s, Options{})
	require.NoError(t, err)
	assert.Contains(t, string(got), `src="https://cdn.example.com/widget/js/privatecaptcha.js"`)
}

func TestDomainURLs(t *testing.T) {
	assert.Equal(t, "https://api.example.com/puzzle", PuzzleEndpoint("example.com"))
	assert.Equal(t, "https://api.example.com/puzzle", PuzzleEndpoint("api.example.com"))
	assert.Equal(t, "https://cdn.privatecaptcha.com/widget/js/privatecaptcha.js", ScriptURL(""))
	assert.Equal(t, "https://cdn.example.com/widget/js/privatecaptcha.js", ScriptURL("cdn.example.com"))
}
