// Package widget renders the Private Captcha widget markup that protected forms embed.
package widget

import (
	"captchaguard/internal/captcha"
	"captchaguard/internal/types"
	"html/template"
	"slices"
	"strings"
)

const (
	baseClass     = "private-captcha"
	defaultDomain = "privatecaptcha.com"
)

// Options are chosen by the form surface embedding the widget.
type Options struct {
	// DefaultStyles apply when the site has no custom styles.
	DefaultStyles string
	// Class is appended to the base class.
	Class string
	// Theme overrides the stored theme when it is one of types.Themes.
	Theme types.Theme
}

const (
	coreStyles    = "display: block; min-width: 0; height: 100%; --border-radius: 0.25rem;"
	compactStyles = "--border-radius: 0.25rem;"
)

// Presets holds the options of each built-in form surface, keyed by its setting name.
var Presets = map[string]Options{
	types.SettingEnableLogin:            {DefaultStyles: coreStyles},
	types.SettingEnableRegistration:     {DefaultStyles: coreStyles},
	types.SettingEnableResetPassword:    {DefaultStyles: coreStyles},
	types.SettingEnableCommentsLoggedIn: {DefaultStyles: compactStyles},
	types.SettingEnableCommentsGuest:    {DefaultStyles: compactStyles},
	types.SettingWPFormsEnable:          {DefaultStyles: "--border-radius: 0.25rem; font-size: 1rem !important;", Class: "wpforms-field"},
	types.SettingContactForm7Enable:     {DefaultStyles: compactStyles, Class: "wpcf7-form-control"},
}

type view struct {
	Class          string
	SolutionField  string
	SiteKey        string
	Theme          types.Theme
	StartMode      types.StartMode
	Language       types.Language
	Debug          bool
	PuzzleEndpoint string
	EU             bool
	Styles         string
}

var (
	widgetTmpl = template.Must(template.New("widget").Parse(
		`<div class="{{.Class}}" data-solution-field="{{.SolutionField}}" data-sitekey="{{.SiteKey}}"` +
			` data-theme="{{.Theme}}" data-display-mode="widget" data-start-mode="{{.StartMode}}" data-lang="{{.Language}}"` +
			`{{if .Debug}} data-debug="true"{{end}}` +
			`{{if .PuzzleEndpoint}} data-puzzle-endpoint="{{.PuzzleEndpoint}}"{{else if .EU}} data-eu="true"{{end}}` +
			`{{if .Styles}} data-styles="{{.Styles}}"{{end}}></div>`))

	scriptTmpl = template.Must(template.New("script").Parse(
		`<script type="text/javascript" src="{{.}}" defer></script>`))
)

// Render returns the widget element for s, or nothing when the site is not configured.
func Render(s types.Settings, opts Options) (template.HTML, error) {
	if !s.Configured() {
		return "", nil
	}
	v := view{
		Class:         baseClass,
		SolutionField: captcha.FormField,
		SiteKey:       s.SiteKey,
		Theme:         s.Theme,
		StartMode:     s.StartMode,
		Language:      s.Language,
		Debug:         s.DebugMode,
		Styles:        s.CustomStyles,
	}
	if opts.Class != "" {
		v.Class += " " + opts.Class
	}
	if slices.Contains(types.Themes, opts.Theme) {
		v.Theme = opts.Theme
	}
	if s.CustomDomain != "" {
		v.PuzzleEndpoint = PuzzleEndpoint(s.CustomDomain)
	} else {
		v.EU = s.EUIsolation
	}
	if v.Styles == "" {
		v.Styles = opts.DefaultStyles
	}

	var sb strings.Builder
	if err := widgetTmpl.Execute(&sb, v); err != nil {
		return "", err
	}
	return template.HTML(sb.String()), nil
}

// Snippet is the widget element preceded by the script that loads it.
func Snippet(s types.Settings, opts Options) (template.HTML, error) {
	div, err := Render(s, opts)
	if err != nil || div == "" {
		return "", err
	}
	var sb strings.Builder
	if err := scriptTmpl.Execute(&sb, ScriptURL(s.CustomDomain)); err != nil {
		return "", err
	}
	sb.WriteString("\n")
	sb.WriteString(string(div))
	return template.HTML(sb.String()), nil
}

// PuzzleEndpoint is the puzzle URL the widget uses on a custom domain.
func PuzzleEndpoint(customDomain string) string {
	return "https://api." + strings.TrimPrefix(customDomain, "api.") + "/puzzle"
}

// ScriptURL is the widget script location, served from the custom domain when one is set.
func ScriptURL(customDomain string) string {
	d := strings.TrimPrefix(customDomain, "cdn.")
	if d == "" {
		d = defaultDomain
	}
	return "https://cdn." + d + "/widget/js/privatecaptcha.js"
}
