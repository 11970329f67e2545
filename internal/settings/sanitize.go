package settings

import (
	"captchaguard/internal/integrations"
	"captchaguard/internal/types"
	"html"
	"slices"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	schemePrefixes    = []string{"https://", "http://"}
	subdomainPrefixes = []string{"api.", "cdn.", "portal."}

	tagPolicy = bluemonday.StrictPolicy()
)

// maxStripPasses bounds how many layers of entity encoding stripTags unwraps.
const maxStripPasses = 8

// Sanitize turns untrusted input into a complete candidate record. It never fails: every
// field falls back to its default, and problems are reported as diagnostics.
// Flags of integrations that are currently unavailable keep their value from previous.
func Sanitize(in types.RawInput, previous types.Settings, registry []integrations.Integration) (types.Settings, types.Diagnostics) {
	var diags types.Diagnostics
	out := types.DefaultSettings()

	out.APIKey = cleanText(lookup(in, types.SettingAPIKey))
	out.SiteKey = cleanText(lookup(in, types.SettingSiteKey))
	out.CustomDomain = NormalizeDomain(cleanText(lookup(in, types.SettingCustomDomain)))
	out.EUIsolation = checked(in, types.SettingEUIsolation)

	out.Theme = oneOf(types.Theme(lookup(in, types.SettingTheme)), types.Themes, types.ThemeLight)
	out.Language = oneOf(types.Language(lookup(in, types.SettingLanguage)), types.Languages, types.LanguageAuto)
	out.StartMode = oneOf(types.StartMode(lookup(in, types.SettingStartMode)), types.StartModes, types.StartModeAuto)

	out.CustomStyles = NormalizeStyles(cleanTextarea(lookup(in, types.SettingCustomStyles)))
	out.DebugMode = checked(in, types.SettingDebugMode)

	for _, integration := range registry {
		available := integration.Available()
		for _, f := range integration.Fields() {
			if !available {
				out.SetFlag(f.Setting, previous.Flag(f.Setting))
				continue
			}
			out.SetFlag(f.Setting, checked(in, f.Setting))
		}
	}

	if out.APIKey == "" {
		diags.Error(types.DiagAPIKeyRequired, "API Key is required.")
	}
	if out.SiteKey == "" {
		diags.Error(types.DiagSiteKeyRequired, "Site Key is required.")
	}
	if out.SiteKey == types.DemoSiteKey {
		diags.Warning(types.DiagStubSiteKey,
			"Demo site key is active. For live sites, please use a real site key from the Private Captcha portal.")
	}
	return out, diags
}

// NormalizeDomain reduces a pasted endpoint URL to the root domain: one scheme is removed,
// then one of the api./cdn./portal. prefixes, then leading whitespace and trailing slashes.
func NormalizeDomain(d string) string {
	for _, p := range schemePrefixes {
		if strings.HasPrefix(d, p) {
			d = d[len(p):]
			break
		}
	}
	for _, p := range subdomainPrefixes {
		if strings.HasPrefix(d, p) {
			d = d[len(p):]
			break
		}
	}
	return strings.TrimRight(strings.TrimLeft(d, " \t\n\r\x00\x0b"), "/")
}

// NormalizeStyles puts a CSS fragment on one line with single spaces.
func NormalizeStyles(s string) string {
	if s == "" {
		return ""
	}
	s = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(s)
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}

func lookup(in types.RawInput, name string) string {
	v, _ := in.Lookup(name)
	return v
}

// checked is true only for the exact true sentinel.
func checked(in types.RawInput, name string) bool {
	v, ok := in.Lookup(name)
	return ok && v == types.TrueSentinel
}

func oneOf[T comparable](v T, allowed []T, def T) T {
	if slices.Contains(allowed, v) {
		return v
	}
	return def
}

// stripTags removes markup and returns plain text. Unescaping the sanitizer output can
// surface tags that were entity-encoded in the input, so it runs until nothing changes.
func stripTags(s string) string {
	s = strings.ToValidUTF8(s, "")
	for range maxStripPasses {
		next := html.UnescapeString(tagPolicy.Sanitize(s))
		if next == s {
			return s
		}
		s = next
	}
	return strings.NewReplacer("<", "", ">", "").Replace(s)
}

// cleanText is for single-line fields: tags and control characters go, whitespace runs
// collapse to one space.
func cleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, stripTags(s))
	return strings.Join(strings.Fields(s), " ")
}

// cleanTextarea keeps line breaks and tabs but drops tags and other control characters.
func cleanTextarea(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return r
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, stripTags(s))
	return strings.TrimSpace(s)
}
