package types

import (
	"maps"
	"slices"
)

// SettingsSchemaVersion is bumped whenever the persisted shape of Settings changes.
const SettingsSchemaVersion = 1

const (
	// TrueSentinel is the only submitted value accepted as "checked" for boolean fields.
	TrueSentinel = "1"

	// DemoSiteKey is the publicly documented example site key.
	DemoSiteKey = "aaaaaaaabbbbccccddddeeeeeeeeeeee"
)

// Stable setting names. They double as submitted form field names.
const (
	SettingAPIKey       = "api_key"
	SettingSiteKey      = "site_key"
	SettingCustomDomain = "custom_domain"
	SettingEUIsolation  = "eu_isolation"
	SettingTheme        = "theme"
	SettingLanguage     = "language"
	SettingStartMode    = "start_mode"
	SettingDebugMode    = "debug_mode"
	SettingCustomStyles = "custom_styles"

	SettingEnableLogin            = "enable_login"
	SettingEnableRegistration     = "enable_registration"
	SettingEnableResetPassword    = "enable_reset_password"
	SettingEnableCommentsLoggedIn = "enable_comments_logged_in"
	SettingEnableCommentsGuest    = "enable_comments_guest"
	SettingWPFormsEnable          = "wpforms_enable"
	SettingContactForm7Enable     = "contactform7_enable"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var Themes = []Theme{ThemeLight, ThemeDark}

type Language string

const LanguageAuto Language = "auto"

var Languages = []Language{LanguageAuto, "en", "de", "es", "fr", "it", "nl", "sv", "no", "pl", "fi", "et"}

type StartMode string

const (
	StartModeAuto  StartMode = "auto"
	StartModeClick StartMode = "click"
)

var StartModes = []StartMode{StartModeAuto, StartModeClick}

// Settings is the persisted configuration record of one site.
// It is always rewritten whole; callers never merge partial updates into it except through
// the emergency override paths of the settings service.
// Flags holds one boolean per integration settings field, keyed by its stable setting name.
type Settings struct {
	Version      int             `json:"version" dynamodbav:"version"`
	APIKey       string          `json:"api_key" dynamodbav:"api_key"`
	SiteKey      string          `json:"site_key" dynamodbav:"site_key"`
	CustomDomain string          `json:"custom_domain" dynamodbav:"custom_domain"`
	EUIsolation  bool            `json:"eu_isolation" dynamodbav:"eu_isolation"`
	Theme        Theme           `json:"theme" dynamodbav:"theme"`
	Language     Language        `json:"language" dynamodbav:"language"`
	StartMode    StartMode       `json:"start_mode" dynamodbav:"start_mode"`
	DebugMode    bool            `json:"debug_mode" dynamodbav:"debug_mode"`
	CustomStyles string          `json:"custom_styles" dynamodbav:"custom_styles"`
	Flags        map[string]bool `json:"flags" dynamodbav:"flags"`
}

// DefaultSettings returns a fresh record with every field at its documented default.
func DefaultSettings() Settings {
	return Settings{
		Version:   SettingsSchemaVersion,
		Theme:     ThemeLight,
		Language:  LanguageAuto,
		StartMode: StartModeAuto,
		Flags:     map[string]bool{},
	}
}

// Configured reports whether both credentials are present.
func (s Settings) Configured() bool {
	return s.APIKey != "" && s.SiteKey != ""
}

// Flag returns the value of an integration flag; missing flags are false.
func (s Settings) Flag(name string) bool {
	return s.Flags[name]
}

// SetFlag sets an integration flag, allocating the map when needed.
func (s *Settings) SetFlag(name string, v bool) {
	if s.Flags == nil {
		s.Flags = map[string]bool{}
	}
	s.Flags[name] = v
}

// EnabledFlags returns the sorted names of all flags set to true.
func (s Settings) EnabledFlags() []string {
	out := make([]string, 0, len(s.Flags))
	for name, v := range s.Flags {
		if v {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Clone returns a deep copy so callers can mutate flags without aliasing a stored record.
func (s Settings) Clone() Settings {
	c := s
	c.Flags = maps.Clone(s.Flags)
	if c.Flags == nil {
		c.Flags = map[string]bool{}
	}
	return c
}

// Redacted returns a copy safe to show to operators: the API key is masked.
func (s Settings) Redacted() Settings {
	c := s.Clone()
	c.APIKey = RedactSecret(s.APIKey)
	return c
}

// RedactSecret keeps the last four characters of long secrets and masks the rest.
func RedactSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "********"
	}
	return "********" + v[len(v)-4:]
}

// Get resolves a stable setting name to its value.
func (s Settings) Get(name string) (any, error) {
	switch name {
	case SettingAPIKey:
		return s.APIKey, nil
	case SettingSiteKey:
		return s.SiteKey, nil
	case SettingCustomDomain:
		return s.CustomDomain, nil
	case SettingEUIsolation:
		return s.EUIsolation, nil
	case SettingTheme:
		return string(s.Theme), nil
	case SettingLanguage:
		return string(s.Language), nil
	case SettingStartMode:
		return string(s.StartMode), nil
	case SettingDebugMode:
		return s.DebugMode, nil
	case SettingCustomStyles:
		return s.CustomStyles, nil
	}
	if v, ok := s.Flags[name]; ok {
		return v, nil
	}
	return nil, Err(ErrUnknownSetting, nil, "setting %q", name)
}

// Validate checks that a record is well formed before it is written to a store.
func (s Settings) Validate() error {
	if s.Version != SettingsSchemaVersion {
		return Err(ErrInvalidSettings, nil, "unsupported settings version %d", s.Version)
	}
	if !slices.Contains(Themes, s.Theme) {
		return Err(ErrInvalidSettings, nil, "theme %q is not one of %v", s.Theme, Themes)
	}
	if !slices.Contains(Languages, s.Language) {
		return Err(ErrInvalidSettings, nil, "language %q is not supported", s.Language)
	}
	if !slices.Contains(StartModes, s.StartMode) {
		return Err(ErrInvalidSettings, nil, "start_mode %q is not one of %v", s.StartMode, StartModes)
	}
	return nil
}

// RawInput is the untrusted key-value form submitted by an operator.
// A missing key is distinct from an empty value.
type RawInput map[string]string

// Lookup returns the submitted value and whether the field was present at all.
func (in RawInput) Lookup(name string) (string, bool) {
	v, ok := in[name]
	return v, ok
}
