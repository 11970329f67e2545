package integrations

import "captchaguard/internal/types"

// WordPressCore covers the forms WordPress ships with. It is always available.
type WordPressCore struct{}

func (WordPressCore) Name() string    { return "wordpress_core" }
func (WordPressCore) Available() bool { return true }

func (WordPressCore) Fields() []Field {
	return []Field{
		{
			Setting:     types.SettingEnableLogin,
			Label:       "WordPress Login Form",
			Description: "Login can be locked out if Site Key, API key or Custom Domain become invalid. CLI commands are available for recovery.",
			Gating:      true,
		},
		{
			Setting: types.SettingEnableRegistration,
			Label:   "WordPress Registration Form",
			Gating:  true,
		},
		{
			Setting: types.SettingEnableResetPassword,
			Label:   "WordPress Reset Password Form",
			Gating:  true,
		},
		{
			Setting:     types.SettingEnableCommentsLoggedIn,
			Label:       "WordPress Comments Form (Logged-in Users)",
			Description: "Protect comment forms from spam for users who are logged in.",
			Gating:      true,
		},
		{
			Setting:     types.SettingEnableCommentsGuest,
			Label:       "WordPress Comments Form (Guests)",
			Description: "Protect comment forms from spam for visitors who are not logged in.",
			Gating:      true,
		},
	}
}

// WPForms protects WPForms submissions; either the full or the lite plugin makes it
// available.
type WPForms struct {
	Env Environment
}

func (WPForms) Name() string { return "wpforms" }

func (w WPForms) Available() bool {
	return w.Env != nil && (w.Env.PluginActive("wpforms/wpforms.php") || w.Env.PluginActive("wpforms-lite/wpforms.php"))
}

func (WPForms) Fields() []Field {
	return []Field{{
		Setting:     types.SettingWPFormsEnable,
		Label:       "WPForms plugin",
		Description: "Protect WPForms submissions from spam.",
		Gating:      true,
	}}
}

type ContactForm7 struct {
	Env Environment
}

func (ContactForm7) Name() string { return "contactform7" }

func (c ContactForm7) Available() bool {
	return c.Env != nil && c.Env.PluginActive("contact-form-7/wp-contact-form-7.php")
}

func (ContactForm7) Fields() []Field {
	return []Field{{
		Setting:     types.SettingContactForm7Enable,
		Label:       "Contact Form 7 plugin",
		Description: "Protect Contact Form 7 submissions from spam.",
		Gating:      true,
	}}
}

// Builtin returns the default integration set in settings-page order.
func Builtin(env Environment) []Integration {
	return []Integration{
		WordPressCore{},
		WPForms{Env: env},
		ContactForm7{Env: env},
	}
}
