// Package integrations describes the form surfaces that can require a captcha solution and
// gates their submissions through the active verification client.
package integrations

import (
	"os"
	"strings"
)

// Field is one settings checkbox of an integration.
// Gating fields protect flows whose breakage can lock users out; they are disabled when the
// settings self-test fails.
type Field struct {
	Setting     string
	Label       string
	Description string
	Gating      bool
}

type Integration interface {
	Name() string
	Fields() []Field
	// Available reports whether the host feature or plugin the integration hooks into is
	// present.
	Available() bool
}

// Environment answers capability checks about the host site.
type Environment interface {
	PluginActive(slug string) bool
}

// StaticEnvironment is a fixed set of active plugin slugs.
type StaticEnvironment map[string]struct{}

const ActivePluginsEnvKey = "ACTIVE_PLUGINS"

// NewStaticEnvironment builds an environment from plugin slugs such as
// "wpforms/wpforms.php".
func NewStaticEnvironment(slugs ...string) StaticEnvironment {
	env := StaticEnvironment{}
	for _, s := range slugs {
		if s = strings.TrimSpace(s); s != "" {
			env[s] = struct{}{}
		}
	}
	return env
}

// EnvironmentFromEnv reads a comma separated plugin list from ACTIVE_PLUGINS.
func EnvironmentFromEnv() StaticEnvironment {
	return NewStaticEnvironment(strings.Split(os.Getenv(ActivePluginsEnvKey), ",")...)
}

func (e StaticEnvironment) PluginActive(slug string) bool {
	_, ok := e[slug]
	return ok
}
