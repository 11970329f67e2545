package settings

import (
	"captchaguard/internal/integrations"
	"captchaguard/internal/types"

	log "github.com/sirupsen/logrus"
)

const (
	msgSettingsTestFailed = "Private Captcha settings test failed. Please verify your API Key, Site Key, and domain settings. Form integrations have been disabled to prevent lockout."
	msgSettingsUntested   = "Form integrations cannot be enabled without an API Key and Site Key and have been disabled to prevent lockout."
)

// Guard clamps gating flags after the self-test. Only gating flags of available
// integrations are touched; every other field stays as sanitized.
type Guard struct {
	// Strict also clamps requested gating flags when the self-test could not run because
	// credentials were missing. Off by default: such records are persisted as sanitized.
	Strict bool
}

// Apply enforces the lockout rule on candidate.
func (g Guard) Apply(candidate *types.Settings, diags *types.Diagnostics, registry []integrations.Integration, triggered, valid bool) {
	switch {
	case triggered && valid:
		return
	case triggered:
		clampGating(candidate, registry)
		diags.Error(types.DiagSettingsTestFailed, msgSettingsTestFailed)
	case g.Strict && !candidate.Configured() && gatingRequested(*candidate, registry):
		clampGating(candidate, registry)
		diags.Error(types.DiagSettingsUntested, msgSettingsUntested)
	}
}

func clampGating(s *types.Settings, registry []integrations.Integration) {
	var clamped []string
	for _, name := range availableGating(registry) {
		if s.Flag(name) {
			clamped = append(clamped, name)
		}
		s.SetFlag(name, false)
	}
	log.WithField("settings", clamped).Warn("Gating integrations disabled to prevent lockout")
}
