package app

import (
	"fmt"
	"os"
	"strconv"
)

const (
	PortEnvKey        = "PORT"
	SiteIDEnvKey      = "SITE_ID"
	AdminTokenEnvKey  = "ADMIN_TOKEN"
	StrictGuardEnvKey = "STRICT_LOCKOUT_GUARD"
	SaveRPMEnvKey     = "SETTINGS_SAVE_RPM"
	SNSTopicEnvKey    = "SNS_TOPIC_ARN"
	TrustProxyEnvKey  = "TRUST_PROXY"

	DefaultPort    = 8080
	DefaultSiteID  = "default"
	DefaultSaveRPM = 10
)

// Config is the process configuration read from the environment.
type Config struct {
	Port       int
	SiteID     string
	AdminToken string
	// StrictGuard disables requested gating integrations even when no self-test ran.
	StrictGuard bool
	// SaveRPM is the number of settings saves allowed per client IP and minute. Zero
	// disables the limit.
	SaveRPM     int
	SNSTopicArn string
	// TrustProxy makes the save limit key on X-Forwarded-For instead of the peer address.
	TrustProxy bool
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		SiteID:      getenv(SiteIDEnvKey, DefaultSiteID),
		AdminToken:  os.Getenv(AdminTokenEnvKey),
		StrictGuard: parseBoolean(os.Getenv(StrictGuardEnvKey)),
		SNSTopicArn: os.Getenv(SNSTopicEnvKey),
		TrustProxy:  parseBoolean(os.Getenv(TrustProxyEnvKey)),
	}
	var err error
	if cfg.Port, err = strconv.Atoi(getenv(PortEnvKey, strconv.Itoa(DefaultPort))); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", PortEnvKey, err)
	}
	if cfg.SaveRPM, err = strconv.Atoi(getenv(SaveRPMEnvKey, strconv.Itoa(DefaultSaveRPM))); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", SaveRPMEnvKey, err)
	}
	if cfg.SaveRPM < 0 {
		return Config{}, fmt.Errorf("invalid %s: must not be negative", SaveRPMEnvKey)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func parseBoolean(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
