// Package cmds holds the operator commands. Apart from import, they are recovery paths that
// write the stored record directly, so an operator locked out of the web settings page can
// repair it.
package cmds

import (
	"captchaguard/internal/ports"
	"captchaguard/internal/settings"
	"captchaguard/internal/types"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"
)

// UpdateAPIKey replaces the API key without running the self-test.
func UpdateAPIKey(ctx context.Context, svc *settings.Service, apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf(`please provide an API key: update-api-key "your-api-key"`)
	}
	return svc.ForceAPIKey(ctx, apiKey)
}

// DisableLogin turns off captcha protection of the login form.
func DisableLogin(ctx context.Context, svc *settings.Service) error {
	return svc.ForceFlag(ctx, types.SettingEnableLogin, false)
}

// SetFlag sets one integration flag. value is parsed with strconv.ParseBool.
func SetFlag(ctx context.Context, svc *settings.Service, name, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", value, name, err)
	}
	return svc.ForceFlag(ctx, name, b)
}

func Reset(ctx context.Context, svc *settings.Service) error {
	return svc.Reset(ctx)
}

// Show writes the redacted record as YAML, or the JSON result of a JMESPath query.
func Show(ctx context.Context, svc *settings.Service, w io.Writer, query string) error {
	if query != "" {
		v, err := svc.Query(ctx, query)
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	cur, err := svc.GetAllSettings(ctx)
	if err != nil {
		return err
	}
	b, err := yaml.Marshal(cur.Redacted())
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Import reads a YAML settings file and saves it through the same sanitize, self-test and
// lockout pipeline as the web form. The file replaces the whole record.
func Import(ctx context.Context, svc *settings.Service, path string) (types.Diagnostics, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	in, err := ParseInput(b)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	saved, diags, err := svc.ValidateAndPersist(ctx, in)
	if err != nil {
		return diags, err
	}
	log.WithFields(log.Fields{
		"file":    path,
		"enabled": saved.EnabledFlags(),
	}).Info("Settings imported")
	return diags, nil
}

// ParseInput converts a YAML document into form input. Nested maps such as "flags" are
// flattened; booleans become the form's checkbox values.
func ParseInput(b []byte) (types.RawInput, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	in := types.RawInput{}
	if err := flatten(in, doc); err != nil {
		return nil, err
	}
	return in, nil
}

func flatten(in types.RawInput, doc map[string]any) error {
	for k, v := range doc {
		switch val := v.(type) {
		case nil:
		case map[string]any:
			if err := flatten(in, val); err != nil {
				return err
			}
		case bool:
			if val {
				in[k] = types.TrueSentinel
			}
		case string:
			in[k] = val
		case int, int64, uint64, float64:
			in[k] = fmt.Sprint(val)
		default:
			return fmt.Errorf("unsupported value for %q: %T", k, v)
		}
	}
	return nil
}

func ListSites(ctx context.Context, store ports.SettingsStore, w io.Writer) error {
	sites, err := store.ListSites(ctx)
	if err != nil {
		return err
	}
	for _, id := range sites {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}
