package redis

import (
	"captchaguard/internal/types"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	settingsKeyNameTemplate = "_captchaguard_settings_%s"
)

// SettingsStore keeps each site's record as one JSON string, so a write is a single SET.
type SettingsStore struct {
	cli redis.UniversalClient
}

func NewSettingsStore(cli redis.UniversalClient) *SettingsStore {
	return &SettingsStore{cli: cli}
}

func (s *SettingsStore) GetSettings(ctx context.Context, siteID string) (types.Settings, error) {
	out := s.cli.Get(ctx, getSettingsKey(siteID))
	if err := out.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return types.Settings{}, types.ErrNotFound
		}
		return types.Settings{}, err
	}
	var st types.Settings
	if err := json.Unmarshal([]byte(out.Val()), &st); err != nil {
		return types.Settings{}, err
	}
	return st, nil
}

func (s *SettingsStore) PutSettings(ctx context.Context, siteID string, settings types.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	out, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.cli.Set(ctx, getSettingsKey(siteID), string(out), 0).Err()
}

func (s *SettingsStore) DeleteSettings(ctx context.Context, siteID string) error {
	return s.cli.Del(ctx, getSettingsKey(siteID)).Err()
}

func (s *SettingsStore) ListSites(ctx context.Context) ([]string, error) {
	prefixLen := len(getSettingsKey(""))
	var sites []string
	iter := s.cli.Scan(ctx, 0, getSettingsKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		if k := iter.Val(); len(k) > prefixLen {
			sites = append(sites, k[prefixLen:])
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	slices.Sort(sites)
	return sites, nil
}

func getSettingsKey(siteID string) string {
	return fmt.Sprintf(settingsKeyNameTemplate, siteID)
}
