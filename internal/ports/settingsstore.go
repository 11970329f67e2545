package ports

import (
	"captchaguard/internal/types"
	"context"
)

// SettingsStore persists one settings record per site.
// Implementations MUST write the whole record in a single operation; records are never
// merged field by field.
type SettingsStore interface {
	// GetSettings returns the record for siteID.
	// MUST return types.ErrNotFound if the site has no record.
	GetSettings(ctx context.Context, siteID string) (types.Settings, error)

	// PutSettings validates and replaces the record for siteID.
	PutSettings(ctx context.Context, siteID string, settings types.Settings) error

	// DeleteSettings removes the record. Deleting a missing record is not an error.
	DeleteSettings(ctx context.Context, siteID string) error

	ListSites(ctx context.Context) ([]string, error)
}
