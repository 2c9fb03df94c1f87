package runarchive

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
)

// NewStore creates the appropriate Store implementation based on the
// provided configuration.
func NewStore(ctx context.Context, config *Config) (Store, error) {
	if config == nil {
		var err error
		config, err = DefaultConfig()
		if err != nil {
			return nil, errors.Wrap(err, "failed to create default config")
		}
	}

	switch config.StoreType {
	case "json":
		return NewJSONStore(filepath.Join(config.BasePath, "runs"))
	case "bbolt":
		return NewBBoltStore(ctx, filepath.Join(config.BasePath, "runs.db"))
	case "sqlite", "":
		return NewSQLiteStore(ctx, filepath.Join(config.BasePath, "storage.db"))
	default:
		return nil, errors.Errorf("unknown run store type: %s", config.StoreType)
	}
}
