package app

import (
	"errors"
	"io/fs"

	"github.com/custodia-labs/druginfo/internal/adapters/driven/config/file"
	"github.com/custodia-labs/druginfo/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
	"github.com/custodia-labs/druginfo/internal/logger"
)

// OpenConfigStore opens config.toml under dir, or ~/.druginfo when dir is
// empty. When no config directory can be used, as with a read-only or
// missing home, it falls back to an in-memory store so settings come from
// the environment and flags alone. A config file that exists but does not
// parse is still an error.
func OpenConfigStore(dir string) (driven.ConfigStore, error) {
	if dir == "" {
		d, err := file.DefaultDir()
		if err != nil {
			logger.Warn("config: %v; using in-memory settings", err)
			return memory.NewConfigStore(), nil
		}
		dir = d
	}

	store, err := file.NewConfigStore(dir)
	var pathErr *fs.PathError
	switch {
	case err == nil:
		return store, nil
	case errors.As(err, &pathErr) && pathErr.Op == "mkdir":
		logger.Warn("config: cannot create %s: %v; using in-memory settings", dir, pathErr.Err)
		return memory.NewConfigStore(), nil
	default:
		return nil, err
	}
}
