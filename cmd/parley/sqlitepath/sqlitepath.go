// Package sqlitepath resolves which SQLite database a command works on.
package sqlitepath

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/papercomputeco/parley/pkg/config"
)

// EnvVar overrides the default database location.
const EnvVar = "PARLEY_SQLITE"

// ResolveSQLitePath returns override when set, else $PARLEY_SQLITE, else
// ~/.parley/parley.db. A leading ~/ is expanded.
func ResolveSQLitePath(override string) (string, error) {
	path := override
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		dir, err := config.Dir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, config.DBFileName), nil
	}

	if path == "~" || len(path) > 1 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	return path, nil
}
