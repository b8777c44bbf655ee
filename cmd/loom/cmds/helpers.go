// Package cmds implements the loom CLI commands.
package cmds

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/go-go-golems/loom/pkg/config"
	"github.com/go-go-golems/loom/pkg/store"
)

// loomDir returns the per-user data directory, creating it on first use.
func loomDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	dir := filepath.Join(home, ".loom")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "could not create %s", dir)
	}
	return dir, nil
}

// loadSettings reads the settings file named by --settings, falling back to
// ~/.loom/settings.yaml, falling back to built-in defaults.
func loadSettings() (*config.Settings, error) {
	path := viper.GetString("settings")
	if path == "" {
		dir, err := loomDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "settings.yaml")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.NewSettings(), nil
		}
	}
	return config.LoadSettings(path)
}

// openStore opens the conversation database named by --db, defaulting to
// ~/.loom/conversations.db.
func openStore() (store.Store, error) {
	path := viper.GetString("db")
	if path == "" {
		dir, err := loomDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "conversations.db")
	}
	return store.NewBoltStore(path)
}
