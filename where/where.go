// Package where implements a cross-platform resolver for application-specific filesystem paths.
package where

import (
	"os"
	"path/filepath"

	"github.com/eolscan/eolscan/constant"
	"github.com/eolscan/eolscan/filesystem"
	"github.com/samber/lo"
)

// EnvConfigPath is the environment variable identifier used to override the default configuration directory.
const EnvConfigPath = "EOLSCAN_CONFIG_PATH"

// ensureDir guarantees the existence of a directory at the specified path, creating it with the given mode if necessary.
func ensureDir(path string, mode os.FileMode) string {
	lo.Must0(filesystem.API().MkdirAll(path, mode))
	return path
}

// Config resolves the absolute path to the per-user configuration directory.
// It follows os.UserConfigDir (XDG_CONFIG_HOME on Linux) unless EOLSCAN_CONFIG_PATH is set.
func Config() string {
	if custom, ok := os.LookupEnv(EnvConfigPath); ok {
		return ensureDir(custom, os.ModePerm)
	}

	base := lo.Must(os.UserConfigDir())
	return ensureDir(filepath.Join(base, constant.App), os.ModePerm)
}

// Logs resolves the directory used for diagnostic logs.
func Logs() string {
	return ensureDir(filepath.Join(Config(), "logs"), os.ModePerm)
}

// Tokens resolves the owner-only directory holding the encrypted credential namespaces.
func Tokens() string {
	return ensureDir(filepath.Join(Config(), "tokens"), 0o700)
}

// CIOrg resolves the plaintext file remembering which organization the CI token belongs to.
func CIOrg() string {
	return filepath.Join(Config(), "ci-org.json")
}
