package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"

	"github.com/conn-castle/modlayer/internal/messages"
)

const (
	// AppName names the per-user config directory.
	AppName = "modlayer"
	// FileName is the settings file inside the config directory.
	FileName = "config.toml"
	// ProfilesFileName is the profile store inside the config directory.
	ProfilesFileName = "profiles.toml"
	// DirEnv overrides the config directory.
	DirEnv = "MODLAYER_CONFIG_DIR"
)

var (
	getenv  = os.Getenv
	homeDir = homedir.Dir
)

// Paths holds resolved paths for the config directory and its files.
type Paths struct {
	Dir          string
	ConfigPath   string
	ProfilesPath string
}

// DefaultPaths returns the config paths rooted at dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		Dir:          dir,
		ConfigPath:   filepath.Join(dir, FileName),
		ProfilesPath: filepath.Join(dir, ProfilesFileName),
	}
}

// Dir returns the config directory: $MODLAYER_CONFIG_DIR when set, else
// $XDG_CONFIG_HOME/modlayer, else ~/.config/modlayer.
func Dir() (string, error) {
	if dir := getenv(DirEnv); dir != "" {
		return ExpandPath(dir)
	}
	if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := homeDir()
	if err != nil {
		return "", fmt.Errorf(messages.ConfigDirFmt, err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

// ExpandPath expands a leading ~ and cleans the result.
func ExpandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf(messages.ConfigExpandPathFmt, path, err)
	}
	return filepath.Clean(expanded), nil
}
