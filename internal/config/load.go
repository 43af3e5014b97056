// Package config loads application settings from config.toml, environment
// variables, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/conn-castle/modlayer/internal/messages"
	"github.com/conn-castle/modlayer/internal/versiongroup"
)

// EnvPrefix prefixes environment overrides, e.g. MODLAYER_PARALLEL.
const EnvPrefix = "MODLAYER"

// ErrConfigValidation is a sentinel that wraps config validation failures
// (as opposed to TOML syntax, filesystem, or other loading errors).
var ErrConfigValidation = errors.New("config validation failed")

// Settings is the decoded application configuration.
type Settings struct {
	GitHub   GitHubSettings   `mapstructure:"github"`
	Parallel int              `mapstructure:"parallel"`
	Log      LogSettings      `mapstructure:"log"`
	Versions VersionSettings  `mapstructure:"versions"`
	Filters  FilterSettings   `mapstructure:"filters"`
	Install  InstallSettings  `mapstructure:"install"`
	Download DownloadSettings `mapstructure:"download"`
}

// GitHubSettings configures the release API client.
type GitHubSettings struct {
	Token                string `mapstructure:"token"`
	APIURL               string `mapstructure:"api_url"`
	PerPage              int    `mapstructure:"per_page"`
	QuotaUnauthenticated int    `mapstructure:"quota_unauthenticated"`
	QuotaAuthenticated   int    `mapstructure:"quota_authenticated"`
}

// LogSettings configures the logger.
type LogSettings struct {
	Level string `mapstructure:"level"`
}

// VersionSettings configures game version extraction and grouping.
type VersionSettings struct {
	// SourceURL is a JSON tag list endpoint. Empty uses Tags.
	SourceURL   string             `mapstructure:"source_url"`
	NewestFirst bool               `mapstructure:"newest_first"`
	Known       []string           `mapstructure:"known"`
	Tags        []versiongroup.Tag `mapstructure:"tags"`
	Loaders     []string           `mapstructure:"loaders"`
}

// FilterSettings configures filter evaluation.
type FilterSettings struct {
	MinorFallback string `mapstructure:"minor_fallback"`
}

// InstallSettings configures the installer.
type InstallSettings struct {
	ConflictPolicy string `mapstructure:"conflict_policy"`
}

// DownloadSettings configures asset downloads.
type DownloadSettings struct {
	MaxRetries    int `mapstructure:"max_retries"`
	TripThreshold int `mapstructure:"trip_threshold"`
}

// Quota returns the request budget for the configured authentication.
func (s *Settings) Quota() int {
	if strings.TrimSpace(s.GitHub.Token) != "" {
		return s.GitHub.QuotaAuthenticated
	}
	return s.GitHub.QuotaUnauthenticated
}

// LoadOptions selects the settings file.
type LoadOptions struct {
	// ConfigFile is an explicit settings file. It must exist when set.
	ConfigFile string
	// Dir overrides the config directory.
	Dir string
}

// Load reads settings. Defaults come from the field catalog, then the
// settings file, then MODLAYER_* and the catalog's extra environment
// variables. It returns the settings and the file path used, or "" when no
// file was read.
func Load(opts LoadOptions) (*Settings, string, error) {
	v := newViper()

	path, err := settingsPath(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf(messages.ConfigInvalidConfigFmt, path, err)
		}
	}

	source := path
	if source == "" {
		source = "defaults"
	}
	var s Settings
	if err := v.UnmarshalExact(&s); err != nil {
		return nil, "", fmt.Errorf("%w: "+messages.ConfigUnrecognizedKeysFmt+" "+messages.ConfigValidationGuidance, ErrConfigValidation, source, err)
	}
	if err := s.Validate(source); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	return &s, path, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, f := range fields {
		if f.Default != nil {
			v.SetDefault(f.Key, f.Default)
		}
		if len(f.Env) > 0 {
			names := append([]string{f.Key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(f.Key, ".", "_"))}, f.Env...)
			_ = v.BindEnv(names...)
		}
	}
	return v
}

func settingsPath(opts LoadOptions) (string, error) {
	if opts.ConfigFile != "" {
		path, err := ExpandPath(opts.ConfigFile)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf(messages.ConfigMissingFileFmt, path, err)
		}
		return path, nil
	}
	dir := opts.Dir
	if dir == "" {
		var err error
		if dir, err = Dir(); err != nil {
			return "", err
		}
	}
	path := DefaultPaths(dir).ConfigPath
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return "", nil
	}
	return path, nil
}
