package messages

// Config messages for settings loading and validation.
const (
	// ConfigMissingFileFmt formats missing config file errors.
	ConfigMissingFileFmt      = "missing config file %s: %w"
	ConfigInvalidConfigFmt    = "invalid config %s: %w"
	ConfigUnrecognizedKeysFmt = "%s: unrecognized config keys: %w"
	ConfigDirFmt              = "resolve config directory: %w"
	ConfigExpandPathFmt       = "expand path %s: %w"
	ConfigEnumInvalidFmt      = "%s: %s %q is invalid (allowed: %s)"
	ConfigPositiveIntFmt      = "%s: %s must be greater than zero"
	ConfigPerPageMaxFmt       = "%s: github.per_page must be at most %d"
	ConfigRequiredFmt         = "%s: %s is required"
	ConfigTagVersionFmt       = "%s: versions.tags[%d].version is required"
	ConfigValidationGuidance  = "(see the config.toml keys listed in ml --help)"

	// ConfigFallbackStrictDescription describes the strict minor fallback.
	ConfigFallbackStrictDescription = "unknown game versions match only themselves"
	ConfigFallbackNoneDescription   = "unknown game versions match nothing"
	ConfigPolicyFailDescription     = "refuse installs that would take another mod's files"
	ConfigPolicyTransferDescription = "hand contested files to the installing mod"
)
