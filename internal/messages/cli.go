package messages

// CLI messages for user-facing commands and prompts.
const (
	// RootUse is the CLI command name.
	RootUse = "ml"
	// RootShort is the short description for the root command.
	RootShort = "Install and manage SPT mods from GitHub releases"
	RootLong  = "ml resolves GitHub releases for each mod in a profile, installs the chosen asset into the game root, and tracks which files every mod owns so mods can be disabled and enabled without reinstalling."

	RootFlagConfig   = "Settings file (default: $MODLAYER_CONFIG_DIR/config.toml)"
	RootFlagProfile  = "Profile to operate on (default: the active profile)"
	RootFlagVerbose  = "Increase log verbosity (-v info, -vv debug)"
	RootFlagNoColor  = "Disable colored output"
	RootUserAgentFmt = "modlayer/%s"

	// VersionUse is the version command name.
	VersionUse       = "version"
	VersionShort     = "Print the ml version"
	VersionCommitFmt = "commit %s"
	VersionBuildFmt  = "built %s"
	VersionFullFmt   = "%s (%s)"
	VersionTemplate  = "{{.Version}}\n"

	// AddUse is the add command usage.
	AddUse         = "add <owner/repo>..."
	AddShort       = "Add mods to the profile without installing them"
	AddFlagFilter  = "Filter stored on each added mod (kind=value, repeatable)"
	AddFlagOffline = "Skip checking that each repository has releases"
	AddFlagInstall = "Install the added mods right away"

	// RemoveUse is the remove command usage.
	RemoveUse           = "remove [mod]..."
	RemoveShort         = "Remove mods from the profile and delete their files"
	RemoveFlagKeepFiles = "Keep the mod's files in the game root"
	RemoveFlagYes       = "Do not ask for confirmation"
	RemovePickTitle     = "Select mods to remove"
	RemoveConfirmFmt    = "Remove %d mods and delete their files?"
	RemoveConfirmKeep   = "Remove %d mods from the profile (files are kept)?"
	RemoveCanceled      = "nothing removed"

	// ListUse is the list command name.
	ListUse        = "list"
	ListShort      = "List the mods in the profile"
	ListEmpty      = "no mods in this profile; add one with `ml add owner/repo`"
	ListHeader     = "MOD\tSTATE\tVERSION\tFILES\tMETADATA"
	ListRowFmt     = "%s\t%s\t%s\t%d\t%s\n"
	ListMetaFmt    = "%s %s (spt %s, %s)"
	ListMetaNone   = "-"
	ListProfileFmt = "profile %s (%s)\n"

	// SelectUse is the select command usage.
	SelectUse        = "select <owner/repo>"
	SelectShort      = "Show which release asset the filters choose, without installing"
	SelectFlagFilter = "Extra filter (kind=value, repeatable)"
	SelectResultFmt  = "%s: %s from release %s (%d bytes)\n%s\n"

	// UpgradeUse is the upgrade command usage.
	UpgradeUse          = "upgrade [mod]..."
	UpgradeShort        = "Install or upgrade every enabled mod to its selected release"
	UpgradeFlagForce    = "Re-download and reinstall even when current"
	UpgradeFlagTakeOver = "Take over files owned by other enabled mods instead of failing"
	UpgradeFlagLocal    = "Install from archives already in MODS without contacting GitHub"

	// InstallArchiveUse is the install-archive command usage.
	InstallArchiveUse         = "install-archive <mod> <archive>"
	InstallArchiveShort       = "Install a local archive for a mod in the profile"
	InstallArchiveFlagVersion = "Version recorded for the install (default: archive name)"
	InstallArchiveDoneFmt     = "installed %s: %d files\n"

	// EnableUse is the enable command usage.
	EnableUse       = "enable [mod]..."
	EnableShort     = "Move disabled mods back into the game root"
	EnablePickTitle = "Select mods to enable"

	// DisableUse is the disable command usage.
	DisableUse       = "disable [mod]..."
	DisableShort     = "Move mods out of the game root into disabled-mods"
	DisablePickTitle = "Select mods to disable"

	// PickRequiresTerminal reports a picker invoked without a terminal.
	PickRequiresTerminal = "no mods named; pass mod names or run in an interactive terminal"
	PickNothing          = "no matching mods to choose from"
	PromptCanceled       = "canceled"

	// OutcomeLineFmt formats one batch outcome.
	OutcomeLineFmt    = "%-10s %s%s\n"
	OutcomeVersionFmt = " %s"
	OutcomeWarningFmt = "           warning: %s\n"
	OutcomeErrorFmt   = "           %v\n"
	OutcomeFatalFmt   = "batch stopped: %w"
	OutcomeSummaryFmt = "%d ok, %d failed, %d aborted\n"

	// ProfileUse is the profile command name.
	ProfileUse   = "profile"
	ProfileShort = "Create, inspect, and switch profiles"

	ProfileCreateUse          = "create <name>"
	ProfileCreateShort        = "Create a profile for a game root"
	ProfileFlagGameRoot       = "SPT game root directory"
	ProfileFlagGameVersion    = "Declared SPT version used as a minor filter"
	ProfileFlagFilter         = "Profile-wide filter (kind=value, repeatable)"
	ProfileFlagClearFilters   = "Remove all profile-wide filters"
	ProfileGameRootMissingFmt = "game root %s: %w"
	ProfileCreatedFmt         = "created profile %s (%s)\n"

	ProfileShowUse   = "show [name]"
	ProfileShowShort = "Show a profile's settings"
	ProfileShowFmt   = "name:         %s\ngame root:    %s\ngame version: %s\nmods:         %d\nfilters:      %s\n"

	ProfileListUse   = "list"
	ProfileListShort = "List profiles"
	ProfileListEmpty = "no profiles; create one with `ml profile create`"
	ProfileActiveTag = " (active)"

	ProfileSwitchUse   = "switch <name>"
	ProfileSwitchShort = "Make a profile active"
	ProfileSwitchedFmt = "active profile is now %s\n"

	ProfileConfigureUse   = "configure [name]"
	ProfileConfigureShort = "Change a profile's game root, game version, or filters"
	ProfileConfiguredFmt  = "updated profile %s\n"
	ProfileNothingToSet   = "nothing to change; pass --game-root, --game-version, --filter, or --clear-filters"

	ProfileDeleteUse   = "delete <name>"
	ProfileDeleteShort = "Delete a profile (mod files are left in place)"
	ProfileDeletedFmt  = "deleted profile %s\n"

	// RateLimitTokenHint follows a rate-limited batch run without a token.
	RateLimitTokenHint = "set GITHUB_TOKEN or github.token for a higher rate limit"
)
