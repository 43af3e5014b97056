package messages

// Install, ownership, and enable/disable messages.
const (
	// InstallGameRootRequired reports an installer built without a game root.
	InstallGameRootRequired = "game root is required"
	InstallSystemRequired   = "install system is required"
	InstallIDRequired       = "mod identifier is required"
	InstallNoEntries        = "nothing to install for %s"
	InstallConflictFmt      = "%s cannot install %s: the file belongs to %s (use --take-over to take it over)"
	InstallPolicyFmt        = "unknown conflict policy %q (want fail or transfer)"
	InstallBackupFmt        = "back up %s: %w"
	InstallWriteFmt         = "write %s: %w"
	InstallArchiveStoreFmt  = "store archive %s: %w"
	InstallFailedFmt        = "install %s: %w"
	InstallRollbackFmt      = "install %s: %w (rollback incomplete: %v)"
	InstallCleanupFmt       = "clean up %s: %v"

	// StateQuarantineFmt formats quarantine move errors.
	StateQuarantineFmt    = "disable %s: move %s: %w"
	StateRestoreFmt       = "enable %s: move %s: %w"
	StateRollbackFmt      = "%w (rollback incomplete: %v)"
	StatePartialMoveFmt   = "%s: %d of %d files were missing and could not be moved: %s"
	StateConflictFmt      = "cannot enable %s: %s is owned by %s"
	StateForeignFileFmt   = "cannot enable %s: %s already exists and is not managed"
	StateAlreadyFmt       = "%s is already %s"
	StateStatFmt          = "inspect %s: %w"
	StateNotInstalledFmt  = "%s has no installed files"
	StateQuarantineDirFmt = "quarantine directory for %s: %w"
	StatePurgeFmt         = "remove %s: %w"

	// ModMetaReadFmt formats mod metadata read errors.
	ModMetaReadFmt      = "read mod metadata %s: %w"
	ModMetaDecodeFmt    = "decode mod metadata %s: %w"
	ModMetaLicenseFmt   = "mod metadata %s: license %q is not a valid SPDX expression"
	ModMetaNameRequired = "mod metadata %s: name is required"
	ModMetaNotFoundFmt  = "no mod metadata found under %s"
	ModMetaAmbiguousFmt = "multiple mod metadata files under %s: %s"
)
