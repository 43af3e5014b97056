package messages

// Profile, identifier, and manifest store messages.
const (
	// IdentifierEmpty indicates the mod identifier input was blank.
	IdentifierEmpty         = "mod identifier is required"
	IdentifierInvalidFmt    = "invalid mod identifier %q: expected owner/repo, a github.com URL, or pkg:github/owner/repo"
	IdentifierPurlTypeFmt   = "package url %q must use type github"
	IdentifierPurlParseFmt  = "parse package url %q: %w"
	ProfileNameRequired     = "profile name is required"
	ProfileGameRootRequired = "profile %s: game_root is required"
	ProfileNotFoundFmt      = "profile %q not found"
	ProfileExistsFmt        = "profile %q already exists"
	ProfileNoActive         = "no active profile; create one with `ml profile create`"
	ProfileModExistsFmt     = "mod %s is already in profile %s"
	ProfileModNotFoundFmt   = "mod %q not found in profile %s"
	ProfileModAmbiguousFmt  = "mod %q matches more than one entry (%s); use owner/repo"
	ProfileDuplicateModFmt  = "profile %s lists mod %s more than once"
	ProfileOwnershipFmt     = "profile %s: %s is owned by more than one enabled mod (%s)"

	// StoreReadFmt formats profile store read errors.
	StoreReadFmt            = "read profile store %s: %w"
	StoreDecodeFmt          = "invalid profile store %s: %w"
	StoreUnknownKeysFmt     = "profile store %s has unrecognized keys: %w"
	StoreEncodeFmt          = "encode profile store: %w"
	StoreWriteFmt           = "write profile store %s: %w"
	StoreSchemaVersionFmt   = "profile store %s has schema_version %d; this build supports up to %d"
	StoreExpandGameRootFmt  = "expand game_root %q: %w"
	StoreValidationGuidance = "fix the file by hand or move it aside to start fresh"
	StoreActiveMissingFmt   = "active profile %q does not exist in %s"
)
