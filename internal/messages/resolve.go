package messages

// Version group, filter, and selection messages.
const (
	// VersionsCreateRequestFmt formats tag source request errors.
	VersionsCreateRequestFmt = "create version tag request: %w"
	VersionsFetchFmt         = "fetch version tags from %s: %w"
	VersionsStatusFmt        = "fetch version tags from %s: unexpected status %s"
	VersionsDecodeFmt        = "decode version tags from %s: %w"
	VersionsFallbackFmt      = "unknown minor fallback %q (expected none or strict)"
	VersionsSourceFailedFmt  = "version groups unavailable: %v"

	// FilterUnknownKindFmt indicates an unknown filter kind.
	FilterUnknownKindFmt      = "unknown filter kind %q"
	FilterVersionsRequiredFmt = "filter %s requires at least one version"
	FilterPatternRequiredFmt  = "filter %s requires a pattern"
	FilterInvalidPatternFmt   = "filter %s: invalid pattern %q: %w"
	FilterUnknownChannelFmt   = "unknown release channel %q (expected release, beta, or alpha)"
	FilterLoaderRequired      = "loader_prefer requires a loader name"
	FilterParseFmt            = "invalid filter %q: expected kind=value"

	// SelectNoCandidates indicates there was nothing to select from.
	SelectNoCandidates       = "no installable assets found in any release"
	SelectFilterEmptyFmt     = "no release asset matches filter %s"
	SelectIntersectFailure   = "every filter matches some assets, but no single asset satisfies all of them"
	SelectNoSurvivors        = "no candidates survived filtering"
	SelectSurvivorOutOfRange = "surviving index %d is out of range"
)
