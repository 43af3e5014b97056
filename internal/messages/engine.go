package messages

// Engine messages for batch operations over a profile.
const (
	// EngineStoreRequired reports an engine built without a profile store.
	EngineStoreRequired     = "profile store is required"
	EngineFetcherRequired   = "release fetcher is required for this operation"
	EngineStorageFmt        = "profile storage: %v"
	EngineSelectFmt         = "select asset for %s: %w"
	EngineDownloadFmt       = "download %s for %s: %w"
	EngineExtractFmt        = "unpack %s for %s: %w"
	EngineLayoutFmt         = "lay out %s for %s: %w"
	EngineModDisabledFmt    = "%s is disabled; enable it before installing"
	EngineNoLocalArchiveFmt = "%s has no stored archive in %s; run ml upgrade without --local"
	EngineArchiveFmt        = "archive %s: %w"
	EngineNoMods            = "no mods to process"
	EngineBatchFailedFmt    = "%d of %d mods failed"
	EngineUnmappedFmt       = "%s: %d archive paths have no install location"
	EngineTransferredFmt    = "took over %d files from %s"
	EngineOverwroteFmt      = "replaced %d unmanaged files"
)
