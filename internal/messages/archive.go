package messages

// Archive extraction and layout messages.
const (
	// ArchiveUnsupportedFmt reports an archive whose format is not recognised.
	ArchiveUnsupportedFmt  = "unsupported archive format: %s"
	ArchiveExtractFmt      = "extract %s (%s): %v"
	ArchiveNoDecoderFmt    = "no decoder available for %s archives"
	ArchiveOpenFmt         = "open archive %s: %w"
	ArchiveSniffFmt        = "read archive header %s: %w"
	ArchiveEntryFmt        = "entry %s: %w"
	ArchiveEntryOutsideFmt = "entry %q escapes the staging directory"
	ArchiveTooLargeFmt     = "archive expands beyond %d bytes"
	ArchiveStagingFmt      = "create staging directory %s: %w"

	// LayoutReadFmt formats staging tree read errors.
	LayoutReadFmt          = "read staging tree %s: %w"
	LayoutNothingToInstall = "archive contains nothing installable"
	LayoutUnmappedFmt      = "skipping %s: no install location for this path"
)
