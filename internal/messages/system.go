package messages

// System messages for filesystem, locking, and download operations.
const (
	// FSCreateTempFileFmt formats temp file creation errors.
	FSCreateTempFileFmt  = "create temp file for %s: %w"
	FSWriteTempFileFmt   = "write temp file for %s: %w"
	FSSyncTempFileFmt    = "sync temp file for %s: %w"
	FSCloseTempFileFmt   = "close temp file for %s: %w"
	FSChmodTempFileFmt   = "chmod temp file for %s: %w"
	FSRenameTempFileFmt  = "move temp file into place at %s: %w"
	FSCreateDirFmt       = "create directory %s: %w"
	FSClearAttributesFmt = "clear attributes on %s: %w"
	FSRemoveFmt          = "remove %s: %w"
	FSWalkFmt            = "walk %s: %w"
	FSMoveFmt            = "move %s to %s: %w"
	FSCopyOpenSourceFmt  = "open %s: %w"
	FSStatFmt            = "stat %s: %w"
	FSRemoveAfterCopyFmt = "remove %s after copy: %w"
	FSNotRegularFileFmt  = "%s is not a regular file"
	FSPathEscapesRootFmt = "path %q escapes %s"
	FSAbsolutePathRelFmt = "path %q must be relative"
	FSEmptyRelativePath  = "relative path is empty"
	LockOpenFmt          = "open lock file %s: %w"
	LockAcquireFmt       = "lock %s: %w"
	LockTimeoutFmt       = "timed out after %s waiting for lock"

	// DownloadCreateRequestFmt formats download request errors.
	DownloadCreateRequestFmt    = "create download request for %s: %w"
	DownloadFailedFmt           = "download %s: %w"
	DownloadUnexpectedStatusFmt = "download %s: unexpected status %s"
	DownloadNotFoundFmt         = "download %s: asset not found (HTTP 404)"
	DownloadTooLargeFmt         = "download %s: response too large (limit %d bytes)"
	DownloadSizeMismatchFmt     = "download %s: expected %d bytes, got %d"
	DownloadCircuitOpenFmt      = "download host %s is unavailable; giving up until it recovers"
	DownloadTransientStatusFmt  = "download %s: transient status %s"
)
