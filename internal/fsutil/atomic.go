// Package fsutil holds the filesystem primitives shared by the installer,
// the profile store, and the enable/disable state machine.
package fsutil

import (
	"bytes"
	"os"
)

var (
	osCreateTemp = os.CreateTemp
	osRename     = os.Rename
	osChmod      = os.Chmod
	osMkdirAll   = os.MkdirAll
)

// WriteFileAtomic writes data to path through a temp file in the same directory.
// The destination holds either the old content or the new content, never a partial write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return WriteStreamAtomic(path, bytes.NewReader(data), perm)
}
