package modstate

import (
	"os"

	"github.com/conn-castle/modlayer/internal/fsutil"
)

// System abstracts filesystem operations needed to relocate mod files.
type System interface {
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	Move(src string, dst string) error
	RemoveTree(path string) error
	RemoveEmptyParents(dir string, stop string)
}

// RealSystem implements System using the OS filesystem.
type RealSystem struct{}

// Stat returns a FileInfo describing the named file.
func (RealSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// MkdirAll creates a directory named path, along with any necessary parents.
func (RealSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Move renames src to dst, copying across devices when needed.
func (RealSystem) Move(src string, dst string) error {
	return fsutil.MoveFile(src, dst)
}

// RemoveTree clears blocking attributes across path and removes it bottom-up.
func (RealSystem) RemoveTree(path string) error {
	return fsutil.RemoveTree(path)
}

// RemoveEmptyParents prunes empty directories from dir up to stop.
func (RealSystem) RemoveEmptyParents(dir string, stop string) {
	fsutil.RemoveEmptyParents(dir, stop)
}
