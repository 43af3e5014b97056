package install

import (
	"os"
	"path/filepath"
)

// faultSystem is a test helper that allows deterministic error injection for the
// installer System interface without chmod-based permission tricks.
type faultSystem struct {
	base       System
	statErrs   map[string]error
	mkdirErrs  map[string]error
	moveErrs   map[string]error
	copyErrs   map[string]error
	removeErrs map[string]error
}

func newFaultSystem(base System) *faultSystem {
	return &faultSystem{
		base:       base,
		statErrs:   map[string]error{},
		mkdirErrs:  map[string]error{},
		moveErrs:   map[string]error{},
		copyErrs:   map[string]error{},
		removeErrs: map[string]error{},
	}
}

func normalizePath(path string) string {
	return filepath.Clean(path)
}

func (f *faultSystem) Stat(name string) (os.FileInfo, error) {
	if err, ok := f.statErrs[normalizePath(name)]; ok {
		return nil, err
	}
	return f.base.Stat(name)
}

func (f *faultSystem) MkdirAll(path string, perm os.FileMode) error {
	if err, ok := f.mkdirErrs[normalizePath(path)]; ok {
		return err
	}
	return f.base.MkdirAll(path, perm)
}

// Move faults are keyed by destination.
func (f *faultSystem) Move(src string, dst string) error {
	if err, ok := f.moveErrs[normalizePath(dst)]; ok {
		return err
	}
	return f.base.Move(src, dst)
}

// CopyFile faults are keyed by destination.
func (f *faultSystem) CopyFile(src string, dst string) error {
	if err, ok := f.copyErrs[normalizePath(dst)]; ok {
		return err
	}
	return f.base.CopyFile(src, dst)
}

func (f *faultSystem) Remove(name string) error {
	if err, ok := f.removeErrs[normalizePath(name)]; ok {
		return err
	}
	return f.base.Remove(name)
}

func (f *faultSystem) RemoveTree(path string) error {
	if err, ok := f.removeErrs[normalizePath(path)]; ok {
		return err
	}
	return f.base.RemoveTree(path)
}

func (f *faultSystem) RemoveEmptyParents(dir string, stop string) {
	f.base.RemoveEmptyParents(dir, stop)
}
