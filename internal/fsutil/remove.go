package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conn-castle/modlayer/internal/messages"
)

var (
	osLstat  = os.Lstat
	osRemove = os.Remove
)

// RemoveTree deletes path and everything beneath it in two phases.
//
// Phase one walks the whole subtree and grants the owner write and search
// permission on every directory and write permission on every file, so a
// read-only entry left by an interrupted run cannot block phase two.
// Phase two removes entries deepest first, so a directory is only removed
// after all of its children are gone. A missing path is not an error.
func RemoveTree(path string) error {
	info, err := osLstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf(messages.FSStatFmt, path, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 || !info.IsDir() {
		if err := clearBlockingAttributes(path, info.Mode()); err != nil {
			return err
		}
		return removeEntry(path)
	}

	entries, err := clearTree(path)
	if err != nil {
		return err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if err := removeEntry(entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// clearTree walks root in pre-order, clearing blocking attributes before each
// directory is read, and returns every visited path in visit order.
func clearTree(root string) ([]string, error) {
	var entries []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf(messages.FSWalkFmt, p, walkErr)
		}
		entries = append(entries, p)
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf(messages.FSStatFmt, p, err)
		}
		return clearBlockingAttributes(p, info.Mode())
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func clearBlockingAttributes(path string, mode fs.FileMode) error {
	if mode&fs.ModeSymlink != 0 {
		return nil
	}
	want := mode.Perm() | 0o600
	if mode.IsDir() {
		want |= 0o700
	}
	if want == mode.Perm() {
		return nil
	}
	if err := osChmod(path, want); err != nil {
		return fmt.Errorf(messages.FSClearAttributesFmt, path, err)
	}
	return nil
}

func removeEntry(path string) error {
	if err := osRemove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf(messages.FSRemoveFmt, path, err)
	}
	return nil
}

// RemoveEmptyParents removes empty directories from dir upward, stopping at
// (and never removing) stop.
func RemoveEmptyParents(dir string, stop string) {
	stop = filepath.Clean(stop)
	for current := filepath.Clean(dir); current != stop; current = filepath.Dir(current) {
		if !IsWithin(stop, current) {
			return
		}
		if err := os.Remove(current); err != nil {
			return
		}
	}
}
