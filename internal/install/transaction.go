package install

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conn-castle/modlayer/internal/messages"
)

// protectedDirs are never pruned when they become empty.
var protectedDirs = []string{"BepInEx/plugins", "user/mods", ArchiveDir}

type stashedFile struct {
	orig   string
	backup string
}

type movedFile struct {
	from string
	to   string
}

// transaction records every change an install makes so it can be undone.
// Replaced and stale files are moved aside into backup and only deleted on
// commit.
type transaction struct {
	sys      System
	gameRoot string
	backup   string

	stashed []stashedFile
	created []string
	moved   []movedFile
	pruned  []string
}

// stash moves an existing file at dest into the backup tree. It reports
// whether a file was present.
func (tx *transaction) stash(rel string, dest string) (bool, error) {
	present, err := exists(tx.sys, dest)
	if err != nil {
		return false, fmt.Errorf(messages.InstallBackupFmt, dest, err)
	}
	if !present {
		return false, nil
	}
	target := filepath.Join(tx.backup, filepath.FromSlash(rel))
	if err := tx.sys.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return false, fmt.Errorf(messages.InstallBackupFmt, dest, err)
	}
	if err := tx.sys.Move(dest, target); err != nil {
		return false, fmt.Errorf(messages.InstallBackupFmt, dest, err)
	}
	tx.stashed = append(tx.stashed, stashedFile{orig: dest, backup: target})
	return true, nil
}

// write copies src to dest, creating parents as needed.
func (tx *transaction) write(src string, dest string) error {
	if err := tx.sys.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf(messages.InstallWriteFmt, dest, err)
	}
	tx.created = append(tx.created, dest)
	if err := tx.sys.CopyFile(src, dest); err != nil {
		return fmt.Errorf(messages.InstallWriteFmt, dest, err)
	}
	return nil
}

// rollback undoes the transaction in reverse order. It keeps going after
// individual failures and returns them joined.
func (tx *transaction) rollback() error {
	var errs []error
	for i := len(tx.moved) - 1; i >= 0; i-- {
		m := tx.moved[i]
		if err := tx.sys.Move(m.to, m.from); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(tx.created) - 1; i >= 0; i-- {
		path := tx.created[i]
		if err := tx.sys.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		tx.sys.RemoveEmptyParents(filepath.Dir(path), tx.pruneStop(path))
	}
	for i := len(tx.stashed) - 1; i >= 0; i-- {
		s := tx.stashed[i]
		if err := tx.sys.MkdirAll(filepath.Dir(s.orig), 0o755); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := tx.sys.Move(s.backup, s.orig); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		// Backups still hold files that could not be restored.
		return errors.Join(errs...)
	}
	return tx.discardBackup()
}

// commit deletes the backup tree and prunes directories emptied by stale
// file removal.
func (tx *transaction) commit() error {
	for _, dir := range tx.pruned {
		tx.sys.RemoveEmptyParents(dir, tx.pruneStop(dir))
	}
	return tx.discardBackup()
}

func (tx *transaction) discardBackup() error {
	if err := tx.sys.RemoveTree(tx.backup); err != nil {
		return err
	}
	tx.sys.RemoveEmptyParents(filepath.Dir(tx.backup), tx.gameRoot)
	return nil
}

// pruneStop returns the directory pruning must stop at for path.
func (tx *transaction) pruneStop(path string) string {
	rel, err := filepath.Rel(tx.gameRoot, path)
	if err != nil {
		return tx.gameRoot
	}
	rel = filepath.ToSlash(rel)
	for _, dir := range protectedDirs {
		if rel == dir || strings.HasPrefix(strings.ToLower(rel), strings.ToLower(dir)+"/") {
			return filepath.Join(tx.gameRoot, filepath.FromSlash(dir))
		}
	}
	return tx.gameRoot
}
