package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/conn-castle/modlayer/internal/messages"
)

// MoveFile renames src to dst, creating dst's parent directories. When the
// rename crosses a device boundary it falls back to copy then remove.
func MoveFile(src string, dst string) error {
	if err := osMkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf(messages.FSCreateDirFmt, filepath.Dir(dst), err)
	}
	err := osRename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return fmt.Errorf(messages.FSMoveFmt, src, dst, err)
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	if err := osRemove(src); err != nil {
		return fmt.Errorf(messages.FSRemoveAfterCopyFmt, src, err)
	}
	return nil
}

// CopyFile copies a regular file from src to dst atomically, keeping src's
// permission bits.
func CopyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf(messages.FSCopyOpenSourceFmt, src, err)
	}
	defer func() {
		_ = in.Close()
	}()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf(messages.FSStatFmt, src, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf(messages.FSNotRegularFileFmt, src)
	}
	return WriteStreamAtomic(dst, in, info.Mode().Perm())
}

// WriteStreamAtomic copies r into path through a temp file in the same directory.
func WriteStreamAtomic(path string, r io.Reader, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := osMkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf(messages.FSCreateDirFmt, dir, err)
	}
	tmp, err := osCreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf(messages.FSCreateTempFileFmt, path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf(messages.FSWriteTempFileFmt, path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf(messages.FSSyncTempFileFmt, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf(messages.FSCloseTempFileFmt, path, err)
	}
	if err := osChmod(tmpName, perm); err != nil {
		return fmt.Errorf(messages.FSChmodTempFileFmt, path, err)
	}
	if err := osRename(tmpName, path); err != nil {
		return fmt.Errorf(messages.FSRenameTempFileFmt, path, err)
	}
	committed = true
	return nil
}
