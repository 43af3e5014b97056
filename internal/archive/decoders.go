package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"

	"github.com/conn-castle/modlayer/internal/fsutil"
	"github.com/conn-castle/modlayer/internal/messages"
)

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// isJunk reports platform metadata that archivers add and mods never need.
func isJunk(name string) bool {
	name = strings.ReplaceAll(name, "\\", "/")
	for _, segment := range strings.Split(name, "/") {
		if segment == "__MACOSX" {
			return true
		}
	}
	switch path.Base(name) {
	case ".DS_Store", "Thumbs.db", "desktop.ini":
		return true
	}
	return false
}

// entryWriter materialises archive entries beneath root, enforcing the
// staging boundary and the size limit.
type entryWriter struct {
	root    string
	limits  Limits
	written int64
}

func (w *entryWriter) target(name string) (string, error) {
	dest, err := fsutil.SafeJoin(w.root, name)
	if err != nil {
		return "", fmt.Errorf(messages.ArchiveEntryOutsideFmt, name)
	}
	return dest, nil
}

func (w *entryWriter) dir(name string) error {
	dest, err := w.target(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dest, dirPerm); err != nil {
		return fmt.Errorf(messages.FSCreateDirFmt, dest, err)
	}
	return nil
}

func (w *entryWriter) file(ctx context.Context, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := w.target(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
		return fmt.Errorf(messages.FSCreateDirFmt, filepath.Dir(dest), err)
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf(messages.ArchiveEntryFmt, name, err)
	}
	remaining := w.limits.MaxBytes - w.written
	n, copyErr := io.Copy(out, io.LimitReader(r, remaining+1))
	closeErr := out.Close()
	w.written += n
	if copyErr != nil {
		return fmt.Errorf(messages.ArchiveEntryFmt, name, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf(messages.ArchiveEntryFmt, name, closeErr)
	}
	if w.written > w.limits.MaxBytes {
		return fmt.Errorf(messages.ArchiveTooLargeFmt, w.limits.MaxBytes)
	}
	if err := os.Chmod(dest, filePerm); err != nil {
		return fmt.Errorf(messages.ArchiveEntryFmt, name, err)
	}
	return nil
}

// entry is the common view of a zip or 7z member.
type entry interface {
	FileInfo() fs.FileInfo
	Open() (io.ReadCloser, error)
}

func (w *entryWriter) entry(ctx context.Context, name string, e entry) error {
	if isJunk(name) {
		return nil
	}
	info := e.FileInfo()
	if info.IsDir() {
		return w.dir(name)
	}
	if !info.Mode().IsRegular() {
		// Symlinks and devices are never installed.
		return nil
	}
	rc, err := e.Open()
	if err != nil {
		return fmt.Errorf(messages.ArchiveEntryFmt, name, err)
	}
	defer func() {
		_ = rc.Close()
	}()
	return w.file(ctx, name, rc)
}

func decodeZip(ctx context.Context, src string, dst string, limits Limits) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf(messages.ArchiveOpenFmt, src, err)
	}
	defer func() {
		_ = r.Close()
	}()
	w := &entryWriter{root: dst, limits: limits}
	for _, f := range r.File {
		if err := w.entry(ctx, f.Name, f); err != nil {
			return err
		}
	}
	return nil
}

func decodeSevenZip(ctx context.Context, src string, dst string, limits Limits) error {
	r, err := sevenzip.OpenReader(src)
	if err != nil {
		return fmt.Errorf(messages.ArchiveOpenFmt, src, err)
	}
	defer func() {
		_ = r.Close()
	}()
	w := &entryWriter{root: dst, limits: limits}
	for _, f := range r.File {
		if err := w.entry(ctx, f.Name, f); err != nil {
			return err
		}
	}
	return nil
}

func decodeBinary(ctx context.Context, src string, dst string, limits Limits) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf(messages.ArchiveOpenFmt, src, err)
	}
	defer func() {
		_ = in.Close()
	}()
	w := &entryWriter{root: dst, limits: limits}
	return w.file(ctx, filepath.Base(src), in)
}
