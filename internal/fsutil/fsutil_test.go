package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "profiles.toml")

	require.NoError(t, WriteFileAtomic(path, []byte("a = 1\n"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("a = 2\n"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a = 2\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteFileAtomicRenameFailureCleansTemp(t *testing.T) {
	dir := t.TempDir()
	orig := osRename
	osRename = func(string, string) error { return errors.New("boom") }
	t.Cleanup(func() { osRename = orig })

	err := WriteFileAtomic(filepath.Join(dir, "out.txt"), []byte("x"), 0o644)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveTreeClearsReadOnlyNestedEntries(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores permission bits")
	}
	root := filepath.Join(t.TempDir(), "stale")
	deep := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(deep, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "plugin.dll"), []byte("x"), 0o444))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "top.txt"), []byte("y"), 0o444))
	require.NoError(t, os.Chmod(deep, 0o555))
	require.NoError(t, os.Chmod(filepath.Join(root, "a"), 0o555))

	require.NoError(t, RemoveTree(root))

	_, err := os.Stat(root)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestRemoveTreeRemovesChildrenBeforeParents(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tree")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "x", "y"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "x", "y", "f"), []byte("1"), 0o644))

	var removed []string
	orig := osRemove
	osRemove = func(name string) error {
		removed = append(removed, name)
		return orig(name)
	}
	t.Cleanup(func() { osRemove = orig })

	require.NoError(t, RemoveTree(root))
	require.Equal(t, []string{
		filepath.Join(root, "x", "y", "f"),
		filepath.Join(root, "x", "y"),
		filepath.Join(root, "x"),
		root,
	}, removed)
}

func TestRemoveTreeMissingPath(t *testing.T) {
	require.NoError(t, RemoveTree(filepath.Join(t.TempDir(), "missing")))
}

func TestRemoveTreeSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("z"), 0o400))
	require.NoError(t, RemoveTree(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestMoveFileFallsBackToCopyAcrossDevices(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.zip")
	dst := filepath.Join(dir, "MODS", "src.zip")
	require.NoError(t, os.WriteFile(src, []byte("archive"), 0o644))

	calls := 0
	orig := osRename
	osRename = func(from, to string) error {
		calls++
		if calls == 1 {
			return &os.LinkError{Op: "rename", Old: from, New: to, Err: unix.EXDEV}
		}
		return orig(from, to)
	}
	t.Cleanup(func() { osRename = orig })

	require.NoError(t, MoveFile(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "archive", string(data))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestMoveFileOtherRenameErrorIsReturned(t *testing.T) {
	dir := t.TempDir()
	err := MoveFile(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"))
	require.Error(t, err)
}

func TestSafeJoin(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		name    string
		rel     string
		wantErr bool
	}{
		{name: "plain", rel: "BepInEx/plugins/Foo.dll"},
		{name: "backslashes", rel: `user\mods\Foo\package.json`},
		{name: "dot segments inside", rel: "user/./mods/../mods/x"},
		{name: "escape", rel: "../outside", wantErr: true},
		{name: "nested escape", rel: "user/../../outside", wantErr: true},
		{name: "absolute", rel: "/etc/passwd", wantErr: true},
		{name: "empty", rel: "", wantErr: true},
		{name: "root itself", rel: ".", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeJoin(root, tt.rel)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, IsWithin(root, got))
		})
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "SAIN_ Solarint's AI", SanitizeName(`SAIN: Solarint's AI`))
	assert.Equal(t, "a_b_c_d_e_f_g_h_i_j", SanitizeName(`a/b\c:d*e?f"g<h>i|j`))
}

func TestRemoveEmptyParents(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "disabled-mods", "Foo", "BepInEx", "plugins")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	RemoveEmptyParents(deep, filepath.Join(root, "disabled-mods"))

	_, err := os.Stat(filepath.Join(root, "disabled-mods", "Foo"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "disabled-mods"))
	assert.NoError(t, err)
}
