package modmeta

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/modlayer/internal/testutil"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Meta
		wantErr string
	}{
		{
			name: "full",
			data: `{"name":"SAIN","version":"3.1.0","author":"Solarint","license":"MIT","sptVersion":"~3.9.0","main":"src/mod.js"}`,
			want: Meta{Name: "SAIN", Version: "3.1.0", Author: "Solarint", License: "MIT", SptVersion: "~3.9.0"},
		},
		{
			name: "compound license",
			data: `{"name":"x","license":"MIT OR Apache-2.0"}`,
			want: Meta{Name: "x", License: "MIT OR Apache-2.0"},
		},
		{
			name: "no license",
			data: `{"name":" padded "}`,
			want: Meta{Name: "padded"},
		},
		{name: "invalid license", data: `{"name":"x","license":"Totally Free"}`, wantErr: "not a valid SPDX"},
		{name: "missing name", data: `{"version":"1"}`, wantErr: "name is required"},
		{name: "bad json", data: `{`, wantErr: "decode mod metadata"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.data), "package.json")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocate(t *testing.T) {
	got, err := Locate([]string{
		"BepInEx/plugins/SAIN/package.json",
		"user/mods/SAIN/package.json",
		"user/mods/SAIN/config/package.json",
	})
	require.NoError(t, err)
	assert.Equal(t, "user/mods/SAIN/package.json", got)

	_, err = Locate([]string{"BepInEx/plugins/SAIN.dll"})
	require.Error(t, err)

	_, err = Locate([]string{"user/mods/A/package.json", "user/mods/B/package.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple")
}

func TestForFiles(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"user/mods/SAIN/package.json": `{"name":"SAIN","version":"3.1.0"}`,
	})
	meta, err := ForFiles(root, []string{"BepInEx/plugins/SAIN.dll", "user/mods/SAIN/package.json"})
	require.NoError(t, err)
	assert.Equal(t, "SAIN", meta.Name)
	assert.Equal(t, "user/mods/SAIN/package.json", meta.Path)
}

func TestReadError(t *testing.T) {
	orig := readFile
	t.Cleanup(func() { readFile = orig })
	readFile = func(string) ([]byte, error) { return nil, errors.New("boom") }

	_, err := Read(filepath.Join(t.TempDir(), FileName))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
