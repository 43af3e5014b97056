// Package modmeta reads the package.json metadata that server-side mods ship
// under user/mods/<mod>/.
package modmeta

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/github/go-spdx/v2/spdxexp"

	"github.com/conn-castle/modlayer/internal/messages"
)

// FileName is the metadata file name inside a user mod directory.
const FileName = "package.json"

var readFile = os.ReadFile

// Meta is the subset of package.json the manager reports.
type Meta struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Author     string `json:"author"`
	License    string `json:"license"`
	SptVersion string `json:"sptVersion"`
	// Path is the metadata file's slash-separated path relative to the game root.
	Path string `json:"-"`
}

// Parse decodes package.json content and validates it. An empty license is
// allowed; a non-empty one must be a valid SPDX expression.
func Parse(data []byte, source string) (Meta, error) {
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf(messages.ModMetaDecodeFmt, source, err)
	}
	meta.Name = strings.TrimSpace(meta.Name)
	meta.License = strings.TrimSpace(meta.License)
	if meta.Name == "" {
		return Meta{}, fmt.Errorf(messages.ModMetaNameRequired, source)
	}
	if meta.License != "" {
		if ok, _ := spdxexp.ValidateLicenses([]string{meta.License}); !ok {
			return Meta{}, fmt.Errorf(messages.ModMetaLicenseFmt, source, meta.License)
		}
	}
	return meta, nil
}

// Read loads and parses the metadata file at path.
func Read(path string) (Meta, error) {
	data, err := readFile(path)
	if err != nil {
		return Meta{}, fmt.Errorf(messages.ModMetaReadFmt, path, err)
	}
	return Parse(data, path)
}

// Locate returns the manifest path of the mod's metadata file: the single
// user/mods/<dir>/package.json among files.
func Locate(files []string) (string, error) {
	var found []string
	for _, f := range files {
		dir, name := path.Split(f)
		if !strings.EqualFold(name, FileName) {
			continue
		}
		parts := strings.Split(strings.TrimSuffix(dir, "/"), "/")
		if len(parts) == 3 && strings.EqualFold(parts[0], "user") && strings.EqualFold(parts[1], "mods") {
			found = append(found, f)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf(messages.ModMetaNotFoundFmt, "user/mods")
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf(messages.ModMetaAmbiguousFmt, "user/mods", strings.Join(found, ", "))
	}
}

// ForFiles locates and reads the metadata among a mod's manifest files,
// resolved against root.
func ForFiles(root string, files []string) (Meta, error) {
	rel, err := Locate(files)
	if err != nil {
		return Meta{}, err
	}
	meta, err := Read(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return Meta{}, err
	}
	meta.Path = rel
	return meta, nil
}
