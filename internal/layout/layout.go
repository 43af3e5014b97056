// Package layout decides where each file of an extracted mod belongs under
// the game root.
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conn-castle/modlayer/internal/messages"
)

// Root is a destination root under the game directory.
type Root string

// Destination roots. RootPlugins holds the client-side loader tree and
// RootUserData the server-side user tree.
const (
	RootPlugins  Root = "BepInEx"
	RootUserData Root = "user"
)

const (
	pluginsDir   = "BepInEx/plugins"
	userModsDir  = "user/mods"
	manifestFile = "package.json"
)

// ErrNothingToInstall reports a staging tree with no mappable files.
var ErrNothingToInstall = errors.New(messages.LayoutNothingToInstall)

// Entry is one staged file and its destination.
type Entry struct {
	// Source is the absolute path inside the staging tree.
	Source string
	// Dest is the slash-separated path relative to the game root.
	Dest string
	Root Root
}

// Plan is the mapping of a staging tree onto the game root.
type Plan struct {
	Entries []Entry
	// Unmapped lists staging paths that have no install location.
	Unmapped []string
	// Ignored lists top-level documentation files.
	Ignored []string
}

// Dests returns the destination paths in plan order.
func (p Plan) Dests() []string {
	out := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.Dest
	}
	return out
}

// Collapse returns the effective content root of a staging tree. When the
// tree holds exactly one entry, that entry is a directory, and its name
// equals archiveBase or modName ignoring case, the result is that directory.
// Otherwise the result is stagingRoot. At most one level is ever removed.
func Collapse(stagingRoot string, archiveBase string, modName string) (string, bool, error) {
	entries, err := os.ReadDir(stagingRoot)
	if err != nil {
		return "", false, fmt.Errorf(messages.LayoutReadFmt, stagingRoot, err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return stagingRoot, false, nil
	}
	name := entries[0].Name()
	if !nameMatches(name, archiveBase) && !nameMatches(name, modName) {
		return stagingRoot, false, nil
	}
	return filepath.Join(stagingRoot, name), true, nil
}

func nameMatches(name string, want string) bool {
	want = strings.TrimSpace(want)
	return want != "" && strings.EqualFold(name, want)
}

// Map assigns a destination to every file beneath root:
//
//	BepInEx/**                  kept as-is
//	user/**                     kept as-is
//	*.dll                       BepInEx/plugins/<file>
//	<dir>/package.json present  user/mods/<dir>/**
//	<dir> containing .dll files BepInEx/plugins/<dir>/**
//
// Top-level documentation files are ignored; anything else is unmapped.
func Map(root string) (Plan, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return Plan{}, fmt.Errorf(messages.LayoutReadFmt, root, err)
	}
	var plan Plan
	seen := make(map[string]struct{})
	add := func(source string, dest string, r Root) {
		key := strings.ToLower(dest)
		if _, dup := seen[key]; dup {
			plan.Unmapped = append(plan.Unmapped, source)
			return
		}
		seen[key] = struct{}{}
		plan.Entries = append(plan.Entries, Entry{Source: source, Dest: dest, Root: r})
	}

	for _, entry := range entries {
		name := entry.Name()
		full := filepath.Join(root, name)
		switch {
		case entry.IsDir() && strings.EqualFold(name, string(RootPlugins)):
			if err := mapTree(full, string(RootPlugins), RootPlugins, add); err != nil {
				return Plan{}, err
			}
		case entry.IsDir() && strings.EqualFold(name, string(RootUserData)):
			if err := mapTree(full, string(RootUserData), RootUserData, add); err != nil {
				return Plan{}, err
			}
		case entry.IsDir():
			hasManifest, hasDLL, err := inspectDir(full)
			if err != nil {
				return Plan{}, err
			}
			switch {
			case hasManifest:
				err = mapTree(full, path.Join(userModsDir, name), RootUserData, add)
			case hasDLL:
				err = mapTree(full, path.Join(pluginsDir, name), RootPlugins, add)
			default:
				err = collect(full, &plan.Unmapped)
			}
			if err != nil {
				return Plan{}, err
			}
		case entry.Type().IsRegular() && isDLL(name):
			add(full, path.Join(pluginsDir, name), RootPlugins)
		case entry.Type().IsRegular() && isDoc(name):
			plan.Ignored = append(plan.Ignored, full)
		default:
			plan.Unmapped = append(plan.Unmapped, full)
		}
	}

	sort.Slice(plan.Entries, func(i, j int) bool { return plan.Entries[i].Dest < plan.Entries[j].Dest })
	if len(plan.Entries) == 0 {
		return plan, ErrNothingToInstall
	}
	return plan, nil
}

// mapTree maps every regular file under dir to prefix/<relative path>.
func mapTree(dir string, prefix string, r Root, add func(source, dest string, r Root)) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf(messages.LayoutReadFmt, p, err)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return fmt.Errorf(messages.LayoutReadFmt, p, err)
		}
		add(p, path.Join(prefix, filepath.ToSlash(rel)), r)
		return nil
	})
}

func inspectDir(dir string) (hasManifest bool, hasDLL bool, err error) {
	if info, statErr := os.Stat(filepath.Join(dir, manifestFile)); statErr == nil && info.Mode().IsRegular() {
		hasManifest = true
	}
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf(messages.LayoutReadFmt, p, walkErr)
		}
		if d.Type().IsRegular() && isDLL(d.Name()) {
			hasDLL = true
			return fs.SkipAll
		}
		return nil
	})
	return hasManifest, hasDLL, err
}

func collect(dir string, out *[]string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf(messages.LayoutReadFmt, p, err)
		}
		if d.Type().IsRegular() {
			*out = append(*out, p)
		}
		return nil
	})
}

func isDLL(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".dll")
}

func isDoc(name string) bool {
	lower := strings.ToLower(name)
	switch filepath.Ext(lower) {
	case ".md", ".txt", ".pdf", "":
	default:
		return false
	}
	for _, prefix := range []string{"readme", "license", "licence", "changelog", "changes"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
