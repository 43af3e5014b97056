// Package profile defines the persisted profile and manifest model: which mods
// a game root tracks, which files each mod owns, and which mods are enabled.
package profile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/conn-castle/modlayer/internal/fsutil"
	"github.com/conn-castle/modlayer/internal/messages"
	"github.com/conn-castle/modlayer/internal/resolve"
)

// Profile is one game installation and the mods tracked for it.
type Profile struct {
	Name        string           `toml:"name"`
	GameRoot    string           `toml:"game_root"`
	GameVersion string           `toml:"game_version"`
	Filters     []resolve.Filter `toml:"filters,omitempty"`
	Mods        []ModEntry       `toml:"mods,omitempty"`
}

// ModEntry is the manifest record for one mod.
type ModEntry struct {
	ID               ModIdentifier    `toml:"id"`
	Name             string           `toml:"name"`
	Enabled          bool             `toml:"enabled"`
	InstalledVersion string           `toml:"installed_version,omitempty"`
	InstalledAsset   string           `toml:"installed_asset,omitempty"`
	Files            []string         `toml:"files,omitempty"`
	Filters          []resolve.Filter `toml:"filters,omitempty"`
	AddedAt          time.Time        `toml:"added_at"`
	UpdatedAt        time.Time        `toml:"updated_at"`
}

// DisplayName returns the entry's name, falling back to the repository name.
func (m ModEntry) DisplayName() string {
	if strings.TrimSpace(m.Name) != "" {
		return m.Name
	}
	return m.ID.Repo
}

// QuarantineName is the directory name used for the mod under the quarantine root.
func (m ModEntry) QuarantineName() string {
	return fsutil.SanitizeName(m.DisplayName())
}

// Installed reports whether the entry has been installed at least once.
func (m ModEntry) Installed() bool {
	return m.InstalledVersion != "" || len(m.Files) > 0
}

// Owns reports whether rel is one of the entry's manifest paths.
func (m ModEntry) Owns(rel string) bool {
	for _, f := range m.Files {
		if f == rel {
			return true
		}
	}
	return false
}

// NewModEntry creates an enabled entry with no installed files.
func NewModEntry(id ModIdentifier, now time.Time) ModEntry {
	return ModEntry{
		ID:        id,
		Name:      id.Repo,
		Enabled:   true,
		AddedAt:   now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// Validate checks profile-level invariants.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf(messages.ProfileNameRequired)
	}
	if strings.TrimSpace(p.GameRoot) == "" {
		return fmt.Errorf(messages.ProfileGameRootRequired, p.Name)
	}
	seen := make(map[string]struct{}, len(p.Mods))
	for _, m := range p.Mods {
		key := m.ID.Key()
		if _, ok := seen[key]; ok {
			return fmt.Errorf(messages.ProfileDuplicateModFmt, p.Name, m.ID)
		}
		seen[key] = struct{}{}
	}
	for _, f := range p.Filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Index returns the position of the mod with the given identifier, or -1.
func (p *Profile) Index(id ModIdentifier) int {
	for i := range p.Mods {
		if p.Mods[i].ID.Equal(id) {
			return i
		}
	}
	return -1
}

// Mod returns a pointer to the entry for id, or nil.
func (p *Profile) Mod(id ModIdentifier) *ModEntry {
	if i := p.Index(id); i >= 0 {
		return &p.Mods[i]
	}
	return nil
}

// Find resolves a user query to exactly one entry. A query matches an entry
// by owner/repo, by repository name, or by display name, case-insensitively.
func (p *Profile) Find(query string) (*ModEntry, error) {
	q := strings.TrimSpace(query)
	if id, err := ParseIdentifier(q); err == nil {
		if m := p.Mod(id); m != nil {
			return m, nil
		}
	}
	var matches []int
	for i := range p.Mods {
		m := p.Mods[i]
		if strings.EqualFold(m.ID.Repo, q) || strings.EqualFold(m.DisplayName(), q) {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf(messages.ProfileModNotFoundFmt, query, p.Name)
	case 1:
		return &p.Mods[matches[0]], nil
	default:
		names := make([]string, 0, len(matches))
		for _, i := range matches {
			names = append(names, p.Mods[i].ID.String())
		}
		return nil, fmt.Errorf(messages.ProfileModAmbiguousFmt, query, strings.Join(names, ", "))
	}
}

// Add appends a new entry. Adding an identifier already present is an error.
func (p *Profile) Add(entry ModEntry) error {
	if p.Index(entry.ID) >= 0 {
		return fmt.Errorf(messages.ProfileModExistsFmt, entry.ID, p.Name)
	}
	p.Mods = append(p.Mods, entry)
	return nil
}

// Remove drops the entry for id and reports whether it existed.
func (p *Profile) Remove(id ModIdentifier) bool {
	i := p.Index(id)
	if i < 0 {
		return false
	}
	p.Mods = append(p.Mods[:i], p.Mods[i+1:]...)
	return true
}

// Replace swaps in entry for the existing record with the same identifier.
func (p *Profile) Replace(entry ModEntry) bool {
	i := p.Index(entry.ID)
	if i < 0 {
		return false
	}
	p.Mods[i] = entry
	return true
}

// SortedFiles returns a sorted copy of a path set.
func SortedFiles(files []string) []string {
	out := append([]string(nil), files...)
	sort.Strings(out)
	return out
}
