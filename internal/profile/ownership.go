package profile

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/conn-castle/modlayer/internal/messages"
)

// Owner identifies the mod that owns a destination path.
type Owner struct {
	ID   ModIdentifier
	Name string
}

// Manifest maps destination-relative paths to their enabled owner.
type Manifest map[string]Owner

// OwnerOf returns the owner of rel if one exists and is not exclude.
func (m Manifest) OwnerOf(rel string, exclude ModIdentifier) (Owner, bool) {
	owner, ok := m[rel]
	if !ok || owner.ID.Equal(exclude) {
		return Owner{}, false
	}
	return owner, true
}

// ConflictAction names the operation a ConflictError refused.
type ConflictAction string

// Operations that check path ownership.
const (
	ConflictInstall ConflictAction = "install"
	ConflictEnable  ConflictAction = "enable"
)

// ConflictError reports a path that Claimant would place while another
// enabled mod owns it. Install and enable both return it.
type ConflictError struct {
	Owner    Owner
	Claimant ModIdentifier
	Path     string
	Action   ConflictAction
}

func (e *ConflictError) Error() string {
	if e.Action == ConflictEnable {
		return fmt.Sprintf(messages.StateConflictFmt, e.Claimant, e.Path, e.Owner.ID)
	}
	return fmt.Sprintf(messages.InstallConflictFmt, e.Claimant, e.Path, e.Owner.ID)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// EnabledManifest builds the path ownership map over every enabled mod.
// When the profile already violates the disjointness invariant, the first
// mod in profile order wins; CheckOwnership reports such violations.
func (p *Profile) EnabledManifest() Manifest {
	manifest := make(Manifest)
	for _, m := range p.Mods {
		if !m.Enabled {
			continue
		}
		for _, f := range m.Files {
			if _, taken := manifest[f]; taken {
				continue
			}
			manifest[f] = Owner{ID: m.ID, Name: m.DisplayName()}
		}
	}
	return manifest
}

// Violation describes a path owned by more than one enabled mod.
type Violation struct {
	Path   string
	Owners []ModIdentifier
}

// CheckOwnership returns every path claimed by two or more enabled mods,
// sorted by path. Violations are reported, never resolved.
func (p *Profile) CheckOwnership() []Violation {
	claims := make(map[string][]ModIdentifier)
	for _, m := range p.Mods {
		if !m.Enabled {
			continue
		}
		for _, f := range m.Files {
			claims[f] = append(claims[f], m.ID)
		}
	}
	var out []Violation
	for path, owners := range claims {
		if len(owners) > 1 {
			out = append(out, Violation{Path: path, Owners: owners})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// OwnershipError converts violations into a single error, or nil.
func (p *Profile) OwnershipError() error {
	violations := p.CheckOwnership()
	if len(violations) == 0 {
		return nil
	}
	v := violations[0]
	names := make([]string, 0, len(v.Owners))
	for _, id := range v.Owners {
		names = append(names, id.String())
	}
	return fmt.Errorf(messages.ProfileOwnershipFmt, p.Name, v.Path, strings.Join(names, ", "))
}

// ReleasePaths removes paths from the manifest of the mod identified by id.
// It is used when a forced install transfers ownership to another mod.
func (p *Profile) ReleasePaths(id ModIdentifier, paths []string) {
	m := p.Mod(id)
	if m == nil || len(paths) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		drop[path] = struct{}{}
	}
	kept := m.Files[:0]
	for _, f := range m.Files {
		if _, ok := drop[f]; !ok {
			kept = append(kept, f)
		}
	}
	m.Files = kept
}
