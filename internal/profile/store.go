package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/conn-castle/modlayer/internal/fsutil"
	"github.com/conn-castle/modlayer/internal/messages"
)

// SchemaVersion is the profile store format written by this build.
const SchemaVersion = 1

// ErrStoreValidation wraps profile store validation failures, as opposed to
// filesystem or TOML syntax errors.
var ErrStoreValidation = errors.New("profile store validation failed")

var readFile = os.ReadFile

// Document is the on-disk profile store.
type Document struct {
	SchemaVersion int       `toml:"schema_version"`
	ActiveProfile string    `toml:"active_profile,omitempty"`
	Profiles      []Profile `toml:"profiles,omitempty"`
}

// Profile returns the named profile, matched case-insensitively.
func (d *Document) Profile(name string) (*Profile, error) {
	for i := range d.Profiles {
		if strings.EqualFold(d.Profiles[i].Name, name) {
			return &d.Profiles[i], nil
		}
	}
	return nil, fmt.Errorf(messages.ProfileNotFoundFmt, name)
}

// Active returns the active profile.
func (d *Document) Active() (*Profile, error) {
	if strings.TrimSpace(d.ActiveProfile) == "" {
		return nil, fmt.Errorf(messages.ProfileNoActive)
	}
	return d.Profile(d.ActiveProfile)
}

// AddProfile appends p and makes it active when no profile is active yet.
func (d *Document) AddProfile(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, err := d.Profile(p.Name); err == nil {
		return fmt.Errorf(messages.ProfileExistsFmt, p.Name)
	}
	d.Profiles = append(d.Profiles, p)
	if d.ActiveProfile == "" {
		d.ActiveProfile = p.Name
	}
	return nil
}

// RemoveProfile drops the named profile, clearing the active pointer if needed.
func (d *Document) RemoveProfile(name string) error {
	for i := range d.Profiles {
		if strings.EqualFold(d.Profiles[i].Name, name) {
			d.Profiles = append(d.Profiles[:i], d.Profiles[i+1:]...)
			if strings.EqualFold(d.ActiveProfile, name) {
				d.ActiveProfile = ""
				if len(d.Profiles) > 0 {
					d.ActiveProfile = d.Profiles[0].Name
				}
			}
			return nil
		}
	}
	return fmt.Errorf(messages.ProfileNotFoundFmt, name)
}

// Switch makes the named profile active.
func (d *Document) Switch(name string) error {
	p, err := d.Profile(name)
	if err != nil {
		return err
	}
	d.ActiveProfile = p.Name
	return nil
}

// ResolvedGameRoot expands a leading ~ in the profile's game root.
func (p *Profile) ResolvedGameRoot() (string, error) {
	root, err := homedir.Expand(p.GameRoot)
	if err != nil {
		return "", fmt.Errorf(messages.StoreExpandGameRootFmt, p.GameRoot, err)
	}
	return root, nil
}

// Store persists the profile Document as TOML.
type Store struct {
	path string
}

// NewStore returns a store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the store. A missing file yields an empty document.
func (s *Store) Load() (*Document, error) {
	data, err := readFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Document{SchemaVersion: SchemaVersion}, nil
		}
		return nil, fmt.Errorf(messages.StoreReadFmt, s.path, err)
	}
	return Parse(data, s.path)
}

// Parse decodes and validates store TOML. source is used in error messages.
func Parse(data []byte, source string) (*Document, error) {
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf(messages.StoreDecodeFmt, source, err)
	}
	if err := decodeStrict(data); err != nil {
		return nil, fmt.Errorf("%w: "+messages.StoreUnknownKeysFmt+"; "+messages.StoreValidationGuidance, ErrStoreValidation, source, err)
	}
	if doc.SchemaVersion == 0 {
		doc.SchemaVersion = SchemaVersion
	}
	if doc.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: "+messages.StoreSchemaVersionFmt, ErrStoreValidation, source, doc.SchemaVersion, SchemaVersion)
	}
	for i := range doc.Profiles {
		if err := doc.Profiles[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreValidation, err)
		}
	}
	if doc.ActiveProfile != "" {
		if _, err := doc.Profile(doc.ActiveProfile); err != nil {
			return nil, fmt.Errorf("%w: "+messages.StoreActiveMissingFmt, ErrStoreValidation, doc.ActiveProfile, source)
		}
	}
	return &doc, nil
}

func decodeStrict(data []byte) error {
	var doc Document
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	return decoder.Decode(&doc)
}

// Save writes doc atomically under the store lock.
func (s *Store) Save(doc *Document) error {
	return withFileLock(s.path+".lock", func() error {
		return s.write(doc)
	})
}

// Update loads the store, applies fn, and saves the result while holding the
// store lock for the whole read-modify-write cycle. Nothing is written when
// fn returns an error.
func (s *Store) Update(fn func(doc *Document) error) error {
	return withFileLock(s.path+".lock", func() error {
		doc, err := s.Load()
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		return s.write(doc)
	})
}

func (s *Store) write(doc *Document) error {
	doc.SchemaVersion = SchemaVersion
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf(messages.StoreEncodeFmt, err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf(messages.StoreWriteFmt, s.path, err)
	}
	return nil
}
