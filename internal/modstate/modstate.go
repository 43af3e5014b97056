// Package modstate enables and disables installed mods by moving their files
// between the game root and a quarantine tree.
package modstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/conn-castle/modlayer/internal/fsutil"
	"github.com/conn-castle/modlayer/internal/logging"
	"github.com/conn-castle/modlayer/internal/messages"
	"github.com/conn-castle/modlayer/internal/profile"
)

// QuarantineDir is the quarantine root under the game root.
const QuarantineDir = "disabled-mods"

// protectedDirs are never pruned when they become empty.
var protectedDirs = []string{"BepInEx/plugins", "user/mods"}

// ErrAlready reports an enable or disable of a mod already in that state.
var ErrAlready = errors.New("mod already in requested state")

// State is the on-disk condition of a mod's files.
type State string

// Mod states derived from the filesystem.
const (
	StateEnabled      State = "enabled"
	StateDisabled     State = "disabled"
	StatePartial      State = "partial"
	StateMissing      State = "missing"
	StateNotInstalled State = "not installed"
)

// Report lists what a state change did.
type Report struct {
	// Moved is the set of paths relocated, in manifest order.
	Moved []string
	// Missing lists manifest paths that were found in neither location.
	Missing []string
}

// PartialMoveError is a warning: the state change completed, but some
// manifest files were missing and could not be moved.
type PartialMoveError struct {
	Mod     string
	Missing []string
	Total   int
}

func (e *PartialMoveError) Error() string {
	return fmt.Sprintf(messages.StatePartialMoveFmt, e.Mod, len(e.Missing), e.Total, strings.Join(e.Missing, ", "))
}

// IsPartialMove reports whether err is only a PartialMoveError warning.
func IsPartialMove(err error) bool {
	var pe *PartialMoveError
	return errors.As(err, &pe)
}

// ConflictError reports an enable blocked by another enabled mod's path.
type ConflictError = profile.ConflictError

// ForeignFileError reports an enable blocked by an unmanaged file at a
// destination path.
type ForeignFileError struct {
	Mod  profile.ModIdentifier
	Path string
}

func (e *ForeignFileError) Error() string {
	return fmt.Sprintf(messages.StateForeignFileFmt, e.Mod, e.Path)
}

// Manager moves mod files in and out of quarantine.
type Manager struct {
	gameRoot string
	sys      System
	logger   *log.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithSystem overrides the filesystem.
func WithSystem(sys System) Option {
	return func(m *Manager) { m.sys = sys }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// New returns a manager for gameRoot.
func New(gameRoot string, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(gameRoot) == "" {
		return nil, fmt.Errorf(messages.InstallGameRootRequired)
	}
	m := &Manager{gameRoot: gameRoot, sys: RealSystem{}}
	for _, opt := range opts {
		opt(m)
	}
	if m.sys == nil {
		return nil, fmt.Errorf(messages.InstallSystemRequired)
	}
	m.logger = logging.OrDiscard(m.logger)
	return m, nil
}

// QuarantineRoot returns the quarantine directory for entry.
func (m *Manager) QuarantineRoot(entry profile.ModEntry) string {
	return filepath.Join(m.gameRoot, QuarantineDir, entry.QuarantineName())
}

type move struct {
	rel  string
	from string
	to   string
}

// paths resolves rel under the game root and the quarantine root.
func (m *Manager) paths(entry profile.ModEntry, rel string) (string, string, error) {
	live, err := fsutil.SafeJoin(m.gameRoot, rel)
	if err != nil {
		return "", "", err
	}
	quarantined, err := fsutil.SafeJoin(m.QuarantineRoot(entry), rel)
	if err != nil {
		return "", "", fmt.Errorf(messages.StateQuarantineDirFmt, entry.ID, err)
	}
	return live, quarantined, nil
}

// Disable moves every manifest file present in the game root into
// quarantine. A failure moving a present file undoes the moves made so far.
// Missing files yield a PartialMoveError alongside a complete Report.
func (m *Manager) Disable(entry profile.ModEntry) (Report, error) {
	if len(entry.Files) == 0 {
		return Report{}, fmt.Errorf(messages.StateNotInstalledFmt, entry.ID)
	}
	if !entry.Enabled {
		return Report{}, fmt.Errorf("%w: "+messages.StateAlreadyFmt, ErrAlready, entry.ID, StateDisabled)
	}

	var moves []move
	var report Report
	for _, rel := range entry.Files {
		live, quarantined, err := m.paths(entry, rel)
		if err != nil {
			return Report{}, m.undo(moves, err)
		}
		present, err := exists(m.sys, live)
		if err != nil {
			return Report{}, m.undo(moves, fmt.Errorf(messages.StateStatFmt, live, err))
		}
		if !present {
			report.Missing = append(report.Missing, rel)
			continue
		}
		if err := m.relocate(live, quarantined); err != nil {
			return Report{}, m.undo(moves, fmt.Errorf(messages.StateQuarantineFmt, entry.ID, rel, err))
		}
		moves = append(moves, move{rel: rel, from: live, to: quarantined})
		report.Moved = append(report.Moved, rel)
	}

	for _, mv := range moves {
		m.sys.RemoveEmptyParents(filepath.Dir(mv.from), m.pruneStop(mv.from))
	}
	m.logger.Info("disabled mod", "mod", entry.ID, "moved", len(report.Moved), "missing", len(report.Missing))
	return report, m.partial(entry, report)
}

// Enable moves quarantined files back into the game root. It refuses to run
// when another enabled mod owns one of the paths, or when an unmanaged file
// sits where a quarantined file would go.
func (m *Manager) Enable(entry profile.ModEntry, manifest profile.Manifest) (Report, error) {
	if len(entry.Files) == 0 {
		return Report{}, fmt.Errorf(messages.StateNotInstalledFmt, entry.ID)
	}
	if entry.Enabled {
		return Report{}, fmt.Errorf("%w: "+messages.StateAlreadyFmt, ErrAlready, entry.ID, StateEnabled)
	}

	type pending struct {
		rel          string
		live         string
		quarantined  string
		atLive       bool
		inQuarantine bool
	}
	plan := make([]pending, 0, len(entry.Files))
	for _, rel := range entry.Files {
		if owner, taken := manifest.OwnerOf(rel, entry.ID); taken {
			return Report{}, &ConflictError{Owner: owner, Claimant: entry.ID, Path: rel, Action: profile.ConflictEnable}
		}
		live, quarantined, err := m.paths(entry, rel)
		if err != nil {
			return Report{}, err
		}
		atLive, err := exists(m.sys, live)
		if err != nil {
			return Report{}, fmt.Errorf(messages.StateStatFmt, live, err)
		}
		inQuarantine, err := exists(m.sys, quarantined)
		if err != nil {
			return Report{}, fmt.Errorf(messages.StateStatFmt, quarantined, err)
		}
		if atLive && inQuarantine {
			return Report{}, &ForeignFileError{Mod: entry.ID, Path: rel}
		}
		plan = append(plan, pending{rel: rel, live: live, quarantined: quarantined, atLive: atLive, inQuarantine: inQuarantine})
	}

	var moves []move
	var report Report
	for _, p := range plan {
		switch {
		case p.atLive:
			// Already back in place.
			continue
		case !p.inQuarantine:
			report.Missing = append(report.Missing, p.rel)
			continue
		}
		if err := m.relocate(p.quarantined, p.live); err != nil {
			return Report{}, m.undo(moves, fmt.Errorf(messages.StateRestoreFmt, entry.ID, p.rel, err))
		}
		moves = append(moves, move{rel: p.rel, from: p.quarantined, to: p.live})
		report.Moved = append(report.Moved, p.rel)
	}

	stop := filepath.Join(m.gameRoot, QuarantineDir)
	for _, mv := range moves {
		m.sys.RemoveEmptyParents(filepath.Dir(mv.from), stop)
	}
	m.logger.Info("enabled mod", "mod", entry.ID, "moved", len(report.Moved), "missing", len(report.Missing))
	return report, m.partial(entry, report)
}

// Purge deletes the mod's files from both the game root and quarantine.
func (m *Manager) Purge(entry profile.ModEntry) (Report, error) {
	var report Report
	for _, rel := range entry.Files {
		live, _, err := m.paths(entry, rel)
		if err != nil {
			return report, err
		}
		present, err := exists(m.sys, live)
		if err != nil {
			return report, fmt.Errorf(messages.StateStatFmt, live, err)
		}
		if !present {
			continue
		}
		if err := m.sys.RemoveTree(live); err != nil {
			return report, fmt.Errorf(messages.StatePurgeFmt, rel, err)
		}
		m.sys.RemoveEmptyParents(filepath.Dir(live), m.pruneStop(live))
		report.Moved = append(report.Moved, rel)
	}
	qroot := m.QuarantineRoot(entry)
	if err := m.sys.RemoveTree(qroot); err != nil {
		return report, fmt.Errorf(messages.StatePurgeFmt, qroot, err)
	}
	m.logger.Info("purged mod files", "mod", entry.ID, "removed", len(report.Moved))
	return report, nil
}

// Status derives the mod's state from where its manifest files are.
func (m *Manager) Status(entry profile.ModEntry) (State, error) {
	if len(entry.Files) == 0 {
		return StateNotInstalled, nil
	}
	var live, quarantined int
	for _, rel := range entry.Files {
		livePath, qPath, err := m.paths(entry, rel)
		if err != nil {
			return "", err
		}
		if ok, err := exists(m.sys, livePath); err != nil {
			return "", fmt.Errorf(messages.StateStatFmt, livePath, err)
		} else if ok {
			live++
		}
		if ok, err := exists(m.sys, qPath); err != nil {
			return "", fmt.Errorf(messages.StateStatFmt, qPath, err)
		} else if ok {
			quarantined++
		}
	}
	total := len(entry.Files)
	switch {
	case live == total:
		return StateEnabled, nil
	case quarantined == total:
		return StateDisabled, nil
	case live == 0 && quarantined == 0:
		return StateMissing, nil
	default:
		return StatePartial, nil
	}
}

func (m *Manager) relocate(from string, to string) error {
	if err := m.sys.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	if err := m.sys.Move(from, to); err != nil {
		return err
	}
	m.logger.Debug("moved", "from", from, "to", to)
	return nil
}

// undo reverses moves and returns cause, annotated when a move could not be
// reversed.
func (m *Manager) undo(moves []move, cause error) error {
	var errs []error
	for i := len(moves) - 1; i >= 0; i-- {
		mv := moves[i]
		if err := m.relocate(mv.to, mv.from); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		m.logger.Error("state rollback incomplete", "err", errors.Join(errs...))
		return fmt.Errorf(messages.StateRollbackFmt, cause, errors.Join(errs...))
	}
	return cause
}

func (m *Manager) partial(entry profile.ModEntry, report Report) error {
	if len(report.Missing) == 0 {
		return nil
	}
	err := &PartialMoveError{Mod: entry.DisplayName(), Missing: report.Missing, Total: len(entry.Files)}
	m.logger.Warn(err.Error())
	return err
}

func (m *Manager) pruneStop(path string) string {
	rel, err := filepath.Rel(m.gameRoot, path)
	if err != nil {
		return m.gameRoot
	}
	rel = strings.ToLower(filepath.ToSlash(rel))
	for _, dir := range protectedDirs {
		if strings.HasPrefix(rel, strings.ToLower(dir)+"/") {
			return filepath.Join(m.gameRoot, filepath.FromSlash(dir))
		}
	}
	return m.gameRoot
}

func exists(sys System, path string) (bool, error) {
	if _, err := sys.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
