// Package install copies a mapped staging tree into the game root, enforcing
// file ownership and leaving the game root untouched when anything fails.
package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/conn-castle/modlayer/internal/fsutil"
	"github.com/conn-castle/modlayer/internal/layout"
	"github.com/conn-castle/modlayer/internal/logging"
	"github.com/conn-castle/modlayer/internal/messages"
	"github.com/conn-castle/modlayer/internal/profile"
)

const (
	// ArchiveDir is the archive storage directory under the game root.
	ArchiveDir = "MODS"
	// StateDir holds staging and backup trees under the game root.
	StateDir  = ".modlayer"
	backupDir = "backup"
)

// Policy decides what happens when an install would write a path another
// enabled mod owns.
type Policy int

const (
	// PolicyFail rejects the install before any write.
	PolicyFail Policy = iota
	// PolicyTransfer hands the contested paths to the installing mod.
	PolicyTransfer
)

// ParsePolicy maps a config value onto a Policy. Empty means fail.
func ParsePolicy(raw string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "fail":
		return PolicyFail, nil
	case "transfer", "force":
		return PolicyTransfer, nil
	default:
		return PolicyFail, fmt.Errorf(messages.InstallPolicyFmt, raw)
	}
}

func (p Policy) String() string {
	if p == PolicyTransfer {
		return "transfer"
	}
	return "fail"
}

// ConflictError reports a destination path owned by another enabled mod.
type ConflictError = profile.ConflictError

// IsConflict reports whether err is a ConflictError from install or enable.
func IsConflict(err error) bool {
	return profile.IsConflict(err)
}

// Request describes one mod install.
type Request struct {
	ID profile.ModIdentifier
	// Plan is the mapped staging tree.
	Plan layout.Plan
	// Manifest maps paths to their enabled owners across the profile.
	Manifest profile.Manifest
	// Previous is the set of paths the mod owned before this install.
	Previous []string
	// Archive is the downloaded or local archive to keep in storage. Empty
	// skips archive storage.
	Archive string
	Policy  Policy
}

// Result describes a completed install.
type Result struct {
	// Files is the exact sorted set of paths written.
	Files []string
	// Transferred lists, per losing mod, the paths now owned by the installer.
	Transferred map[profile.ModIdentifier][]string
	// Removed lists previously owned paths the new version no longer ships.
	Removed []string
	// Overwritten lists unmanaged paths that were replaced.
	Overwritten []string
	// Archive is the archive path in storage.
	Archive string
	// Unchanged is set when the install was skipped as already current.
	Unchanged bool
}

// Installer writes mod files beneath a game root.
type Installer struct {
	gameRoot string
	sys      System
	logger   *log.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithSystem overrides the filesystem.
func WithSystem(sys System) Option {
	return func(inst *Installer) { inst.sys = sys }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(inst *Installer) { inst.logger = logger }
}

// New returns an installer rooted at gameRoot.
func New(gameRoot string, opts ...Option) (*Installer, error) {
	if strings.TrimSpace(gameRoot) == "" {
		return nil, fmt.Errorf(messages.InstallGameRootRequired)
	}
	inst := &Installer{gameRoot: gameRoot, sys: RealSystem{}}
	for _, opt := range opts {
		opt(inst)
	}
	if inst.sys == nil {
		return nil, fmt.Errorf(messages.InstallSystemRequired)
	}
	inst.logger = logging.OrDiscard(inst.logger)
	return inst, nil
}

// GameRoot returns the destination root.
func (inst *Installer) GameRoot() string {
	return inst.gameRoot
}

// ArchivePath returns where an asset is kept in archive storage.
func (inst *Installer) ArchivePath(asset string) string {
	return filepath.Join(inst.gameRoot, ArchiveDir, filepath.Base(asset))
}

// StagingRoot returns the directory extractions are staged under.
func (inst *Installer) StagingRoot() string {
	return filepath.Join(inst.gameRoot, StateDir, "staging")
}

// Current reports whether entry already has asset installed: the asset
// matches, its archive is in storage, and every manifest file exists.
func (inst *Installer) Current(entry profile.ModEntry, asset string) bool {
	if asset == "" || entry.InstalledAsset != asset || len(entry.Files) == 0 {
		return false
	}
	if info, err := inst.sys.Stat(inst.ArchivePath(asset)); err != nil || !info.Mode().IsRegular() {
		return false
	}
	for _, rel := range entry.Files {
		path, err := fsutil.SafeJoin(inst.gameRoot, rel)
		if err != nil {
			return false
		}
		if _, err := inst.sys.Stat(path); err != nil {
			return false
		}
	}
	return true
}

// Install writes req.Plan into the game root. No file is touched until the
// ownership check passes. If any write fails, files replaced so far are
// restored from a backup and newly created files removed, so the game root
// matches its state before the call.
func (inst *Installer) Install(ctx context.Context, req Request) (Result, error) {
	if req.ID.IsZero() {
		return Result{}, fmt.Errorf(messages.InstallIDRequired)
	}
	if len(req.Plan.Entries) == 0 {
		return Result{}, fmt.Errorf(messages.InstallNoEntries, req.ID)
	}

	transferred, err := inst.checkOwnership(req)
	if err != nil {
		return Result{}, err
	}

	tx := &transaction{
		sys:      inst.sys,
		gameRoot: inst.gameRoot,
		backup:   filepath.Join(inst.gameRoot, StateDir, backupDir, uuid.NewString()),
	}
	result, err := inst.apply(ctx, req, tx)
	if err != nil {
		if rbErr := tx.rollback(); rbErr != nil {
			inst.logger.Error("install rollback incomplete", "mod", req.ID, "err", rbErr)
			return Result{}, fmt.Errorf(messages.InstallRollbackFmt, req.ID, err, rbErr)
		}
		inst.logger.Warn("install rolled back", "mod", req.ID, "err", err)
		return Result{}, fmt.Errorf(messages.InstallFailedFmt, req.ID, err)
	}
	if err := tx.commit(); err != nil {
		inst.logger.Warn(fmt.Sprintf(messages.InstallCleanupFmt, tx.backup, err))
	}
	result.Transferred = transferred
	for owner, paths := range transferred {
		inst.logger.Warn("ownership transferred", "from", owner, "to", req.ID, "paths", len(paths))
	}
	inst.logger.Info("installed mod", "mod", req.ID, "files", len(result.Files), "removed", len(result.Removed))
	return result, nil
}

func (inst *Installer) checkOwnership(req Request) (map[profile.ModIdentifier][]string, error) {
	dests := req.Plan.Dests()
	sort.Strings(dests)
	transferred := make(map[profile.ModIdentifier][]string)
	for _, dest := range dests {
		owner, taken := req.Manifest.OwnerOf(dest, req.ID)
		if !taken {
			continue
		}
		if req.Policy != PolicyTransfer {
			inst.logger.Warn("install conflict", "mod", req.ID, "path", dest, "owner", owner.ID)
			return nil, &ConflictError{Owner: owner, Claimant: req.ID, Path: dest, Action: profile.ConflictInstall}
		}
		transferred[owner.ID] = append(transferred[owner.ID], dest)
	}
	if len(transferred) == 0 {
		return nil, nil
	}
	return transferred, nil
}

func (inst *Installer) apply(ctx context.Context, req Request, tx *transaction) (Result, error) {
	var result Result
	writing := make(map[string]struct{}, len(req.Plan.Entries))
	for _, entry := range req.Plan.Entries {
		writing[entry.Dest] = struct{}{}
	}
	previous := make(map[string]struct{}, len(req.Previous))
	for _, rel := range req.Previous {
		previous[rel] = struct{}{}
	}

	for _, entry := range req.Plan.Entries {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		dest, err := fsutil.SafeJoin(inst.gameRoot, entry.Dest)
		if err != nil {
			return Result{}, err
		}
		existed, err := tx.stash(entry.Dest, dest)
		if err != nil {
			return Result{}, err
		}
		if existed {
			_, owned := previous[entry.Dest]
			_, claimed := req.Manifest[entry.Dest]
			if !owned && !claimed {
				result.Overwritten = append(result.Overwritten, entry.Dest)
			}
		}
		if err := tx.write(entry.Source, dest); err != nil {
			return Result{}, err
		}
		result.Files = append(result.Files, entry.Dest)
	}

	for _, rel := range req.Previous {
		if _, still := writing[rel]; still {
			continue
		}
		if _, taken := req.Manifest.OwnerOf(rel, req.ID); taken {
			continue
		}
		dest, err := fsutil.SafeJoin(inst.gameRoot, rel)
		if err != nil {
			continue
		}
		existed, err := tx.stash(rel, dest)
		if err != nil {
			return Result{}, err
		}
		if existed {
			tx.pruned = append(tx.pruned, filepath.Dir(dest))
		}
		result.Removed = append(result.Removed, rel)
	}

	if req.Archive != "" {
		stored, err := inst.storeArchive(req.Archive, tx)
		if err != nil {
			return Result{}, err
		}
		result.Archive = stored
	}

	sort.Strings(result.Files)
	sort.Strings(result.Removed)
	return result, nil
}

func (inst *Installer) storeArchive(archive string, tx *transaction) (string, error) {
	dest := inst.ArchivePath(archive)
	if filepath.Clean(archive) == filepath.Clean(dest) {
		return dest, nil
	}
	rel := filepath.ToSlash(filepath.Join(ArchiveDir, filepath.Base(dest)))
	if _, err := tx.stash(rel, dest); err != nil {
		return "", err
	}
	if err := inst.sys.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf(messages.InstallArchiveStoreFmt, archive, err)
	}
	if err := inst.sys.Move(archive, dest); err != nil {
		return "", fmt.Errorf(messages.InstallArchiveStoreFmt, archive, err)
	}
	tx.moved = append(tx.moved, movedFile{from: archive, to: dest})
	inst.logger.Debug("archive stored", "from", archive, "to", dest)
	return dest, nil
}

// exists reports whether path is present, treating stat errors other than
// not-exist as fatal.
func exists(sys System, path string) (bool, error) {
	if _, err := sys.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
