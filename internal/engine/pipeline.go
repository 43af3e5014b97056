package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conn-castle/modlayer/internal/download"
	"github.com/conn-castle/modlayer/internal/github"
	"github.com/conn-castle/modlayer/internal/install"
	"github.com/conn-castle/modlayer/internal/layout"
	"github.com/conn-castle/modlayer/internal/messages"
	"github.com/conn-castle/modlayer/internal/profile"
	"github.com/conn-castle/modlayer/internal/resolve"
)

// downloadsDir holds assets between download and a successful install.
const downloadsDir = "downloads"

// UpgradeOptions selects and tunes an upgrade batch.
type UpgradeOptions struct {
	// Names limits the batch to these mods. Empty means every enabled mod.
	Names []string
	// Force re-downloads and reinstalls even when the mod is current.
	Force bool
	// TakeOver transfers files owned by other enabled mods to the
	// installing mod instead of failing.
	TakeOver bool
	// Local installs from archives already in archive storage without
	// contacting GitHub.
	Local bool
}

// InstallOptions tunes InstallFromArchive.
type InstallOptions struct {
	// Version is recorded as the installed version. Empty uses the archive
	// base name.
	Version string
	// TakeOver transfers contested files to the installing mod.
	TakeOver bool
}

// Select fetches releases for id and returns the asset the profile's
// filters choose, plus any extra filters. The mod need not be in the profile.
func (e *Engine) Select(ctx context.Context, id profile.ModIdentifier, extra []resolve.Filter) (resolve.Choice, error) {
	if e.fetcher == nil {
		return resolve.Choice{}, errors.New(messages.EngineFetcherRequired)
	}
	s, err := e.open()
	if err != nil {
		return resolve.Choice{}, err
	}
	releases, err := e.fetcher.Fetch(ctx, id)
	if err != nil {
		return resolve.Choice{}, err
	}
	return e.choose(ctx, s.profile, s.profile.Mod(id), id, releases, extra)
}

func (e *Engine) choose(ctx context.Context, p *profile.Profile, entry *profile.ModEntry, id profile.ModIdentifier, releases []github.Release, extra []resolve.Filter) (resolve.Choice, error) {
	filters := effectiveFilters(p, entry, extra)
	candidates := resolve.Flatten(releases, e.flatten)
	env := resolve.Env{Versions: e.versions, Logger: e.logger.With("mod", id.String())}
	choice, err := resolve.Resolve(ctx, env, candidates, filters)
	if err != nil {
		return resolve.Choice{}, fmt.Errorf(messages.EngineSelectFmt, id, err)
	}
	return choice, nil
}

// effectiveFilters orders profile filters, then mod filters, then extra
// filters. A profile game version applies as a minor filter unless some
// filter already constrains the game version.
func effectiveFilters(p *profile.Profile, entry *profile.ModEntry, extra []resolve.Filter) []resolve.Filter {
	out := append([]resolve.Filter(nil), p.Filters...)
	if entry != nil {
		out = append(out, entry.Filters...)
	}
	out = append(out, extra...)
	if strings.TrimSpace(p.GameVersion) == "" {
		return out
	}
	for _, f := range out {
		if f.Kind == resolve.KindGameVersionStrict || f.Kind == resolve.KindGameVersionMinor {
			return out
		}
	}
	return append(out, resolve.GameVersionMinor(p.GameVersion))
}

// Upgrade runs the full pipeline for every selected enabled mod: fetch,
// select, download, extract, lay out, install, and record. Mods run in
// parallel; one mod's failure never stops the others.
func (e *Engine) Upgrade(ctx context.Context, opts UpgradeOptions) BatchResult {
	if !opts.Local && e.fetcher == nil {
		return BatchResult{Fatal: errors.New(messages.EngineFetcherRequired)}
	}
	s, err := e.open()
	if err != nil {
		return BatchResult{Fatal: err}
	}
	entries, err := selectEntries(s.profile, opts.Names, true)
	if err != nil {
		return BatchResult{Fatal: err}
	}
	policy := e.policy
	if opts.TakeOver {
		policy = install.PolicyTransfer
	}
	return e.runBatch(ctx, entries, func(ctx context.Context, entry profile.ModEntry) ModOutcome {
		if !entry.Enabled {
			return failed(entry, fmt.Errorf(messages.EngineModDisabledFmt, entry.ID))
		}
		if opts.Local {
			return e.upgradeLocal(ctx, s, entry, opts.Force, policy)
		}
		return e.upgradeRemote(ctx, s, entry, opts.Force, policy)
	})
}

// InstallLocal reinstalls the named mods from their stored archives without
// contacting GitHub.
func (e *Engine) InstallLocal(ctx context.Context, opts UpgradeOptions) BatchResult {
	opts.Local = true
	return e.Upgrade(ctx, opts)
}

func (e *Engine) upgradeRemote(ctx context.Context, s *session, entry profile.ModEntry, force bool, policy install.Policy) ModOutcome {
	releases, err := e.fetcher.Fetch(ctx, entry.ID)
	if err != nil {
		return failed(entry, err)
	}
	choice, err := e.choose(ctx, s.profile, &entry, entry.ID, releases, nil)
	if err != nil {
		return failed(entry, err)
	}
	asset := choice.Asset
	if !force && s.installer.Current(entry, asset.Name) {
		e.logger.Info("mod is current", "mod", entry.ID.String(), "asset", asset.Name)
		return ModOutcome{
			ID:      entry.ID,
			Name:    entry.DisplayName(),
			Status:  StatusUnchanged,
			Version: entry.InstalledVersion,
			Asset:   asset.Name,
			Files:   entry.Files,
		}
	}

	archivePath := s.installer.ArchivePath(asset.Name)
	if force || !stored(archivePath, asset.Size) {
		dest := filepath.Join(s.gameRoot, install.StateDir, downloadsDir, filepath.Base(asset.Name))
		res, err := e.downloader.Fetch(ctx, download.Request{URL: asset.DownloadURL, Dest: dest, Size: asset.Size, Force: force})
		if err != nil {
			return failed(entry, fmt.Errorf(messages.EngineDownloadFmt, asset.Name, entry.ID, err))
		}
		archivePath = res.Path
	}

	out, err := e.installArchive(ctx, s, entry.ID, archivePath, choice.ReleaseTag, policy)
	if err != nil {
		return failed(entry, err)
	}
	return out
}

func (e *Engine) upgradeLocal(ctx context.Context, s *session, entry profile.ModEntry, force bool, policy install.Policy) ModOutcome {
	if entry.InstalledAsset == "" || !stored(s.installer.ArchivePath(entry.InstalledAsset), 0) {
		return failed(entry, fmt.Errorf(messages.EngineNoLocalArchiveFmt, entry.ID, filepath.Join(s.gameRoot, install.ArchiveDir)))
	}
	if !force && s.installer.Current(entry, entry.InstalledAsset) {
		return ModOutcome{
			ID:      entry.ID,
			Name:    entry.DisplayName(),
			Status:  StatusUnchanged,
			Version: entry.InstalledVersion,
			Asset:   entry.InstalledAsset,
			Files:   entry.Files,
		}
	}
	version := entry.InstalledVersion
	out, err := e.installArchive(ctx, s, entry.ID, s.installer.ArchivePath(entry.InstalledAsset), version, policy)
	if err != nil {
		return failed(entry, err)
	}
	return out
}

// InstallFromArchive installs a local archive for a mod already in the
// profile and returns the installed path set.
func (e *Engine) InstallFromArchive(ctx context.Context, id profile.ModIdentifier, archivePath string, opts InstallOptions) ([]string, error) {
	s, err := e.open()
	if err != nil {
		return nil, err
	}
	entry := s.profile.Mod(id)
	if entry == nil {
		return nil, fmt.Errorf(messages.ProfileModNotFoundFmt, id, s.profile.Name)
	}
	if !entry.Enabled {
		return nil, fmt.Errorf(messages.EngineModDisabledFmt, id)
	}
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return nil, fmt.Errorf(messages.EngineArchiveFmt, archivePath, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf(messages.EngineArchiveFmt, archivePath, err)
	}
	version := opts.Version
	if version == "" {
		base := filepath.Base(abs)
		version = strings.TrimSuffix(base, filepath.Ext(base))
	}
	policy := e.policy
	if opts.TakeOver {
		policy = install.PolicyTransfer
	}
	out, err := e.installArchive(ctx, s, id, abs, version, policy)
	if err != nil {
		return nil, err
	}
	return out.Files, nil
}

// installArchive extracts, lays out, and installs archivePath for id, then
// records the new manifest. The ownership check and the install both run
// under the profile lock so concurrent mods see each other's files.
func (e *Engine) installArchive(ctx context.Context, s *session, id profile.ModIdentifier, archivePath string, version string, policy install.Policy) (ModOutcome, error) {
	logger := e.logger.With("mod", id.String())
	staging, err := s.extractor.Extract(ctx, archivePath)
	if err != nil {
		return ModOutcome{}, fmt.Errorf(messages.EngineExtractFmt, filepath.Base(archivePath), id, err)
	}
	defer func() {
		if err := staging.Cleanup(); err != nil {
			logger.Warn(fmt.Sprintf(messages.InstallCleanupFmt, staging.Root, err))
		}
	}()

	name := id.Repo
	if entry := s.profile.Mod(id); entry != nil {
		name = entry.DisplayName()
	}
	root, collapsed, err := layout.Collapse(staging.Root, staging.Base, name)
	if err != nil {
		return ModOutcome{}, fmt.Errorf(messages.EngineLayoutFmt, filepath.Base(archivePath), id, err)
	}
	plan, err := layout.Map(root)
	if err != nil {
		return ModOutcome{}, fmt.Errorf(messages.EngineLayoutFmt, filepath.Base(archivePath), id, err)
	}
	logger.Debug("laid out archive", "collapsed", collapsed, "entries", len(plan.Entries), "unmapped", len(plan.Unmapped))

	out := ModOutcome{ID: id, Name: name, Status: StatusInstalled, Version: version}
	if len(plan.Unmapped) > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf(messages.EngineUnmappedFmt, filepath.Base(archivePath), len(plan.Unmapped)))
		for _, u := range plan.Unmapped {
			logger.Warn(fmt.Sprintf(messages.LayoutUnmappedFmt, u))
		}
	}

	err = e.commit(func(p *profile.Profile) error {
		entry := p.Mod(id)
		if entry == nil {
			return fmt.Errorf(messages.ProfileModNotFoundFmt, id, p.Name)
		}
		res, err := s.installer.Install(ctx, install.Request{
			ID:       id,
			Plan:     plan,
			Manifest: p.EnabledManifest(),
			Previous: entry.Files,
			Archive:  archivePath,
			Policy:   policy,
		})
		if err != nil {
			return err
		}
		for loser, paths := range res.Transferred {
			p.ReleasePaths(loser, paths)
			out.Warnings = append(out.Warnings, fmt.Sprintf(messages.EngineTransferredFmt, len(paths), loser))
		}
		if len(res.Overwritten) > 0 {
			out.Warnings = append(out.Warnings, fmt.Sprintf(messages.EngineOverwroteFmt, len(res.Overwritten)))
		}
		entry = p.Mod(id)
		entry.Files = res.Files
		entry.InstalledVersion = version
		entry.InstalledAsset = filepath.Base(res.Archive)
		entry.UpdatedAt = e.now().UTC()
		out.Files = res.Files
		out.Asset = entry.InstalledAsset
		return nil
	})
	if err != nil {
		return ModOutcome{}, err
	}
	logger.Info("installed mod", "version", version, "files", len(out.Files))
	return out, nil
}

// stored reports whether path holds a regular file of size bytes. A size of
// zero or less accepts any size.
func stored(path string, size int64) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return size <= 0 || info.Size() == size
}

// selectEntries returns the named entries, or every entry when names is
// empty. enabledOnly drops disabled entries from the implicit set.
func selectEntries(p *profile.Profile, names []string, enabledOnly bool) ([]profile.ModEntry, error) {
	if len(names) == 0 {
		var out []profile.ModEntry
		for _, m := range p.Mods {
			if enabledOnly && !m.Enabled {
				continue
			}
			out = append(out, m)
		}
		if len(out) == 0 {
			return nil, errors.New(messages.EngineNoMods)
		}
		return out, nil
	}
	out := make([]profile.ModEntry, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		m, err := p.Find(name)
		if err != nil {
			return nil, err
		}
		if seen[m.ID.Key()] {
			continue
		}
		seen[m.ID.Key()] = true
		out = append(out, *m)
	}
	return out, nil
}
