package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/conn-castle/modlayer/internal/messages"
	"github.com/conn-castle/modlayer/internal/modmeta"
	"github.com/conn-castle/modlayer/internal/modstate"
	"github.com/conn-castle/modlayer/internal/profile"
	"github.com/conn-castle/modlayer/internal/resolve"
)

// AddOptions tunes Add.
type AddOptions struct {
	// Filters are stored on each new entry.
	Filters []resolve.Filter
	// Offline skips checking that the repository has releases.
	Offline bool
}

// Add creates profile entries with no installed files. Unless Offline is
// set, each repository is fetched first so typos fail early; the fetch is
// cached for the rest of the run.
func (e *Engine) Add(ctx context.Context, ids []profile.ModIdentifier, opts AddOptions) BatchResult {
	if !opts.Offline && e.fetcher == nil {
		return BatchResult{Fatal: errors.New(messages.EngineFetcherRequired)}
	}
	for _, f := range opts.Filters {
		if err := f.Validate(); err != nil {
			return BatchResult{Fatal: err}
		}
	}
	entries := make([]profile.ModEntry, 0, len(ids))
	for _, id := range ids {
		entry := profile.NewModEntry(id, e.now())
		entry.Filters = append([]resolve.Filter(nil), opts.Filters...)
		entries = append(entries, entry)
	}
	return e.runBatch(ctx, entries, func(ctx context.Context, entry profile.ModEntry) ModOutcome {
		if !opts.Offline {
			if _, err := e.fetcher.Fetch(ctx, entry.ID); err != nil {
				return failed(entry, err)
			}
		}
		if err := e.commit(func(p *profile.Profile) error { return p.Add(entry) }); err != nil {
			return failed(entry, err)
		}
		e.logger.Info("added mod", "mod", entry.ID.String())
		return ModOutcome{ID: entry.ID, Name: entry.DisplayName(), Status: StatusAdded}
	})
}

// Disable moves each named mod's files into quarantine and marks it
// disabled. Files missing from the game root are reported as warnings.
func (e *Engine) Disable(names []string) BatchResult {
	return e.toggle(names, false)
}

// Enable moves each named mod's files back from quarantine and marks it
// enabled. It refuses a mod whose paths another enabled mod owns.
func (e *Engine) Enable(names []string) BatchResult {
	return e.toggle(names, true)
}

func (e *Engine) toggle(names []string, enable bool) BatchResult {
	s, err := e.open()
	if err != nil {
		return BatchResult{Fatal: err}
	}
	entries, err := selectEntries(s.profile, names, false)
	if err != nil {
		return BatchResult{Fatal: err}
	}

	var result BatchResult
	for _, entry := range entries {
		out := e.toggleOne(s, entry, enable)
		result.Outcomes = append(result.Outcomes, out)
		if IsGlobal(out.Err) {
			result.Fatal = out.Err
			break
		}
	}
	return result
}

func (e *Engine) toggleOne(s *session, entry profile.ModEntry, enable bool) ModOutcome {
	out := ModOutcome{ID: entry.ID, Name: entry.DisplayName(), Status: StatusDisabled}
	if enable {
		out.Status = StatusEnabled
	}
	err := e.commit(func(p *profile.Profile) error {
		current := p.Mod(entry.ID)
		if current == nil {
			return fmt.Errorf(messages.ProfileModNotFoundFmt, entry.ID, p.Name)
		}
		if current.Enabled == enable {
			out.Status = StatusUnchanged
			return nil
		}
		if len(current.Files) > 0 {
			var report modstate.Report
			var err error
			if enable {
				report, err = s.states.Enable(*current, p.EnabledManifest())
			} else {
				report, err = s.states.Disable(*current)
			}
			switch {
			case modstate.IsPartialMove(err):
				out.Warnings = append(out.Warnings, err.Error())
			case err != nil:
				return err
			}
			out.Files = current.Files
			e.logger.Debug("relocated mod files", "mod", entry.ID.String(), "moved", len(report.Moved), "missing", len(report.Missing))
		}
		current.Enabled = enable
		current.UpdatedAt = e.now().UTC()
		return nil
	})
	if err != nil {
		return failed(entry, err)
	}
	return out
}

// Remove drops each named mod from the profile. Unless keepFiles is set its
// files are deleted from the game root and from quarantine first.
func (e *Engine) Remove(names []string, keepFiles bool) BatchResult {
	s, err := e.open()
	if err != nil {
		return BatchResult{Fatal: err}
	}
	entries, err := selectEntries(s.profile, names, false)
	if err != nil {
		return BatchResult{Fatal: err}
	}

	var result BatchResult
	for _, entry := range entries {
		out := ModOutcome{ID: entry.ID, Name: entry.DisplayName(), Status: StatusRemoved, Files: entry.Files}
		err := e.commit(func(p *profile.Profile) error {
			current := p.Mod(entry.ID)
			if current == nil {
				return fmt.Errorf(messages.ProfileModNotFoundFmt, entry.ID, p.Name)
			}
			if !keepFiles {
				if _, err := s.states.Purge(*current); err != nil {
					return err
				}
			}
			p.Remove(entry.ID)
			return nil
		})
		if err != nil {
			out = failed(entry, err)
		}
		result.Outcomes = append(result.Outcomes, out)
		if IsGlobal(err) {
			result.Fatal = err
			break
		}
	}
	return result
}

// ModInfo describes one profile entry with its on-disk state.
type ModInfo struct {
	Entry profile.ModEntry
	State modstate.State
	// Meta is the mod's package.json, when it ships one.
	Meta *modmeta.Meta
	// MetaErr records an unreadable or invalid package.json.
	MetaErr error
}

// List reports every entry in the profile in profile order.
func (e *Engine) List() ([]ModInfo, error) {
	s, err := e.open()
	if err != nil {
		return nil, err
	}
	out := make([]ModInfo, 0, len(s.profile.Mods))
	for _, entry := range s.profile.Mods {
		state, err := s.states.Status(entry)
		if err != nil {
			return nil, err
		}
		info := ModInfo{Entry: entry, State: state}
		root := s.gameRoot
		if state == modstate.StateDisabled {
			root = s.states.QuarantineRoot(entry)
		}
		if _, err := modmeta.Locate(entry.Files); err == nil {
			meta, err := modmeta.ForFiles(root, entry.Files)
			if err != nil {
				info.MetaErr = err
			} else {
				info.Meta = &meta
			}
		}
		out = append(out, info)
	}
	return out, nil
}
