package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/conn-castle/modlayer/internal/github"
	"github.com/conn-castle/modlayer/internal/messages"
	"github.com/conn-castle/modlayer/internal/profile"
)

// Status is the per-mod result of a batch operation.
type Status string

// Batch statuses.
const (
	StatusAdded     Status = "added"
	StatusInstalled Status = "installed"
	StatusUnchanged Status = "unchanged"
	StatusEnabled   Status = "enabled"
	StatusDisabled  Status = "disabled"
	StatusRemoved   Status = "removed"
	StatusFailed    Status = "failed"
	// StatusAborted marks mods that did not finish because the batch hit a
	// fatal error.
	StatusAborted Status = "aborted"
)

// ModOutcome records what happened to one mod in a batch.
type ModOutcome struct {
	ID      profile.ModIdentifier
	Name    string
	Status  Status
	Version string
	Asset   string
	// Files is the installed path set after the operation.
	Files []string
	// Warnings are non-fatal notes, such as missing files during a move.
	Warnings []string
	Err      error
}

// BatchResult collects per-mod outcomes in input order. Fatal is the single
// batch-wide error that stopped scheduling, if any.
type BatchResult struct {
	Outcomes []ModOutcome
	Fatal    error
}

// Failed returns the outcomes that carry a mod-local error.
func (r BatchResult) Failed() []ModOutcome {
	var out []ModOutcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Err summarizes the batch as one error: Fatal when set, otherwise a count
// of failed mods, or nil.
func (r BatchResult) Err() error {
	if r.Fatal != nil {
		return r.Fatal
	}
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failed)+1)
	errs = append(errs, fmt.Errorf(messages.EngineBatchFailedFmt, len(failed), len(r.Outcomes)))
	for _, o := range failed {
		errs = append(errs, o.Err)
	}
	return errors.Join(errs...)
}

// IsGlobal reports whether err is fatal to a whole batch: rejected
// credentials, an exhausted rate limit, or a profile storage failure.
func IsGlobal(err error) bool {
	if err == nil {
		return false
	}
	var storage *StorageError
	return errors.Is(err, github.ErrAuth) || github.IsRateLimitError(err) || errors.As(err, &storage)
}

// runBatch runs work for every entry with at most parallel in flight. The
// first global error cancels the remaining work and becomes Fatal; mods it
// interrupted are marked aborted instead of failed.
func (e *Engine) runBatch(ctx context.Context, entries []profile.ModEntry, work func(ctx context.Context, entry profile.ModEntry) ModOutcome) BatchResult {
	outcomes := make([]ModOutcome, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	for i, entry := range entries {
		g.Go(func() error {
			if gctx.Err() != nil {
				outcomes[i] = ModOutcome{ID: entry.ID, Name: entry.DisplayName(), Status: StatusAborted}
				return nil
			}
			out := work(gctx, entry)
			if out.Err != nil && out.Status == "" {
				out.Status = StatusFailed
			}
			outcomes[i] = out
			if IsGlobal(out.Err) {
				return out.Err
			}
			return nil
		})
	}
	fatal := g.Wait()
	if fatal == nil && ctx.Err() != nil {
		fatal = ctx.Err()
	}
	if fatal != nil {
		for i := range outcomes {
			o := &outcomes[i]
			if o.Err != nil && (IsGlobal(o.Err) || errors.Is(o.Err, context.Canceled)) {
				o.Status = StatusAborted
				o.Err = nil
			}
		}
		e.logger.Error("batch aborted", "err", fatal)
	}
	return BatchResult{Outcomes: outcomes, Fatal: fatal}
}

func failed(entry profile.ModEntry, err error) ModOutcome {
	return ModOutcome{ID: entry.ID, Name: entry.DisplayName(), Status: StatusFailed, Err: err}
}
