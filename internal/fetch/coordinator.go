// Package fetch coordinates release lookups under a single request budget
// shared by every concurrent fetch in a run.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/conn-castle/modlayer/internal/github"
	"github.com/conn-castle/modlayer/internal/logging"
	"github.com/conn-castle/modlayer/internal/messages"
	"github.com/conn-castle/modlayer/internal/profile"
)

// Default request budgets for unauthenticated and token-backed clients.
const (
	DefaultUnauthenticatedBudget = 60
	DefaultAuthenticatedBudget   = 5000
)

// Source lists releases for a repository.
type Source interface {
	ListReleases(ctx context.Context, owner string, repo string) ([]github.Release, github.Quota, error)
}

// Fetcher is the capability the engine consumes.
type Fetcher interface {
	Fetch(ctx context.Context, id profile.ModIdentifier) ([]github.Release, error)
}

type entry struct {
	done     chan struct{}
	releases []github.Release
	err      error
}

// Coordinator wraps a Source with a shared request budget and a per-run cache.
// Once the budget is spent or the API reports exhaustion, every fetch that
// has not started yet fails fast with the same rate-limit error.
type Coordinator struct {
	source Source
	logger *log.Logger

	mu        sync.Mutex
	remaining int
	resetAt   time.Time
	exhausted *github.RateLimitError
	requests  int
	cache     map[string]*entry
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// NewCoordinator returns a coordinator that issues at most budget requests
// unless the API reports a lower remaining quota.
func NewCoordinator(source Source, budget int, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:    source,
		remaining: budget,
		cache:     make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger)
	return c
}

// Fetch returns the releases for id, newest first. Concurrent and repeated
// calls for the same identifier share one request.
func (c *Coordinator) Fetch(ctx context.Context, id profile.ModIdentifier) ([]github.Release, error) {
	key := id.Key()

	c.mu.Lock()
	if e, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return waitEntry(ctx, e)
	}
	if c.exhausted == nil && c.remaining <= 0 {
		zero := 0
		c.exhausted = &github.RateLimitError{Status: "local request budget spent", Remaining: &zero, ResetAt: c.resetAt}
	}
	if c.exhausted != nil {
		err := c.exhausted
		c.mu.Unlock()
		c.logger.Debug(fmt.Sprintf(messages.FetchQuotaExhaustedFmt, id), "reset", err.ResetAt)
		return nil, fmt.Errorf(messages.FetchIdentifierFmt, id, err)
	}
	c.remaining--
	c.requests++
	e := &entry{done: make(chan struct{})}
	c.cache[key] = e
	remaining := c.remaining
	c.mu.Unlock()

	c.logger.Debug("fetching releases", "mod", id.String(), "budget", remaining)
	releases, quota, err := c.source.ListReleases(ctx, id.Owner, id.Repo)

	c.mu.Lock()
	if quota.Known {
		if quota.Remaining < c.remaining {
			c.remaining = quota.Remaining
		}
		c.resetAt = quota.Reset
	}
	var rl *github.RateLimitError
	if errors.As(err, &rl) && c.exhausted == nil {
		if rl.ResetAt.IsZero() {
			rl.ResetAt = c.resetAt
		}
		c.exhausted = rl
	}
	if err != nil && ctx.Err() != nil {
		// A canceled fetch is not a result; let a later caller retry.
		delete(c.cache, key)
	}
	c.mu.Unlock()

	if err != nil {
		e.err = fmt.Errorf(messages.FetchIdentifierFmt, id, err)
	} else {
		e.releases = releases
	}
	close(e.done)
	c.logger.Info("fetched releases", "mod", id.String(), "releases", len(releases), "remaining", github.FormatRemaining(quota), "err", err)
	return e.releases, e.err
}

func waitEntry(ctx context.Context, e *entry) ([]github.Release, error) {
	select {
	case <-e.done:
		return e.releases, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Exhausted returns the rate-limit error that stopped fetching, or nil.
func (c *Coordinator) Exhausted() *github.RateLimitError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

// Remaining returns the current request budget.
func (c *Coordinator) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Requests returns how many requests were issued to the source.
func (c *Coordinator) Requests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests
}
