// Package versiongroup builds minor-compatible game version equivalence
// classes from an external tag source.
package versiongroup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/conn-castle/modlayer/internal/logging"
	"github.com/conn-castle/modlayer/internal/messages"
)

// loadTimeout bounds the one-time tag source fetch.
const loadTimeout = 30 * time.Second

// Fallback decides what a lookup returns for a version no group contains.
type Fallback int

const (
	// FallbackStrict treats an unknown version as equivalent only to itself,
	// so minor matching degrades to strict matching.
	FallbackStrict Fallback = iota
	// FallbackNone returns no equivalents, so minor matching matches nothing.
	FallbackNone
)

// ParseFallback maps a config value onto a Fallback. Empty means strict.
func ParseFallback(raw string) (Fallback, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "strict":
		return FallbackStrict, nil
	case "none":
		return FallbackNone, nil
	default:
		return FallbackStrict, fmt.Errorf(messages.VersionsFallbackFmt, raw)
	}
}

func (f Fallback) String() string {
	if f == FallbackNone {
		return "none"
	}
	return "strict"
}

// Resolver lazily loads the tag source once and answers equivalence queries.
// It is safe for concurrent use; the groups are read-only after loading.
type Resolver struct {
	source   TagSource
	fallback Fallback
	logger   *log.Logger

	once   sync.Once
	groups [][]string
	index  map[string]int
	err    error
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFallback sets the unknown-version policy.
func WithFallback(f Fallback) Option {
	return func(r *Resolver) { r.fallback = f }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver returns a resolver over source. A nil source behaves as an
// unavailable one.
func NewResolver(source TagSource, opts ...Option) *Resolver {
	r := &Resolver{source: source}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDiscard(r.logger)
	return r
}

// load fetches the tag source once. The result is shared by every later
// caller, so the fetch is detached from the first caller's cancellation.
func (r *Resolver) load(ctx context.Context) {
	r.once.Do(func() {
		r.index = make(map[string]int)
		if r.source == nil {
			return
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		tags, err := r.source.Tags(loadCtx)
		if err != nil {
			r.err = err
			r.logger.Warn(fmt.Sprintf(messages.VersionsSourceFailedFmt, err), "fallback", r.fallback)
			return
		}
		r.groups = Group(tags)
		for i, group := range r.groups {
			for _, v := range group {
				if _, seen := r.index[v]; !seen {
					r.index[v] = i
				}
			}
		}
		r.logger.Debug("version groups initialised", "groups", len(r.groups))
	})
}

// Group buckets release tags in source order. A tag flagged major opens a
// new bucket and the tags after it join that bucket until the next major tag.
// Release tags seen before any major tag form a leading bucket of their own.
func Group(tags []Tag) [][]string {
	var groups [][]string
	for _, tag := range tags {
		if tag.Type != "" && !strings.EqualFold(tag.Type, TypeRelease) {
			continue
		}
		version := strings.TrimSpace(tag.Version)
		if version == "" {
			continue
		}
		if tag.Major || len(groups) == 0 {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], version)
	}
	return groups
}

// Err returns the tag source error, if loading failed.
func (r *Resolver) Err(ctx context.Context) error {
	r.load(ctx)
	return r.err
}

// Fallback returns the configured unknown-version policy.
func (r *Resolver) Fallback() Fallback {
	return r.fallback
}

// Groups returns a copy of every group.
func (r *Resolver) Groups(ctx context.Context) [][]string {
	r.load(ctx)
	out := make([][]string, len(r.groups))
	for i, g := range r.groups {
		out[i] = append([]string(nil), g...)
	}
	return out
}

// Versions returns every known version in group order.
func (r *Resolver) Versions(ctx context.Context) []string {
	r.load(ctx)
	var out []string
	for _, g := range r.groups {
		out = append(out, g...)
	}
	return out
}

// Equivalents returns the versions minor-compatible with version, including
// version itself. Unknown versions follow the fallback policy.
func (r *Resolver) Equivalents(ctx context.Context, version string) []string {
	r.load(ctx)
	if i, ok := r.index[version]; ok {
		return append([]string(nil), r.groups[i]...)
	}
	if r.fallback == FallbackStrict {
		return []string{version}
	}
	return nil
}

// Expand returns the deduplicated union of Equivalents for each version,
// preserving first-seen order.
func (r *Resolver) Expand(ctx context.Context, versions []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range versions {
		for _, eq := range r.Equivalents(ctx, v) {
			if _, ok := seen[eq]; ok {
				continue
			}
			seen[eq] = struct{}{}
			out = append(out, eq)
		}
	}
	return out
}
