package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/conn-castle/modlayer/internal/github"
	"github.com/conn-castle/modlayer/internal/logging"
	"github.com/conn-castle/modlayer/internal/messages"
)

// Choice is the selected asset and the release it came from.
type Choice struct {
	Index      int
	Candidate  Candidate
	Asset      github.Asset
	ReleaseTag string
}

// Select picks exactly one survivor: newest PublishedAt first, then
// non-prerelease, then a match for any soft filter, then earliest input
// position. The order is total, so equal inputs always give equal choices.
func Select(ctx context.Context, env Env, candidates []Candidate, survivors IndexSet, soft []Filter) (Choice, error) {
	if len(survivors) == 0 {
		return Choice{}, errors.New(messages.SelectNoSurvivors)
	}
	for _, i := range survivors {
		if i < 0 || i >= len(candidates) {
			return Choice{}, fmt.Errorf(messages.SelectSurvivorOutOfRange, i)
		}
	}

	preferred := make(map[int]bool)
	for _, f := range soft {
		if !f.Soft() {
			continue
		}
		matched, err := f.Evaluate(ctx, env, candidates)
		if err != nil {
			return Choice{}, err
		}
		for _, i := range matched {
			preferred[i] = true
		}
	}

	order := append(IndexSet(nil), survivors...)
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := candidates[order[a]], candidates[order[b]]
		if !ca.PublishedAt.Equal(cb.PublishedAt) {
			return ca.PublishedAt.After(cb.PublishedAt)
		}
		if ca.Prerelease != cb.Prerelease {
			return !ca.Prerelease
		}
		if preferred[order[a]] != preferred[order[b]] {
			return preferred[order[a]]
		}
		return order[a] < order[b]
	})

	idx := order[0]
	chosen := candidates[idx]
	logging.OrDiscard(env.Logger).Info("selected asset", "asset", chosen.Filename, "release", chosen.ReleaseTag, "survivors", len(survivors))
	return Choice{Index: idx, Candidate: chosen, Asset: chosen.Asset, ReleaseTag: chosen.ReleaseTag}, nil
}

// Resolve runs Apply and then Select over filters, splitting them into
// hard and soft sets.
func Resolve(ctx context.Context, env Env, candidates []Candidate, filters []Filter) (Choice, error) {
	result, err := Apply(ctx, env, candidates, filters)
	if err != nil {
		return Choice{}, err
	}
	var soft []Filter
	for _, f := range filters {
		if f.Soft() {
			soft = append(soft, f)
		}
	}
	return Select(ctx, env, candidates, result.Survivors, soft)
}
