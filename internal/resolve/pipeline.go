package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/conn-castle/modlayer/internal/logging"
	"github.com/conn-castle/modlayer/internal/messages"
)

// ErrNoCandidates reports a release list with no installable assets.
var ErrNoCandidates = errors.New(messages.SelectNoCandidates)

// ErrIntersectFailure reports hard filters that each match something while
// no single candidate satisfies all of them.
var ErrIntersectFailure = errors.New(messages.SelectIntersectFailure)

// FilterEmptyError names the hard filters that matched no candidate at all.
type FilterEmptyError struct {
	Filters []string
}

func (e *FilterEmptyError) Error() string {
	return fmt.Sprintf(messages.SelectFilterEmptyFmt, strings.Join(e.Filters, ", "))
}

// IsFilterEmpty reports whether err is a FilterEmptyError.
func IsFilterEmpty(err error) bool {
	var fe *FilterEmptyError
	return errors.As(err, &fe)
}

// Outcome records how many candidates one filter matched.
type Outcome struct {
	Filter  Filter
	Matched int
}

// Result is the output of Apply.
type Result struct {
	Survivors IndexSet
	Outcomes  []Outcome
}

// Apply intersects the match sets of every hard filter. Soft filters are
// skipped here and only consulted by Select. With no hard filters every
// candidate survives.
func Apply(ctx context.Context, env Env, candidates []Candidate, filters []Filter) (Result, error) {
	logger := logging.OrDiscard(env.Logger)
	if len(candidates) == 0 {
		return Result{}, ErrNoCandidates
	}

	survivors := make(map[int]struct{}, len(candidates))
	for i := range candidates {
		survivors[i] = struct{}{}
	}

	var result Result
	var empty []string
	for _, f := range filters {
		if f.Soft() {
			continue
		}
		matched, err := f.Evaluate(ctx, env, candidates)
		if err != nil {
			return Result{}, err
		}
		result.Outcomes = append(result.Outcomes, Outcome{Filter: f, Matched: len(matched)})
		if len(matched) == 0 {
			empty = append(empty, f.String())
			continue
		}
		keep := make(map[int]struct{}, len(matched))
		for _, i := range matched {
			if _, ok := survivors[i]; ok {
				keep[i] = struct{}{}
			}
		}
		survivors = keep
	}
	if len(empty) > 0 {
		logger.Warn("filters matched nothing", "filters", empty)
		return result, &FilterEmptyError{Filters: empty}
	}
	if len(survivors) == 0 {
		logger.Warn("filter intersection is empty", "filters", len(result.Outcomes))
		return result, ErrIntersectFailure
	}
	for i := range candidates {
		if _, ok := survivors[i]; ok {
			result.Survivors = append(result.Survivors, i)
		}
	}
	return result, nil
}
