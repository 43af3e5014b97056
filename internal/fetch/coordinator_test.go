package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/modlayer/internal/github"
	"github.com/conn-castle/modlayer/internal/profile"
)

type fakeSource struct {
	mu       sync.Mutex
	calls    map[string]int
	total    atomic.Int32
	fn       func(owner, repo string) ([]github.Release, github.Quota, error)
	blockFor chan struct{}
}

func (s *fakeSource) ListReleases(_ context.Context, owner string, repo string) ([]github.Release, github.Quota, error) {
	s.total.Add(1)
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[owner+"/"+repo]++
	s.mu.Unlock()
	if s.blockFor != nil {
		<-s.blockFor
	}
	if s.fn != nil {
		return s.fn(owner, repo)
	}
	return []github.Release{{Tag: "v1"}}, github.Quota{}, nil
}

func id(s string) profile.ModIdentifier {
	parsed, err := profile.ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return parsed
}

func TestFetchCachesPerIdentifier(t *testing.T) {
	src := &fakeSource{}
	c := NewCoordinator(src, 10)

	_, err := c.Fetch(context.Background(), id("Owner/Mod"))
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), id("owner/mod"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.total.Load(), "validation and selection passes must not double-spend quota")
	assert.Equal(t, 9, c.Remaining())
}

func TestFetchSharesInFlightRequest(t *testing.T) {
	src := &fakeSource{blockFor: make(chan struct{})}
	c := NewCoordinator(src, 10)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Fetch(context.Background(), id("a/b"))
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(src.blockFor)
	wg.Wait()
	assert.Equal(t, int32(1), src.total.Load())
}

func TestFetchFailsFastAfterBudgetSpent(t *testing.T) {
	src := &fakeSource{}
	c := NewCoordinator(src, 2)

	_, err := c.Fetch(context.Background(), id("a/one"))
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), id("a/two"))
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), id("a/three"))
	require.Error(t, err)
	assert.True(t, github.IsRateLimitError(err))
	assert.Contains(t, err.Error(), "a/three")
	assert.Equal(t, int32(2), src.total.Load(), "no request may be issued after exhaustion")
}

func TestFetchStopsAfterAPIReportsExhaustion(t *testing.T) {
	reset := time.Unix(1735689600, 0)
	zero := 0
	src := &fakeSource{fn: func(owner, repo string) ([]github.Release, github.Quota, error) {
		if repo == "first" {
			return nil, github.Quota{Known: true, Remaining: 0, Reset: reset},
				&github.RateLimitError{StatusCode: 403, Status: "403 Forbidden", Remaining: &zero, ResetAt: reset}
		}
		return []github.Release{{Tag: "v1"}}, github.Quota{}, nil
	}}
	c := NewCoordinator(src, 100)

	_, err := c.Fetch(context.Background(), id("a/first"))
	require.True(t, github.IsRateLimitError(err))

	_, err = c.Fetch(context.Background(), id("a/second"))
	var rl *github.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, reset, rl.ResetAt)
	assert.Same(t, c.Exhausted(), rl)
	assert.Equal(t, int32(1), src.total.Load())
}

func TestFetchAdoptsLowerServerQuota(t *testing.T) {
	src := &fakeSource{fn: func(string, string) ([]github.Release, github.Quota, error) {
		return nil, github.Quota{Known: true, Remaining: 1, Reset: time.Unix(10, 0)}, nil
	}}
	c := NewCoordinator(src, 60)

	_, err := c.Fetch(context.Background(), id("a/one"))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Remaining())

	_, err = c.Fetch(context.Background(), id("a/two"))
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), id("a/three"))
	var rl *github.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, time.Unix(10, 0), rl.ResetAt)
}

func TestFetchCachesNotFound(t *testing.T) {
	src := &fakeSource{fn: func(string, string) ([]github.Release, github.Quota, error) {
		return nil, github.Quota{}, github.ErrNotFound
	}}
	c := NewCoordinator(src, 10)
	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), id("a/missing"))
		require.ErrorIs(t, err, github.ErrNotFound)
	}
	assert.Equal(t, int32(1), src.total.Load())
}

func TestFetchDoesNotCacheCanceledRequests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{fn: func(string, string) ([]github.Release, github.Quota, error) {
		cancel()
		return nil, github.Quota{}, context.Canceled
	}}
	c := NewCoordinator(src, 10)
	_, err := c.Fetch(ctx, id("a/b"))
	require.True(t, errors.Is(err, context.Canceled))

	src.fn = nil
	releases, err := c.Fetch(context.Background(), id("a/b"))
	require.NoError(t, err)
	assert.Len(t, releases, 1)
	assert.Equal(t, 2, c.Requests())
}
