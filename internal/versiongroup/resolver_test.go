package versiongroup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls atomic.Int32
	tags  []Tag
	err   error
}

func (s *countingSource) Tags(context.Context) ([]Tag, error) {
	s.calls.Add(1)
	return s.tags, s.err
}

func sptTags() []Tag {
	return []Tag{
		{Version: "3.9", Type: TypeRelease, Major: true},
		{Version: "3.9.8", Type: TypeRelease},
		{Version: "3.10", Type: TypeRelease, Major: true},
		{Version: "3.10-beta", Type: "beta"},
		{Version: "3.10.5", Type: TypeRelease},
		{Version: "3.11", Type: TypeRelease, Major: true},
	}
}

func TestGroupSplitsOnMajor(t *testing.T) {
	groups := Group(sptTags())
	require.Equal(t, [][]string{
		{"3.9", "3.9.8"},
		{"3.10", "3.10.5"},
		{"3.11"},
	}, groups)
}

func TestGroupLeadingTagsWithoutMajor(t *testing.T) {
	groups := Group([]Tag{{Version: "0.1"}, {Version: "0.2"}, {Version: "1.0", Major: true}})
	require.Equal(t, [][]string{{"0.1", "0.2"}, {"1.0"}}, groups)
}

func TestEquivalents(t *testing.T) {
	r := NewResolver(StaticTagSource(sptTags()))
	ctx := context.Background()

	assert.Equal(t, []string{"3.10", "3.10.5"}, r.Equivalents(ctx, "3.10.5"))
	assert.Equal(t, []string{"3.11"}, r.Equivalents(ctx, "3.11"))
	assert.Equal(t, []string{"4.0"}, r.Equivalents(ctx, "4.0"), "strict fallback maps unknown versions to themselves")
}

func TestEquivalentsFallbackNone(t *testing.T) {
	r := NewResolver(StaticTagSource(sptTags()), WithFallback(FallbackNone))
	assert.Empty(t, r.Equivalents(context.Background(), "4.0"))
}

func TestUnavailableSourceYieldsEmptyGroups(t *testing.T) {
	src := &countingSource{err: errors.New("offline")}
	r := NewResolver(src, WithFallback(FallbackNone))
	ctx := context.Background()

	assert.Empty(t, r.Equivalents(ctx, "3.10"))
	assert.Empty(t, r.Groups(ctx))
	assert.EqualError(t, r.Err(ctx), "offline")
	assert.Equal(t, int32(1), src.calls.Load())
}

// contextSource fails when its context is already done.
type contextSource struct {
	tags []Tag
}

func (s contextSource) Tags(ctx context.Context) ([]Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.tags, nil
}

func TestCanceledFirstCallerDoesNotPoisonGroups(t *testing.T) {
	r := NewResolver(contextSource{tags: sptTags()}, WithFallback(FallbackNone))
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, []string{"3.10", "3.10.5"}, r.Equivalents(canceled, "3.10.5"))
	require.NoError(t, r.Err(context.Background()))
	assert.Equal(t, []string{"3.9", "3.9.8"}, r.Equivalents(context.Background(), "3.9"))
}

func TestResolverLoadsOnceUnderConcurrency(t *testing.T) {
	src := &countingSource{tags: sptTags()}
	r := NewResolver(src)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Expand(context.Background(), []string{"3.9", "3.10"})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestExpandDeduplicates(t *testing.T) {
	r := NewResolver(StaticTagSource(sptTags()))
	got := r.Expand(context.Background(), []string{"3.10", "3.10.5", "3.9"})
	assert.Equal(t, []string{"3.10", "3.10.5", "3.9", "3.9.8"}, got)
}

func TestParseFallback(t *testing.T) {
	f, err := ParseFallback("")
	require.NoError(t, err)
	assert.Equal(t, FallbackStrict, f)
	f, err = ParseFallback("NONE")
	require.NoError(t, err)
	assert.Equal(t, FallbackNone, f)
	_, err = ParseFallback("guess")
	require.Error(t, err)
}

func TestHTTPTagSourceReversesNewestFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"version":"1.20.1","version_type":"release","major":false},
			{"version":"1.20","version_type":"release","major":true},
			{"version":"1.19.4","version_type":"release","major":false},
			{"version":"1.19","version_type":"release","major":true}
		]`))
	}))
	t.Cleanup(server.Close)

	r := NewResolver(HTTPTagSource{URL: server.URL, Client: server.Client(), NewestFirst: true})
	assert.Equal(t, [][]string{{"1.19", "1.19.4"}, {"1.20", "1.20.1"}}, r.Groups(context.Background()))
}

func TestHTTPTagSourceStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	_, err := HTTPTagSource{URL: server.URL, Client: server.Client()}.Tags(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
