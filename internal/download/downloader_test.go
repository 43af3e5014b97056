package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cenk/backoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/modlayer/internal/github"
)

func newTestDownloader(opts ...Option) *Downloader {
	base := []Option{
		WithHTTPClient(http.DefaultClient),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	}
	return New(append(base, opts...)...)
}

func TestFetchWritesArchive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Accept"))
		_, _ = w.Write([]byte("archive-bytes"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "MODS", "Mod.zip")
	d := newTestDownloader(WithToken("secret"))
	res, err := d.Fetch(context.Background(), Request{URL: server.URL + "/Mod.zip", Dest: dest, Size: 13})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, int64(13), res.Bytes)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "archive-bytes", string(data))
	_, err = os.Stat(dest + partSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestFetchSkipsCachedArchive(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("fresh"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "Mod.zip")
	require.NoError(t, os.WriteFile(dest, []byte("stale"), 0o644))

	d := newTestDownloader()
	res, err := d.Fetch(context.Background(), Request{URL: server.URL, Dest: dest, Size: 5})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, int32(0), hits.Load())

	res, err = d.Fetch(context.Background(), Request{URL: server.URL, Dest: dest, Size: 5, Force: true})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, int32(1), hits.Load())
	data, _ := os.ReadFile(dest)
	assert.Equal(t, "fresh", string(data))
}

func TestFetchRetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "Mod.zip")
	res, err := newTestDownloader().Fetch(context.Background(), Request{URL: server.URL, Dest: dest})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Bytes)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchNotFoundIsPermanent(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestDownloader().Fetch(context.Background(), Request{URL: server.URL, Dest: filepath.Join(t.TempDir(), "x.zip")})
	require.ErrorIs(t, err, github.ErrNotFound)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchSizeMismatchRetriesThenFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("short"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "x.zip")
	_, err := newTestDownloader(WithMaxRetries(1)).Fetch(context.Background(), Request{URL: server.URL, Dest: dest, Size: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 100 bytes")
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(dest + partSuffix)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	_, err := newTestDownloader(WithMaxBytes(4)).Fetch(context.Background(), Request{URL: server.URL, Dest: filepath.Join(t.TempDir(), "x.zip")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := newTestDownloader(WithMaxRetries(0), WithTripThreshold(2))
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		_, err := d.Fetch(context.Background(), Request{URL: server.URL, Dest: filepath.Join(dir, "a.zip")})
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrHostUnavailable))
	}

	_, err := d.Fetch(context.Background(), Request{URL: server.URL, Dest: filepath.Join(dir, "a.zip")})
	require.ErrorIs(t, err, ErrHostUnavailable)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, "open", d.BreakerStates()[hostOf(server.URL)])
}

func TestFetchCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestDownloader().Fetch(ctx, Request{URL: server.URL, Dest: filepath.Join(t.TempDir(), "x.zip")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBrokenAssetDoesNotOpenBreakerForOtherAssets(t *testing.T) {
	var flakyHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken.zip":
			w.WriteHeader(http.StatusBadGateway)
		case "/flaky.zip":
			if flakyHits.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte("flaky"))
		default:
			_, _ = w.Write([]byte("healthy"))
		}
	}))
	defer server.Close()

	d := newTestDownloader()
	dir := t.TempDir()
	_, err := d.Fetch(context.Background(), Request{URL: server.URL + "/broken.zip", Dest: filepath.Join(dir, "broken.zip")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrHostUnavailable)

	res, err := d.Fetch(context.Background(), Request{URL: server.URL + "/flaky.zip", Dest: filepath.Join(dir, "flaky.zip")})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Bytes)

	res, err = d.Fetch(context.Background(), Request{URL: server.URL + "/healthy.zip", Dest: filepath.Join(dir, "healthy.zip")})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Bytes)
	assert.Equal(t, "closed", d.BreakerStates()[hostOf(server.URL)])
}

func TestSuccessResetsBreakerFailureCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.zip" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	d := newTestDownloader(WithMaxRetries(0), WithTripThreshold(2))
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		_, err := d.Fetch(context.Background(), Request{URL: server.URL + "/bad.zip", Dest: filepath.Join(dir, "bad.zip")})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrHostUnavailable)
		_, err = d.Fetch(context.Background(), Request{URL: server.URL + "/good.zip", Dest: filepath.Join(dir, "good.zip"), Force: true})
		require.NoError(t, err)
	}
	assert.Equal(t, "closed", d.BreakerStates()[hostOf(server.URL)])
}

func TestZeroRetriesMakesOneAttempt(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestDownloader(WithMaxRetries(0)).Fetch(context.Background(), Request{URL: server.URL, Dest: filepath.Join(t.TempDir(), "x.zip")})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}
