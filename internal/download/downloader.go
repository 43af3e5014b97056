// Package download streams release assets into archive storage with retry
// and per-host circuit breaking.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/charmbracelet/log"
	circuit "github.com/rubyist/circuitbreaker"

	"github.com/conn-castle/modlayer/internal/github"
	"github.com/conn-castle/modlayer/internal/httpx"
	"github.com/conn-castle/modlayer/internal/logging"
	"github.com/conn-castle/modlayer/internal/messages"
)

const (
	// DefaultMaxBytes caps a single asset download.
	DefaultMaxBytes int64 = 2 << 30
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultTripThreshold is the number of consecutive failed downloads, each
	// counted once after its retries, that opens a host breaker.
	DefaultTripThreshold = 5
	defaultTimeout       = 10 * time.Minute
	partSuffix           = ".part"
)

// ErrHostUnavailable reports a host whose circuit breaker is open.
var ErrHostUnavailable = errors.New("host unavailable")

var (
	osCreate = os.Create
	osRename = os.Rename
)

// Request describes one asset download.
type Request struct {
	URL string
	// Dest is the final archive path.
	Dest string
	// Size is the expected byte count; zero or negative skips the check.
	Size int64
	// Force downloads even when Dest already holds the asset.
	Force bool
}

// Result describes a finished download.
type Result struct {
	Path   string
	Bytes  int64
	Cached bool
}

// Downloader fetches assets over HTTP. It is safe for concurrent use.
type Downloader struct {
	client        *http.Client
	token         string
	userAgent     string
	maxBytes      int64
	maxRetries    uint64
	tripThreshold int64
	newBackOff    func() backoff.BackOff
	logger        *log.Logger

	mu       sync.RWMutex
	breakers map[string]*circuit.Breaker
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) { d.client = client }
}

// WithToken sets a bearer token sent with every request.
func WithToken(token string) Option {
	return func(d *Downloader) { d.token = token }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) { d.userAgent = ua }
}

// WithMaxBytes caps the download size.
func WithMaxBytes(n int64) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.maxBytes = n
		}
	}
}

// WithMaxRetries sets how many times a transient failure is retried. Zero
// makes a single attempt.
func WithMaxRetries(n uint64) Option {
	return func(d *Downloader) { d.maxRetries = n }
}

// WithTripThreshold sets how many consecutive failed downloads open a host
// breaker.
func WithTripThreshold(n int64) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.tripThreshold = n
		}
	}
}

// WithBackOff overrides the retry delay policy.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(d *Downloader) { d.newBackOff = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Downloader) { d.logger = logger }
}

// New returns a Downloader. Without WithHTTPClient it uses the shared
// DNS-caching transport.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		userAgent:     "modlayer",
		maxBytes:      DefaultMaxBytes,
		maxRetries:    DefaultMaxRetries,
		tripThreshold: DefaultTripThreshold,
		newBackOff:    defaultBackOff,
		breakers:      make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = httpx.NewClient(defaultTimeout)
	}
	d.logger = logging.OrDiscard(d.logger)
	return d
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	b.Reset()
	return b
}

// breaker returns the circuit breaker for host, creating it on first use.
func (d *Downloader) breaker(host string) *circuit.Breaker {
	d.mu.RLock()
	b, ok := d.breakers[host]
	d.mu.RUnlock()
	if ok {
		return b
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.breakers[host]; ok {
		return b
	}
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()
	b = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ConsecutiveTripFunc(d.tripThreshold),
	})
	d.breakers[host] = b
	return b
}

// BreakerStates reports open or closed per host seen so far.
func (d *Downloader) BreakerStates() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	states := make(map[string]string, len(d.breakers))
	for host, b := range d.breakers {
		if b.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

// Fetch downloads req.URL to req.Dest. The body is streamed into Dest.part,
// synced and renamed, so Dest is either absent or complete. When Dest
// already exists with the expected size and Force is unset, nothing is
// downloaded.
func (d *Downloader) Fetch(ctx context.Context, req Request) (Result, error) {
	if !req.Force {
		if info, err := os.Stat(req.Dest); err == nil && info.Mode().IsRegular() && (req.Size <= 0 || info.Size() == req.Size) {
			d.logger.Debug("asset already in archive storage", "path", req.Dest)
			return Result{Path: req.Dest, Bytes: info.Size(), Cached: true}, nil
		}
	}

	host := hostOf(req.URL)
	br := d.breaker(host)

	var (
		written   int64
		attempts  int
		permanent error
	)
	// One breaker call per download, retries included. Asset-specific errors
	// are not host failures.
	err := br.CallContext(ctx, func() error {
		n, tries, err := d.retry(ctx, req)
		attempts = tries
		switch {
		case err == nil:
			written = n
			return nil
		case isTransient(err):
			return err
		default:
			permanent = err
			return nil
		}
	}, 0)
	if errors.Is(err, circuit.ErrBreakerOpen) {
		return Result{}, fmt.Errorf("%w: "+messages.DownloadCircuitOpenFmt, ErrHostUnavailable, host)
	}
	if err == nil {
		err = permanent
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, err
	}
	d.logger.Info("downloaded asset", "url", req.URL, "path", req.Dest, "bytes", written, "attempts", attempts)
	return Result{Path: req.Dest, Bytes: written}, nil
}

// retry runs one download with the configured retry policy. It returns the
// byte count, the number of attempts made, and the last error.
func (d *Downloader) retry(ctx context.Context, req Request) (int64, int, error) {
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if d.maxRetries > 0 {
		policy = backoff.WithMaxRetries(d.newBackOff(), d.maxRetries)
	}
	policy = backoff.WithContext(policy, ctx)

	var written int64
	attempt := 0
	op := func() error {
		attempt++
		n, err := d.once(ctx, req)
		switch {
		case err == nil:
			written = n
			return nil
		case isTransient(err):
			d.logger.Warn("download attempt failed", "url", req.URL, "attempt", attempt, "err", err)
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	err := backoff.Retry(op, policy)
	return written, attempt, err
}

// transientError marks a failure worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

func (d *Downloader) once(ctx context.Context, req Request) (int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return 0, fmt.Errorf(messages.DownloadCreateRequestFmt, req.URL, err)
	}
	httpReq.Header.Set("Accept", "application/octet-stream")
	httpReq.Header.Set("User-Agent", d.userAgent)
	if d.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &transientError{err: &github.NetworkError{Target: req.URL, Err: err}}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return 0, fmt.Errorf("%w: "+messages.DownloadNotFoundFmt, github.ErrNotFound, req.URL)
	case resp.StatusCode == http.StatusUnauthorized:
		return 0, fmt.Errorf("%w: "+messages.DownloadUnexpectedStatusFmt, github.ErrAuth, req.URL, resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return 0, &transientError{err: fmt.Errorf(messages.DownloadTransientStatusFmt, req.URL, resp.Status)}
	default:
		return 0, fmt.Errorf(messages.DownloadUnexpectedStatusFmt, req.URL, resp.Status)
	}
	if resp.ContentLength > d.maxBytes {
		return 0, fmt.Errorf(messages.DownloadTooLargeFmt, req.URL, d.maxBytes)
	}
	return d.stream(ctx, req, resp.Body)
}

func (d *Downloader) stream(ctx context.Context, req Request, body io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o755); err != nil {
		return 0, fmt.Errorf(messages.FSCreateDirFmt, filepath.Dir(req.Dest), err)
	}
	part := req.Dest + partSuffix
	file, err := osCreate(part)
	if err != nil {
		return 0, fmt.Errorf(messages.FSCreateTempFileFmt, req.Dest, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = file.Close()
			_ = os.Remove(part)
		}
	}()

	n, err := io.Copy(file, io.LimitReader(body, d.maxBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, &transientError{err: &github.NetworkError{Target: req.URL, Err: err}}
		}
		return 0, fmt.Errorf(messages.DownloadFailedFmt, req.URL, err)
	}
	if n > d.maxBytes {
		return 0, fmt.Errorf(messages.DownloadTooLargeFmt, req.URL, d.maxBytes)
	}
	if req.Size > 0 && n != req.Size {
		return 0, &transientError{err: fmt.Errorf(messages.DownloadSizeMismatchFmt, req.URL, req.Size, n)}
	}
	if err := file.Sync(); err != nil {
		return 0, fmt.Errorf(messages.FSSyncTempFileFmt, req.Dest, err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf(messages.FSCloseTempFileFmt, req.Dest, err)
	}
	if err := osRename(part, req.Dest); err != nil {
		_ = os.Remove(part)
		committed = true
		return 0, fmt.Errorf(messages.FSRenameTempFileFmt, req.Dest, err)
	}
	committed = true
	return n, nil
}

func hostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}
	return parsed.Host
}
