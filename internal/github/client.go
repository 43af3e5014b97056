// Package github talks to the GitHub REST API for release metadata.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/conn-castle/modlayer/internal/messages"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

// DefaultPerPage is the number of releases requested per fetch.
const DefaultPerPage = 30

const (
	fetchRetryCount  = 1
	maxReleasesBytes = 16 * 1024 * 1024
)

var now = time.Now

// Release is one GitHub release.
type Release struct {
	Tag         string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
	Prerelease  bool      `json:"prerelease"`
	Draft       bool      `json:"draft"`
	Assets      []Asset   `json:"assets"`
}

// DisplayName returns the release name, or its tag when unnamed.
func (r Release) DisplayName() string {
	if strings.TrimSpace(r.Name) != "" {
		return r.Name
	}
	return r.Tag
}

// Asset is one downloadable file attached to a release.
type Asset struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Client fetches releases from the GitHub REST API.
type Client struct {
	baseURL    string
	token      string
	perPage    int
	userAgent  string
	httpClient *http.Client
	retryDelay time.Duration
	sleep      func(time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(raw string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(raw, "/") }
}

// WithToken authenticates requests with a bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithPerPage sets how many releases to request.
func WithPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.perPage = n
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient returns a client with defaults applied.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultAPIURL,
		perPage:    DefaultPerPage,
		userAgent:  "modlayer",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryDelay: 250 * time.Millisecond,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticated reports whether requests carry a token.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// ListReleases returns the repository's published releases, newest first,
// together with the rate-limit quota reported by the final response.
func (c *Client) ListReleases(ctx context.Context, owner string, repo string) ([]Release, Quota, error) {
	target := owner + "/" + repo
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo), c.perPage)

	var quota Quota
	for attempt := 0; attempt <= fetchRetryCount; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, quota, fmt.Errorf(messages.GitHubCreateRequestFmt, target, err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		req.Header.Set("User-Agent", c.userAgent)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if shouldRetry(err, 0, attempt) {
				c.sleep(c.retryDelay)
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, quota, ctxErr
			}
			return nil, quota, &NetworkError{Target: target, Err: err}
		}
		quota = quotaFromResponse(resp)

		if resp.StatusCode != http.StatusOK {
			status := resp.StatusCode
			statusText := resp.Status
			rateLimitErr := rateLimitErrorFromResponse(resp)
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			switch {
			case rateLimitErr != nil:
				return nil, quota, rateLimitErr
			case status == http.StatusNotFound:
				return nil, quota, fmt.Errorf("%w: "+messages.GitHubNotFoundFmt, ErrNotFound, target)
			case status == http.StatusUnauthorized || status == http.StatusForbidden:
				return nil, quota, fmt.Errorf("%w: "+messages.GitHubAuthFmt, ErrAuth, target, statusText)
			case shouldRetry(nil, status, attempt):
				c.sleep(c.retryDelay)
				continue
			case status >= 500:
				return nil, quota, &NetworkError{Target: target, Err: fmt.Errorf(messages.GitHubFetchStatusFmt, target, statusText)}
			default:
				return nil, quota, fmt.Errorf(messages.GitHubFetchStatusFmt, target, statusText)
			}
		}

		var releases []Release
		err = json.NewDecoder(io.LimitReader(resp.Body, maxReleasesBytes)).Decode(&releases)
		_ = resp.Body.Close()
		if err != nil {
			return nil, quota, fmt.Errorf(messages.GitHubDecodeReleasesFmt, target, err)
		}
		return publishedOnly(releases), quota, nil
	}

	return nil, quota, &NetworkError{Target: target, Err: errors.New(messages.GitHubRetryBudgetExceeded)}
}

func publishedOnly(releases []Release) []Release {
	out := releases[:0]
	for _, r := range releases {
		if r.Draft {
			continue
		}
		out = append(out, r)
	}
	return out
}

func shouldRetry(err error, statusCode int, attempt int) bool {
	if attempt >= fetchRetryCount {
		return false
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var netErr net.Error
		return errors.As(err, &netErr)
	}
	return statusCode >= 500 && statusCode <= 599
}

// RateLimit queries the current quota without spending it.
func (c *Client) RateLimit(ctx context.Context) (Quota, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rate_limit", nil)
	if err != nil {
		return Quota{}, fmt.Errorf(messages.GitHubCreateRequestFmt, "rate_limit", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Quota{}, &NetworkError{Target: "rate_limit", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusUnauthorized {
		return Quota{}, fmt.Errorf("%w: "+messages.GitHubAuthFmt, ErrAuth, "rate_limit", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return Quota{}, fmt.Errorf(messages.GitHubFetchStatusFmt, "rate_limit", resp.Status)
	}
	var payload struct {
		Resources struct {
			Core struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quota{}, fmt.Errorf(messages.GitHubDecodeReleasesFmt, "rate_limit", err)
	}
	core := payload.Resources.Core
	return Quota{Limit: core.Limit, Remaining: core.Remaining, Reset: time.Unix(core.Reset, 0), Known: true}, nil
}

// FormatRemaining renders q.Remaining for display, or "unknown".
func FormatRemaining(q Quota) string {
	if !q.Known {
		return "unknown"
	}
	return strconv.Itoa(q.Remaining)
}
