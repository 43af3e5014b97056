// Package httpx builds the HTTP client shared by the release fetcher,
// the tag source, and the asset downloader.
package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/dnscache"
)

// DNSRefreshInterval is how often cached DNS answers are refreshed.
const DNSRefreshInterval = 5 * time.Minute

var errNoAddress = errors.New("no address could be dialed")

var (
	sharedResolver     *dnscache.Resolver
	sharedResolverOnce sync.Once
)

// resolver returns the process-wide DNS cache, starting its refresh loop on
// first use.
func resolver() *dnscache.Resolver {
	sharedResolverOnce.Do(func() {
		sharedResolver = &dnscache.Resolver{}
		go func() {
			ticker := time.NewTicker(DNSRefreshInterval)
			defer ticker.Stop()
			for range ticker.C {
				sharedResolver.Refresh(true)
			}
		}()
	})
	return sharedResolver
}

// NewClient returns an HTTP client whose dialer resolves hosts through the
// shared DNS cache. Many mods hosted on the same CDN then resolve once per run.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewTransport(),
	}
}

// NewTransport returns a transport with DNS caching and proxy support.
func NewTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	r := resolver()
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			if ip := net.ParseIP(host); ip != nil {
				return dialer.DialContext(ctx, network, addr)
			}
			ips, err := r.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var lastErr error = errNoAddress
			for _, ip := range ips {
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			return nil, lastErr
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
