package messages

// Release fetch and rate-limit messages.
const (
	// GitHubCreateRequestFmt formats release request creation errors.
	GitHubCreateRequestFmt    = "create releases request for %s: %w"
	GitHubFetchStatusFmt      = "fetch releases for %s: unexpected status %s"
	GitHubDecodeReleasesFmt   = "decode releases for %s: %w"
	GitHubNotFoundFmt         = "repository %s not found or has no releases"
	GitHubAuthFmt             = "github rejected the credentials for %s (%s); check GITHUB_TOKEN"
	GitHubRateLimitFmt        = "github api rate limit exceeded (%s, remaining=%s)"
	GitHubRateLimitResetFmt   = "github api rate limit exceeded (%s, remaining=%s); resets at %s"
	GitHubNetworkFmt          = "network error fetching %s: %v"
	GitHubRetryBudgetExceeded = "retry budget exhausted"

	// FetchQuotaExhaustedFmt reports the coordinator refusing a fetch.
	FetchQuotaExhaustedFmt = "skipping %s: request budget exhausted"
	FetchIdentifierFmt     = "%s: %w"
)
