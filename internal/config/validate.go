package config

import (
	"fmt"
	"strings"

	"github.com/conn-castle/modlayer/internal/messages"
)

// maxPerPage is the GitHub API page size limit.
const maxPerPage = 100

// Validate ensures the settings are complete and consistent.
func (s *Settings) Validate(source string) error {
	if strings.TrimSpace(s.GitHub.APIURL) == "" {
		return fmt.Errorf(messages.ConfigRequiredFmt, source, "github.api_url")
	}
	positives := []struct {
		key   string
		value int
	}{
		{"github.per_page", s.GitHub.PerPage},
		{"github.quota_unauthenticated", s.GitHub.QuotaUnauthenticated},
		{"github.quota_authenticated", s.GitHub.QuotaAuthenticated},
		{"parallel", s.Parallel},
		{"download.max_retries", s.Download.MaxRetries},
		{"download.trip_threshold", s.Download.TripThreshold},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf(messages.ConfigPositiveIntFmt, source, p.key)
		}
	}
	if s.GitHub.PerPage > maxPerPage {
		return fmt.Errorf(messages.ConfigPerPageMaxFmt, source, maxPerPage)
	}

	enums := []struct {
		key   string
		value string
	}{
		{"log.level", s.Log.Level},
		{"filters.minor_fallback", s.Filters.MinorFallback},
		{"install.conflict_policy", s.Install.ConflictPolicy},
	}
	for _, e := range enums {
		if err := validateEnum(source, e.key, e.value); err != nil {
			return err
		}
	}

	for i, tag := range s.Versions.Tags {
		if strings.TrimSpace(tag.Version) == "" {
			return fmt.Errorf(messages.ConfigTagVersionFmt, source, i)
		}
	}
	return nil
}

// validateEnum checks value against the field catalog options for key.
func validateEnum(source string, key string, value string) error {
	allowed := FieldOptionValues(key)
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, opt := range allowed {
		if opt == normalized {
			return nil
		}
	}
	return fmt.Errorf(messages.ConfigEnumInvalidFmt, source, key, value, strings.Join(allowed, ", "))
}
