package versiongroup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/conn-castle/modlayer/internal/messages"
)

// TypeRelease marks a tag as a stable game release. Other types such as
// snapshot or beta never take part in grouping.
const TypeRelease = "release"

const maxTagListBytes = 4 * 1024 * 1024

// Tag is one game version from the tag source.
type Tag struct {
	Version string `json:"version" toml:"version" mapstructure:"version"`
	Type    string `json:"version_type" toml:"type" mapstructure:"type"`
	Major   bool   `json:"major" toml:"major" mapstructure:"major"`
}

// TagSource supplies game version tags, oldest first.
type TagSource interface {
	Tags(ctx context.Context) ([]Tag, error)
}

// StaticTagSource serves a fixed tag list, typically from config.
type StaticTagSource []Tag

// Tags returns the configured tags.
func (s StaticTagSource) Tags(context.Context) ([]Tag, error) {
	return append([]Tag(nil), s...), nil
}

// HTTPTagSource reads a JSON tag list of {version, version_type, major}
// objects. Endpoints modeled on Modrinth's tag list return newest first;
// set NewestFirst so the list is reversed into chronological order.
type HTTPTagSource struct {
	URL         string
	Client      *http.Client
	NewestFirst bool
	UserAgent   string
}

// Tags fetches and decodes the tag list.
func (s HTTPTagSource) Tags(ctx context.Context) ([]Tag, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf(messages.VersionsCreateRequestFmt, err)
	}
	req.Header.Set("Accept", "application/json")
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf(messages.VersionsFetchFmt, s.URL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(messages.VersionsStatusFmt, s.URL, resp.Status)
	}
	var tags []Tag
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTagListBytes)).Decode(&tags); err != nil {
		return nil, fmt.Errorf(messages.VersionsDecodeFmt, s.URL, err)
	}
	if s.NewestFirst {
		for i, j := 0, len(tags)-1; i < j; i, j = i+1, j-1 {
			tags[i], tags[j] = tags[j], tags[i]
		}
	}
	return tags, nil
}
