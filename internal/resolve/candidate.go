// Package resolve turns a release list into candidates, filters them, and
// selects exactly one asset to install.
package resolve

import (
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/conn-castle/modlayer/internal/github"
)

// DefaultExtensions are the asset suffixes treated as installable.
var DefaultExtensions = []string{".zip", ".7z", ".dll"}

// Candidate is a release and asset pair flattened into filterable attributes.
type Candidate struct {
	GameVersions []string
	LoaderHint   string
	Title        string
	Description  string
	Filename     string
	Channel      Channel
	PublishedAt  time.Time
	Prerelease   bool
	ReleaseTag   string
	Asset        github.Asset
	ReleaseIndex int
	AssetIndex   int
}

// HasVersion reports whether v is one of the candidate's game versions,
// compared as exact case-sensitive strings.
func (c Candidate) HasVersion(v string) bool {
	for _, gv := range c.GameVersions {
		if gv == v {
			return true
		}
	}
	return false
}

// FlattenOptions tunes how releases become candidates.
type FlattenOptions struct {
	// KnownVersions restricts extracted game versions to these major.minor
	// lines. Empty keeps every extracted version.
	KnownVersions []string
	// Loaders are loader names recognized in asset filenames.
	Loaders []string
	// Extensions are the installable asset suffixes. Empty means DefaultExtensions.
	Extensions []string
}

// Flatten produces one candidate per installable asset, in release order and
// then asset order. Game versions come from the release name and the asset
// filename.
func Flatten(releases []github.Release, opts FlattenOptions) []Candidate {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	loaders := compileLoaders(opts.Loaders)

	var out []Candidate
	for ri, release := range releases {
		releaseVersions := ExtractVersions(release.DisplayName())
		channel := ChannelOf(release)
		for ai, asset := range release.Assets {
			if !hasExtension(asset.Name, exts) {
				continue
			}
			versions := mergeVersions(ExtractVersions(asset.Name), releaseVersions)
			out = append(out, Candidate{
				GameVersions: FilterKnown(versions, opts.KnownVersions),
				LoaderHint:   detectLoader(asset.Name, loaders),
				Title:        release.DisplayName(),
				Description:  release.Body,
				Filename:     asset.Name,
				Channel:      channel,
				PublishedAt:  release.PublishedAt,
				Prerelease:   release.Prerelease,
				ReleaseTag:   release.Tag,
				Asset:        asset,
				ReleaseIndex: ri,
				AssetIndex:   ai,
			})
		}
	}
	return out
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func mergeVersions(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

type loaderPattern struct {
	name string
	re   *regexp.Regexp
}

func compileLoaders(loaders []string) []loaderPattern {
	out := make([]loaderPattern, 0, len(loaders))
	for _, l := range loaders {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, loaderPattern{
			name: l,
			re:   regexp.MustCompile(`(?i)(?:^|[^a-z0-9])` + regexp.QuoteMeta(l) + `(?:[^a-z0-9]|$)`),
		})
	}
	return out
}

func detectLoader(filename string, loaders []loaderPattern) string {
	for _, l := range loaders {
		if l.re.MatchString(filename) {
			return l.name
		}
	}
	return ""
}
