package resolve

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/conn-castle/modlayer/internal/logging"
	"github.com/conn-castle/modlayer/internal/messages"
	"github.com/conn-castle/modlayer/internal/versiongroup"
)

// Kind discriminates the filter variants.
type Kind string

// Filter kinds. LoaderPrefer is the only soft kind.
const (
	KindGameVersionStrict Kind = "game_version_strict"
	KindGameVersionMinor  Kind = "game_version_minor"
	KindLoaderPrefer      Kind = "loader_prefer"
	KindReleaseChannel    Kind = "release_channel"
	KindFilename          Kind = "filename"
	KindTitle             Kind = "title"
	KindDescription       Kind = "description"
)

// Filter is a tagged union over the closed set of candidate predicates.
// Kind selects the variant; only the payload fields that variant uses are set.
type Filter struct {
	Kind     Kind     `toml:"kind"`
	Versions []string `toml:"versions,omitempty"`
	Pattern  string   `toml:"pattern,omitempty"`
	Channel  Channel  `toml:"channel,omitempty"`
	Loader   string   `toml:"loader,omitempty"`
}

// GameVersionStrict matches candidates listing one of versions exactly.
func GameVersionStrict(versions ...string) Filter {
	return Filter{Kind: KindGameVersionStrict, Versions: versions}
}

// GameVersionMinor matches candidates listing a version minor-compatible with one of versions.
func GameVersionMinor(versions ...string) Filter {
	return Filter{Kind: KindGameVersionMinor, Versions: versions}
}

// LoaderPrefer breaks ties in favor of candidates built for loader.
func LoaderPrefer(loader string) Filter {
	return Filter{Kind: KindLoaderPrefer, Loader: loader}
}

// ReleaseChannelAtLeast matches candidates on channel c or a more stable one.
func ReleaseChannelAtLeast(c Channel) Filter {
	return Filter{Kind: KindReleaseChannel, Channel: c}
}

// FilenameMatches matches asset filenames against a regular expression.
func FilenameMatches(pattern string) Filter {
	return Filter{Kind: KindFilename, Pattern: pattern}
}

// TitleMatches matches release titles against a regular expression.
func TitleMatches(pattern string) Filter {
	return Filter{Kind: KindTitle, Pattern: pattern}
}

// DescriptionMatches matches release notes against a regular expression.
func DescriptionMatches(pattern string) Filter {
	return Filter{Kind: KindDescription, Pattern: pattern}
}

// Soft reports whether the filter only breaks ties.
func (f Filter) Soft() bool {
	return f.Kind == KindLoaderPrefer
}

// String names the filter for errors and logs.
func (f Filter) String() string {
	switch f.Kind {
	case KindGameVersionStrict:
		return "Game Version (" + strings.Join(f.Versions, ", ") + ")"
	case KindGameVersionMinor:
		return "Game Version Minor (" + strings.Join(f.Versions, ", ") + ")"
	case KindLoaderPrefer:
		return "Loader Prefer (" + f.Loader + ")"
	case KindReleaseChannel:
		return "Release Channel (" + string(f.Channel) + ")"
	case KindFilename:
		return "Filename (" + f.Pattern + ")"
	case KindTitle:
		return "Title (" + f.Pattern + ")"
	case KindDescription:
		return "Description (" + f.Pattern + ")"
	default:
		return string(f.Kind)
	}
}

// Validate checks that the payload suits the kind.
func (f Filter) Validate() error {
	switch f.Kind {
	case KindGameVersionStrict, KindGameVersionMinor:
		if len(f.Versions) == 0 {
			return fmt.Errorf(messages.FilterVersionsRequiredFmt, f.Kind)
		}
	case KindLoaderPrefer:
		if strings.TrimSpace(f.Loader) == "" {
			return fmt.Errorf(messages.FilterLoaderRequired)
		}
	case KindReleaseChannel:
		if _, err := ParseChannel(string(f.Channel)); err != nil {
			return err
		}
	case KindFilename, KindTitle, KindDescription:
		if f.Pattern == "" {
			return fmt.Errorf(messages.FilterPatternRequiredFmt, f.Kind)
		}
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return fmt.Errorf(messages.FilterInvalidPatternFmt, f.Kind, f.Pattern, err)
		}
	default:
		return fmt.Errorf(messages.FilterUnknownKindFmt, f.Kind)
	}
	return nil
}

// Env is the shared context filters evaluate against. Versions may be nil,
// in which case minor matching is strict matching.
type Env struct {
	Versions *versiongroup.Resolver
	Logger   *log.Logger
}

// IndexSet is an ascending list of candidate positions.
type IndexSet []int

// predicate is a compiled filter bound to an Env.
type predicate func(c Candidate) bool

func (f Filter) compile(ctx context.Context, env Env) (predicate, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	switch f.Kind {
	case KindGameVersionStrict:
		return versionPredicate(f.Versions), nil
	case KindGameVersionMinor:
		expanded := f.Versions
		if env.Versions != nil {
			expanded = env.Versions.Expand(ctx, f.Versions)
		}
		expanded = withMinorLines(expanded)
		logging.OrDiscard(env.Logger).Debug("expanded minor-compatible versions", "requested", f.Versions, "expanded", expanded)
		return versionPredicate(expanded), nil
	case KindLoaderPrefer:
		loader := f.Loader
		return func(c Candidate) bool { return strings.EqualFold(c.LoaderHint, loader) }, nil
	case KindReleaseChannel:
		channel := f.Channel
		return func(c Candidate) bool { return channel.Accepts(c.Channel) }, nil
	case KindFilename, KindTitle, KindDescription:
		re := regexp.MustCompile(f.Pattern)
		field := f.Kind
		return func(c Candidate) bool {
			switch field {
			case KindFilename:
				return re.MatchString(c.Filename)
			case KindTitle:
				return re.MatchString(c.Title)
			default:
				return re.MatchString(c.Description)
			}
		}, nil
	default:
		return nil, fmt.Errorf(messages.FilterUnknownKindFmt, f.Kind)
	}
}

// withMinorLines adds the major.minor line of every version so candidates
// that only declare "3.10" still match a group of patch releases.
func withMinorLines(versions []string) []string {
	if len(versions) == 0 {
		return versions
	}
	return mergeVersions(versions, mapVersions(versions, MajorMinor))
}

func mapVersions(versions []string, fn func(string) string) []string {
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = fn(v)
	}
	return out
}

func versionPredicate(versions []string) predicate {
	want := append([]string(nil), versions...)
	return func(c Candidate) bool {
		for _, v := range want {
			if c.HasVersion(v) {
				return true
			}
		}
		return false
	}
}

// Evaluate returns the positions of the candidates the filter matches. The
// outcome for each candidate depends only on that candidate.
func (f Filter) Evaluate(ctx context.Context, env Env, candidates []Candidate) (IndexSet, error) {
	match, err := f.compile(ctx, env)
	if err != nil {
		return nil, err
	}
	out := IndexSet{}
	for i, c := range candidates {
		if match(c) {
			out = append(out, i)
		}
	}
	logging.OrDiscard(env.Logger).Debug("filter evaluated", "filter", f.String(), "total", len(candidates), "matched", len(out))
	return out, nil
}

// ParseFilter reads the CLI form kind=value. Version kinds take a comma
// separated list.
func ParseFilter(raw string) (Filter, error) {
	key, value, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(value) == "" {
		return Filter{}, fmt.Errorf(messages.FilterParseFmt, raw)
	}
	value = strings.TrimSpace(value)
	var f Filter
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "strict", "game_version", string(KindGameVersionStrict):
		f = GameVersionStrict(splitList(value)...)
	case "minor", string(KindGameVersionMinor):
		f = GameVersionMinor(splitList(value)...)
	case "loader", string(KindLoaderPrefer):
		f = LoaderPrefer(value)
	case "channel", string(KindReleaseChannel):
		f = ReleaseChannelAtLeast(Channel(strings.ToLower(value)))
	case string(KindFilename):
		f = FilenameMatches(value)
	case string(KindTitle):
		f = TitleMatches(value)
	case string(KindDescription):
		f = DescriptionMatches(value)
	default:
		return Filter{}, fmt.Errorf(messages.FilterUnknownKindFmt, key)
	}
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
