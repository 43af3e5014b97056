package resolve

import (
	"regexp"
	"strings"
)

var versionPattern = regexp.MustCompile(`(?i)\bv?(\d+)\.(\d+|[x*])(?:\.(\d+|[x*]))?(?:[^0-9a-z_]|$)`)

// ExtractVersions finds version-looking tokens such as "3.10", "v3.10.2" or
// "3.10.x" in free text. Each token yields its literal form and, when it
// carries a patch segment, its major.minor form as well. A bare major number
// is not a version.
func ExtractVersions(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(v string) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, m := range versionPattern.FindAllStringSubmatch(text, -1) {
		major, minor, patch := m[1], strings.ToLower(m[2]), strings.ToLower(m[3])
		if minor == "*" {
			minor = "x"
		}
		if patch == "*" {
			patch = "x"
		}
		if patch != "" {
			add(major + "." + minor + "." + patch)
		}
		add(major + "." + minor)
	}
	return out
}

// MajorMinor returns the first two dot-separated segments of v.
func MajorMinor(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return v
	}
	return parts[0] + "." + parts[1]
}

// FilterKnown keeps versions whose major.minor line is in known. An empty
// known list keeps everything.
func FilterKnown(versions []string, known []string) []string {
	if len(known) == 0 {
		return versions
	}
	lines := make(map[string]struct{}, len(known))
	for _, k := range known {
		lines[MajorMinor(strings.TrimSpace(k))] = struct{}{}
	}
	var out []string
	for _, v := range versions {
		if _, ok := lines[MajorMinor(v)]; ok {
			out = append(out, v)
		}
	}
	return out
}
