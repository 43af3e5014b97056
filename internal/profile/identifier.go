package profile

import (
	"fmt"
	"strings"

	"github.com/package-url/packageurl-go"

	"github.com/conn-castle/modlayer/internal/messages"
)

// ModIdentifier names a mod source as a GitHub owner and repository.
// Comparison is case-insensitive; the original casing is kept for display.
type ModIdentifier struct {
	Owner string
	Repo  string
}

// ParseIdentifier accepts owner/repo, a github.com repository URL, or a
// pkg:github package URL.
func ParseIdentifier(raw string) (ModIdentifier, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ModIdentifier{}, fmt.Errorf(messages.IdentifierEmpty)
	}
	if strings.HasPrefix(trimmed, "pkg:") {
		return parsePackageURL(trimmed)
	}

	trimmed = strings.TrimPrefix(trimmed, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	trimmed = strings.TrimPrefix(trimmed, "www.")
	trimmed = strings.TrimPrefix(trimmed, "github.com/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	trimmed = strings.TrimSuffix(trimmed, ".git")

	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || !validSegment(parts[0]) || !validSegment(parts[1]) {
		return ModIdentifier{}, fmt.Errorf(messages.IdentifierInvalidFmt, raw)
	}
	return ModIdentifier{Owner: parts[0], Repo: parts[1]}, nil
}

func parsePackageURL(raw string) (ModIdentifier, error) {
	purl, err := packageurl.FromString(raw)
	if err != nil {
		return ModIdentifier{}, fmt.Errorf(messages.IdentifierPurlParseFmt, raw, err)
	}
	if !strings.EqualFold(purl.Type, packageurl.TypeGithub) {
		return ModIdentifier{}, fmt.Errorf(messages.IdentifierPurlTypeFmt, raw)
	}
	if !validSegment(purl.Namespace) || !validSegment(purl.Name) {
		return ModIdentifier{}, fmt.Errorf(messages.IdentifierInvalidFmt, raw)
	}
	return ModIdentifier{Owner: purl.Namespace, Repo: purl.Name}, nil
}

func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// String returns owner/repo.
func (id ModIdentifier) String() string {
	return id.Owner + "/" + id.Repo
}

// Key returns the case-folded form used for map keys and comparisons.
func (id ModIdentifier) Key() string {
	return strings.ToLower(id.String())
}

// Equal reports whether two identifiers name the same source.
func (id ModIdentifier) Equal(other ModIdentifier) bool {
	return strings.EqualFold(id.Owner, other.Owner) && strings.EqualFold(id.Repo, other.Repo)
}

// IsZero reports whether the identifier is unset.
func (id ModIdentifier) IsZero() bool {
	return id.Owner == "" && id.Repo == ""
}

// PackageURL renders the identifier as pkg:github/owner/repo.
func (id ModIdentifier) PackageURL() string {
	return packageurl.NewPackageURL(packageurl.TypeGithub, id.Owner, id.Repo, "", nil, "").ToString()
}

// MarshalText encodes the identifier as owner/repo.
func (id ModIdentifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes any form accepted by ParseIdentifier.
func (id *ModIdentifier) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentifier(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
