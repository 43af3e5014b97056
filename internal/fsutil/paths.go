package fsutil

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/conn-castle/modlayer/internal/messages"
)

// IsWithin reports whether target is strictly beneath root.
func IsWithin(root string, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(target))
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || filepath.IsAbs(rel) {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// CleanRel normalizes a slash-separated relative path and rejects absolute
// paths and paths that climb out of their root.
func CleanRel(rel string) (string, error) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf(messages.FSEmptyRelativePath)
	}
	if path.IsAbs(rel) || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf(messages.FSAbsolutePathRelFmt, rel)
	}
	cleaned := path.Clean(rel)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf(messages.FSPathEscapesRootFmt, rel, "root")
	}
	return cleaned, nil
}

// SafeJoin joins a slash-separated relative path onto root and guarantees the
// result stays beneath root.
func SafeJoin(root string, rel string) (string, error) {
	cleaned, err := CleanRel(rel)
	if err != nil {
		return "", err
	}
	joined := filepath.Join(root, filepath.FromSlash(cleaned))
	if !IsWithin(root, joined) {
		return "", fmt.Errorf(messages.FSPathEscapesRootFmt, rel, root)
	}
	return joined, nil
}

// SanitizeName replaces characters that are invalid in file names on common
// platforms with underscores.
func SanitizeName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_",
	)
	return strings.TrimSpace(replacer.Replace(name))
}
