package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// normalizeTopLevelName computes the top-level archive entry name for an
// input path, per spec.md §4.C: use the final path component; if the path
// terminates in a separator, walk components in reverse to find the first
// "normal" component, falling back to ".".
func normalizeTopLevelName(path string) string {
	clean := filepath.Clean(path)
	name := filepath.Base(clean)
	if isNormalComponent(name) {
		return name
	}

	parts := strings.Split(filepath.ToSlash(clean), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if isNormalComponent(parts[i]) {
			return parts[i]
		}
	}
	return "."
}

// isNormalComponent rejects root, current-dir, parent-dir, and (on Windows)
// drive-prefix path components.
func isNormalComponent(c string) bool {
	if c == "" || c == "." || c == ".." || c == "/" || c == `\` {
		return false
	}
	if vol := filepath.VolumeName(c); vol != "" {
		return false
	}
	return true
}

// sanitizeRelPath drops every non-normal component of a declared archive
// entry path (root anchors, "..", ".", drive prefixes) per spec.md §4.C step
// 1. It returns ok=false if nothing normal remains.
func sanitizeRelPath(declared string) (cleaned string, ok bool) {
	slashed := filepath.ToSlash(declared)
	parts := strings.Split(slashed, "/")
	var kept []string
	for _, p := range parts {
		if isNormalComponent(p) {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return "", false
	}
	return filepath.Join(kept...), true
}

// splitRootAndSub splits a sanitized relative path into its first component
// (root_component) and everything after it (sub_path), per spec.md §4.C step 2.
func splitRootAndSub(cleaned string) (root, sub string) {
	parts := strings.SplitN(filepath.ToSlash(cleaned), "/", 2)
	root = parts[0]
	if len(parts) == 2 {
		sub = filepath.FromSlash(parts[1])
	}
	return root, sub
}

// uniqueName implements spec.md §4.C's collision policy: if P exists, try
// "P (1)", "P (2)", ... preserving extension, until a non-existent name is
// found.
func uniqueName(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
