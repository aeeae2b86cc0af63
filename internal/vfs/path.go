package vfs

import "strings"

const (
	pathDelimiter = "/"
	pathThisDir   = "."
	pathParentDir = ".."
)

// tokenize splits a path into its non-empty components, mirroring
// original_source's vfs_tokenize (which tokenizes in place and counts
// depth); here the Go idiom is simply strings.Split plus a filter.
func tokenize(path string) []string {
	parts := strings.Split(path, pathDelimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Canonicalize converts a possibly-relative path into an absolute,
// dot/dot-dot-resolved path, per original_source's canonicalize_path:
// relative paths are resolved against cwd first; "." segments are dropped;
// ".." segments pop the last resolved component (a ".." past the root is
// simply dropped, since there is nothing above "/" to pop). Absolute paths
// ignore cwd entirely.
func Canonicalize(cwd, relpath string) string {
	var stack []string
	if !strings.HasPrefix(relpath, pathDelimiter) {
		stack = append(stack, tokenize(cwd)...)
	}
	for _, tok := range tokenize(relpath) {
		switch tok {
		case pathThisDir:
			continue
		case pathParentDir:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, tok)
		}
	}
	if len(stack) == 0 {
		return pathDelimiter
	}
	return pathDelimiter + strings.Join(stack, pathDelimiter)
}
