package storage

import "strings"

// NormalizePath validates and canonicalizes a tenant-relative path.
//
// Rules:
//   - absolute, forward-slash separated, leading "/"
//   - no trailing slash except the root "/"
//   - empty segments, "." and ".." are rejected
//
// The input must already be URL-decoded; percent-encoding is handled at
// the HTTP boundary.
func NormalizePath(raw string) (string, error) {
	if raw == "" || raw[0] != '/' {
		return "", invalidPath(raw)
	}
	if raw == "/" {
		return "/", nil
	}

	trimmed := strings.TrimSuffix(raw, "/")
	for _, segment := range strings.Split(trimmed[1:], "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", invalidPath(raw)
		}
	}

	return trimmed, nil
}

// ParentPath returns the path of the containing folder ("/" for top-level
// entries, and "/" for the root itself).
func ParentPath(path string) string {
	if path == "/" {
		return "/"
	}
	idx := strings.LastIndexByte(path, '/')
	if idx == 0 {
		return "/"
	}
	return path[:idx]
}

// JoinPath appends a name to a folder path.
func JoinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// ancestorPaths returns every ancestor folder path of path, excluding the
// root, outermost first. "/a/b/c.txt" yields ["/a", "/a/b"].
func ancestorPaths(path string) []string {
	var ancestors []string
	dir := ParentPath(path)
	for dir != "/" {
		ancestors = append(ancestors, dir)
		dir = ParentPath(dir)
	}
	for i, j := 0, len(ancestors)-1; i < j; i, j = i+1, j-1 {
		ancestors[i], ancestors[j] = ancestors[j], ancestors[i]
	}
	return ancestors
}
