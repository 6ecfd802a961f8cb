package webdav

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/marble/pkg/storage"
)

// parseDepth reads the Depth header. fallback applies when the header is
// absent; an unrecognized value returns ok=false.
func parseDepth(r *http.Request, fallback string) (depth string, ok bool) {
	value := r.Header.Get("Depth")
	if value == "" {
		return fallback, true
	}
	switch strings.ToLower(value) {
	case "0", "1", "infinity":
		return strings.ToLower(value), true
	}
	return "", false
}

// parseTimeout reads the Timeout header ("Second-600", "Infinite", or a
// comma-separated list of alternatives). Returns 0 when absent or not
// understood; the lock manager then applies its default on a new lock and
// keeps the current duration on a refresh. "Infinite" maps
// to the server maximum via clamping, expressed here as a very large
// duration.
func parseTimeout(header string) time.Duration {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if strings.EqualFold(candidate, "Infinite") {
			return 24 * 365 * time.Hour
		}
		if rest, found := strings.CutPrefix(candidate, "Second-"); found {
			seconds, err := strconv.ParseInt(rest, 10, 64)
			if err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}
	return 0
}

// parseIfTokens extracts the lock tokens from an If header. This is a
// deliberate simplification of RFC 4918 section 10.4: sync clients send
// flat token lists, so every <token> anywhere in the header is collected
// and any of them may satisfy a lock check. ETag conditions ["..."] are
// ignored.
func parseIfTokens(header string) []string {
	var tokens []string
	for {
		start := strings.IndexByte(header, '<')
		if start < 0 {
			break
		}
		end := strings.IndexByte(header[start:], '>')
		if end < 0 {
			break
		}
		token := header[start+1 : start+end]
		// Resource tags also appear in angle brackets; lock tokens are
		// the urn:-formatted ones.
		if strings.HasPrefix(token, "urn:") {
			tokens = append(tokens, token)
		}
		header = header[start+end+1:]
	}
	return tokens
}

// parseLockToken reads the Lock-Token header, stripping the angle
// brackets.
func parseLockToken(header string) string {
	token := strings.TrimSpace(header)
	token = strings.TrimPrefix(token, "<")
	token = strings.TrimSuffix(token, ">")
	return token
}

// parseDestination resolves the Destination header to a normalized
// tenant-relative path.
func parseDestination(r *http.Request) (string, error) {
	raw := r.Header.Get("Destination")
	if raw == "" {
		return "", &url.Error{Op: "parse", URL: raw, Err: errMissingDestination}
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	return storage.NormalizePath(parsed.Path)
}

var errMissingDestination = &destinationError{}

type destinationError struct{}

func (*destinationError) Error() string { return "missing Destination header" }

// parseOverwrite reads the Overwrite header; the RFC default is T.
func parseOverwrite(r *http.Request) bool {
	return !strings.EqualFold(r.Header.Get("Overwrite"), "F")
}
