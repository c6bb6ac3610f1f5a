// Package urlnorm normalizes request and media URLs against the resolved
// environment base URL.
//
// All functions are total: malformed input yields an empty or unchanged string
// rather than an error, and every function is idempotent.
package urlnorm

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// PlaceholderTokens mark a base URL the operator never finished configuring.
var PlaceholderTokens = []string{"YOUR_LOCAL_IP", "your-domain.com"}

var (
	schemePrefix = regexp.MustCompile(`(?i)^https?://`)
	schemeAny    = regexp.MustCompile(`(?i)https?://`)
	slashRun     = regexp.MustCompile(`/{2,}`)
	loopbackHost = regexp.MustCompile(`(?i)^https?://(?:localhost|127\.0\.0\.1)(?::\d+)?(?:/|$)`)
)

// SanitizeBaseURL trims raw and defaults the scheme to http://. It collapses
// duplicate slashes after the scheme and ensures exactly one trailing slash.
// Blank input, or input with nothing after the scheme, yields "".
func SanitizeBaseURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if !schemePrefix.MatchString(trimmed) {
		trimmed = "http://" + trimmed
	}

	prefix := schemePrefix.FindString(trimmed)
	rest := slashRun.ReplaceAllString(trimmed[len(prefix):], "/")
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return ""
	}
	trimmed = prefix + rest

	if !strings.HasSuffix(trimmed, "/") {
		trimmed += "/"
	}
	return trimmed
}

// IsAbsolute reports whether s starts with an http or https scheme.
func IsAbsolute(s string) bool {
	return schemePrefix.MatchString(strings.TrimSpace(s))
}

// IsLoopback reports whether s is an absolute URL on localhost or 127.0.0.1.
func IsLoopback(s string) bool {
	return loopbackHost.MatchString(strings.TrimSpace(s))
}

// HasPlaceholder reports whether s contains an unreplaced placeholder token.
func HasPlaceholder(s string) bool {
	for _, token := range PlaceholderTokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

// EmbeddedAbsolute returns the absolute URL s starts with, or the first one
// embedded in its path: "upload/http://host/a.jpg" yields "http://host/a.jpg".
// URLs carried in the query or fragment are part of s, not embedded in it.
func EmbeddedAbsolute(s string) (string, bool) {
	t := strings.TrimSpace(s)
	if schemePrefix.MatchString(t) {
		return t, true
	}
	loc := schemeAny.FindStringIndex(pathPart(t))
	if loc == nil {
		return "", false
	}
	return t[loc[0]:], true
}

// pathPart returns s up to its first '?' or '#'.
func pathPart(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}

// Origin returns "scheme://host[:port]/" for base, or "" if base has no host.
func Origin(base string) string {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

// NeedsImageDownload reports whether images under base are served over plain
// http, which some hosts refuse to render directly.
func NeedsImageDownload(base string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(base)), "http://")
}

// Normalizer joins and repairs URLs against a base supplied on demand.
type Normalizer struct {
	base   func() string
	logger *slog.Logger
}

// New creates a Normalizer. base is called on every operation that needs the
// current resolved base URL.
func New(base func() string, logger *slog.Logger) *Normalizer {
	if base == nil {
		base = func() string { return "" }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{base: base, logger: logger.With("component", "urlnorm")}
}

// Base returns the current resolved base URL.
func (n *Normalizer) Base() string {
	return n.base()
}

// Join resolves path against base. An absolute URL embedded in path wins and
// is passed through FixHost. An empty path returns base unchanged.
func (n *Normalizer) Join(base, path string) string {
	if path == "" {
		return base
	}
	if abs, ok := EmbeddedAbsolute(path); ok {
		return n.FixHost(abs)
	}

	b := base
	if !strings.HasSuffix(b, "/") {
		b += "/"
	}
	result := b + strings.TrimLeft(path, "/")

	if len(schemeAny.FindAllStringIndex(pathPart(result), 2)) > 1 {
		n.logger.Warn("joined URL contains two schemes, check for an upstream double join",
			"base", base, "path", path, "result", result)
	}
	return result
}

// FixHost rewrites a localhost or 127.0.0.1 URL onto the host of the resolved
// base URL and keeps the rest of the path. Other URLs are returned unchanged.
func (n *Normalizer) FixHost(u string) string {
	return RehostLoopback(u, n.base())
}

// RehostLoopback moves a localhost or 127.0.0.1 URL onto the origin of base.
// Other URLs, and any URL when base has no origin, are returned unchanged.
func RehostLoopback(u, base string) string {
	if u == "" {
		return ""
	}
	loc := loopbackHost.FindStringIndex(u)
	if loc == nil {
		return u
	}
	origin := Origin(base)
	if origin == "" {
		return u
	}
	return origin + strings.TrimPrefix(u[loc[1]:], "/")
}

// Resolve produces the final dispatch URL for path against base. A blank base
// means the resolved base.
func (n *Normalizer) Resolve(base, path string) string {
	if base == "" {
		base = n.base()
	}
	return n.FixHost(n.Join(n.FixHost(base), path))
}

// ImageURL returns the absolute URL for an image path.
func (n *Normalizer) ImageURL(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if IsAbsolute(path) {
		return n.FixHost(path)
	}
	return n.Join(n.FixHost(n.base()), path)
}

// ImageURLs splits a comma-separated list and returns an absolute URL for each
// non-blank entry.
func (n *Normalizer) ImageURLs(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return []string{}
	}
	return n.ImageURLList(strings.Split(csv, ","))
}

// ImageURLList returns an absolute URL for each non-blank path.
func (n *Normalizer) ImageURLList(paths []string) []string {
	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		urls = append(urls, n.ImageURL(p))
	}
	return urls
}

var (
	imgSrc     = regexp.MustCompile(`(?i)<img([^>]*?)src=["']([^"']+)["']`)
	imgNoStyle = regexp.MustCompile(`(?i)<img(\s+)src=`)
)

const richTextImageStyle = `style="width:100%;max-width:100%;" `

// FixRichTextImages rewrites <img src> attributes in html to absolute URLs and
// gives bare <img src> tags a full-width style.
func (n *Normalizer) FixRichTextImages(html string) string {
	if html == "" {
		return ""
	}

	result := imgSrc.ReplaceAllStringFunc(html, func(tag string) string {
		m := imgSrc.FindStringSubmatch(tag)
		return "<img" + m[1] + `src="` + n.ImageURL(m[2]) + `"`
	})

	return imgNoStyle.ReplaceAllString(result, "<img${1}"+richTextImageStyle+"src=")
}
