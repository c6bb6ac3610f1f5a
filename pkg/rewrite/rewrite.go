// Package rewrite turns relative and loopback media paths in decoded JSON
// responses into absolute URLs under the resolved base.
//
// The Rewriter walks map[string]any and []any values in place, which is what
// encoding/json produces when decoding into an any. A string field is
// rewritten when its key looks URL-bearing or its value looks like a media
// path. Comma-separated values are rewritten piece by piece and stay a single
// string.
package rewrite

import (
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"nodejsn73cv/envroute/pkg/telemetry/metrics"
	"nodejsn73cv/envroute/pkg/urlnorm"
)

// Default heuristics.
var (
	DefaultKeySuffixes = []string{
		"image", "images", "img", "avatar", "icon", "logo", "cover", "banner",
		"photo", "photos", "pic", "pics", "picture", "thumb", "thumbnail",
		"url", "src", "file", "attachment", "video",
	}
	DefaultImageExtensions = []string{"jpg", "jpeg", "png", "gif", "webp", "bmp", "svg", "ico"}
	DefaultUploadSegments  = []string{"upload/", "uploads/"}
)

var (
	anyScheme  = regexp.MustCompile(`(?i)^(?:data:|blob:|[a-z][a-z0-9+.-]*://)`)
	httpScheme = regexp.MustCompile(`(?i)^https?://`)
)

// foreign reports whether v carries a non-http scheme, such as a local file
// handle or a data URI. Those values are never rewritten.
func foreign(v string) bool {
	return anyScheme.MatchString(v) && !httpScheme.MatchString(v)
}

// Config holds the rewrite heuristics. Empty slices use the defaults.
type Config struct {
	KeySuffixes     []string `yaml:"key_suffixes"`
	ImageExtensions []string `yaml:"image_extensions"`
	UploadSegments  []string `yaml:"upload_segments"`
}

// Rewriter rewrites media fields in decoded payloads.
type Rewriter struct {
	norm        *urlnorm.Normalizer
	keySuffixes []string
	extensions  []string
	uploads     []string
	logger      *slog.Logger
	metrics     *metrics.Collector
}

// New creates a Rewriter that resolves relative paths with norm.
func New(norm *urlnorm.Normalizer, cfg Config, logger *slog.Logger, m *metrics.Collector) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	if norm == nil {
		norm = urlnorm.New(nil, logger)
	}
	return &Rewriter{
		norm:        norm,
		keySuffixes: lowerAll(orDefault(cfg.KeySuffixes, DefaultKeySuffixes)),
		extensions:  extensionSuffixes(orDefault(cfg.ImageExtensions, DefaultImageExtensions)),
		uploads:     lowerAll(orDefault(cfg.UploadSegments, DefaultUploadSegments)),
		logger:      logger.With("component", "rewrite"),
		metrics:     m,
	}
}

// Rewrite rewrites payload in place against the resolved base and returns
// the number of fields changed.
func (r *Rewriter) Rewrite(payload any) (int, error) {
	return r.RewriteWithBase(payload, "")
}

// RewriteWithBase rewrites payload in place against base. A blank base means
// the resolved base. A panic during the walk is returned as an error and every
// field rewritten before it is restored, so the payload is left as received.
func (r *Rewriter) RewriteWithBase(payload any, base string) (n int, err error) {
	if base == "" {
		base = r.norm.Base()
	}
	base = r.norm.FixHost(base)

	w := &walk{r: r, base: base, seen: make(map[uintptr]struct{})}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("rewrite media fields: %v", rec)
			w.rollback()
			n = 0
			r.metrics.RecordRewriteFailure("walk")
			r.logger.Warn("media rewrite failed", "error", err)
		}
		r.metrics.RecordMediaFields(n)
	}()

	w.value(payload)
	return w.changed, nil
}

// String rewrites a single value as if it were found under key. It returns
// the value unchanged when it isn't a candidate.
func (r *Rewriter) String(key, value string) string {
	base := r.norm.FixHost(r.norm.Base())
	if !r.isCandidate(key, value) {
		return value
	}
	return r.rewriteList(base, value)
}

type walk struct {
	r       *Rewriter
	base    string
	seen    map[uintptr]struct{}
	changed int
	undo    []func()
}

// rollback restores every field changed so far, newest first.
func (w *walk) rollback() {
	for i := len(w.undo) - 1; i >= 0; i-- {
		w.undo[i]()
	}
	w.undo = nil
	w.changed = 0
}

// visit reports whether container v is seen for the first time.
func (w *walk) visit(v any) bool {
	ptr := reflect.ValueOf(v).Pointer()
	if ptr == 0 {
		return true
	}
	if _, ok := w.seen[ptr]; ok {
		return false
	}
	w.seen[ptr] = struct{}{}
	return true
}

func (w *walk) value(v any) {
	switch t := v.(type) {
	case map[string]any:
		if !w.visit(t) {
			return
		}
		for k, child := range t {
			if s, ok := child.(string); ok {
				if out, changed := w.field(k, s); changed {
					t[k] = out
					w.undo = append(w.undo, func() { t[k] = s })
				}
				continue
			}
			if list, ok := child.([]string); ok {
				w.strings(k, list)
				continue
			}
			w.value(child)
		}
	case []any:
		if len(t) == 0 || !w.visit(t) {
			return
		}
		for i, child := range t {
			if s, ok := child.(string); ok {
				if out, changed := w.field("", s); changed {
					t[i] = out
					w.undo = append(w.undo, func() { t[i] = s })
				}
				continue
			}
			w.value(child)
		}
	}
}

func (w *walk) strings(key string, list []string) {
	if len(list) == 0 || !w.visit(list) {
		return
	}
	for i, s := range list {
		if out, changed := w.field(key, s); changed {
			list[i] = out
			w.undo = append(w.undo, func() { list[i] = s })
		}
	}
}

func (w *walk) field(key, value string) (string, bool) {
	if !w.r.isCandidate(key, value) {
		return value, false
	}
	out := w.r.rewriteList(w.base, value)
	if out == value {
		return value, false
	}
	w.changed++
	return out, true
}

// isCandidate reports whether any comma-separated piece of value should be
// rewritten.
func (r *Rewriter) isCandidate(key, value string) bool {
	if foreign(strings.TrimSpace(value)) {
		return false
	}
	keyed := r.keyMatches(key)
	for _, piece := range splitList(value) {
		if r.pieceCandidate(keyed, piece) {
			return true
		}
	}
	return false
}

func (r *Rewriter) pieceCandidate(keyed bool, v string) bool {
	if v == "" {
		return false
	}
	if abs, ok := urlnorm.EmbeddedAbsolute(v); ok {
		return urlnorm.IsLoopback(abs) || urlnorm.HasPlaceholder(abs)
	}
	if foreign(v) {
		return false
	}
	if r.hasImageExtension(v) || r.hasUploadSegment(v) {
		return true
	}
	// URL-bearing keys sometimes hold prose.
	return keyed && !strings.ContainsAny(v, " \t\n")
}

// keyMatches reports whether key ends in a URL-bearing word. The suffix must
// be the whole key or start a new word: "avatar_url", "head-pic" and
// "headPic" match, "topic" and "profile" do not.
func (r *Rewriter) keyMatches(key string) bool {
	if key == "" {
		return false
	}
	k := strings.ToLower(key)
	for _, s := range r.keySuffixes {
		if strings.HasSuffix(k, s) && wordStart(key, len(key)-len(s)) {
			return true
		}
	}
	return false
}

// wordStart reports whether a word begins at byte i of key.
func wordStart(key string, i int) bool {
	if i <= 0 {
		return true
	}
	prev, cur := key[i-1], key[i]
	switch {
	case prev == '_' || prev == '-' || prev == '.':
		return true
	case isUpper(cur) && !isUpper(prev):
		return true
	}
	return false
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func (r *Rewriter) hasImageExtension(v string) bool {
	p := strings.ToLower(v)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	for _, ext := range r.extensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

func (r *Rewriter) hasUploadSegment(v string) bool {
	p := strings.ToLower(v)
	for _, seg := range r.uploads {
		if strings.HasPrefix(p, seg) || strings.Contains(p, "/"+seg) {
			return true
		}
	}
	return false
}

// rewriteList rewrites every piece of value and rejoins them with commas.
func (r *Rewriter) rewriteList(base, value string) string {
	pieces := splitList(value)
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if p == "" {
			continue
		}
		out = append(out, r.rewriteOne(base, p))
	}
	return strings.Join(out, ",")
}

// splitList splits a comma-separated media list into trimmed pieces. A value
// is kept whole when a comma sits inside a query or fragment, or when it is
// an absolute URL followed by pieces that are not paths.
func splitList(value string) []string {
	value = strings.TrimSpace(value)
	if !strings.Contains(value, ",") {
		return []string{value}
	}
	raw := strings.Split(value, ",")
	pieces := make([]string, len(raw))
	for i, p := range raw {
		pieces[i] = strings.TrimSpace(p)
	}
	for _, p := range pieces[:len(pieces)-1] {
		if strings.ContainsAny(p, "?#") {
			return []string{value}
		}
	}
	if urlnorm.IsAbsolute(pieces[0]) {
		for _, p := range pieces[1:] {
			if p != "" && !strings.ContainsAny(p, "/.") {
				return []string{value}
			}
		}
	}
	return pieces
}

func (r *Rewriter) rewriteOne(base, piece string) string {
	if piece == "" {
		return piece
	}
	if abs, ok := urlnorm.EmbeddedAbsolute(piece); ok {
		switch {
		case urlnorm.IsLoopback(abs):
			return r.norm.FixHost(abs)
		case urlnorm.HasPlaceholder(abs):
			return rehost(abs, base)
		default:
			return abs
		}
	}
	if foreign(piece) {
		return piece
	}
	return r.norm.Join(base, piece)
}

// rehost moves abs onto the origin of base. It leaves abs alone when base
// is itself unconfigured.
func rehost(abs, base string) string {
	origin := urlnorm.Origin(base)
	if origin == "" || urlnorm.HasPlaceholder(origin) {
		return abs
	}
	rest := abs[strings.Index(abs, "://")+3:]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return origin + rest[i+1:]
	}
	return origin
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func extensionSuffixes(in []string) []string {
	out := lowerAll(in)
	for i, ext := range out {
		out[i] = "." + strings.TrimPrefix(ext, ".")
	}
	return out
}
