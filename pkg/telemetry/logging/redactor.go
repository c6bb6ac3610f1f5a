package logging

import (
	"regexp"
	"strings"

	"nodejsn73cv/envroute/pkg/config"
)

// Redactor masks credentials in log values. Request URLs logged by the
// interceptor can carry userinfo and session tokens in the query string.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternURLCredentials = "url_credentials"
	PatternQueryToken     = "query_token"
	PatternBearerToken    = "bearer_token"
	PatternPassword       = "password"
)

var defaultPatterns = []struct {
	name        string
	regex       string
	replacement string
}{
	{PatternURLCredentials, `(?i)([a-z][a-z0-9+.-]*://)[^/\s:@]+(?::[^/\s@]*)?@`, "${1}***@"},
	{PatternQueryToken, `(?i)([?&](?:token|access_token|session|sessionid|sign|signature|key)=)[^&#\s]+`, "${1}***"},
	{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
	{PatternPassword, `(?i)(password|passwd|pwd)[:=]\s*[^\s&]+`, "${1}=***"},
}

var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"secret", "token", "authorization", "cookie",
}

// NewRedactor creates a Redactor with the built-in patterns followed by
// custom. Invalid custom patterns are skipped; config validation reports them.
func NewRedactor(custom []config.RedactPattern) *Redactor {
	r := &Redactor{}
	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}
	for _, p := range custom {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		replacement := p.Replacement
		if replacement == "" {
			replacement = "***"
		}
		r.patterns = append(r.patterns, &redactPattern{name: p.Name, regex: re, replacement: replacement})
	}
	return r
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	if r == nil || value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// IsSensitiveKey reports whether values logged under key are masked whole.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// MaskValue keeps a short prefix of v for correlation.
func MaskValue(v string) string {
	if len(v) <= 4 {
		return "***"
	}
	return v[:4] + "***"
}
