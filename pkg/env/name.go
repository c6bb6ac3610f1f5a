package env

import "strings"

// Name is a canonical environment name.
type Name string

const (
	Development Name = "development"
	Testing     Name = "testing"
	Production  Name = "production"
)

// aliases maps every accepted spelling to its canonical name.
var aliases = map[string]Name{
	"development": Development,
	"develop":     Development,
	"dev":         Development,
	"testing":     Testing,
	"test":        Testing,
	"trial":       Testing,
	"debug":       Testing,
	"production":  Production,
	"prod":        Production,
	"release":     Production,
}

// Normalize maps an environment name or alias to its canonical Name.
// Matching ignores case and surrounding whitespace.
func Normalize(s string) (Name, bool) {
	name, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	return name, ok
}

// Overridable reports whether the environment accepts a persisted base URL override.
func (n Name) Overridable() bool {
	return n == Testing || n == Production
}

// String returns the name.
func (n Name) String() string {
	return string(n)
}

// Names returns the canonical names in a stable order.
func Names() []Name {
	return []Name{Development, Testing, Production}
}
