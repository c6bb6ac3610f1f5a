package env

import (
	"fmt"
	"sort"
)

// Profile is the static configuration of one environment.
type Profile struct {
	Name        Name   `json:"name" yaml:"name"`
	BaseURL     string `json:"base_url" yaml:"base_url"`
	APIRoot     string `json:"api_root" yaml:"api_root"`
	Description string `json:"description" yaml:"description"`
}

// DefaultProfiles returns the built-in profile table. Testing and production
// ship with placeholder hosts the operator is expected to replace.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name:        Development,
			BaseURL:     "http://localhost:8080/nodejsn73cv/",
			APIRoot:     "nodejsn73cv/",
			Description: "development - local developer tools",
		},
		{
			Name:        Testing,
			BaseURL:     "http://YOUR_LOCAL_IP:8080/nodejsn73cv/",
			APIRoot:     "nodejsn73cv/",
			Description: "testing - on-device preview and trial, configure a reachable server",
		},
		{
			Name:        Production,
			BaseURL:     "https://your-domain.com/nodejsn73cv/",
			APIRoot:     "nodejsn73cv/",
			Description: "production - release server (HTTPS required)",
		},
	}
}

// Registry holds exactly one Profile per environment. It is immutable once built.
type Registry struct {
	profiles map[Name]Profile
}

// NewRegistry builds a registry from profiles. A development profile is
// required because it is the fallback for every lookup.
func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[Name]Profile, len(profiles))}
	for _, p := range profiles {
		name, ok := Normalize(string(p.Name))
		if !ok {
			return nil, &EnvironmentError{Name: string(p.Name), Err: ErrInvalidEnvironment}
		}
		if _, dup := r.profiles[name]; dup {
			return nil, fmt.Errorf("duplicate profile for environment %q", name)
		}
		p.Name = name
		r.profiles[name] = p
	}
	if _, ok := r.profiles[Development]; !ok {
		return nil, fmt.Errorf("registry requires a %q profile", Development)
	}
	return r, nil
}

// DefaultRegistry returns a registry over DefaultProfiles.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultProfiles()...)
	if err != nil {
		panic(fmt.Sprintf("default profiles are invalid: %v", err))
	}
	return r
}

// Lookup returns the profile for name or any of its aliases. Unknown names
// and missing profiles fall back to development.
func (r *Registry) Lookup(name string) Profile {
	if n, ok := Normalize(name); ok {
		if p, ok := r.profiles[n]; ok {
			return p
		}
	}
	return r.profiles[Development]
}

// Profiles returns all profiles ordered development, testing, production.
func (r *Registry) Profiles() []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	order := map[Name]int{Development: 0, Testing: 1, Production: 2}
	sort.Slice(out, func(i, j int) bool { return order[out[i].Name] < order[out[j].Name] })
	return out
}
