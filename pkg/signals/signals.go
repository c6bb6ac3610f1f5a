// Package signals reads the host platform and release-channel signals used to
// detect the deployment environment.
//
// Signal reads are best-effort. A Source may fail or even panic. Read converts
// every outcome into a Result, which is either present or absent, so the
// environment resolver never has to deal with errors.
package signals

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Well-known signal values.
const (
	// PlatformDevtools identifies the local simulator / developer tooling.
	PlatformDevtools = "devtools"

	// EnvironmentDevtools is the environment id reported by developer tooling.
	EnvironmentDevtools = "wxdevtools"

	ChannelRelease = "release"
	ChannelTrial   = "trial"
	ChannelDevelop = "develop"
)

// Platform is the host platform signal.
type Platform struct {
	// PlatformID is e.g. "devtools", "ios", "android", "windows".
	PlatformID string `json:"platform_id" yaml:"platform_id"`

	// EnvironmentID is the host environment, e.g. "wxdevtools".
	EnvironmentID string `json:"environment_id" yaml:"environment_id"`
}

// Channel is the release-channel signal.
type Channel struct {
	// ChannelID is "develop", "trial" or "release".
	ChannelID string `json:"channel_id" yaml:"channel_id"`
}

// Source provides host signals.
type Source interface {
	Platform() (Platform, error)
	Channel() (Channel, error)
}

// Result is the outcome of a best-effort signal read.
type Result[T any] struct {
	Value   T
	Present bool
}

// ReadPlatform reads the platform signal. Failures are logged and reported as absent.
func ReadPlatform(src Source, logger *slog.Logger) Result[Platform] {
	if src == nil {
		return Result[Platform]{}
	}
	v, err := read(src.Platform)
	if err != nil {
		logWarn(logger, "platform", err)
		return Result[Platform]{}
	}
	v.PlatformID = normalize(v.PlatformID)
	v.EnvironmentID = normalize(v.EnvironmentID)
	return Result[Platform]{Value: v, Present: v.PlatformID != "" || v.EnvironmentID != ""}
}

// ReadChannel reads the release-channel signal. Failures are logged and reported as absent.
func ReadChannel(src Source, logger *slog.Logger) Result[Channel] {
	if src == nil {
		return Result[Channel]{}
	}
	v, err := read(src.Channel)
	if err != nil {
		logWarn(logger, "channel", err)
		return Result[Channel]{}
	}
	v.ChannelID = normalize(v.ChannelID)
	return Result[Channel]{Value: v, Present: v.ChannelID != ""}
}

func read[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("signal source panic: %v", r)
		}
	}()
	return fn()
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func logWarn(logger *slog.Logger, signal string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("signal read failed, treating as absent", "signal", signal, "error", err)
}

// Static is a fixed Source. Errors, when set, are returned from the matching read.
type Static struct {
	PlatformInfo Platform
	ChannelInfo  Channel
	PlatformErr  error
	ChannelErr   error
}

// Platform returns the fixed platform signal.
func (s *Static) Platform() (Platform, error) {
	if s.PlatformErr != nil {
		return Platform{}, s.PlatformErr
	}
	return s.PlatformInfo, nil
}

// Channel returns the fixed channel signal.
func (s *Static) Channel() (Channel, error) {
	if s.ChannelErr != nil {
		return Channel{}, s.ChannelErr
	}
	return s.ChannelInfo, nil
}

// EnvVars names the process environment variables read by EnvSource.
type EnvVars struct {
	Platform    string
	Environment string
	Channel     string
}

// DefaultEnvVars returns the default variable names.
func DefaultEnvVars() EnvVars {
	return EnvVars{
		Platform:    "MINIAPP_PLATFORM",
		Environment: "MINIAPP_ENVIRONMENT",
		Channel:     "MINIAPP_CHANNEL",
	}
}

// EnvSource reads signals from process environment variables.
type EnvSource struct {
	vars   EnvVars
	lookup func(string) (string, bool)
}

// NewEnvSource creates an EnvSource. Empty names fall back to DefaultEnvVars.
func NewEnvSource(vars EnvVars) *EnvSource {
	def := DefaultEnvVars()
	if vars.Platform == "" {
		vars.Platform = def.Platform
	}
	if vars.Environment == "" {
		vars.Environment = def.Environment
	}
	if vars.Channel == "" {
		vars.Channel = def.Channel
	}
	return &EnvSource{vars: vars, lookup: os.LookupEnv}
}

// Platform returns the platform signal from the environment.
func (e *EnvSource) Platform() (Platform, error) {
	platform, _ := e.lookup(e.vars.Platform)
	environment, _ := e.lookup(e.vars.Environment)
	return Platform{PlatformID: platform, EnvironmentID: environment}, nil
}

// Channel returns the channel signal from the environment.
func (e *EnvSource) Channel() (Channel, error) {
	channel, _ := e.lookup(e.vars.Channel)
	return Channel{ChannelID: channel}, nil
}

// LoadDotenv loads variables from the given .env files into the process
// environment without overwriting existing values. Missing files are skipped.
func LoadDotenv(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}
