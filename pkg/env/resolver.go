package env

import (
	"context"
	"log/slog"

	"nodejsn73cv/envroute/pkg/signals"
	"nodejsn73cv/envroute/pkg/storage"
)

// Inputs are everything the precedence chain looks at.
type Inputs struct {
	// ExplicitProduction is the caller's flag. nil means "not given".
	ExplicitProduction *bool

	// Manual is the persisted manual environment, or "" when unset.
	Manual Name

	Channel  signals.Result[signals.Channel]
	Platform signals.Result[signals.Platform]
}

// Decide applies the precedence chain. The first matching rule wins:
//
//  1. explicit production flag
//  2. manual environment
//  3. release channel "release" or "trial"
//  4. release channel "develop": testing on a device, development in devtools
//  5. platform present and not devtools
//  6. environment present and not the devtools environment
//  7. development
//
// The order is deliberate. In particular, rule 3 wins even when the platform
// reports devtools.
func Decide(in Inputs) Name {
	if in.ExplicitProduction != nil && *in.ExplicitProduction {
		return Production
	}
	if in.Manual != "" {
		return in.Manual
	}

	channel := ""
	if in.Channel.Present {
		channel = in.Channel.Value.ChannelID
	}
	platform, environment := "", ""
	if in.Platform.Present {
		platform = in.Platform.Value.PlatformID
		environment = in.Platform.Value.EnvironmentID
	}

	switch channel {
	case signals.ChannelRelease:
		return Production
	case signals.ChannelTrial:
		return Testing
	case signals.ChannelDevelop:
		if platform != "" && platform != signals.PlatformDevtools {
			return Testing
		}
		return Development
	}

	if platform != "" && platform != signals.PlatformDevtools {
		return Testing
	}
	if environment != "" && environment != signals.EnvironmentDevtools {
		return Testing
	}
	return Development
}

// Resolver gathers Inputs from storage and signals and applies Decide.
// It never fails: unreadable inputs count as absent.
type Resolver struct {
	store   *storage.Store
	signals signals.Source
	logger  *slog.Logger
}

// NewResolver creates a Resolver. store and src may be nil.
func NewResolver(store *storage.Store, src signals.Source, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = storage.NewStore(nil, logger)
	}
	return &Resolver{store: store, signals: src, logger: logger}
}

// Resolve returns the environment for the current inputs.
func (r *Resolver) Resolve(ctx context.Context, explicitProduction *bool) Name {
	return Decide(r.Inputs(ctx, explicitProduction))
}

// Inputs reads the current inputs.
func (r *Resolver) Inputs(ctx context.Context, explicitProduction *bool) Inputs {
	manual, _ := r.ManualEnvironment(ctx)
	return Inputs{
		ExplicitProduction: explicitProduction,
		Manual:             manual,
		Channel:            signals.ReadChannel(r.signals, r.logger),
		Platform:           signals.ReadPlatform(r.signals, r.logger),
	}
}

// ManualEnvironment returns the persisted manual environment if it is set
// and valid. A stored value that doesn't normalize is ignored.
func (r *Resolver) ManualEnvironment(ctx context.Context) (Name, bool) {
	raw, ok := r.store.Get(ctx, storage.KeyManualEnvironment)
	if !ok {
		return "", false
	}
	name, ok := Normalize(raw)
	if !ok {
		r.logger.Warn("ignoring invalid manual environment", "value", raw)
		return "", false
	}
	return name, true
}
