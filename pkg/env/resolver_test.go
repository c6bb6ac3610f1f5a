package env

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"nodejsn73cv/envroute/pkg/signals"
	"nodejsn73cv/envroute/pkg/storage"
)

func boolPtr(b bool) *bool { return &b }

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Name
		ok   bool
	}{
		{"development", Development, true},
		{"develop", Development, true},
		{"dev", Development, true},
		{"testing", Testing, true},
		{"test", Testing, true},
		{"trial", Testing, true},
		{"debug", Testing, true},
		{"production", Production, true},
		{"prod", Production, true},
		{"release", Production, true},
		{"  PROD ", Production, true},
		{"Debug", Testing, true},
		{"staging", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Normalize(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Normalize(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDecide_Rules(t *testing.T) {
	channel := func(id string) signals.Result[signals.Channel] {
		return signals.Result[signals.Channel]{Value: signals.Channel{ChannelID: id}, Present: true}
	}
	platform := func(id, env string) signals.Result[signals.Platform] {
		return signals.Result[signals.Platform]{
			Value:   signals.Platform{PlatformID: id, EnvironmentID: env},
			Present: true,
		}
	}

	tests := []struct {
		name string
		in   Inputs
		want Name
	}{
		{"no signals", Inputs{}, Development},
		{"explicit production", Inputs{ExplicitProduction: boolPtr(true), Manual: Development}, Production},
		{"explicit false falls through", Inputs{ExplicitProduction: boolPtr(false)}, Development},
		{"explicit false keeps manual", Inputs{ExplicitProduction: boolPtr(false), Manual: Testing}, Testing},
		{"manual beats channel", Inputs{Manual: Development, Channel: channel("release")}, Development},
		{"release channel", Inputs{Channel: channel("release")}, Production},
		{"release channel in devtools", Inputs{Channel: channel("release"), Platform: platform("devtools", "")}, Production},
		{"trial channel", Inputs{Channel: channel("trial")}, Testing},
		{"develop on device", Inputs{Channel: channel("develop"), Platform: platform("ios", "")}, Testing},
		{"develop in devtools", Inputs{Channel: channel("develop"), Platform: platform("devtools", "")}, Development},
		{"develop without platform", Inputs{Channel: channel("develop")}, Development},
		{"device without channel", Inputs{Platform: platform("android", "")}, Testing},
		{"devtools without channel", Inputs{Platform: platform("devtools", "wxdevtools")}, Development},
		{"non devtools environment", Inputs{Platform: platform("", "wxwork")}, Testing},
		{"unknown channel falls through", Inputs{Channel: channel("canary"), Platform: platform("ios", "")}, Testing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.in); got != tt.want {
				t.Errorf("Decide() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestDecide_AllSignalCombinations walks every channel x platform x
// environment combination without manual or explicit inputs.
func TestDecide_AllSignalCombinations(t *testing.T) {
	channels := []string{"", "release", "trial", "develop"}
	platforms := []string{"", "devtools", "ios"}
	environments := []string{"", "wxdevtools", "wxwork"}

	expect := func(ch, pl, en string) Name {
		onDevice := pl != "" && pl != "devtools"
		switch ch {
		case "release":
			return Production
		case "trial":
			return Testing
		case "develop":
			if onDevice {
				return Testing
			}
			return Development
		}
		if onDevice {
			return Testing
		}
		if en != "" && en != "wxdevtools" {
			return Testing
		}
		return Development
	}

	for _, ch := range channels {
		for _, pl := range platforms {
			for _, en := range environments {
				name := fmt.Sprintf("channel=%q/platform=%q/env=%q", ch, pl, en)
				t.Run(name, func(t *testing.T) {
					src := &signals.Static{
						ChannelInfo:  signals.Channel{ChannelID: ch},
						PlatformInfo: signals.Platform{PlatformID: pl, EnvironmentID: en},
					}
					r := NewResolver(nil, src, nil)
					if got, want := r.Resolve(context.Background(), nil), expect(ch, pl, en); got != want {
						t.Errorf("Resolve() = %q, want %q", got, want)
					}
				})
			}
		}
	}
}

func TestResolver_SignalFailuresCountAsAbsent(t *testing.T) {
	src := &signals.Static{
		PlatformErr: errors.New("platform unavailable"),
		ChannelErr:  errors.New("channel unavailable"),
	}
	r := NewResolver(nil, src, nil)

	if got := r.Resolve(context.Background(), nil); got != Development {
		t.Errorf("Resolve() = %q, want %q", got, Development)
	}
}

func TestResolver_SignalsAreCaseInsensitive(t *testing.T) {
	src := &signals.Static{ChannelInfo: signals.Channel{ChannelID: " Release "}}
	r := NewResolver(nil, src, nil)

	if got := r.Resolve(context.Background(), nil); got != Production {
		t.Errorf("Resolve() = %q, want %q", got, Production)
	}
}

func TestResolver_ManualEnvironment(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStore(storage.NewMemoryBackend(), nil)

	r := NewResolver(store, nil, nil)
	if _, ok := r.ManualEnvironment(ctx); ok {
		t.Fatal("ManualEnvironment() reported a value on an empty store")
	}

	store.Set(ctx, storage.KeyManualEnvironment, "prod")
	got, ok := r.ManualEnvironment(ctx)
	if !ok || got != Production {
		t.Errorf("ManualEnvironment() = (%q, %v), want (%q, true)", got, ok, Production)
	}

	store.Set(ctx, storage.KeyManualEnvironment, "staging")
	if _, ok := r.ManualEnvironment(ctx); ok {
		t.Error("ManualEnvironment() accepted an invalid stored value")
	}
	if got := r.Resolve(ctx, nil); got != Development {
		t.Errorf("Resolve() with invalid manual value = %q, want %q", got, Development)
	}
}
