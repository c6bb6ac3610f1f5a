package interceptor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"nodejsn73cv/envroute/pkg/env"
	"nodejsn73cv/envroute/pkg/signals"
	"nodejsn73cv/envroute/pkg/storage"
	"nodejsn73cv/envroute/pkg/telemetry/metrics"
	"nodejsn73cv/envroute/pkg/telemetry/tracing"
)

type staticResolver struct {
	mu   sync.Mutex
	base string
	last *bool
}

func (s *staticResolver) BaseURL(_ context.Context, explicitProduction *bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = explicitProduction
	return s.base
}

// recorder is a fake primitive that captures the options it was called with
// and answers synchronously with data.
type recorder struct {
	mu    sync.Mutex
	calls []RequestOptions
	data  func() any
	fail  error
}

func (r *recorder) fn(opts *RequestOptions) {
	r.mu.Lock()
	r.calls = append(r.calls, *opts)
	r.mu.Unlock()

	if r.fail != nil {
		if opts.Fail != nil {
			opts.Fail(r.fail)
		}
	} else if opts.Success != nil {
		var data any
		if r.data != nil {
			data = r.data()
		}
		opts.Success(&Response{StatusCode: 200, Data: data})
	}
	if opts.Complete != nil {
		opts.Complete()
	}
}

func (r *recorder) last(t *testing.T) RequestOptions {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		t.Fatal("primitive was not called")
	}
	return r.calls[len(r.calls)-1]
}

func newTestInterceptor(t *testing.T, base string) (*Interceptor, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	i, err := New(Options{Resolver: &staticResolver{base: base}, Logger: logger})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return i, &buf
}

func TestNew_RequiresResolver(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error without resolver")
	}
}

func TestInstall_RewritesURLs(t *testing.T) {
	i, _ := newTestInterceptor(t, "http://192.168.1.10:8080/app/")
	rec := &recorder{}
	host := NewHost(rec.fn, rec.fn, rec.fn)

	if err := i.Install(host); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	tests := []struct {
		name string
		opts RequestOptions
		want string
	}{
		{"relative", RequestOptions{URL: "xuesheng/login"}, "http://192.168.1.10:8080/app/xuesheng/login"},
		{"leading slash", RequestOptions{URL: "/xuesheng/list"}, "http://192.168.1.10:8080/app/xuesheng/list"},
		{"loopback absolute", RequestOptions{URL: "http://localhost:8080/app/file/a.png"}, "http://192.168.1.10:8080/app/file/a.png"},
		{"foreign absolute", RequestOptions{URL: "https://cdn.example.com/x.js"}, "https://cdn.example.com/x.js"},
		{"per-call base", RequestOptions{URL: "ping", BaseURL: "http://10.0.0.2:9000/api/"}, "http://10.0.0.2:9000/api/ping"},
		{"per-call loopback base", RequestOptions{URL: "ping", BaseURL: "http://127.0.0.1:9000/api/"}, "http://192.168.1.10:8080/api/ping"},
		{"empty url", RequestOptions{}, "http://192.168.1.10:8080/app/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			if err := host.Request(&opts); err != nil {
				t.Fatalf("Request() error = %v", err)
			}
			if got := rec.last(t).URL; got != tt.want {
				t.Errorf("dispatched URL = %q, want %q", got, tt.want)
			}
			if opts.URL != tt.opts.URL {
				t.Errorf("caller options mutated: %q", opts.URL)
			}
		})
	}
}

func TestInstall_EndToEndWithOverride(t *testing.T) {
	ctx := context.Background()
	manager := env.NewManager(env.Options{
		Store:   storage.NewStore(storage.NewMemoryBackend(), nil),
		Signals: &signals.Static{PlatformInfo: signals.Platform{PlatformID: "android"}},
	})
	if _, err := manager.SetEnvironmentBaseURL(ctx, "testing", "http://192.168.1.10:8080/app/"); err != nil {
		t.Fatalf("SetEnvironmentBaseURL() error = %v", err)
	}

	i, err := New(Options{Resolver: manager})
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	host := NewHost(rec.fn, nil, nil)
	if err := i.Install(host); err != nil {
		t.Fatal(err)
	}

	if err := host.Request(&RequestOptions{URL: "xuesheng/login"}); err != nil {
		t.Fatal(err)
	}
	if got := rec.last(t).URL; got != "http://192.168.1.10:8080/app/xuesheng/login" {
		t.Errorf("dispatched URL = %q", got)
	}
}

func TestInstall_Idempotent(t *testing.T) {
	i, buf := newTestInterceptor(t, "http://10.0.0.1/app/")
	rec := &recorder{}
	host := NewHost(rec.fn, rec.fn, rec.fn)

	if err := i.Install(host); err != nil {
		t.Fatal(err)
	}
	first := reflect.ValueOf(host.Get(PrimitiveRequest)).Pointer()

	if err := i.Install(host); err != nil {
		t.Fatalf("second Install() error = %v", err)
	}
	if got := reflect.ValueOf(host.Get(PrimitiveRequest)).Pointer(); got != first {
		t.Error("request primitive changed on second install")
	}
	if !strings.Contains(buf.String(), "already installed") {
		t.Errorf("second install not logged: %s", buf.String())
	}

	// A second interceptor sees the host flag and skips too.
	other, _ := newTestInterceptor(t, "http://10.0.0.9/")
	if err := other.Install(host); err != nil {
		t.Fatal(err)
	}
	if got := reflect.ValueOf(host.Get(PrimitiveRequest)).Pointer(); got != first {
		t.Error("request primitive changed by a second interceptor")
	}

	if err := host.Request(&RequestOptions{URL: "a"}); err != nil {
		t.Fatal(err)
	}
	if got := rec.last(t).URL; got != "http://10.0.0.1/app/a" {
		t.Errorf("URL = %q, want single rewrite by first interceptor", got)
	}
}

func TestInstall_LocksPrimitives(t *testing.T) {
	i, _ := newTestInterceptor(t, "http://10.0.0.1/")
	rec := &recorder{}
	host := NewHost(rec.fn, rec.fn, nil)

	if err := host.Replace(PrimitiveRequest, rec.fn); err != nil {
		t.Fatalf("Replace before install error = %v", err)
	}
	if err := i.Install(host); err != nil {
		t.Fatal(err)
	}
	if !host.Patched() {
		t.Error("host not marked patched")
	}

	for _, p := range []Primitive{PrimitiveRequest, PrimitiveUpload} {
		if err := host.Replace(p, rec.fn); !errors.Is(err, ErrPrimitiveLocked) {
			t.Errorf("Replace(%s) error = %v, want ErrPrimitiveLocked", p, err)
		}
	}

	// The missing download slot was skipped, so it stays replaceable.
	if err := host.Replace(PrimitiveDownload, rec.fn); err != nil {
		t.Errorf("Replace(download) error = %v", err)
	}
	if err := host.DownloadFile(&RequestOptions{URL: "x"}); err != nil {
		t.Fatal(err)
	}
	if got := rec.last(t).URL; got != "x" {
		t.Errorf("unwrapped download URL = %q, want untouched", got)
	}
}

func TestHost_DoWithoutPrimitive(t *testing.T) {
	host := NewHost(nil, nil, nil)
	if err := host.Request(&RequestOptions{}); !errors.Is(err, ErrNoPrimitive) {
		t.Errorf("error = %v, want ErrNoPrimitive", err)
	}
}

func TestInstall_NilHost(t *testing.T) {
	i, _ := newTestInterceptor(t, "http://10.0.0.1/")
	if err := i.Install(nil); err == nil {
		t.Error("expected error for nil host")
	}
}

func TestWrap_RewritesResponseMedia(t *testing.T) {
	i, _ := newTestInterceptor(t, "http://192.168.1.10:8080/app/")
	rec := &recorder{data: func() any {
		return map[string]any{
			"code": 0,
			"data": map[string]any{
				"list": []any{
					map[string]any{"tupian": "upload/a.png", "name": "A"},
				},
				"avatar": "http://localhost:8080/app/upload/b.jpg",
			},
		}
	}}
	host := NewHost(rec.fn, nil, nil)
	if err := i.Install(host); err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	err := host.Request(&RequestOptions{
		URL:     "list",
		Success: func(resp *Response) { got = resp.Data.(map[string]any) },
	})
	if err != nil {
		t.Fatal(err)
	}

	data := got["data"].(map[string]any)
	item := data["list"].([]any)[0].(map[string]any)
	if item["tupian"] != "http://192.168.1.10:8080/app/upload/a.png" {
		t.Errorf("tupian = %v", item["tupian"])
	}
	if item["name"] != "A" {
		t.Errorf("name = %v", item["name"])
	}
	if data["avatar"] != "http://192.168.1.10:8080/app/upload/b.jpg" {
		t.Errorf("avatar = %v", data["avatar"])
	}
}

func TestWrap_RequestIDAndPlaceholder(t *testing.T) {
	i, buf := newTestInterceptor(t, "http://YOUR_LOCAL_IP:8080/app/")
	rec := &recorder{}
	host := NewHost(rec.fn, nil, nil)
	if err := i.Install(host); err != nil {
		t.Fatal(err)
	}

	if err := host.Request(&RequestOptions{URL: "a"}); err != nil {
		t.Fatal(err)
	}
	call := rec.last(t)
	if call.Header.Get(DefaultRequestIDHeader) == "" {
		t.Error("request id header not set")
	}
	if !strings.Contains(buf.String(), "unconfigured placeholder") {
		t.Errorf("placeholder not logged: %s", buf.String())
	}

	opts := &RequestOptions{URL: "b"}
	opts.Header = map[string][]string{"X-Request-Id": {"fixed-id"}}
	if err := host.Request(opts); err != nil {
		t.Fatal(err)
	}
	if got := rec.last(t).Header.Get(DefaultRequestIDHeader); got != "fixed-id" {
		t.Errorf("request id = %q, want caller's", got)
	}
}

func TestWrap_FailAndSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	i, err := New(Options{
		Resolver: &staticResolver{base: "http://10.0.0.1/app/"},
		Tracer:   tracing.FromProvider(tp),
	})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("network down")
	rec := &recorder{fail: boom}
	host := NewHost(rec.fn, nil, nil)
	if err := i.Install(host); err != nil {
		t.Fatal(err)
	}

	var gotErr error
	completed := false
	err = host.Request(&RequestOptions{
		URL:      "a",
		Fail:     func(err error) { gotErr = err },
		Complete: func() { completed = true },
	})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(gotErr, boom) || !completed {
		t.Errorf("Fail = %v, completed = %v", gotErr, completed)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "envroute.request" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if spans[0].Status.Description != "network down" {
		t.Errorf("span status = %+v", spans[0].Status)
	}
}

func TestSetProduction(t *testing.T) {
	res := &staticResolver{base: "https://api.example.com/"}
	i, err := New(Options{Resolver: res})
	if err != nil {
		t.Fatal(err)
	}

	yes := true
	i.SetProduction(&yes)
	i.Base(context.Background())
	if res.last == nil || !*res.last {
		t.Error("resolver did not receive the production flag")
	}
	if i.Production() == nil {
		t.Error("Production() = nil")
	}

	i.SetProduction(nil)
	i.Base(context.Background())
	if res.last != nil {
		t.Error("resolver still receives a production flag after reset")
	}
}

func TestBase_AppOverride(t *testing.T) {
	app := ""
	i, err := New(Options{
		Resolver: &staticResolver{base: "http://192.168.1.10:8080/app/"},
		AppBase:  func() string { return app },
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := i.Base(context.Background()); got != "http://192.168.1.10:8080/app/" {
		t.Errorf("Base() = %q", got)
	}
	app = "http://localhost:8080/other/"
	if got := i.Base(context.Background()); got != "http://192.168.1.10:8080/other/" {
		t.Errorf("Base() with loopback app base = %q", got)
	}
	app = "https://api.example.com/v2/"
	if got := i.Base(context.Background()); got != "https://api.example.com/v2/" {
		t.Errorf("Base() with app base = %q", got)
	}
}

func TestInstall_Metrics(t *testing.T) {
	collector := metrics.NewCollector(metrics.Config{Enabled: true}, nil)
	i, err := New(Options{Resolver: &staticResolver{base: "http://10.0.0.1/"}, Metrics: collector})
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	host := NewHost(rec.fn, rec.fn, nil)
	if err := i.Install(host); err != nil {
		t.Fatal(err)
	}
	_ = host.Request(&RequestOptions{URL: "a"})
	_ = host.Request(&RequestOptions{URL: "b"})
	_ = host.UploadFile(&RequestOptions{URL: "c"})

	expected := `
# HELP envroute_client_requests_rewritten_total Outgoing requests whose URL was normalized, by primitive
# TYPE envroute_client_requests_rewritten_total counter
envroute_client_requests_rewritten_total{primitive="request"} 2
envroute_client_requests_rewritten_total{primitive="upload"} 1
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected),
		"envroute_client_requests_rewritten_total"); err != nil {
		t.Error(err)
	}
}
