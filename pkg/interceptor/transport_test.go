package interceptor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"nodejsn73cv/envroute/pkg/telemetry/tracing"
)

func TestRegisterHTTPClient_RewritesRequestAndResponse(t *testing.T) {
	var gotPath, gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		io.WriteString(w, `{"code":0,"data":{"tupian":"upload/a.png,upload/b.png","price":12.5,"name":"x"}}`)
	}))
	defer srv.Close()

	base := srv.URL + "/app/"
	i, _ := newTestInterceptor(t, base)
	client := &http.Client{Timeout: 5 * time.Second}
	if err := i.RegisterHTTPClient(client); err != nil {
		t.Fatalf("RegisterHTTPClient() error = %v", err)
	}

	req, err := http.NewRequest(http.MethodGet, "xuesheng/page", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	if gotPath != "/app/xuesheng/page" {
		t.Errorf("server path = %q", gotPath)
	}
	if gotID == "" {
		t.Error("request id not sent")
	}

	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := base + "upload/a.png," + base + "upload/b.png"
	if body.Data["tupian"] != want {
		t.Errorf("tupian = %v, want %v", body.Data["tupian"], want)
	}
	if body.Data["price"] != 12.5 {
		t.Errorf("price = %v", body.Data["price"])
	}
}

func TestRegisterHTTPClient_LoopbackAbsolute(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	// Only the scheme and host of a localhost URL move to the base origin.
	i, _ := newTestInterceptor(t, srv.URL+"/app/")
	client := &http.Client{}
	if err := i.RegisterHTTPClient(client); err != nil {
		t.Fatal(err)
	}

	resp, err := client.Get("http://localhost:1/app/ping")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()
	if gotPath != "/app/ping" {
		t.Errorf("path = %q, want /app/ping", gotPath)
	}
}

func TestRegisterHTTPClient_NonJSONAndInvalidJSON(t *testing.T) {
	bodies := map[string]struct {
		contentType string
		body        string
	}{
		"/text":    {"text/plain", "upload/a.png"},
		"/invalid": {"application/json", `{"tupian": "upload/a.png"`},
		"/problem": {"application/problem+json", `{"icon":"upload/i.png"}`},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := bodies[r.URL.Path]
		w.Header().Set("Content-Type", b.contentType)
		io.WriteString(w, b.body)
	}))
	defer srv.Close()

	i, _ := newTestInterceptor(t, srv.URL+"/")
	client := &http.Client{}
	if err := i.RegisterHTTPClient(client); err != nil {
		t.Fatal(err)
	}

	get := func(path string) string {
		t.Helper()
		resp, err := client.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return string(b)
	}

	if got := get("/text"); got != "upload/a.png" {
		t.Errorf("text body = %q", got)
	}
	if got := get("/invalid"); got != bodies["/invalid"].body {
		t.Errorf("invalid JSON body changed: %q", got)
	}
	if got := get("/problem"); !strings.Contains(got, srv.URL+"/upload/i.png") {
		t.Errorf("+json body not rewritten: %q", got)
	}
}

func TestRegisterHTTPClient_Once(t *testing.T) {
	i, _ := newTestInterceptor(t, "http://10.0.0.1/")
	client := &http.Client{}

	if err := i.RegisterHTTPClient(client); err != nil {
		t.Fatal(err)
	}
	first := client.Transport
	if err := i.RegisterHTTPClient(client); err != nil {
		t.Fatal(err)
	}
	if client.Transport != first {
		t.Error("transport wrapped twice")
	}

	other, _ := newTestInterceptor(t, "http://10.0.0.2/")
	if err := other.RegisterHTTPClient(client); err != nil {
		t.Fatal(err)
	}
	if client.Transport != first {
		t.Error("second interceptor wrapped an already wrapped transport")
	}
	if tr := client.Transport.(*Transport); tr.Unwrap() != http.DefaultTransport {
		t.Error("inner transport should be http.DefaultTransport")
	}

	if err := i.RegisterHTTPClient(nil); err == nil {
		t.Error("expected error for nil client")
	}
}

func TestTransport_TracePropagation(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
	}))
	defer srv.Close()

	i, err := New(Options{
		Resolver: &staticResolver{base: srv.URL + "/"},
		Tracer:   tracing.FromProvider(tp),
	})
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{}
	if err := i.RegisterHTTPClient(client); err != nil {
		t.Fatal(err)
	}

	resp, err := client.Get("ping")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if traceparent == "" || !strings.Contains(traceparent, spans[0].SpanContext.TraceID().String()) {
		t.Errorf("traceparent = %q, trace = %s", traceparent, spans[0].SpanContext.TraceID())
	}
}

func TestIsJSON(t *testing.T) {
	tests := map[string]bool{
		"application/json":                true,
		"application/json; charset=utf-8": true,
		"application/vnd.api+json":        true,
		"text/html":                       false,
		"":                                false,
		"garbage;;":                       false,
	}
	for ct, want := range tests {
		if got := isJSON(ct); got != want {
			t.Errorf("isJSON(%q) = %v, want %v", ct, got, want)
		}
	}
}
