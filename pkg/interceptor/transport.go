package interceptor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nodejsn73cv/envroute/pkg/telemetry/logging"
	"nodejsn73cv/envroute/pkg/telemetry/tracing"
	"nodejsn73cv/envroute/pkg/urlnorm"
)

// PrimitiveHTTP labels requests that go through a registered *http.Client.
const PrimitiveHTTP Primitive = "http"

// maxRewriteBody bounds the JSON bodies decoded for media rewriting.
const maxRewriteBody = 16 << 20

// Transport is an http.RoundTripper that resolves request URLs against the
// interceptor's base and rewrites media fields in JSON responses.
type Transport struct {
	next http.RoundTripper
	i    *Interceptor
}

// NewTransport wraps next. A nil next uses http.DefaultTransport.
func (i *Interceptor) NewTransport(next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{next: next, i: i}
}

// Unwrap returns the wrapped RoundTripper.
func (t *Transport) Unwrap() http.RoundTripper {
	return t.next
}

// RegisterHTTPClient wraps the client's transport. A client that is already
// registered, or whose transport is already an envroute Transport, is left
// alone.
func (i *Interceptor) RegisterHTTPClient(client *http.Client) error {
	if client == nil {
		return errors.New("interceptor: client is nil")
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.clients[client]; ok {
		return nil
	}
	if _, ok := client.Transport.(*Transport); ok {
		i.clients[client] = struct{}{}
		return nil
	}
	client.Transport = i.NewTransport(client.Transport)
	i.clients[client] = struct{}{}
	i.logger.Info("HTTP client registered", "base_url", i.Base(context.Background()))
	return nil
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	base := t.i.Base(ctx)

	original := req.URL.String()
	target := original
	if !req.URL.IsAbs() || urlnorm.IsLoopback(original) {
		target = t.i.norm.Resolve(base, original)
	}

	out := req.Clone(ctx)
	if target != original {
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("interceptor: resolved URL %q: %w", target, err)
		}
		out.URL = u
		out.Host = ""
	}

	id := out.Header.Get(t.i.header)
	if id == "" {
		id = uuid.NewString()
		out.Header.Set(t.i.header, id)
	}

	ctx = logging.WithRequestID(ctx, id)
	ctx = logging.WithPrimitive(ctx, string(PrimitiveHTTP))
	ctx, span := t.i.tracer.Start(ctx, "envroute.http "+out.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(tracing.AttrPrimitive, string(PrimitiveHTTP)),
			attribute.String(tracing.AttrRequestID, id),
			attribute.String(tracing.AttrOriginalURL, original),
			attribute.String(tracing.AttrRewrittenURL, out.URL.String()),
		),
	)
	defer span.End()
	out = out.WithContext(ctx)
	tracing.Inject(ctx, out.Header)

	t.i.metrics.RecordRequestRewrite(string(PrimitiveHTTP))
	if urlnorm.HasPlaceholder(target) {
		t.i.logger.ErrorContext(ctx, "request URL contains an unconfigured placeholder host, set the environment base URL",
			"url", target)
	}

	resp, err := t.next.RoundTrip(out)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if isJSON(resp.Header.Get("Content-Type")) {
		n := t.rewriteBody(ctx, resp, base)
		span.SetAttributes(attribute.Int(tracing.AttrRewrittenField, n))
	}
	tracing.SetStatus(span, nil)
	return resp, nil
}

// rewriteBody replaces resp.Body with a rewritten copy. On any failure the
// original bytes are restored.
func (t *Transport) rewriteBody(ctx context.Context, resp *http.Response, base string) int {
	if resp.Body == nil || resp.Body == http.NoBody {
		return 0
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRewriteBody+1))
	resp.Body.Close()
	if err != nil {
		t.i.metrics.RecordRewriteFailure("read")
		t.i.logger.WarnContext(ctx, "failed to read response body for media rewrite", "error", err)
		resp.Body = io.NopCloser(bytes.NewReader(raw))
		return 0
	}
	if len(raw) > maxRewriteBody {
		resp.Body = io.NopCloser(bytes.NewReader(raw))
		return 0
	}
	restore := func() {
		resp.Body = io.NopCloser(bytes.NewReader(raw))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		t.i.metrics.RecordRewriteFailure("decode")
		t.i.logger.DebugContext(ctx, "response is not valid JSON, delivering as is", "error", err)
		restore()
		return 0
	}

	n, err := t.i.rewriter.RewriteWithBase(payload, base)
	if err != nil || n == 0 {
		restore()
		return n
	}

	encoded, err := marshalNoEscape(payload)
	if err != nil {
		t.i.metrics.RecordRewriteFailure("encode")
		t.i.logger.WarnContext(ctx, "failed to encode rewritten response, delivering as is", "error", err)
		restore()
		return 0
	}

	resp.Body = io.NopCloser(bytes.NewReader(encoded))
	resp.ContentLength = int64(len(encoded))
	resp.Header.Set("Content-Length", strconv.Itoa(len(encoded)))
	return n
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
