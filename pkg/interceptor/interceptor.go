package interceptor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nodejsn73cv/envroute/pkg/rewrite"
	"nodejsn73cv/envroute/pkg/telemetry/logging"
	"nodejsn73cv/envroute/pkg/telemetry/metrics"
	"nodejsn73cv/envroute/pkg/telemetry/tracing"
	"nodejsn73cv/envroute/pkg/urlnorm"
)

// DefaultRequestIDHeader is set on dispatched requests that don't carry one.
const DefaultRequestIDHeader = "X-Request-ID"

// BaseResolver supplies the environment base URL. *env.Manager implements it.
type BaseResolver interface {
	BaseURL(ctx context.Context, explicitProduction *bool) string
}

// Options configures an Interceptor.
type Options struct {
	// Resolver supplies the environment base URL. Required.
	Resolver BaseResolver

	// AppBase, when it returns a non-empty URL, takes precedence over the
	// resolver. It lets the application pin a base at runtime.
	AppBase func() string

	// Rewriter configures the response media heuristics.
	Rewriter rewrite.Config

	// RequestIDHeader defaults to DefaultRequestIDHeader.
	RequestIDHeader string

	// PollAttempts and PollInterval bound WatchClientSlot. A non-positive
	// attempt count disables polling.
	PollAttempts int
	PollInterval time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
}

// Interceptor rewrites outgoing request URLs against the resolved
// environment base and rewrites media fields in successful responses.
type Interceptor struct {
	resolver BaseResolver
	appBase  func() string
	norm     *urlnorm.Normalizer
	rewriter *rewrite.Rewriter
	header   string
	attempts int
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Collector
	tracer   *tracing.Tracer

	production atomic.Pointer[bool]

	mu        sync.Mutex
	installed bool
	clients   map[*http.Client]struct{}
}

// New creates an Interceptor.
func New(opts Options) (*Interceptor, error) {
	if opts.Resolver == nil {
		return nil, fmt.Errorf("interceptor: resolver is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	header := opts.RequestIDHeader
	if header == "" {
		header = DefaultRequestIDHeader
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.Noop()
	}

	i := &Interceptor{
		resolver: opts.Resolver,
		appBase:  opts.AppBase,
		header:   http.CanonicalHeaderKey(header),
		attempts: opts.PollAttempts,
		interval: opts.PollInterval,
		logger:   logger.With("component", "interceptor"),
		metrics:  opts.Metrics,
		tracer:   tracer,
		clients:  make(map[*http.Client]struct{}),
	}
	i.norm = urlnorm.New(func() string { return i.Base(context.Background()) }, logger)
	i.rewriter = rewrite.New(i.norm, opts.Rewriter, logger, opts.Metrics)
	return i, nil
}

// SetProduction sets the explicit production flag passed to the resolver.
// Nil restores signal-based detection.
func (i *Interceptor) SetProduction(production *bool) {
	i.production.Store(production)
	mode := "auto"
	if production != nil {
		mode = fmt.Sprintf("%t", *production)
	}
	i.logger.Info("production mode updated", "production", mode)
}

// Production returns the explicit production flag, or nil.
func (i *Interceptor) Production() *bool {
	return i.production.Load()
}

// Base returns the base URL requests are resolved against.
func (i *Interceptor) Base(ctx context.Context) string {
	envBase := i.resolver.BaseURL(ctx, i.production.Load())
	if i.appBase != nil {
		if b := i.appBase(); b != "" {
			return urlnorm.RehostLoopback(b, envBase)
		}
	}
	return envBase
}

// Normalizer returns the URL normalizer bound to this interceptor's base.
func (i *Interceptor) Normalizer() *urlnorm.Normalizer {
	return i.norm
}

// Rewriter returns the response media rewriter.
func (i *Interceptor) Rewriter() *rewrite.Rewriter {
	return i.rewriter
}

// Installed reports whether Install has wrapped a host.
func (i *Interceptor) Installed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.installed
}

// Install wraps the request, upload and download primitives of host and
// locks them against replacement. Installing on a host that is already
// patched, or installing an interceptor twice, logs and returns nil without
// touching any primitive. A primitive that fails to wrap is logged and
// counted and does not stop the others.
func (i *Interceptor) Install(host *Host) error {
	if host == nil {
		return fmt.Errorf("interceptor: host is nil")
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.installed || !host.claim() {
		i.logger.Info("interceptor already installed, skipping")
		return nil
	}
	i.installed = true

	for _, p := range Primitives() {
		i.installOne(host, p)
	}

	i.logger.Info("request primitives intercepted and locked",
		"base_url", i.Base(context.Background()))
	return nil
}

func (i *Interceptor) installOne(host *Host, p Primitive) {
	defer func() {
		if rec := recover(); rec != nil {
			i.metrics.RecordInstallFailure(string(p))
			i.logger.Error("failed to wrap primitive", "primitive", p, "error", fmt.Sprint(rec))
		}
	}()
	if !host.wrapSlot(p, func(fn RequestFunc) RequestFunc { return i.Wrap(p, fn) }) {
		i.logger.Debug("primitive not provided by host, skipping", "primitive", p)
	}
}

// Wrap returns fn with URL resolution, request IDs, tracing and response
// media rewriting applied. Install uses it for each host primitive.
func (i *Interceptor) Wrap(p Primitive, fn RequestFunc) RequestFunc {
	if fn == nil {
		panic(fmt.Sprintf("interceptor: nil %s primitive", p))
	}
	return func(in *RequestOptions) {
		opts := RequestOptions{}
		if in != nil {
			opts = *in
		}
		ctx := opts.Ctx()

		base := opts.BaseURL
		if base == "" {
			base = i.Base(ctx)
		}
		original := opts.URL
		opts.URL = i.norm.Resolve(base, opts.URL)

		opts.Header = opts.Header.Clone()
		if opts.Header == nil {
			opts.Header = make(http.Header)
		}
		id := opts.Header.Get(i.header)
		if id == "" {
			id = uuid.NewString()
			opts.Header.Set(i.header, id)
		}

		ctx = logging.WithRequestID(ctx, id)
		ctx = logging.WithPrimitive(ctx, string(p))
		ctx, span := i.tracer.Start(ctx, "envroute."+string(p),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String(tracing.AttrPrimitive, string(p)),
				attribute.String(tracing.AttrRequestID, id),
				attribute.String(tracing.AttrOriginalURL, original),
				attribute.String(tracing.AttrRewrittenURL, opts.URL),
			),
		)
		opts.Context = ctx

		i.metrics.RecordRequestRewrite(string(p))
		if urlnorm.HasPlaceholder(opts.URL) {
			i.logger.ErrorContext(ctx, "request URL contains an unconfigured placeholder host, set the environment base URL",
				"url", opts.URL)
		} else {
			i.logger.DebugContext(ctx, "request URL resolved", "original", original, "url", opts.URL)
		}

		var endOnce sync.Once
		end := func(err error) {
			endOnce.Do(func() {
				tracing.SetStatus(span, err)
				if err != nil {
					tracing.SetError(span, err)
				}
				span.End()
			})
		}

		success, fail, complete := opts.Success, opts.Fail, opts.Complete
		opts.Success = func(resp *Response) {
			if resp != nil && resp.Data != nil {
				n, err := i.rewriter.RewriteWithBase(resp.Data, base)
				if err != nil {
					i.logger.WarnContext(ctx, "response media rewrite failed, delivering payload as is", "error", err)
				}
				span.SetAttributes(attribute.Int(tracing.AttrRewrittenField, n))
			}
			end(nil)
			if success != nil {
				success(resp)
			}
		}
		opts.Fail = func(err error) {
			end(err)
			if fail != nil {
				fail(err)
			}
		}
		opts.Complete = func() {
			end(nil)
			if complete != nil {
				complete()
			}
		}

		fn(&opts)
	}
}
