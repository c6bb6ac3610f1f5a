package interceptor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// Primitive names one of the host's request entry points.
type Primitive string

const (
	PrimitiveRequest  Primitive = "request"
	PrimitiveUpload   Primitive = "upload"
	PrimitiveDownload Primitive = "download"
)

// Primitives lists every host primitive in install order.
func Primitives() []Primitive {
	return []Primitive{PrimitiveRequest, PrimitiveUpload, PrimitiveDownload}
}

var (
	// ErrPrimitiveLocked is returned by Host.Replace after the interceptor
	// has installed its wrapper on that primitive.
	ErrPrimitiveLocked = errors.New("primitive is locked by the interceptor")

	// ErrNoPrimitive is returned by Host.Do when the slot is empty.
	ErrNoPrimitive = errors.New("primitive not provided by host")
)

// RequestFunc dispatches one request. Results are delivered through the
// callbacks on opts, possibly from another goroutine.
type RequestFunc func(opts *RequestOptions)

// RequestOptions are the arguments of a host request primitive.
type RequestOptions struct {
	// Context carries cancellation and log fields. Nil means Background.
	Context context.Context

	// URL is absolute or relative to the resolved base.
	URL string

	// BaseURL, when set, takes precedence over the resolved base.
	BaseURL string

	// Method defaults to GET for request and POST for upload.
	Method string

	Header http.Header

	// Data is the request body. Strings and byte slices are sent as is;
	// other values are encoded as JSON.
	Data any

	// FilePath is the local file to upload, or the destination of a
	// download. An empty download destination uses a temporary file.
	FilePath string

	// Name is the multipart field name of an upload.
	Name string

	// FormData holds extra multipart fields of an upload.
	FormData map[string]string

	Success  func(*Response)
	Fail     func(error)
	Complete func()
}

// Ctx returns the request context, defaulting to Background.
func (o *RequestOptions) Ctx() context.Context {
	if o == nil || o.Context == nil {
		return context.Background()
	}
	return o.Context
}

// Response is delivered to a Success callback.
type Response struct {
	StatusCode int
	Header     http.Header

	// Data is the decoded JSON body when it parses, otherwise the body as a
	// string. Download responses leave it nil.
	Data any

	// FilePath is the downloaded file.
	FilePath string
}

// Host holds the request primitives a client application calls. It is the
// seam the interceptor wraps.
type Host struct {
	mu      sync.Mutex
	slots   map[Primitive]RequestFunc
	locked  map[Primitive]bool
	patched bool
}

// NewHost creates a host with the given primitives. Any of them may be nil.
func NewHost(request, upload, download RequestFunc) *Host {
	return &Host{
		slots: map[Primitive]RequestFunc{
			PrimitiveRequest:  request,
			PrimitiveUpload:   upload,
			PrimitiveDownload: download,
		},
		locked: make(map[Primitive]bool),
	}
}

// Get returns the current function in slot p.
func (h *Host) Get(p Primitive) RequestFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slots[p]
}

// Replace swaps the function in slot p. It fails with ErrPrimitiveLocked
// once the interceptor has wrapped that slot.
func (h *Host) Replace(p Primitive, fn RequestFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.locked[p] {
		return fmt.Errorf("replace %s: %w", p, ErrPrimitiveLocked)
	}
	h.slots[p] = fn
	return nil
}

// Patched reports whether an interceptor has been installed on the host.
func (h *Host) Patched() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.patched
}

// Do calls the primitive in slot p.
func (h *Host) Do(p Primitive, opts *RequestOptions) error {
	fn := h.Get(p)
	if fn == nil {
		return fmt.Errorf("%s: %w", p, ErrNoPrimitive)
	}
	fn(opts)
	return nil
}

// Request calls the request primitive.
func (h *Host) Request(opts *RequestOptions) error { return h.Do(PrimitiveRequest, opts) }

// UploadFile calls the upload primitive.
func (h *Host) UploadFile(opts *RequestOptions) error { return h.Do(PrimitiveUpload, opts) }

// DownloadFile calls the download primitive.
func (h *Host) DownloadFile(opts *RequestOptions) error { return h.Do(PrimitiveDownload, opts) }

// claim marks the host patched. It returns false if it already was.
func (h *Host) claim() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.patched {
		return false
	}
	h.patched = true
	return true
}

// wrapSlot replaces slot p with wrap(current) and locks it. An empty slot
// is left alone and reported as false.
func (h *Host) wrapSlot(p Primitive, wrap func(RequestFunc) RequestFunc) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn := h.slots[p]
	if fn == nil {
		return false
	}
	h.slots[p] = wrap(fn)
	h.locked[p] = true
	return true
}
