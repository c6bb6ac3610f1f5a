package httphost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"nodejsn73cv/envroute/pkg/interceptor"
)

// DefaultUploadField is the multipart field used when RequestOptions.Name
// is empty.
const DefaultUploadField = "file"

// Options configures a Host.
type Options struct {
	// Client sends the requests. Nil means a client with Timeout.
	Client *http.Client

	// Timeout applies only when Client is nil.
	Timeout time.Duration

	// TempDir receives downloads without a FilePath. Empty means os.TempDir.
	TempDir string

	Logger *slog.Logger
}

// Host implements the request, upload and download primitives on net/http.
// Each call runs on its own goroutine and reports through the callbacks.
type Host struct {
	client  *http.Client
	tempDir string
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// New creates a Host.
func New(opts Options) *Host {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		client:  client,
		tempDir: opts.TempDir,
		logger:  logger.With("component", "httphost"),
	}
}

// Host returns an interceptor.Host backed by h.
func (h *Host) Host() *interceptor.Host {
	return interceptor.NewHost(h.Request, h.Upload, h.Download)
}

// Wait blocks until every dispatched call has run its callbacks.
func (h *Host) Wait() {
	h.wg.Wait()
}

// Request sends opts.Data and decodes the response body.
func (h *Host) Request(opts *interceptor.RequestOptions) {
	h.dispatch(interceptor.PrimitiveRequest, opts, func(ctx context.Context) (*interceptor.Response, error) {
		method := strings.ToUpper(opts.Method)
		if method == "" {
			method = http.MethodGet
		}

		target := opts.URL
		var body io.Reader
		var contentType string
		if method == http.MethodGet || method == http.MethodHead {
			u, err := withQuery(target, opts.Data)
			if err != nil {
				return nil, err
			}
			target = u
		} else {
			b, ct, err := encodeBody(opts.Data)
			if err != nil {
				return nil, err
			}
			body, contentType = b, ct
		}

		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		copyHeader(req.Header, opts.Header)
		if contentType != "" && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", contentType)
		}
		return h.roundTrip(req)
	})
}

// Upload posts opts.FilePath as a multipart file along with opts.FormData.
func (h *Host) Upload(opts *interceptor.RequestOptions) {
	h.dispatch(interceptor.PrimitiveUpload, opts, func(ctx context.Context) (*interceptor.Response, error) {
		if opts.FilePath == "" {
			return nil, errors.New("upload requires a file path")
		}
		f, err := os.Open(opts.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open upload file: %w", err)
		}

		field := opts.Name
		if field == "" {
			field = DefaultUploadField
		}
		method := strings.ToUpper(opts.Method)
		if method == "" {
			method = http.MethodPost
		}

		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			defer f.Close()
			pw.CloseWithError(writeMultipart(mw, field, f, opts.FormData))
		}()

		req, err := http.NewRequestWithContext(ctx, method, opts.URL, pr)
		if err != nil {
			pr.Close()
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		copyHeader(req.Header, opts.Header)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return h.roundTrip(req)
	})
}

// Download saves the response body to opts.FilePath, or to a temporary
// file when it is empty.
func (h *Host) Download(opts *interceptor.RequestOptions) {
	h.dispatch(interceptor.PrimitiveDownload, opts, func(ctx context.Context) (*interceptor.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		copyHeader(req.Header, opts.Header)

		resp, err := h.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		path, err := h.save(resp.Body, opts.FilePath)
		if err != nil {
			return nil, err
		}
		return &interceptor.Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			FilePath:   path,
		}, nil
	})
}

func (h *Host) dispatch(p interceptor.Primitive, opts *interceptor.RequestOptions, do func(context.Context) (*interceptor.Response, error)) {
	if opts == nil {
		h.logger.Warn("request options missing", "primitive", p)
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			if opts.Complete != nil {
				opts.Complete()
			}
		}()

		start := time.Now()
		resp, err := do(opts.Ctx())
		if err != nil {
			reqErr := &RequestError{Primitive: p, URL: opts.URL, Cause: err}
			h.logger.DebugContext(opts.Ctx(), "request failed",
				"primitive", p,
				"url", opts.URL,
				"error", err,
			)
			if opts.Fail != nil {
				opts.Fail(reqErr)
			}
			return
		}

		h.logger.DebugContext(opts.Ctx(), "request completed",
			"primitive", p,
			"url", opts.URL,
			"status", resp.StatusCode,
			"duration", time.Since(start),
		)
		if opts.Success != nil {
			opts.Success(resp)
		}
	}()
}

func (h *Host) roundTrip(req *http.Request) (*interceptor.Response, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &interceptor.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Data:       decodeData(b),
	}, nil
}

func (h *Host) save(r io.Reader, path string) (string, error) {
	var f *os.File
	var err error
	if path == "" {
		f, err = os.CreateTemp(h.tempDir, "envroute-download-*")
	} else {
		if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("failed to create download directory: %w", err)
		}
		f, err = os.Create(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write download file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write download file: %w", err)
	}
	return f.Name(), nil
}

func writeMultipart(mw *multipart.Writer, field string, f *os.File, form map[string]string) error {
	for k, v := range form {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile(field, filepath.Base(f.Name()))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	return mw.Close()
}

// encodeBody sends strings and byte slices as is and everything else as
// JSON.
func encodeBody(data any) (io.Reader, string, error) {
	switch v := data.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(v), "text/plain; charset=utf-8", nil
	case []byte:
		return bytes.NewReader(v), "application/octet-stream", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode request body: %w", err)
	}
	return bytes.NewReader(b), "application/json", nil
}

// withQuery appends map data to the query string of a GET request.
func withQuery(target string, data any) (string, error) {
	var params map[string]string
	switch v := data.(type) {
	case nil:
		return target, nil
	case map[string]string:
		params = v
	case map[string]any:
		params = make(map[string]string, len(v))
		for k, val := range v {
			params[k] = fmt.Sprint(val)
		}
	default:
		return target, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid request URL: %w", err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// decodeData returns the body as decoded JSON, or as a string when it does
// not parse.
func decodeData(b []byte) any {
	if len(bytes.TrimSpace(b)) == 0 {
		return string(b)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return string(b)
	}
	return v
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
