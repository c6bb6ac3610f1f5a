package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"nodejsn73cv/envroute/pkg/cli"
	"nodejsn73cv/envroute/pkg/httphost"
	"nodejsn73cv/envroute/pkg/interceptor"
)

func newImageURLCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "image-url <path>...",
		Short: "Resolve image paths against the current base URL",
		Long: `Resolve image paths the way response media fields are rewritten.
Comma-separated arguments are split into one URL per entry.

Examples:
  envroute image-url upload/a.png
  envroute image-url "upload/a.png,upload/b.png"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ic, err := a.interceptor()
			if err != nil {
				return err
			}
			norm := ic.Normalizer()

			var urls []string
			for _, arg := range args {
				if strings.Contains(arg, ",") {
					urls = append(urls, norm.ImageURLs(arg)...)
					continue
				}
				urls = append(urls, norm.ImageURL(arg))
			}
			return a.print(cmd, urls, lines(urls))
		},
	}
}

// lines renders one value per line.
type lines []string

// RenderText implements cli.TextRenderer.
func (l lines) RenderText(w io.Writer) error {
	for _, s := range l {
		if _, err := fmt.Fprintln(w, s); err != nil {
			return err
		}
	}
	return nil
}

type fetchOptions struct {
	method   string
	data     string
	baseURL  string
	headers  []string
	upload   string
	field    string
	form     []string
	download string
}

// fetchResult is what fetch prints.
type fetchResult struct {
	URL        string `json:"url" yaml:"url"`
	StatusCode int    `json:"status" yaml:"status"`
	Data       any    `json:"data,omitempty" yaml:"data,omitempty"`
	FilePath   string `json:"file,omitempty" yaml:"file,omitempty"`
}

// RenderText implements cli.TextRenderer.
func (r fetchResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "%d %s\n", r.StatusCode, r.URL)
	if r.FilePath != "" {
		_, err := fmt.Fprintf(w, "saved to %s\n", r.FilePath)
		return err
	}
	if s, ok := r.Data.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	return (&cli.JSONFormatter{Indent: true}).FormatTo(w, r.Data)
}

func newFetchCmd(opts *rootOptions) *cobra.Command {
	fo := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch <path>",
		Short: "Send a request through the interceptor and print the rewritten response",
		Long: `Send a request through the installed interceptor and the built-in HTTP
host. The path is resolved against the current base URL, and media fields in
a JSON response are rewritten before it is printed.

Examples:
  # GET relative to the resolved base
  envroute fetch xuesheng/list

  # POST a JSON body
  envroute fetch yonghu/login --method POST --data '{"user":"a","pass":"b"}'

  # Upload a file
  envroute fetch file/upload --upload avatar.png --field file --form kind=avatar

  # Download to a file
  envroute fetch upload/report.pdf --download report.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return runFetch(cmd, a, fo, args[0])
		},
	}

	cmd.Flags().StringVarP(&fo.method, "method", "X", "", "HTTP method (GET by default, POST for uploads)")
	cmd.Flags().StringVarP(&fo.data, "data", "d", "", "request body; JSON is sent as JSON, anything else as text")
	cmd.Flags().StringVar(&fo.baseURL, "base-url", "", "resolve against this base instead of the environment")
	cmd.Flags().StringArrayVarP(&fo.headers, "header", "H", nil, "extra header as Name: value (repeatable)")
	cmd.Flags().StringVar(&fo.upload, "upload", "", "upload this file as multipart")
	cmd.Flags().StringVar(&fo.field, "field", httphost.DefaultUploadField, "multipart field name for --upload")
	cmd.Flags().StringArrayVar(&fo.form, "form", nil, "extra multipart field as key=value (repeatable)")
	cmd.Flags().StringVar(&fo.download, "download", "", "save the response body to this file")
	cmd.MarkFlagsMutuallyExclusive("upload", "download")
	return cmd
}

func runFetch(cmd *cobra.Command, a *app, fo *fetchOptions, path string) error {
	req := &interceptor.RequestOptions{
		Context: cmd.Context(),
		URL:     path,
		BaseURL: fo.baseURL,
		Method:  fo.method,
	}

	header, err := parseHeaders(fo.headers)
	if err != nil {
		return err
	}
	req.Header = header

	if fo.data != "" {
		var v any
		if err := json.Unmarshal([]byte(fo.data), &v); err == nil {
			req.Data = v
		} else {
			req.Data = fo.data
		}
	}

	primitive := interceptor.PrimitiveRequest
	switch {
	case fo.upload != "":
		primitive = interceptor.PrimitiveUpload
		req.FilePath = fo.upload
		req.Name = fo.field
		form, err := parseForm(fo.form)
		if err != nil {
			return err
		}
		req.FormData = form
	case fo.download != "":
		primitive = interceptor.PrimitiveDownload
		req.FilePath = fo.download
	}

	ic, err := a.interceptor()
	if err != nil {
		return err
	}
	h := httphost.New(httphost.Options{
		Timeout: a.cfg.Interceptor.HTTPTimeout,
		Logger:  a.logger,
	})
	host := h.Host()
	if err := ic.Install(host); err != nil {
		return err
	}

	base := fo.baseURL
	if base == "" {
		base = ic.Base(cmd.Context())
	}
	target := ic.Normalizer().Resolve(base, path)

	var (
		result  fetchResult
		failure error
	)
	req.Success = func(resp *interceptor.Response) {
		result = fetchResult{StatusCode: resp.StatusCode, Data: resp.Data, FilePath: resp.FilePath}
	}
	req.Fail = func(err error) {
		failure = err
	}
	if err := host.Do(primitive, req); err != nil {
		return err
	}
	h.Wait()

	if failure != nil {
		return cli.NewCommandError("fetch", failure)
	}
	result.URL = target
	return a.print(cmd, result, nil)
}

func parseHeaders(in []string) (http.Header, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(http.Header, len(in))
	for _, h := range in {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, cli.NewUsageError("--header", fmt.Sprintf("%q is not Name: value", h))
		}
		out.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return out, nil
}

func parseForm(in []string) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for _, kv := range in {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, cli.NewUsageError("--form", fmt.Sprintf("%q is not key=value", kv))
		}
		out[k] = v
	}
	return out, nil
}
