// Package interceptor rewrites outgoing requests against the resolved
// environment base URL.
//
// A Host holds the request, upload and download primitives an application
// calls. Install wraps each of them once and locks the slots, so later
// attempts to swap a primitive fail with ErrPrimitiveLocked:
//
//	host := httphost.New(httphost.Options{Client: httpClient}).Host()
//	ic, err := interceptor.New(interceptor.Options{Resolver: manager})
//	if err := ic.Install(host); err != nil {
//	    return err
//	}
//	host.Request(&interceptor.RequestOptions{URL: "xuesheng/login"})
//
// Every wrapped call resolves its URL with urlnorm (per-call BaseURL first,
// then the resolved base), tags the request with an X-Request-ID and a span,
// and rewrites media fields in the decoded response before the Success
// callback runs.
//
// Plain *http.Client users call RegisterHTTPClient, which wraps the
// client's Transport. Code that publishes a client later can put it in a
// ClientSlot and have WatchClientSlot register it when it appears.
package interceptor
