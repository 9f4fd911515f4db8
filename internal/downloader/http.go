package downloader

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	TLSHandshakeTimeout:   10 * time.Second,
	ResponseHeaderTimeout: 15 * time.Second,
	IdleConnTimeout:       90 * time.Second,
}

// CloseIdleConnections releases pooled connections of the shared transport.
func CloseIdleConnections() {
	sharedTransport.CloseIdleConnections()
}

// consistentTransport fills in browser-like default headers. The caller's
// request is never modified; headers are set on a clone.
type consistentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *consistentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	needsUA := req.Header.Get("User-Agent") == ""
	needsLang := req.Header.Get("Accept-Language") == ""
	needsAccept := req.Header.Get("Accept") == ""
	if !needsUA && !needsLang && !needsAccept {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	if needsUA {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	if needsLang {
		clone.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}
	if needsAccept {
		clone.Header.Set("Accept", "*/*")
	}
	return t.base.RoundTrip(clone)
}

// newHTTPClient builds the client used for metadata and stream requests.
// A zero timeout leaves requests unbounded; deadlines come from the context.
func newHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
		Transport: &consistentTransport{
			base:      sharedTransport,
			userAgent: defaultUserAgent,
		},
	}
}
