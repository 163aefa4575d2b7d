// Package httpclient builds the HTTP client shared by metadata resolution and
// media downloads.
package httpclient

import (
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

const (
	// DefaultTimeout bounds a single request when Config.Timeout is zero.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is sent when a request carries no User-Agent of its own.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"

	headerUserAgent       = "User-Agent"
	headerContentEncoding = "Content-Encoding"
	headerContentLength   = "Content-Length"
)

var baseTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ResponseHeaderTimeout: 10 * time.Second,
	ForceAttemptHTTP2:     true,
	// Media range requests need identity bodies; Transport decodes brotli only.
	DisableCompression: true,
	ReadBufferSize:     16 * 1024,
	WriteBufferSize:    16 * 1024,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// Config holds optional client parameters. Zero values use defaults.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	ProxyURL  string
}

// New returns an *http.Client with a tuned transport. An unparsable proxy URL
// is reported as an error rather than silently ignored.
func New(cfg Config) (*http.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	tr := baseTransport.Clone()
	if cfg.ProxyURL != "" {
		proxy, err := proxyFromURLString(cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		tr.Proxy = proxy
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &Transport{Base: tr, UserAgent: ua},
	}, nil
}

// Transport sets a default User-Agent and transparently decodes
// brotli-encoded response bodies.
type Transport struct {
	Base      http.RoundTripper
	UserAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.UserAgent != "" && req.Header.Get(headerUserAgent) == "" {
		req = req.Clone(req.Context())
		req.Header.Set(headerUserAgent, t.UserAgent)
	}

	resp, err := base.RoundTrip(req)
	if err != nil || resp == nil || resp.Body == nil {
		return resp, err
	}
	if strings.EqualFold(strings.TrimSpace(resp.Header.Get(headerContentEncoding)), "br") {
		resp.Body = &brotliBody{r: brotli.NewReader(resp.Body), c: resp.Body}
		resp.Header.Del(headerContentEncoding)
		resp.Header.Del(headerContentLength)
		resp.ContentLength = -1
		resp.Uncompressed = true
	}
	return resp, nil
}

type brotliBody struct {
	r io.Reader
	c io.Closer
}

func (b *brotliBody) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *brotliBody) Close() error               { return b.c.Close() }

func proxyFromURLString(raw string) (func(*http.Request) (*url.URL, error), error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return http.ProxyURL(u), nil
}
