// Package httpclient is the HTTP session shared by every remote fetch: a
// pooled transport with a per-request timeout, a user agent and retries.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/eapache/go-resiliency/retrier"

	"github.com/geodov/godov/internal/core/observability"
	"github.com/geodov/godov/pkg/doverr"
)

const DefaultUserAgent = "godov/dev"

var errRetryable = errors.New("retryable")

// StatusError is a non-2xx response.
type StatusError struct {
	URL  string
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http status %d", e.URL, e.Code)
}

type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() []error { return []error{e.err, errRetryable} }

type Options struct {
	Timeout   time.Duration
	Retries   int
	Backoff   time.Duration
	UserAgent string
	Metrics   *observability.Metrics
	Transport http.RoundTripper
}

// Session is safe for concurrent use.
type Session struct {
	client    *http.Client
	userAgent string
	retries   int
	backoff   time.Duration
	metrics   *observability.Metrics
}

// NewOutbound creates the pooled transport used by New.
func NewOutbound(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("stopped after 5 redirects")
			}
			return nil
		},
	}
}

func New(o Options) *Session {
	if o.Timeout <= 0 {
		o.Timeout = 300 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	c := NewOutbound(o.Timeout)
	if o.Transport != nil {
		c.Transport = o.Transport
	}
	return &Session{client: c, userAgent: o.UserAgent, retries: o.Retries, backoff: o.Backoff, metrics: o.Metrics}
}

func (s *Session) UserAgent() string { return s.userAgent }

// Get fetches url and returns the body of a 2xx response.
func (s *Session) Get(ctx context.Context, upstream, url string, header http.Header) ([]byte, error) {
	return s.Do(ctx, upstream, http.MethodGet, url, nil, header)
}

// Post sends body with the given content type.
func (s *Session) Post(ctx context.Context, upstream, url, contentType string, body []byte) ([]byte, error) {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	return s.Do(ctx, upstream, http.MethodPost, url, body, h)
}

// Do runs one request with retries on transport errors, 429 and 5xx.
// Failures after the last attempt are doverr.ErrRemoteFetch errors carrying
// the URL; a *StatusError is kept in the chain.
func (s *Session) Do(ctx context.Context, upstream, method, url string, body []byte, header http.Header) ([]byte, error) {
	r := retrier.New(retrier.ExponentialBackoff(s.retries, s.backoff), retrier.WhitelistClassifier{errRetryable}).
		WithSurfaceWorkErrors()

	var out []byte
	err := r.RunCtx(ctx, func(ctx context.Context) error {
		start := time.Now()
		data, err := s.once(ctx, method, url, body, header)
		s.metrics.ObserveUpstream(upstream, time.Since(start))
		if err != nil {
			return err
		}
		out = data
		return nil
	})
	if err != nil {
		var re retryableError
		if errors.As(err, &re) {
			err = re.err
		}
		return nil, doverr.Wrap(doverr.ErrRemoteFetch, url, err, "%s %s", method, url)
	}
	return out, nil
}

func (s *Session) once(ctx context.Context, method, url string, body []byte, header http.Header) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, retryableError{err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryableError{err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{URL: url, Code: resp.StatusCode, Body: data}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, retryableError{se}
		}
		return nil, se
	}
	return data, nil
}
