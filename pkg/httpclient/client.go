// Package httpclient builds the pooled HTTP client shared by the card
// resolver and the task transport. One client is created per process; per-call
// deadlines come from request contexts rather than per-request clients.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

type Option func(*options)

type options struct {
	timeout         time.Duration
	maxIdleConns    int
	idleConnTimeout time.Duration
}

// WithTimeout sets the client-wide request timeout. Zero disables it, in
// which case callers must bound requests with contexts.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithMaxIdleConns caps the connection pool size.
func WithMaxIdleConns(n int) Option {
	return func(o *options) {
		o.maxIdleConns = n
	}
}

// New returns a pooled HTTP client. The defaults suit long-running polling
// against a handful of agent endpoints.
func New(opts ...Option) *http.Client {
	o := &options{
		timeout:         60 * time.Second,
		maxIdleConns:    32,
		idleConnTimeout: 90 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        o.maxIdleConns,
		MaxIdleConnsPerHost: o.maxIdleConns,
		IdleConnTimeout:     o.idleConnTimeout,
	}

	return &http.Client{
		Timeout:   o.timeout,
		Transport: transport,
	}
}
