package strava

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alainabartfeld/strava-activities/internal/config"
)

// Option configures the Strava clients.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	httpClient *http.Client
	timeout    time.Duration
	pageSize   int
	perMinute  int
}

// WithLogger sets the logger used for progress and warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithTimeout bounds every request made by the default HTTP client. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithPageSize sets per_page for activity requests, capped at config.MaxPageSize.
func WithPageSize(n int) Option {
	return func(o *options) {
		o.pageSize = n
	}
}

// WithRequestsPerMinute paces page requests. Zero or less disables pacing.
func WithRequestsPerMinute(n int) Option {
	return func(o *options) {
		o.perMinute = n
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop(), pageSize: config.MaxPageSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   o.timeout,
		}
	}
	if o.pageSize <= 0 || o.pageSize > config.MaxPageSize {
		o.pageSize = config.MaxPageSize
	}
	return o
}

func (o options) limiter() *rate.Limiter {
	if o.perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(o.perMinute)), 1)
}
