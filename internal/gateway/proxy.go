package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errUpstreamFailure = errors.New("upstream server error")

// forwardedHeaders are copied from the client request to the upstream request.
var forwardedHeaders = []string{"Authorization", "Content-Type", "Accept"}

// ServiceProxy forwards requests to one upstream service behind a circuit breaker. Transport
// errors and 5xx responses count as failures; once the breaker opens requests fail fast with
// gobreaker.ErrOpenState until the open period is over.
type ServiceProxy struct {
	name    string
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

type ProxyOption func(*gobreaker.Settings)

// WithBreaker opens the breaker after failures consecutive failed requests and keeps it open
// for openFor.
func WithBreaker(failures uint32, openFor time.Duration) ProxyOption {
	return func(s *gobreaker.Settings) {
		s.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		}
		s.Timeout = openFor
	}
}

func NewServiceProxy(name, baseURL string, client *http.Client, logger *slog.Logger, opts ...ProxyOption) *ServiceProxy {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "upstream", name, "from", from.String(), "to", to.String())
		},
	}
	for _, opt := range opts {
		opt(&settings)
	}

	return &ServiceProxy{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
	}
}

func (p *ServiceProxy) Name() string {
	return p.name
}

// ForwardRequest sends r to path on the upstream, keeping method, body, query and the
// forwarded headers. Upstream 5xx responses are returned to the caller unchanged.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string) (*http.Response, error) {
	url := p.baseURL + path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, url, r.Body)
	if err != nil {
		return nil, err
	}
	for _, header := range forwardedHeaders {
		if value := r.Header.Get(header); value != "" {
			req.Header.Set(header, value)
		}
	}

	resp, err := p.breaker.Execute(func() (*http.Response, error) {
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errUpstreamFailure
		}
		return resp, nil
	})
	if errors.Is(err, errUpstreamFailure) {
		return resp, nil
	}
	return resp, err
}
