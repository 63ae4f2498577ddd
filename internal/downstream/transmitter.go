package downstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-signer/internal/config"
	"github/chapool/go-signer/internal/util"
)

// ForwardedRequest is built once per attempt; a retry builds a new one.
type ForwardedRequest struct {
	Path   string
	Header http.Header
	Body   []byte
}

// Observer receives the outcome label and duration of every round trip.
type Observer interface {
	ObserveDownstream(outcome string, took time.Duration)
}

// Transmitter sends requests to the downstream node over a process scoped connection pool.
type Transmitter struct {
	client   *http.Client
	target   string
	query    string
	resolver PathResolver
	timeout  time.Duration
	observer Observer
	clock    time2.Clock
}

// NewTransmitter builds the pooled client for cfg. A nil clock falls back to the system clock.
func NewTransmitter(cfg config.Downstream, observer Observer, clock time2.Clock) (*Transmitter, error) {
	resolver, err := NewPathResolver(cfg.URL, cfg.PathPrefix)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse downstream url %q", cfg.URL)
	}

	if clock == nil {
		clock = time2.DefaultClock
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = cfg.MaxIdleConns
	transport.MaxIdleConnsPerHost = cfg.MaxIdleConns
	transport.DialContext = (&net.Dialer{
		Timeout:   cfg.Timeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = cfg.Timeout
	if cfg.InsecureSkipVerify {
		//nolint:gosec // opt-in for nodes with self-signed certificates
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Transmitter{
		client:   &http.Client{Transport: transport},
		target:   origin(cfg.URL),
		query:    u.RawQuery,
		resolver: resolver,
		timeout:  cfg.Timeout,
		observer: observer,
		clock:    clock,
	}, nil
}

// HTTPClient exposes the pooled client so other downstream clients share its connections.
func (t *Transmitter) HTTPClient() *http.Client {
	return t.client
}

// Send performs exactly one round trip and always returns an outcome. The attempt is
// bounded by the configured timeout and by ctx.
func (t *Transmitter) Send(ctx context.Context, req ForwardedRequest) Outcome {
	start := t.clock.Now()
	out := t.send(ctx, req)

	if t.observer != nil {
		t.observer.ObserveDownstream(out.Label(), t.clock.Now().Sub(start))
	}

	return out
}

func (t *Transmitter) send(ctx context.Context, req ForwardedRequest) Outcome {
	logger := util.LogFromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	target := t.target + t.resolver.Resolve(req.Path)
	if t.query != "" {
		target += "?" + t.query
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(req.Body))
	if err != nil {
		logger.Error().Err(err).Str("target", target).Msg("Failed to build downstream request")
		return &TransportFailure{Kind: FailureUnknown, Err: errors.Wrap(err, "failed to build downstream request")}
	}

	httpReq.Header = FilterHeaders(req.Header)
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	res, err := t.client.Do(httpReq)
	if err != nil {
		failure := FailureFromError(err)
		logger.Warn().Err(err).Str("target", target).Str("kind", failure.Kind.String()).Msg("Downstream request failed")
		return failure
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		failure := FailureFromError(err)
		logger.Warn().Err(err).Str("target", target).Str("kind", failure.Kind.String()).Msg("Failed to read downstream response")
		return failure
	}

	logger.Debug().Str("target", target).Int("status", res.StatusCode).Int("bytes", len(body)).Msg("Downstream responded")

	return &Success{
		StatusCode: res.StatusCode,
		Header:     FilterHeaders(res.Header),
		Body:       body,
	}
}

func (t *Transmitter) Close() {
	log.Debug().Msg("Closing downstream connections")
	t.client.CloseIdleConnections()
}

// origin returns scheme and host of u without its path or query.
func origin(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if i := strings.Index(u, "://"); i >= 0 {
		if j := strings.Index(u[i+3:], "/"); j >= 0 {
			return u[:i+3+j]
		}
	}
	return strings.TrimSuffix(u, "/")
}
