package metrics

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github/chapool/go-signer/internal/config"
)

const namespace = "signer_gateway"

// Service owns the prometheus registry of the gateway and the collectors the request
// pipeline reports into.
type Service struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	downstream        *prometheus.CounterVec
	downstreamLatency *prometheus.HistogramVec
	nonceQueries      *prometheus.CounterVec
	nonceRetries      prometheus.Counter
	signatures        *prometheus.CounterVec
}

func New(_ config.Server) (*Service, error) {
	s := &Service{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Inbound JSON-RPC requests by classification.",
		}, []string{"kind"}),
		downstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downstream_outcomes_total",
			Help:      "Downstream round trips by outcome.",
		}, []string{"outcome"}),
		downstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "downstream_duration_seconds",
			Help:      "Duration of downstream round trips.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		nonceQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonce_queries_total",
			Help:      "Transaction count queries issued to the downstream node.",
		}, []string{"result"}),
		nonceRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonce_conflict_retries_total",
			Help:      "Transaction submissions retried after a nonce conflict.",
		}),
		signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signatures_total",
			Help:      "Transactions signed by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.requests,
		s.downstream,
		s.downstreamLatency,
		s.nonceQueries,
		s.nonceRetries,
		s.signatures,
	} {
		if err := s.registry.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register metrics collector")
		}
	}

	return s, nil
}

func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Service) ObserveRequest(kind string) {
	s.requests.WithLabelValues(kind).Inc()
}

func (s *Service) ObserveDownstream(outcome string, took time.Duration) {
	s.downstream.WithLabelValues(outcome).Inc()
	s.downstreamLatency.WithLabelValues(outcome).Observe(took.Seconds())
}

func (s *Service) ObserveNonceQuery(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.nonceQueries.WithLabelValues(result).Inc()
}

func (s *Service) ObserveNonceRetry() {
	s.nonceRetries.Inc()
}

func (s *Service) ObserveSignature(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.signatures.WithLabelValues(result).Inc()
}
