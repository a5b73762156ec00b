package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/tsunami-security-scanner-callback-server/pkg/storage"
	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tcs"

type Prometheus struct {
	httpRequests        *prometheus.CounterVec
	httpLatency         *prometheus.HistogramVec
	dnsRequests         *prometheus.CounterVec
	dnsLatency          *prometheus.HistogramVec
	interactionsStored  *prometheus.CounterVec
	interactionsFound   *prometheus.CounterVec
	interactionsMissing prometheus.Counter
}

var _ Observer = (*Prometheus)(nil)

func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by endpoint and status code.",
		}, []string{"endpoint", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request handling time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		dnsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_requests_total",
			Help:      "DNS requests served, by endpoint and response code.",
		}, []string{"endpoint", "rcode"}),
		dnsLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dns_request_duration_seconds",
			Help:      "DNS request handling time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		interactionsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_recorded_total",
			Help:      "Interactions recorded, by kind.",
		}, []string{"kind"}),
		interactionsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_found_total",
			Help:      "Polls that found an interaction, by kind.",
		}, []string{"kind"}),
		interactionsMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_not_found_total",
			Help:      "Polls that found no interaction.",
		}),
	}

	for _, c := range []prometheus.Collector{
		p.httpRequests, p.httpLatency,
		p.dnsRequests, p.dnsLatency,
		p.interactionsStored, p.interactionsFound, p.interactionsMissing,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) HTTPRequestServed(endpoint string, status int, elapsed time.Duration) {
	p.httpRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	p.httpLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (p *Prometheus) DNSRequestServed(endpoint string, rcode int, elapsed time.Duration) {
	name, ok := dns.RcodeToString[rcode]
	if !ok {
		name = strconv.Itoa(rcode)
	}
	p.dnsRequests.WithLabelValues(endpoint, name).Inc()
	p.dnsLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (p *Prometheus) InteractionRecorded(kind storage.Kind) {
	p.interactionsStored.WithLabelValues(kind.String()).Inc()
}

func (p *Prometheus) InteractionFound(kind storage.Kind) {
	p.interactionsFound.WithLabelValues(kind.String()).Inc()
}

func (p *Prometheus) InteractionNotFound() {
	p.interactionsMissing.Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
