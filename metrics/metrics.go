// Package metrics exposes Prometheus metrics for the gateway: transaction
// and notification counters on a dedicated listener.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// MetricsServer serves the /metrics endpoint and owns the gateway's
// counters.
type MetricsServer struct {
	srv      *http.Server
	registry *prometheus.Registry

	transactionsTotal  *prometheus.CounterVec
	notificationsTotal prometheus.Counter
	uploadBytesTotal   prometheus.Counter
}

// New creates a metrics server with its own registry, namespaced counters
// and the standard process and Go runtime collectors.
func New(namespace string, listenAddr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()

	transactionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_total",
		Help:      "Contract transactions processed, by operation and outcome.",
	}, []string{"operation", "outcome"})

	notificationsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification payloads emitted to clients.",
	})

	uploadBytesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_bytes_total",
		Help:      "Bytes accepted through the room file upload endpoint.",
	})

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		transactionsTotal,
		notificationsTotal,
		uploadBytesTotal,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &MetricsServer{
		srv:                &http.Server{Addr: listenAddr, Handler: mux},
		registry:           registry,
		transactionsTotal:  transactionsTotal,
		notificationsTotal: notificationsTotal,
		uploadBytesTotal:   uploadBytesTotal,
	}, nil
}

// ListenAndServe blocks serving the metrics endpoint until Shutdown.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// RecordTransaction counts one processed transaction. The outcome label is
// "ok" or "error".
func (m *MetricsServer) RecordTransaction(op interfaces.Operation, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.transactionsTotal.WithLabelValues(op.String(), outcome).Inc()
}

// RecordNotifications counts payloads emitted to clients.
func (m *MetricsServer) RecordNotifications(count int) {
	m.notificationsTotal.Add(float64(count))
}

// RecordUpload counts bytes accepted through the upload endpoint.
func (m *MetricsServer) RecordUpload(size int) {
	m.uploadBytesTotal.Add(float64(size))
}
