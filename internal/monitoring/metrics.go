package monitoring

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/guided-traffic/secret-cipher/pkg/secretcipher"
)

// Pod metadata injected through the downward API.
var (
	kubernetesNamespace = os.Getenv("KUBERNETES_NAMESPACE")
	kubernetesPodName   = os.Getenv("KUBERNETES_POD_NAME")
)

// getKubernetesLabels returns the Kubernetes labels for metrics
func getKubernetesLabels() prometheus.Labels {
	labels := prometheus.Labels{}

	if kubernetesNamespace != "" {
		labels["kubernetes_namespace"] = kubernetesNamespace
	}
	if kubernetesPodName != "" {
		labels["kubernetes_pod_name"] = kubernetesPodName
	}

	return labels
}

// Registry holds every secret-cipher metric plus the Go runtime collectors.
var (
	Registry = prometheus.NewRegistry()
	factory  = promauto.With(prometheus.WrapRegistererWith(getKubernetesLabels(), Registry))
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var (
	// HTTP Request metrics
	RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretcipher_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secretcipher_http_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ActiveRequests = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "secretcipher_http_active_requests",
			Help: "Number of requests currently being served",
		},
	)

	// Cipher metrics
	CipherOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretcipher_operations_total",
			Help: "Total number of key generation, encryption and decryption operations",
		},
		[]string{"operation", "engine", "status"},
	)

	CipherOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secretcipher_operation_duration_seconds",
			Help:    "Cipher operation duration in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"operation", "engine"},
	)

	// Vault metrics
	VaultOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretcipher_vault_operations_total",
			Help: "Total number of vault put/get/delete operations",
		},
		[]string{"operation", "status"},
	)

	// Server metrics
	ServerInfo = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "secretcipher_server_info",
			Help: "Server build information",
		},
		[]string{"version", "commit", "build_time", "engine"},
	)
)

// SetServerInfo sets server build information
func SetServerInfo(version, commit, buildTime, engine string) {
	ServerInfo.WithLabelValues(version, commit, buildTime, engine).Set(1)
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// ObserveCipher records a cipher operation. It satisfies secretcipher.Observer.
func ObserveCipher(op secretcipher.Operation, engine string, d time.Duration, err error) {
	CipherOperationsTotal.WithLabelValues(string(op), engine, status(err)).Inc()
	CipherOperationDuration.WithLabelValues(string(op), engine).Observe(d.Seconds())
}

// RecordVaultOperation records a vault operation outcome.
func RecordVaultOperation(operation string, err error) {
	VaultOperationsTotal.WithLabelValues(operation, status(err)).Inc()
}
