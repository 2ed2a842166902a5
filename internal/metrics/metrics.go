package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics for the notification hub.
// Scraped via /metrics and visualized in Grafana.
var (
	// Connection metrics
	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_connections_total",
		Help: "Total number of WebSocket connections accepted",
	})

	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hub_connections_active",
		Help: "Current number of open WebSocket connections",
	})

	ConnectionsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_connections_failed_total",
		Help: "Total number of failed connection attempts",
	})

	AuthenticatedUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hub_authenticated_users",
		Help: "Current number of authenticated connections",
	})

	AuthFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_auth_failures_total",
		Help: "Total number of failed authentication handshakes",
	})

	// Disconnect tracking with categorization
	DisconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_disconnects_total",
		Help: "Total disconnections by reason",
	}, []string{"reason"})

	// Message metrics
	MessagesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_messages_processed_total",
		Help: "Total number of inbound client messages processed",
	})

	MessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_messages_delivered_total",
		Help: "Total number of envelopes delivered to clients",
	})

	ProtocolErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_errors_total",
		Help: "Total number of protocol and transport errors",
	})

	RateLimitedMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_rate_limited_messages_total",
		Help: "Total number of inbound messages dropped by rate limiting",
	})

	// Broadcast metrics
	BroadcastsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_broadcasts_total",
		Help: "Total broadcast calls by channel",
	}, []string{"channel"})

	DroppedDeliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_dropped_deliveries_total",
		Help: "Total envelopes dropped because a client send buffer was full",
	})

	ReapedConnections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_reaped_connections_total",
		Help: "Total connections evicted by the idle reaper",
	})

	// Process metrics (sampled via gopsutil)
	ProcessCPUPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hub_process_cpu_percent",
		Help: "Process CPU usage percentage",
	})

	ProcessMemoryMB = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hub_process_memory_mb",
		Help: "Process resident memory in MB",
	})

	Goroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hub_goroutines",
		Help: "Current goroutine count",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		ConnectionsActive,
		ConnectionsFailed,
		AuthenticatedUsers,
		AuthFailures,
		DisconnectsTotal,
		MessagesProcessed,
		MessagesDelivered,
		ProtocolErrors,
		RateLimitedMessages,
		BroadcastsTotal,
		DroppedDeliveries,
		ReapedConnections,
		ProcessCPUPercent,
		ProcessMemoryMB,
		Goroutines,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
