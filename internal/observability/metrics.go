package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// pvs-api metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pvs_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"route", "method", "code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pvs_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	ActiveRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pvs_active_requests",
		Help: "Current in-flight requests",
	})

	SessionsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pvs_sessions_started_total",
		Help: "Preview sessions that reached running",
	})

	SessionsStoppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pvs_sessions_stopped_total",
		Help: "Preview sessions stopped",
	}, []string{"reason"})

	SessionsErroredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pvs_sessions_errored_total",
		Help: "Preview sessions demoted to error",
	}, []string{"stage"})

	SessionStartDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pvs_session_start_duration_seconds",
		Help:    "Start path end-to-end duration (provision + first sync)",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	SyncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pvs_sync_total",
		Help: "File sync operations forwarded to agents",
	}, []string{"kind", "outcome"})

	SyncDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pvs_sync_duration_seconds",
		Help:    "Agent sync round-trip duration",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"kind"})

	SweepRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pvs_sweep_runs_total",
		Help: "Expiration sweep passes",
	})

	SweepReclaimedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pvs_sweep_reclaimed_total",
		Help: "Sessions reclaimed by the expiration sweep",
	})

	// pvs-agent metrics
	AgentFilesWrittenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pvs_agent_files_written_total",
		Help: "Files written by the sync agent",
	})

	AgentInstallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pvs_agent_installs_total",
		Help: "Dependency install runs",
	}, []string{"outcome"})

	AgentInstallDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pvs_agent_install_duration_seconds",
		Help:    "Dependency install duration",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 180},
	})

	AgentProcessRestartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pvs_agent_process_restarts_total",
		Help: "Dev-server process replacements",
	})

	AgentProcessRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pvs_agent_process_running",
		Help: "Whether a dev-server process handle is held (0/1)",
	})
)

func RegisterAll(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, ActiveRequests,
		SessionsStartedTotal, SessionsStoppedTotal, SessionsErroredTotal,
		SessionStartDuration, SyncTotal, SyncDuration,
		SweepRunsTotal, SweepReclaimedTotal,
		AgentFilesWrittenTotal, AgentInstallsTotal, AgentInstallDuration,
		AgentProcessRestartsTotal, AgentProcessRunning,
	)
}
