package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine service.
type Metrics struct {
	// --- Engine ---
	OperationsApplied  *prometheus.CounterVec
	OperationsRejected *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	HealthFactorBreaks *prometheus.CounterVec
	JournalEntries     *prometheus.CounterVec
	HookCompensations  *prometheus.CounterVec
	Sequence           prometheus.Gauge
	StateHashDur       prometheus.Histogram

	// --- Liquidation ---
	Liquidations     *prometheus.CounterVec
	CollateralSeized *prometheus.CounterVec
	LiquidationDebt  prometheus.Counter

	// --- Oracle ---
	PriceRefreshes      *prometheus.CounterVec
	PriceRefreshFailure *prometheus.CounterVec
	PriceAge            *prometheus.GaugeVec

	// --- Channels & backpressure ---
	ProjectionDrops     prometheus.Counter
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Idempotency ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	DedupLRUEvictions     prometheus.Counter

	// --- Ingestion / publishing ---
	CommandsReceived *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
	PublishErrors    prometheus.Counter

	// --- Persistence ---
	PersistBatchDur     prometheus.Histogram
	PersistBatchSize    prometheus.Histogram
	PersistOpsWritten   prometheus.Counter
	PersistErrors       *prometheus.CounterVec
	PersistRetry        prometheus.Counter
	PersistLastSequence prometheus.Gauge

	// --- Projection ---
	ProjectionLastSequence prometheus.Gauge
	ProjectionErrors       prometheus.Counter

	// --- Snapshot ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Gauge
	ReplayOpsTotal    prometheus.Counter

	// --- API ---
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics on reg. The service passes
// prometheus.DefaultRegisterer; tests pass a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OperationsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsc_engine_operations_applied_total",
			Help: "Operations committed by the engine",
		}, []string{"operation"}),

		OperationsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsc_engine_operations_rejected_total",
			Help: "Operations rolled back, by failure kind",
		}, []string{"operation", "reason"}),

		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dsc_engine_operation_duration_seconds",
			Help:    "Time spent inside the write lock per operation",
			Buckets: latencyBuckets,
		}, []string{"operation"}),

		HealthFactorBreaks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsc_engine_health_factor_breaks_total",
			Help: "Mutations rejected because the resulting health factor was below the minimum",
		}, []string{"operation"}),

		JournalEntries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsc_engine_journal_entries_total",
			Help: "Ledger journal entries committed",
		}, []string{"kind"}),

		HookCompensations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsc_engine_hook_compensations_total",
			Help: "Token hooks undone after a later step failed",
		}, []string{"hook"}),

		Sequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "dsc_engine_sequence",
			Help: "Last committed operation sequence",
		}),

		StateHashDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dsc_engine_state_hash_duration_seconds",
			Help:    "Time to extend the state hash chain",
			Buckets: latencyBuckets,
		}),

		Liquidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsc_liquidations_total",
			Help: "Liquidation attempts by outcome",
		}, []string{"outcome"}),

		CollateralSeized: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsc_liquidation_collateral_seized_total",
			Help: "Collateral seized by liquidators, in whole tokens (float approximation)",
		}, []string{"token"}),

		LiquidationDebt: f.NewCounter(prometheus.CounterOpts{
			Name: "dsc_liquidation_debt_covered_total",
			Help: "DSC burned by liquidators, in whole DSC (float approximation)",
		}),

		PriceRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsc_oracle_refreshes_total",
			Help: "Successful price reads per feed",
		}, []string{"feed"}),

		PriceRefreshFailure: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsc_oracle_refresh_failures_total",
			Help: "Failed price reads per feed",
		}, []string{"feed"}),

		PriceAge: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dsc_oracle_price_age_seconds",
			Help: "Age of the cached answer reported by the feed",
		}, []string{"feed"}),

		ProjectionDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "dsc_projection_drops_total",
			Help: "Outputs dropped due to a full projection channel",
		}),

		PublishDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "dsc_publish_drops_total",
			Help: "Outputs dropped due to a full publish channel",
		}),

		PersistBackpressure: f.NewCounter(prometheus.CounterOpts{
			Name: "dsc_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		IdempotencyDuplicates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsc_idempotency_duplicates_total",
			Help: "Duplicate commands caught (lru/postgres)",
		}, []string{"tier"}),

		DedupLRUSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "dsc_dedup_lru_size",
			Help: "Command ids held in the dedup LRU",
		}),

		DedupLRUEvictions: f.NewCounter(prometheus.CounterOpts{
			Name: "dsc_dedup_lru_evictions_total",
			Help: "Command ids evicted from the dedup LRU",
		}),

		CommandsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsc_commands_received_total",
			Help: "Commands received from NATS by type and result",
		}, []string{"type", "result"}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsc_events_published_total",
			Help: "Domain events published to NATS",
		}, []string{"event"}),

		PublishErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "dsc_publish_errors_total",
			Help: "Failed NATS publishes",
		}),

		PersistBatchDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dsc_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistBatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dsc_persist_batch_size",
			Help:    "Operations per persisted batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistOpsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "dsc_persist_operations_written_total",
			Help: "Operations written to the event log",
		}),

		PersistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsc_persist_errors_total",
			Help: "Persistence failures by stage",
		}, []string{"stage"}),

		PersistRetry: f.NewCounter(prometheus.CounterOpts{
			Name: "dsc_persist_retries_total",
			Help: "Batch flush retries",
		}),

		PersistLastSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "dsc_persist_last_sequence",
			Help: "Highest sequence durably written",
		}),

		ProjectionLastSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "dsc_projection_last_sequence",
			Help: "Highest sequence applied to the read model",
		}),

		ProjectionErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "dsc_projection_errors_total",
			Help: "Read model updates that failed",
		}),

		SnapshotTaken: f.NewCounter(prometheus.CounterOpts{
			Name: "dsc_snapshots_taken_total",
			Help: "Ledger snapshots saved",
		}),

		SnapshotDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dsc_snapshot_duration_seconds",
			Help:    "Time to serialize and save a ledger snapshot",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		SnapshotSizeBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "dsc_snapshot_size_bytes",
			Help: "Size of the last saved snapshot",
		}),

		ReplayOpsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "dsc_replay_operations_total",
			Help: "Operations replayed on startup",
		}),

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsc_api_requests_total",
			Help: "API requests by method and status code",
		}, []string{"method", "code"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dsc_api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}
