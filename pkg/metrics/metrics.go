package metrics

import (
  "net/http"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
  // Fetch metrics
  FetchCounter = prometheus.NewCounter(
    prometheus.CounterOpts{
      Name: "cryptotrack_fetch_total",
      Help: "Total upstream fetch attempts",
    })
  FetchErrors = prometheus.NewCounter(
    prometheus.CounterOpts{
      Name: "cryptotrack_fetch_errors_total",
      Help: "Upstream fetch failures",
    })
  FetchSkippedEntries = prometheus.NewCounter(
    prometheus.CounterOpts{
      Name: "cryptotrack_fetch_skipped_entries_total",
      Help: "Malformed provider entries skipped during mapping",
    })
  FetchLatency = prometheus.NewHistogram(
    prometheus.HistogramOpts{
      Name:    "cryptotrack_fetch_latency_seconds",
      Help:    "Time to fetch one provider batch",
      Buckets: prometheus.DefBuckets,
    })

  // Ingestion metrics
  IngestRuns = prometheus.NewCounterVec(
    prometheus.CounterOpts{
      Name: "cryptotrack_ingest_runs_total",
      Help: "Ingestion runs by outcome",
    }, []string{"outcome"})
  IngestQuotes = prometheus.NewCounterVec(
    prometheus.CounterOpts{
      Name: "cryptotrack_ingest_quotes_total",
      Help: "Quotes processed per run by disposition",
    }, []string{"disposition"})
  IngestLatency = prometheus.NewHistogram(
    prometheus.HistogramOpts{
      Name:    "cryptotrack_ingest_latency_seconds",
      Help:    "Time for one full ingestion run",
      Buckets: prometheus.DefBuckets,
    })

  // Store metrics
  StoreOperations = prometheus.NewCounterVec(
    prometheus.CounterOpts{
      Name: "cryptotrack_store_operations_total",
      Help: "Store operations by name and status",
    }, []string{"operation", "status"})
  StoreLatency = prometheus.NewHistogramVec(
    prometheus.HistogramOpts{
      Name:    "cryptotrack_store_latency_seconds",
      Help:    "Store operation latency",
      Buckets: prometheus.DefBuckets,
    }, []string{"operation"})

  // Snapshot cache metrics
  SnapshotCacheHits = prometheus.NewCounter(
    prometheus.CounterOpts{
      Name: "cryptotrack_snapshot_cache_hits_total",
      Help: "Live snapshot requests served from cache",
    })
  SnapshotCacheMisses = prometheus.NewCounter(
    prometheus.CounterOpts{
      Name: "cryptotrack_snapshot_cache_misses_total",
      Help: "Live snapshot requests that went upstream",
    })

  // Redis metrics
  RedisOperationDuration = prometheus.NewHistogramVec(
    prometheus.HistogramOpts{
      Name:    "cryptotrack_redis_operation_seconds",
      Help:    "Redis operation latency by operation and status",
      Buckets: prometheus.DefBuckets,
    }, []string{"operation", "status"})
  RedisErrors = prometheus.NewCounterVec(
    prometheus.CounterOpts{
      Name: "cryptotrack_redis_errors_total",
      Help: "Redis errors by operation",
    }, []string{"operation"})

  // Archival metrics
  ArchivalSuccessCounter = prometheus.NewCounter(
    prometheus.CounterOpts{
      Name: "cryptotrack_archival_success_total",
      Help: "Successful archival sweeps",
    })
  ArchivalErrorCounter = prometheus.NewCounter(
    prometheus.CounterOpts{
      Name: "cryptotrack_archival_errors_total",
      Help: "Failed archival sweeps",
    })
  ArchivalPrunedRows = prometheus.NewCounter(
    prometheus.CounterOpts{
      Name: "cryptotrack_archival_pruned_rows_total",
      Help: "Quote rows pruned by the archival sweep",
    })

  // HTTP metrics
  HTTPRequests = prometheus.NewCounterVec(
    prometheus.CounterOpts{
      Name: "cryptotrack_http_requests_total",
      Help: "HTTP requests by path and status code",
    }, []string{"path", "code"})
  HTTPLatency = prometheus.NewHistogramVec(
    prometheus.HistogramOpts{
      Name:    "cryptotrack_http_latency_seconds",
      Help:    "HTTP request latency by path",
      Buckets: prometheus.DefBuckets,
    }, []string{"path"})

  // Health check metrics
  DatabaseHealthCheckSuccess = prometheus.NewCounter(
    prometheus.CounterOpts{
      Name: "cryptotrack_db_healthcheck_success_total",
      Help: "Successful database health checks",
    })
  DatabaseHealthCheckErrors = prometheus.NewCounter(
    prometheus.CounterOpts{
      Name: "cryptotrack_db_healthcheck_errors_total",
      Help: "Failed database health checks",
    })
  DatabaseHealthCheckDuration = prometheus.NewHistogram(
    prometheus.HistogramOpts{
      Name:    "cryptotrack_db_healthcheck_seconds",
      Help:    "Database health check latency",
      Buckets: prometheus.DefBuckets,
    })
)

func init() {
  prometheus.MustRegister(
    FetchCounter, FetchErrors, FetchSkippedEntries, FetchLatency,
    IngestRuns, IngestQuotes, IngestLatency,
    StoreOperations, StoreLatency,
    SnapshotCacheHits, SnapshotCacheMisses,
    RedisOperationDuration, RedisErrors,
    ArchivalSuccessCounter, ArchivalErrorCounter, ArchivalPrunedRows,
    HTTPRequests, HTTPLatency,
    DatabaseHealthCheckSuccess, DatabaseHealthCheckErrors, DatabaseHealthCheckDuration,
  )
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
  return promhttp.Handler()
}
