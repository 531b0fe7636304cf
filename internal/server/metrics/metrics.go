// Package metrics registers the server's Prometheus metrics and serves them
// over HTTP.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/rdkeeper/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	// UploadsTotal counts content uploads (new files and updates) by result.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdkeeper_uploads_total",
			Help: "Content uploads by result",
		},
		[]string{"result"},
	)

	DownloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rdkeeper_downloads_total",
			Help: "Successfully opened downloads",
		},
	)

	// LedgerConflictsTotal counts version ledger appends that lost a race.
	LedgerConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rdkeeper_ledger_conflicts_total",
			Help: "Version ledger appends rejected by a concurrent writer",
		},
	)

	// OrphanedRevisionsTotal counts stored revisions that never got a ledger entry.
	OrphanedRevisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rdkeeper_orphaned_revisions_total",
			Help: "Object store revisions left without a ledger entry",
		},
	)

	MetadataOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdkeeper_metadata_operations_total",
			Help: "Metadata operations by kind and result",
		},
		[]string{"op", "result"},
	)

	ExtractorCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdkeeper_extractor_cache_lookups_total",
			Help: "Extractor registry lookups by cache outcome",
		},
		[]string{"outcome"},
	)

	grpcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdkeeper_grpc_requests_total",
			Help: "gRPC requests by method and status code",
		},
		[]string{"method", "code"},
	)

	grpcRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rdkeeper_grpc_request_duration_seconds",
			Help:    "gRPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server serves /metrics until its context is cancelled.
type Server struct {
	addr   string
	logger logging.Logger
}

func NewServer(addr string, logger logging.Logger) *Server {
	return &Server{addr: addr, logger: logging.Module(logger, "metrics_server")}
}

func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		s.logger.Info(ctx, "shutting down metrics server")
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "metrics server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
