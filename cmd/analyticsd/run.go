package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/krisalay/analytics-cache/fetch"
	"github.com/krisalay/analytics-cache/publish"
	"github.com/krisalay/analytics-cache/types"
)

type runFlags struct {
	entities    int
	records     int
	latency     time.Duration
	failureRate float64
	report      bool
}

func newRunCommand(g *globals) *cobra.Command {
	f := runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine against simulated school data until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, g, f)
		},
	}
	cmd.Flags().IntVar(&f.entities, "entities", 12, "number of simulated classes")
	cmd.Flags().IntVar(&f.records, "records", 30, "records per simulated payload")
	cmd.Flags().DurationVar(&f.latency, "latency", 200*time.Millisecond, "maximum simulated fetch latency")
	cmd.Flags().Float64Var(&f.failureRate, "failure-rate", 0.05, "probability that a simulated fetch fails")
	cmd.Flags().BoolVar(&f.report, "report", true, "print a cache report on shutdown")
	return cmd
}

func run(ctx context.Context, g *globals, f runFlags) error {
	log := g.log

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	announce := publish.ListenerFunc(func(_ context.Context, s *types.AggregatedStats) error {
		log.Info("snapshot published",
			zap.Int("entities", s.TotalEntities),
			zap.Int("students", s.TotalStudents),
			zap.Float64("average_attendance", s.AverageAttendance),
			zap.Float64("average_grade", s.AverageGrade),
			zap.Int("failed_calls", s.FailedCallCount))
		return nil
	})

	sim := fetch.Simulator{Records: f.records, MaxLatency: f.latency, FailureRate: f.failureRate}
	e, err := buildEngine(g.cfg, log, reg, sim, classes(f.entities), announce)
	if err != nil {
		return err
	}
	defer e.cache.Close()
	defer e.sink.Close()

	if g.cfg.Metrics.Enabled {
		srv := &http.Server{
			Addr:              g.cfg.Metrics.Address,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Info("serving metrics", zap.String("address", g.cfg.Metrics.Address))
	}

	// Warm the cache before the first tick.
	if err := e.scheduler.RunNow(ctx); err != nil {
		log.Warn("initial refresh failed", zap.Error(err))
	}
	if err := e.scheduler.Start(ctx, refreshPolicy(g.cfg.Refresh)); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.scheduler.Shutdown(shutdownCtx); err != nil {
		log.Warn("refresh cycle did not finish in time", zap.Error(err))
	}

	if f.report {
		return printReport(e)
	}
	return nil
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

func printReport(e *engine) error {
	report := struct {
		Health     types.Health                   `json:"health"`
		Categories map[string]types.CategoryStats `json:"categories"`
		TopByHits  []types.EntrySnapshot          `json:"topByHits"`
		Policy     types.RefreshPolicy            `json:"policy"`
	}{
		Health:     e.inspector.HealthSnapshot(),
		Categories: e.inspector.StatsByCategory(),
		TopByHits:  e.inspector.TopEntries(5, types.OrderByHits),
		Policy:     e.scheduler.CurrentPolicy(),
	}

	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Println("\n==================== CACHE REPORT ====================")
	fmt.Println(string(out))
	return nil
}
