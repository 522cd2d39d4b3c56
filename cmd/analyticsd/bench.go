package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/krisalay/analytics-cache/fetch"
	"github.com/krisalay/analytics-cache/types"
)

type benchFlags struct {
	preloadKeys int
	goroutines  int
	opsPerG     int
	entities    int
	cycles      int
}

func newBenchCommand(g *globals) *cobra.Command {
	f := benchFlags{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure cache read throughput and aggregation cycle time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bench(cmd.Context(), g, f)
		},
	}
	cmd.Flags().IntVar(&f.preloadKeys, "preload", 100000, "keys written before the read test")
	cmd.Flags().IntVar(&f.goroutines, "goroutines", 200, "concurrent readers")
	cmd.Flags().IntVar(&f.opsPerG, "ops", 5000, "reads per goroutine")
	cmd.Flags().IntVar(&f.entities, "entities", 200, "simulated classes per cycle")
	cmd.Flags().IntVar(&f.cycles, "cycles", 5, "aggregation cycles to time")
	return cmd
}

func bench(ctx context.Context, g *globals, f benchFlags) error {
	sim := fetch.Simulator{Records: 30, MaxLatency: 5 * time.Millisecond}
	e, err := buildEngine(g.cfg, g.log, nil, sim, classes(f.entities))
	if err != nil {
		return err
	}
	defer e.cache.Close()
	defer e.sink.Close()

	fmt.Println("\n================ CACHE LOAD BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Shards       :", g.cfg.Cache.Shards)
	fmt.Println("Max Entries  :", g.cfg.Cache.MaxEntries)
	fmt.Println("Eviction     :", g.cfg.Cache.Eviction)
	fmt.Println("Preload Keys :", f.preloadKeys)
	fmt.Println("Goroutines   :", f.goroutines)
	fmt.Println("Ops/Goroutine:", f.opsPerG)
	fmt.Println("Max In Flight:", g.cfg.Aggregation.MaxInFlight)
	fmt.Println("---------------------------------")

	// ---------------- Preload Cache ----------------
	for i := 0; i < f.preloadKeys; i++ {
		if err := e.cache.Set(fmt.Sprintf("key-%d", i), i, "bench", time.Hour); err != nil {
			return err
		}
	}

	// ---------------- Read Load ----------------
	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(f.goroutines)
	for i := 0; i < f.goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < f.opsPerG; j++ {
				e.cache.Get(fmt.Sprintf("key-%d", j%max(f.preloadKeys, 1)))
			}
		}()
	}
	wg.Wait()
	readTime := time.Since(start)
	totalOps := f.goroutines * f.opsPerG

	// ---------------- Aggregation Cycles ----------------
	var cycleTotal time.Duration
	var last *types.AggregatedStats
	for i := 0; i < f.cycles; i++ {
		began := time.Now()
		if err := e.scheduler.RunNow(ctx); err != nil {
			return err
		}
		cycleTotal += time.Since(began)
		last = e.orchestrator.Latest()
	}

	st := e.cache.Stats()
	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Reads      : %d\n", totalOps)
	fmt.Printf("Read Time        : %v\n", readTime)
	fmt.Printf("Read Throughput  : %.2f ops/sec\n", float64(totalOps)/readTime.Seconds())
	fmt.Printf("Hit Rate         : %.1f%%\n", st.HitRate*100)
	if f.cycles > 0 && last != nil {
		fmt.Printf("Cycles           : %d x %d calls\n", f.cycles, last.SourceCallCount)
		fmt.Printf("Avg Cycle Time   : %v\n", cycleTotal/time.Duration(f.cycles))
	}
	fmt.Println("=========================================")
	return nil
}
