package aggregate_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cache "github.com/krisalay/analytics-cache"
	"github.com/krisalay/analytics-cache/aggregate"
	"github.com/krisalay/analytics-cache/calc"
	"github.com/krisalay/analytics-cache/fetch"
	"github.com/krisalay/analytics-cache/publish"
	"github.com/krisalay/analytics-cache/types"
)

//
// ================= HELPERS =================
//

var errSourceDown = errors.New("source down")

// table answers every call with a fixed number of records, failing the pairs
// listed in fail.
type table struct {
	fail  map[string]bool // "entity|kind"
	calls atomic.Int64
}

func (tb *table) Fetch(_ context.Context, entityID, kind string, _ time.Duration) (types.Payload, error) {
	tb.calls.Add(1)
	if tb.fail[entityID+"|"+kind] {
		return types.Payload{}, errSourceDown
	}
	return types.Payload{Kind: kind, Records: []types.Record{{ID: entityID + "-1"}, {ID: entityID + "-2"}}}, nil
}

func refs(ids ...string) []aggregate.EntityRef {
	out := make([]aggregate.EntityRef, len(ids))
	for i, id := range ids {
		out[i] = aggregate.EntityRef{ID: id, Name: "Class " + id}
	}
	return out
}

func specs(kinds ...string) []aggregate.FetchSpec {
	out := make([]aggregate.FetchSpec, len(kinds))
	for i, k := range kinds {
		out[i] = aggregate.FetchSpec{Kind: k}
	}
	return out
}

func fakeClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC))
}

//
// ================= FAILURE ACCOUNTING =================
//

func TestSourceFailingForOneEntity(t *testing.T) {
	f := &table{fail: map[string]bool{"2|grades": true}}
	o := aggregate.New(f, nil)

	stats, err := o.RunCycle(context.Background(), refs("1", "2", "3"), specs(types.KindStudents, types.KindGrades))
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FailedCallCount)
	assert.Equal(t, 6, stats.SourceCallCount)
	assert.Equal(t, map[string]int{types.KindGrades: 1}, stats.FailuresBySource)
	require.Len(t, stats.Entities, 3)

	e2 := stats.Entities[1]
	assert.Equal(t, "2", e2.EntityID)
	assert.Equal(t, []string{types.KindStudents}, e2.SucceededSources)
	assert.Equal(t, []string{types.KindGrades}, e2.FailedSources)
	assert.Equal(t, map[string]int{types.KindStudents: 2}, e2.Counts)
	assert.False(t, e2.Defaulted)
	assert.Equal(t, 6, stats.TotalStudents)
	assert.Equal(t, aggregate.StatePublished, o.State())
	assert.Same(t, stats, o.Latest())
}

func TestFailedCallsNeverDropEntities(t *testing.T) {
	kinds := []string{types.KindStudents, types.KindSubjects, types.KindExams, types.KindAttendance}
	ids := []string{"a", "b", "c", "d", "e"}

	fail := map[string]bool{}
	rng := rand.New(rand.NewPCG(7, 7))
	for _, id := range ids {
		for _, k := range kinds {
			if rng.IntN(3) == 0 {
				fail[id+"|"+k] = true
			}
		}
	}
	// One entity loses every source.
	for _, k := range kinds {
		fail["e|"+k] = true
	}

	o := aggregate.New(&table{fail: fail}, nil)
	stats, err := o.RunCycle(context.Background(), refs(ids...), specs(kinds...))
	require.NoError(t, err)

	assert.Equal(t, len(fail), stats.FailedCallCount)
	assert.Equal(t, len(ids)*len(kinds), stats.SourceCallCount)
	require.Len(t, stats.Entities, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, stats.Entities[i].EntityID)
	}

	last := stats.Entities[4]
	assert.True(t, last.Defaulted)
	assert.Equal(t, aggregate.DefaultDefaults.Attendance, last.AttendanceRate)
	assert.Equal(t, aggregate.DefaultDefaults.Grade, last.AverageGrade)
	assert.GreaterOrEqual(t, stats.DefaultedEntities, 1)
}

func TestPanickingFetcherIsRecovered(t *testing.T) {
	f := fetch.FetcherFunc(func(_ context.Context, id, kind string, _ time.Duration) (types.Payload, error) {
		if id == "2" {
			panic("nil map")
		}
		return types.Payload{Kind: kind}, nil
	})

	stats, err := aggregate.New(f, nil).RunCycle(context.Background(), refs("1", "2"), specs(types.KindExams))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FailedCallCount)
	assert.True(t, stats.Entities[1].Defaulted)
}

func TestFetcherIgnoringContextIsCutOff(t *testing.T) {
	stuck := make(chan struct{})
	t.Cleanup(func() { close(stuck) })

	f := fetch.FetcherFunc(func(_ context.Context, id, kind string, _ time.Duration) (types.Payload, error) {
		if kind == types.KindGrades {
			<-stuck
		}
		return types.Payload{Kind: kind}, nil
	})
	sources := []aggregate.FetchSpec{
		{Kind: types.KindStudents},
		{Kind: types.KindGrades, Timeout: 20 * time.Millisecond},
	}

	done := make(chan *types.AggregatedStats, 1)
	go func() {
		stats, err := aggregate.New(f, nil).RunCycle(context.Background(), refs("1", "2"), sources)
		assert.NoError(t, err)
		done <- stats
	}()

	select {
	case stats := <-done:
		assert.Equal(t, 2, stats.FailedCallCount)
		assert.Equal(t, 2, stats.FailuresBySource[types.KindGrades])
	case <-time.After(5 * time.Second):
		t.Fatal("cycle hung on a fetcher that ignores its context")
	}
}

func TestTimeoutIsPassedToFetcher(t *testing.T) {
	var got sync.Map
	f := fetch.FetcherFunc(func(ctx context.Context, id, kind string, timeout time.Duration) (types.Payload, error) {
		_, hasDeadline := ctx.Deadline()
		got.Store(kind, [2]any{timeout, hasDeadline})
		return types.Payload{Kind: kind}, nil
	})
	sources := []aggregate.FetchSpec{
		{Kind: types.KindStudents},
		{Kind: types.KindGrades, Timeout: 3 * time.Second},
	}

	_, err := aggregate.New(f, nil, aggregate.WithFetchTimeout(7*time.Second)).
		RunCycle(context.Background(), refs("1"), sources)
	require.NoError(t, err)

	v, _ := got.Load(types.KindStudents)
	assert.Equal(t, [2]any{7 * time.Second, true}, v)
	v, _ = got.Load(types.KindGrades)
	assert.Equal(t, [2]any{3 * time.Second, true}, v)
}

//
// ================= INPUT VALIDATION =================
//

func TestInvalidInputFailsBeforeAnyFetch(t *testing.T) {
	tests := []struct {
		name     string
		entities []aggregate.EntityRef
		sources  []aggregate.FetchSpec
	}{
		{"no sources", refs("1"), nil},
		{"empty kind", refs("1"), specs("")},
		{"duplicate kind", refs("1"), specs(types.KindGrades, types.KindGrades)},
		{"kind with colon", refs("1"), specs("grades:final")},
		{"reserved entities kind", refs("1"), specs(aggregate.CategoryEntities)},
		{"reserved aggregates kind", refs("1"), specs(aggregate.CategoryAggregates)},
		{"negative timeout", refs("1"), []aggregate.FetchSpec{{Kind: types.KindGrades, Timeout: -time.Second}}},
		{"empty entity id", refs("1", ""), specs(types.KindGrades)},
		{"duplicate entity", refs("1", "1"), specs(types.KindGrades)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &table{}
			o := aggregate.New(f, nil)

			stats, err := o.RunCycle(context.Background(), tt.entities, tt.sources)

			var inputErr *types.AggregationInputError
			require.ErrorAs(t, err, &inputErr)
			assert.Nil(t, stats)
			assert.Zero(t, f.calls.Load())
			assert.Equal(t, aggregate.StateFailed, o.State())
			assert.Nil(t, o.Latest())
		})
	}
}

func TestNoEntitiesPublishesEmptySnapshot(t *testing.T) {
	o := aggregate.New(&table{}, nil)

	stats, err := o.RunCycle(context.Background(), nil, specs(types.KindAttendance))
	require.NoError(t, err)

	assert.Zero(t, stats.TotalEntities)
	assert.Empty(t, stats.Entities)
	assert.Empty(t, stats.AttendanceBreakdown)
	assert.Equal(t, aggregate.DefaultDefaults.Attendance, stats.AverageAttendance)
}

//
// ================= MERGE =================
//

func TestMergeComputesRatesAndDistributions(t *testing.T) {
	data := map[string]types.Payload{
		"1|students": {Records: make([]types.Record, 28)},
		"2|students": {Records: make([]types.Record, 30)},
		"1|attendance": {Records: []types.Record{
			{Status: types.AttendancePresent}, {Status: types.AttendancePresent},
			{Status: types.AttendanceLate}, {Status: types.AttendancePresent},
			{Status: types.AttendanceAbsent}, {Status: types.AttendanceExcused},
		}},
		"2|attendance": {Records: []types.Record{
			{Status: types.AttendancePresent}, {Status: types.AttendancePresent},
		}},
		"1|grades": {Records: []types.Record{{Value: 80}, {Value: 90, Weight: 3}}},
		"2|grades": {},
	}
	f := fetch.FetcherFunc(func(_ context.Context, id, kind string, _ time.Duration) (types.Payload, error) {
		return data[id+"|"+kind], nil
	})

	stats, err := aggregate.New(f, nil, aggregate.WithDefaults(aggregate.Defaults{Attendance: 50, Grade: 50})).
		RunCycle(context.Background(), refs("1", "2"), specs(types.KindStudents, types.KindAttendance, types.KindGrades))
	require.NoError(t, err)

	assert.Equal(t, 58, stats.TotalStudents)

	e1, e2 := stats.Entities[0], stats.Entities[1]
	assert.Equal(t, 80.0, e1.AttendanceRate)
	assert.Equal(t, 100.0, e2.AttendanceRate)
	assert.Equal(t, 87.5, e1.AverageGrade)
	assert.True(t, e1.HasGrades)
	assert.False(t, e2.HasGrades)

	assert.Equal(t, 90.0, stats.AverageAttendance)
	assert.Equal(t, 87.5, stats.AverageGrade, "entities without grades do not count")

	assert.Equal(t, []calc.Bucket{
		{Name: types.AttendanceAbsent, Count: 1, Percentage: 12.5},
		{Name: types.AttendanceExcused, Count: 1, Percentage: 12.5},
		{Name: types.AttendanceLate, Count: 1, Percentage: 12.5},
		{Name: types.AttendancePresent, Count: 5, Percentage: 62.5},
	}, stats.AttendanceBreakdown)
	assert.Equal(t, []calc.Bucket{
		{Name: "excellent", Count: 1, Percentage: 50},
		{Name: "good", Count: 1, Percentage: 50},
	}, stats.AttendanceBands)
}

func TestIdenticalResultsGiveIdenticalSnapshots(t *testing.T) {
	sim := fetch.Simulator{Records: 12}
	jittery := fetch.FetcherFunc(func(ctx context.Context, id, kind string, timeout time.Duration) (types.Payload, error) {
		time.Sleep(time.Duration(rand.IntN(3000)) * time.Microsecond)
		return sim.Fetch(ctx, id, kind, timeout)
	})
	clock := fakeClock()
	entities := refs("1", "2", "3", "4", "5", "6")
	sources := specs(types.KindStudents, types.KindAttendance, types.KindGrades, types.KindExams)

	run := func() *types.AggregatedStats {
		stats, err := aggregate.New(jittery, nil, aggregate.WithClock(clock), aggregate.WithMaxInFlight(5)).
			RunCycle(context.Background(), entities, sources)
		require.NoError(t, err)
		return stats
	}
	first, second := run(), run()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("snapshots differ (-first +second):\n%s", diff)
	}
	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

//
// ================= CONCURRENCY =================
//

func TestFanOutRespectsMaxInFlight(t *testing.T) {
	var current, peak atomic.Int64
	f := fetch.FetcherFunc(func(_ context.Context, _, kind string, _ time.Duration) (types.Payload, error) {
		n := current.Add(1)
		defer current.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return types.Payload{Kind: kind}, nil
	})

	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprint(i)
	}
	stats, err := aggregate.New(f, nil, aggregate.WithMaxInFlight(3)).
		RunCycle(context.Background(), refs(ids...), specs(types.KindStudents, types.KindExams, types.KindSubjects))
	require.NoError(t, err)

	assert.Equal(t, 30, stats.SourceCallCount)
	assert.Zero(t, stats.FailedCallCount)
	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.Positive(t, peak.Load())
}

func TestOverlappingCyclesShareInFlightFetches(t *testing.T) {
	var calls atomic.Int64
	entered := make(chan struct{})
	release := make(chan struct{})
	f := fetch.FetcherFunc(func(_ context.Context, _, kind string, _ time.Duration) (types.Payload, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		return types.Payload{Kind: kind}, nil
	})
	o := aggregate.New(f, nil)

	var wg sync.WaitGroup
	run := func() {
		defer wg.Done()
		_, err := o.RunCycle(context.Background(), refs("1"), specs(types.KindGrades))
		assert.NoError(t, err)
	}
	wg.Add(2)
	go run()
	<-entered
	go run()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
}

func TestCancellingOneCycleKeepsSharedFetchForOthers(t *testing.T) {
	var calls atomic.Int64
	entered := make(chan struct{})
	release := make(chan struct{})
	f := fetch.FetcherFunc(func(ctx context.Context, id, kind string, _ time.Duration) (types.Payload, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		select {
		case <-release:
			return types.Payload{Kind: kind, Records: []types.Record{{ID: id + "-1"}}}, nil
		case <-ctx.Done():
			return types.Payload{}, ctx.Err()
		}
	})
	o := aggregate.New(f, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := o.RunCycle(ctxA, refs("1"), specs(types.KindStudents))
		errA <- err
	}()
	<-entered

	statsB := make(chan *types.AggregatedStats, 1)
	go func() {
		stats, err := o.RunCycle(context.Background(), refs("1"), specs(types.KindStudents))
		assert.NoError(t, err)
		statsB <- stats
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)
	close(release)

	stats := <-statsB
	assert.Zero(t, stats.FailedCallCount)
	assert.False(t, stats.Entities[0].Defaulted)
	assert.Equal(t, []string{types.KindStudents}, stats.Entities[0].SucceededSources)
	assert.Equal(t, 1, stats.TotalStudents)
	assert.Equal(t, int64(1), calls.Load())
}

func TestJoiningCycleKeepsItsOwnTimeout(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	var calls atomic.Int64
	f := fetch.FetcherFunc(func(_ context.Context, _, kind string, _ time.Duration) (types.Payload, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		return types.Payload{Kind: kind}, nil
	})
	o := aggregate.New(f, nil, aggregate.WithFetchTimeout(time.Minute))

	go func() { _, _ = o.RunCycle(context.Background(), refs("1"), specs(types.KindGrades)) }()
	<-entered

	began := time.Now()
	stats, err := o.RunCycle(context.Background(), refs("1"),
		[]aggregate.FetchSpec{{Kind: types.KindGrades, Timeout: 20 * time.Millisecond}})
	require.NoError(t, err)
	assert.Less(t, time.Since(began), 5*time.Second)
	assert.Equal(t, 1, stats.FailuresBySource[types.KindGrades])
	assert.Equal(t, int64(1), calls.Load())
}

func TestCancelledCyclePublishesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var published atomic.Int64
	sink := publish.NewSyncSink(nil, publish.ListenerFunc(func(context.Context, *types.AggregatedStats) error {
		published.Add(1)
		return nil
	}))
	o := aggregate.New(&table{}, nil, aggregate.WithSink(sink))

	stats, err := o.RunCycle(ctx, refs("1", "2"), specs(types.KindGrades))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, stats)
	assert.Nil(t, o.Latest())
	assert.Equal(t, aggregate.StateFailed, o.State())
	assert.Zero(t, published.Load())
}

//
// ================= PUBLICATION =================
//

func TestCycleWritesArtifactsToCache(t *testing.T) {
	clock := fakeClock()
	c, err := cache.New(cache.WithClock(clock))
	require.NoError(t, err)
	defer c.Close()

	f := &table{fail: map[string]bool{"2|grades": true}}
	o := aggregate.New(f, c, aggregate.WithClock(clock), aggregate.WithTTLs(time.Minute, time.Minute, 2*time.Minute))

	stats, err := o.RunCycle(context.Background(), refs("1", "2", "3"), specs(types.KindStudents, types.KindGrades))
	require.NoError(t, err)

	v, ok := c.Get(aggregate.PayloadKey(types.KindGrades, "1"))
	require.True(t, ok)
	assert.Equal(t, 2, v.(types.Payload).Len())

	_, ok = c.Get(aggregate.PayloadKey(types.KindGrades, "2"))
	assert.False(t, ok, "failed payloads are not cached")

	v, ok = c.Get(aggregate.EntityKey("2"))
	require.True(t, ok)
	assert.Equal(t, stats.Entities[1], v.(types.EntityStats))

	v, ok = c.Get(aggregate.SnapshotKey)
	require.True(t, ok)
	assert.Same(t, stats, v)

	byCategory := c.Stats().ByCategory
	assert.Equal(t, 3, byCategory[types.KindStudents].Count)
	assert.Equal(t, 2, byCategory[types.KindGrades].Count)
	assert.Equal(t, 3, byCategory[aggregate.CategoryEntities].Count)
	assert.Equal(t, 1, byCategory[aggregate.CategoryAggregates].Count)

	clock.Advance(time.Minute)
	_, ok = c.Get(aggregate.EntityKey("1"))
	assert.False(t, ok)
	_, ok = c.Get(aggregate.SnapshotKey)
	assert.True(t, ok)
}

func TestPayloadKeysNeverCollideWithArtifacts(t *testing.T) {
	c, err := cache.New()
	require.NoError(t, err)
	defer c.Close()

	o := aggregate.New(&table{}, c)
	stats, err := o.RunCycle(context.Background(), refs("1", "latest"), specs("entity", "stats"))
	require.NoError(t, err)

	v, ok := c.Get(aggregate.PayloadKey("entity", "1"))
	require.True(t, ok)
	assert.IsType(t, types.Payload{}, v)
	v, ok = c.Get(aggregate.PayloadKey("stats", "latest"))
	require.True(t, ok)
	assert.IsType(t, types.Payload{}, v)

	v, ok = c.Get(aggregate.EntityKey("1"))
	require.True(t, ok)
	assert.Equal(t, stats.Entities[0], v)
	v, ok = c.Get(aggregate.SnapshotKey)
	require.True(t, ok)
	assert.Same(t, stats, v)

	byCategory := c.Stats().ByCategory
	assert.Equal(t, 2, byCategory["entity"].Count)
	assert.Equal(t, 2, byCategory["stats"].Count)
	assert.Equal(t, 2, byCategory[aggregate.CategoryEntities].Count)
	assert.Equal(t, 1, byCategory[aggregate.CategoryAggregates].Count)
}

func TestSinkReceivesPublishedSnapshot(t *testing.T) {
	var got *types.AggregatedStats
	sink := publish.NewSyncSink(nil, publish.ListenerFunc(func(_ context.Context, s *types.AggregatedStats) error {
		got = s
		return nil
	}))

	stats, err := aggregate.New(&table{}, nil, aggregate.WithSink(sink)).
		RunCycle(context.Background(), refs("1"), specs(types.KindExams))
	require.NoError(t, err)
	assert.Same(t, stats, got)
}

//
// ================= JOB =================
//

func TestJobRunsCycleOverListedEntities(t *testing.T) {
	o := aggregate.New(&table{}, nil)
	job := aggregate.Job{
		Orchestrator: o,
		Entities:     aggregate.StaticEntities(refs("1", "2")),
		Sources:      specs(types.KindStudents),
	}

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 4, o.Latest().TotalStudents)
}

func TestJobSurfacesListerAndInputErrors(t *testing.T) {
	o := aggregate.New(&table{}, nil)

	listErr := errors.New("directory unavailable")
	job := aggregate.Job{
		Orchestrator: o,
		Entities: aggregate.EntityListerFunc(func(context.Context) ([]aggregate.EntityRef, error) {
			return nil, listErr
		}),
		Sources: specs(types.KindStudents),
	}
	assert.ErrorIs(t, job.Run(context.Background()), listErr)

	job.Entities = aggregate.StaticEntities(refs("1"))
	job.Sources = nil
	var inputErr *types.AggregationInputError
	assert.ErrorAs(t, job.Run(context.Background()), &inputErr)
}

//
// ================= WARM-UP =================
//

func TestWarmWritesEntitiesWithoutPublishing(t *testing.T) {
	c, err := cache.New()
	require.NoError(t, err)
	defer c.Close()

	var published atomic.Int64
	sink := publish.NewSyncSink(nil, publish.ListenerFunc(func(context.Context, *types.AggregatedStats) error {
		published.Add(1)
		return nil
	}))
	f := &table{fail: map[string]bool{"2|grades": true}}
	o := aggregate.New(f, c, aggregate.WithSink(sink))

	res, err := o.Warm(context.Background(), refs("1", "2"), specs(types.KindStudents, types.KindGrades))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Calls)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Entities, 2)
	assert.Equal(t, []string{types.KindGrades}, res.Entities[1].FailedSources)

	_, ok := c.Get(aggregate.PayloadKey(types.KindGrades, "1"))
	assert.True(t, ok)
	v, ok := c.Get(aggregate.EntityKey("2"))
	require.True(t, ok)
	assert.Equal(t, res.Entities[1], v)

	_, ok = c.Get(aggregate.SnapshotKey)
	assert.False(t, ok)
	assert.Nil(t, o.Latest())
	assert.Equal(t, aggregate.StateIdle, o.State())
	assert.Zero(t, published.Load())
}

func TestWarmKeepsPublishedSnapshot(t *testing.T) {
	c, err := cache.New()
	require.NoError(t, err)
	defer c.Close()

	o := aggregate.New(&table{}, c)
	stats, err := o.RunCycle(context.Background(), refs("1", "2"), specs(types.KindStudents))
	require.NoError(t, err)

	_, err = o.WarmPayloads(context.Background(), refs("2"), specs(types.KindStudents))
	require.NoError(t, err)

	assert.Same(t, stats, o.Latest())
	v, ok := c.Get(aggregate.SnapshotKey)
	require.True(t, ok)
	assert.Same(t, stats, v)
}

func TestWarmPayloadsLeavesEntityStats(t *testing.T) {
	c, err := cache.New()
	require.NoError(t, err)
	defer c.Close()

	o := aggregate.New(&table{}, c)
	res, err := o.WarmPayloads(context.Background(), refs("1"), specs(types.KindExams))
	require.NoError(t, err)
	assert.Nil(t, res.Entities)

	_, ok := c.Get(aggregate.PayloadKey(types.KindExams, "1"))
	assert.True(t, ok)
	_, ok = c.Get(aggregate.EntityKey("1"))
	assert.False(t, ok)
}

func TestWarmRejectsEmptyTargets(t *testing.T) {
	o := aggregate.New(&table{}, nil)

	var inputErr *types.AggregationInputError
	_, err := o.Warm(context.Background(), nil, specs(types.KindGrades))
	assert.ErrorAs(t, err, &inputErr)
	_, err = o.WarmPayloads(context.Background(), refs("1"), nil)
	assert.ErrorAs(t, err, &inputErr)
}

func TestJobWarmSelectsEntitiesAndKinds(t *testing.T) {
	c, err := cache.New()
	require.NoError(t, err)
	defer c.Close()

	f := &table{}
	job := aggregate.Job{
		Orchestrator: aggregate.New(f, c),
		Entities:     aggregate.StaticEntities(refs("1", "2", "3")),
		Sources:      specs(types.KindStudents, types.KindGrades),
	}

	require.NoError(t, job.Warm(context.Background(), []string{"2"}, nil))
	assert.Equal(t, int64(2), f.calls.Load())
	_, ok := c.Get(aggregate.EntityKey("2"))
	assert.True(t, ok)
	_, ok = c.Get(aggregate.EntityKey("1"))
	assert.False(t, ok)

	require.NoError(t, job.Warm(context.Background(), nil, []string{types.KindGrades}))
	assert.Equal(t, int64(5), f.calls.Load())
	assert.Equal(t, 3, c.Stats().ByCategory[types.KindGrades].Count)
	assert.Equal(t, 1, c.Stats().ByCategory[aggregate.CategoryEntities].Count)

	var inputErr *types.AggregationInputError
	assert.ErrorAs(t, job.Warm(context.Background(), []string{"9"}, nil), &inputErr)
	assert.ErrorAs(t, job.Warm(context.Background(), nil, []string{types.KindExams}), &inputErr)
	assert.Equal(t, int64(5), f.calls.Load())
}
