package fetch

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/krisalay/analytics-cache/types"
)

// ErrSimulatedFailure is returned by Simulator for the calls it fails.
var ErrSimulatedFailure = errors.New("simulated source failure")

/*
Simulator fabricates school data for demos and benchmarks.

Every (entity, source) pair always yields the same records, so repeated
cycles are comparable. Latency and failures are random per call.
*/
type Simulator struct {
	// Records is the number of records per payload.
	Records int

	// MaxLatency bounds the random delay of every call. 0 answers at once.
	MaxLatency time.Duration

	// FailureRate is the probability (0..1) that a call fails.
	FailureRate float64
}

var attendanceStatuses = []string{
	types.AttendancePresent,
	types.AttendancePresent,
	types.AttendancePresent,
	types.AttendanceLate,
	types.AttendanceAbsent,
	types.AttendanceExcused,
}

func (s Simulator) Fetch(ctx context.Context, entityID, sourceKind string, timeout time.Duration) (types.Payload, error) {
	if s.MaxLatency > 0 {
		delay := rand.N(s.MaxLatency)
		if timeout > 0 && delay > timeout {
			delay = timeout
		}
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return types.Payload{}, ctx.Err()
		case <-t.C:
		}
	}
	if s.FailureRate > 0 && rand.Float64() < s.FailureRate {
		return types.Payload{}, fmt.Errorf("%s/%s: %w", entityID, sourceKind, ErrSimulatedFailure)
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(entityID + "|" + sourceKind))
	rng := rand.New(rand.NewPCG(h.Sum64(), 0))

	p := types.Payload{Kind: sourceKind, Records: make([]types.Record, s.Records)}
	for i := range p.Records {
		rec := types.Record{ID: fmt.Sprintf("%s-%s-%d", entityID, sourceKind, i)}
		switch sourceKind {
		case types.KindAttendance:
			rec.Status = attendanceStatuses[rng.IntN(len(attendanceStatuses))]
		case types.KindGrades:
			rec.Value = float64(40 + rng.IntN(61))
			rec.Weight = float64(1 + rng.IntN(3))
		}
		p.Records[i] = rec
	}
	return p, nil
}
