package aggregate

import (
	"math"
	"time"

	"github.com/krisalay/analytics-cache/calc"
	"github.com/krisalay/analytics-cache/types"
)

// AttendanceBands classify entity attendance rates in the snapshot.
var AttendanceBands = calc.Band([]calc.Threshold{
	{Min: 90, Name: "excellent"},
	{Min: 75, Name: "good"},
	{Min: 60, Name: "fair"},
}, "poor")

/*
merge folds the fetch results into a snapshot.

It walks entities and sources in input order, so the output depends only on
the results, never on the order in which fetches completed.
*/
func merge(entities []EntityRef, sources []FetchSpec, results []result, defaults Defaults, now time.Time) *types.AggregatedStats {
	stats := &types.AggregatedStats{
		TotalEntities:    len(entities),
		SourceCallCount:  len(results),
		FailuresBySource: make(map[string]int),
		Entities:         make([]types.EntityStats, len(entities)),
		GeneratedAt:      now,
	}

	var (
		statuses    []string
		attendances []float64
		grades      []float64
	)
	for i, ent := range entities {
		es := types.EntityStats{
			EntityID:         ent.ID,
			Name:             ent.Name,
			Counts:           make(map[string]int),
			SucceededSources: []string{},
			FailedSources:    []string{},
		}

		for j, src := range sources {
			r := results[i*len(sources)+j]
			if r.err != nil {
				es.FailedSources = append(es.FailedSources, src.Kind)
				stats.FailedCallCount++
				stats.FailuresBySource[src.Kind]++
				continue
			}
			es.SucceededSources = append(es.SucceededSources, src.Kind)
			es.Counts[src.Kind] = r.payload.Len()

			switch src.Kind {
			case types.KindAttendance:
				for _, rec := range r.payload.Records {
					statuses = append(statuses, rec.Status)
				}
				es.AttendanceRate, es.HasAttendance = attendanceRate(r.payload.Records)
			case types.KindGrades:
				es.AverageGrade, es.HasGrades = gradeAverage(r.payload.Records)
			}
		}

		if len(es.SucceededSources) == 0 {
			es.Defaulted = true
			es.AttendanceRate = calc.Round(defaults.Attendance)
			es.AverageGrade = calc.Round(defaults.Grade)
			stats.DefaultedEntities++
		}
		if es.HasAttendance {
			attendances = append(attendances, es.AttendanceRate)
		}
		if es.HasGrades {
			grades = append(grades, es.AverageGrade)
		}

		stats.TotalStudents += es.Counts[types.KindStudents]
		stats.TotalSubjects += es.Counts[types.KindSubjects]
		stats.TotalExams += es.Counts[types.KindExams]
		stats.TotalAssignments += es.Counts[types.KindAssignments]
		stats.Entities[i] = es
	}

	stats.AverageAttendance = calc.Mean(attendances, defaults.Attendance)
	stats.AverageGrade = calc.Mean(grades, defaults.Grade)
	stats.AttendanceBreakdown = calc.Distribution(statuses, func(s string) string { return s })
	stats.AttendanceBands = calc.Distribution(attendances, AttendanceBands)
	return stats
}

// attendanceRate counts present and late as attended. Excused records are
// left out of the denominator.
func attendanceRate(records []types.Record) (float64, bool) {
	attended, counted := 0, 0
	for _, rec := range records {
		switch rec.Status {
		case types.AttendancePresent, types.AttendanceLate:
			attended++
			counted++
		case types.AttendanceExcused:
		default:
			counted++
		}
	}
	if counted == 0 {
		return 0, false
	}
	return calc.Rate(attended, counted), true
}

// gradeAverage weights each mark by its Weight; an unset weight counts as 1.
func gradeAverage(records []types.Record) (float64, bool) {
	items := make([]calc.Weighted, 0, len(records))
	for _, rec := range records {
		w := rec.Weight
		if w == 0 {
			w = 1
		}
		items = append(items, calc.Weighted{Value: rec.Value, Weight: w})
	}
	if !anyUsable(items) {
		return 0, false
	}
	return calc.WeightedAverage(items, 0), true
}

func anyUsable(items []calc.Weighted) bool {
	for _, it := range items {
		if it.Weight > 0 && !math.IsNaN(it.Value) && !math.IsInf(it.Value, 0) && !math.IsInf(it.Weight, 0) {
			return true
		}
	}
	return false
}
