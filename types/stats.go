package types

import (
	"time"

	"github.com/krisalay/analytics-cache/calc"
)

// EntityStats is the merged view of one entity for one cycle.
type EntityStats struct {
	EntityID         string         `json:"entityId"`
	Name             string         `json:"name"`
	Counts           map[string]int `json:"counts"`
	AttendanceRate   float64        `json:"attendanceRate"`
	AverageGrade     float64        `json:"averageGrade"`
	HasAttendance    bool           `json:"hasAttendance"`
	HasGrades        bool           `json:"hasGrades"`
	Defaulted        bool           `json:"defaulted"`
	SucceededSources []string       `json:"succeededSources"`
	FailedSources    []string       `json:"failedSources"`
}

// AggregatedStats is the snapshot produced by one aggregation cycle.
// It is never modified after it has been published.
type AggregatedStats struct {
	TotalEntities    int `json:"totalEntities"`
	TotalStudents    int `json:"totalStudents"`
	TotalSubjects    int `json:"totalSubjects"`
	TotalExams       int `json:"totalExams"`
	TotalAssignments int `json:"totalAssignments"`

	AverageAttendance   float64       `json:"averageAttendance"`
	AverageGrade        float64       `json:"averageGrade"`
	AttendanceBreakdown []calc.Bucket `json:"attendanceBreakdown"`
	AttendanceBands     []calc.Bucket `json:"attendanceBands"`

	SourceCallCount   int            `json:"sourceCallCount"`
	FailedCallCount   int            `json:"failedCallCount"`
	DefaultedEntities int            `json:"defaultedEntities"`
	FailuresBySource  map[string]int `json:"failuresBySource"`

	Entities    []EntityStats `json:"entities"`
	GeneratedAt time.Time     `json:"generatedAt"`
}
