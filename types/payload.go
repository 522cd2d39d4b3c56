package types

// Source kinds understood by the merge step. Any other kind only contributes
// a record count.
const (
	KindStudents    = "students"
	KindSubjects    = "subjects"
	KindExams       = "exams"
	KindAssignments = "assignments"
	KindAttendance  = "attendance"
	KindGrades      = "grades"
)

// Attendance record statuses. Present and late both count as attended.
const (
	AttendancePresent = "present"
	AttendanceLate    = "late"
	AttendanceAbsent  = "absent"
	AttendanceExcused = "excused"
)

// Record is one row returned by a source.
type Record struct {
	ID     string  `json:"id"`
	Status string  `json:"status,omitempty"`
	Value  float64 `json:"value,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

// Payload is the result of a single successful fetch.
type Payload struct {
	Kind    string   `json:"kind"`
	Records []Record `json:"records"`
}

// Len returns the number of records.
func (p Payload) Len() int { return len(p.Records) }
