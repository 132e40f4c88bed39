package model

import "testing"

func TestAttendanceRate(t *testing.T) {
	if rate := (AttendanceSummary{}).Rate(); rate != 0 {
		t.Fatalf("expected 0 for empty summary, got %v", rate)
	}
	s := AttendanceSummary{Present: 6, Late: 2, Absent: 1, Excused: 1, Total: 10}
	if rate := s.Rate(); rate != 0.8 {
		t.Fatalf("expected 0.8, got %v", rate)
	}
}
