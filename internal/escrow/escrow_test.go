package escrow

import (
	"errors"
	"testing"
	"time"

	"tutorly/internal/domain"

	"github.com/shopspring/decimal"
)

var fifteen = decimal.RequireFromString("15.00")

func TestCommissionRoundsHalfUp(t *testing.T) {
	cases := []struct {
		amount int64
		rate   string
		want   int64
	}{
		{10000, "15.00", 1500},
		{1050, "15.00", 158}, // 157.5
		{1049, "15.00", 157}, // 157.35
		{333, "12.50", 42},   // 41.625
		{5000, "0", 0},
		{100, "100", 100},
	}
	for _, c := range cases {
		got := Commission(c.amount, decimal.RequireFromString(c.rate))
		if got != c.want {
			t.Fatalf("Commission(%d, %s): got %d want %d", c.amount, c.rate, got, c.want)
		}
	}
}

func TestValidateRate(t *testing.T) {
	for _, ok := range []string{"0", "15", "15.25", "100.00"} {
		if err := ValidateRate(decimal.RequireFromString(ok)); err != nil {
			t.Fatalf("ValidateRate(%s): %v", ok, err)
		}
	}
	for _, bad := range []string{"-1", "100.01", "15.125"} {
		if err := ValidateRate(decimal.RequireFromString(bad)); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("ValidateRate(%s): expected ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestSplitHalfAndHalf(t *testing.T) {
	plan := Split(10000, fifteen, decimal.RequireFromString("0.5"), "resolved")
	if plan.ReleaseCents != 5000 || plan.RefundCents != 5000 {
		t.Fatalf("split amounts: %s", plan)
	}
	if plan.CommissionCents != 750 || plan.TutorNetCents() != 4250 {
		t.Fatalf("split commission: %s", plan)
	}
}

func TestSplitOddTotalNeverExceedsPrice(t *testing.T) {
	plan := Split(10001, fifteen, decimal.RequireFromString("0.5"), "resolved")
	if plan.ReleaseCents != 5001 {
		t.Fatalf("expected half-up release of 5001, got %d", plan.ReleaseCents)
	}
	if plan.ReleaseCents+plan.RefundCents != 10001 {
		t.Fatalf("release + refund must equal total: %s", plan)
	}
}

func TestParseRatio(t *testing.T) {
	if _, err := ParseRatio("0.25"); err != nil {
		t.Fatalf("ParseRatio: %v", err)
	}
	for _, bad := range []string{"1.5", "-0.1", "half"} {
		if _, err := ParseRatio(bad); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("ParseRatio(%q): expected ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestAttendedSecondsMergesRejoins(t *testing.T) {
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	intervals := []Interval{
		{start.Add(-30 * time.Minute), start.Add(10 * time.Minute)}, // clipped to start
		{start.Add(5 * time.Minute), start.Add(20 * time.Minute)},   // overlaps the first
		{start.Add(40 * time.Minute), end.Add(10 * time.Minute)},    // clipped to end
	}
	got := AttendedSeconds(intervals, start, end)
	want := int64((20 + 20) * 60)
	if got != want {
		t.Fatalf("got %d want %d", got, want)
	}
}

func TestAttendedSecondsCappedAtSession(t *testing.T) {
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	got := AttendedSeconds([]Interval{{start.Add(-15 * time.Minute), end}}, start, end)
	if got != 3600 {
		t.Fatalf("got %d want 3600", got)
	}
}

func TestAttendedSecondsIgnoresTimeBeforeStart(t *testing.T) {
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	p := Policy{MinAttendanceRatio: 0.5}

	// waits fifteen minutes in the room, then leaves fifteen minutes in
	got := AttendedSeconds([]Interval{{start.Add(-15 * time.Minute), start.Add(15 * time.Minute)}}, start, end)
	if got != 15*60 {
		t.Fatalf("got %d want %d", got, 15*60)
	}
	if p.Present(got, end.Sub(start)) {
		t.Fatalf("fifteen minutes of an hour counted as present")
	}

	before := AttendedSeconds([]Interval{{start.Add(-40 * time.Minute), start}}, start, end)
	if before != 0 {
		t.Fatalf("time entirely before start counted: %d", before)
	}
}

func TestSettleOutcomes(t *testing.T) {
	p := Policy{MinAttendanceRatio: 0.5, ReleaseOnStudentNoShow: true}
	session := time.Hour
	full := int64(3600)

	both := p.Settle(10000, fifteen, session, Attendance{TutorSeconds: full, StudentSeconds: full})
	if both.ReleaseCents != 10000 || both.CommissionCents != 1500 || both.NoShow != "" {
		t.Fatalf("both attended: %s", both)
	}

	studentAbsent := p.Settle(10000, fifteen, session, Attendance{TutorSeconds: full})
	if studentAbsent.ReleaseCents != 10000 || studentAbsent.NoShow != domain.NoShowStudent {
		t.Fatalf("student no-show: %s", studentAbsent)
	}

	p.ReleaseOnStudentNoShow = false
	strict := p.Settle(10000, fifteen, session, Attendance{TutorSeconds: full})
	if strict.RefundCents != 10000 || strict.ReleaseCents != 0 {
		t.Fatalf("student no-show with release disabled: %s", strict)
	}

	tutorAbsent := p.Settle(10000, fifteen, session, Attendance{StudentSeconds: full})
	if tutorAbsent.RefundCents != 10000 || tutorAbsent.CommissionCents != 0 || tutorAbsent.NoShow != domain.NoShowTutor {
		t.Fatalf("tutor no-show: %s", tutorAbsent)
	}

	nobody := p.Settle(10000, fifteen, session, Attendance{})
	if nobody.RefundCents != 10000 || nobody.NoShow != domain.NoShowBoth {
		t.Fatalf("nobody: %s", nobody)
	}

	short := p.Settle(10000, fifteen, session, Attendance{TutorSeconds: full, StudentSeconds: 1799})
	if short.NoShow != domain.NoShowStudent {
		t.Fatalf("student below threshold should count as absent: %s", short)
	}
}
