package escrow

import (
	"math"
	"sort"
	"time"

	"tutorly/internal/domain"

	"github.com/shopspring/decimal"
)

// Interval is one join/leave span of a party.
type Interval struct {
	Start time.Time
	End   time.Time
}

// AttendedSeconds totals the union of intervals inside [start, end]. Time
// spent waiting before start is not attendance. Overlapping rejoins are
// counted once.
func AttendedSeconds(intervals []Interval, start, end time.Time) int64 {
	clipped := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		s, e := iv.Start, iv.End
		if s.Before(start) {
			s = start
		}
		if e.After(end) {
			e = end
		}
		if e.After(s) {
			clipped = append(clipped, Interval{Start: s, End: e})
		}
	}
	sort.Slice(clipped, func(i, j int) bool { return clipped[i].Start.Before(clipped[j].Start) })

	var total time.Duration
	var cur Interval
	for i, iv := range clipped {
		if i == 0 {
			cur = iv
			continue
		}
		if !iv.Start.After(cur.End) {
			if iv.End.After(cur.End) {
				cur.End = iv.End
			}
			continue
		}
		total += cur.End.Sub(cur.Start)
		cur = iv
	}
	if len(clipped) > 0 {
		total += cur.End.Sub(cur.Start)
	}
	return int64(total / time.Second)
}

// Policy is the attendance-based settlement rule set.
type Policy struct {
	MinAttendanceRatio     float64
	ReleaseOnStudentNoShow bool
}

// Attendance is the measured presence of both parties.
type Attendance struct {
	TutorSeconds   int64
	StudentSeconds int64
}

// Present reports whether attended seconds meet the policy threshold for a session of length session.
func (p Policy) Present(seconds int64, session time.Duration) bool {
	if seconds <= 0 {
		return false
	}
	threshold := int64(math.Ceil(p.MinAttendanceRatio * session.Seconds()))
	return seconds >= threshold
}

// Settle decides the outcome of a session that has ended.
func (p Policy) Settle(totalCents int64, ratePercent decimal.Decimal, session time.Duration, a Attendance) Plan {
	tutor := p.Present(a.TutorSeconds, session)
	student := p.Present(a.StudentSeconds, session)
	switch {
	case tutor && student:
		return ReleaseAll(totalCents, ratePercent, "session delivered")
	case tutor:
		var plan Plan
		if p.ReleaseOnStudentNoShow {
			plan = ReleaseAll(totalCents, ratePercent, "student no-show")
		} else {
			plan = RefundAll(totalCents, "student no-show")
		}
		plan.NoShow = domain.NoShowStudent
		return plan
	case student:
		plan := RefundAll(totalCents, "tutor no-show")
		plan.NoShow = domain.NoShowTutor
		return plan
	default:
		plan := RefundAll(totalCents, "nobody attended")
		plan.NoShow = domain.NoShowBoth
		return plan
	}
}
