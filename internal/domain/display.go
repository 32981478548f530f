package domain

import "time"

// Display statuses are a read-side view only. They are never persisted and
// never fed back into NextStatus.
const (
	DisplayAwaitingPayment    = "awaiting_payment"
	DisplayAwaitingApproval   = "awaiting_approval"
	DisplayUpcoming           = "upcoming"
	DisplayInProgress         = "in_progress"
	DisplayAwaitingSettlement = "awaiting_settlement"
	DisplayMissed             = "missed"
	DisplayRescheduling       = "rescheduling"
	DisplayUnderReview        = "under_review"
	DisplayCompleted          = "completed"
	DisplayRefunded           = "refunded"
	DisplayCancelled          = "cancelled"
)

// SessionView is the subset of a booking the display status depends on.
type SessionView struct {
	Status         BookingStatus
	PaymentStatus  PaymentStatus
	StartTime      time.Time
	EndTime        time.Time
	SessionStarted bool
}

// DisplayStatus derives what a client should be shown for v at now.
func DisplayStatus(v SessionView, now time.Time) string {
	switch v.Status {
	case BookingPending:
		return DisplayAwaitingPayment
	case BookingAwaitingApproval:
		return DisplayAwaitingApproval
	case BookingRescheduling:
		return DisplayRescheduling
	case BookingDisputed:
		return DisplayUnderReview
	case BookingCancelled:
		return DisplayCancelled
	case BookingCompleted:
		if v.PaymentStatus == PaymentRefunded {
			return DisplayRefunded
		}
		return DisplayCompleted
	case BookingConfirmed:
		switch {
		case now.Before(v.StartTime):
			return DisplayUpcoming
		case now.Before(v.EndTime):
			return DisplayInProgress
		case v.SessionStarted:
			return DisplayAwaitingSettlement
		default:
			return DisplayMissed
		}
	}
	return string(v.Status)
}
