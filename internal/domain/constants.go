package domain

const (
	RoleClient   = "CLIENT"
	RoleTutor    = "TUTOR"
	RoleAdmin    = "ADMIN"
	RolePlatform = "PLATFORM"
	// RoleSystem is never persisted; it identifies sweeps and webhooks acting on a booking.
	RoleSystem = "SYSTEM"
)

// BookingStatus is the authoritative lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending          BookingStatus = "pending"
	BookingAwaitingApproval BookingStatus = "awaiting_approval"
	BookingConfirmed        BookingStatus = "confirmed"
	BookingCompleted        BookingStatus = "completed"
	BookingCancelled        BookingStatus = "cancelled"
	BookingDisputed         BookingStatus = "disputed"
	BookingRescheduling     BookingStatus = "rescheduling"
)

// PaymentStatus is the escrow state of a booking, independent of BookingStatus.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentHeld     PaymentStatus = "held"
	PaymentReleased PaymentStatus = "released"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentDisputed PaymentStatus = "disputed"
	PaymentPartial  PaymentStatus = "partial"
)

// Settled reports whether the escrow has been fully resolved.
func (s PaymentStatus) Settled() bool {
	return s == PaymentReleased || s == PaymentRefunded || s == PaymentPartial
}

type Event string

const (
	EventPay               Event = "pay"
	EventApprove           Event = "approve"
	EventConfirm           Event = "confirm"
	EventCancel            Event = "cancel"
	EventSessionStarted    Event = "mark_session_started"
	EventSessionEnded      Event = "mark_session_ended"
	EventRaiseDispute      Event = "raise_dispute"
	EventResolveDispute    Event = "resolve_dispute"
	EventRequestReschedule Event = "request_reschedule"
	EventApplyReschedule   Event = "apply_reschedule"
	EventRejectReschedule  Event = "reject_reschedule"
	EventExpireReschedule  Event = "expire_reschedule"
)

// Ledger entry types. Credit-type entries add to a wallet balance, debit-type entries subtract.
const (
	EntryCredit         = "credit"
	EntryDebit          = "debit"
	EntryBookingPayment = "booking_payment"
	EntryPayout         = "payout"
	EntryRefund         = "refund"
	EntryCommission     = "commission"
)

// IsCreditType reports whether an entry of type t increases the wallet balance.
func IsCreditType(t string) bool {
	switch t {
	case EntryCredit, EntryRefund, EntryCommission:
		return true
	}
	return false
}

const (
	EntryPending   = "pending"
	EntryCompleted = "completed"
	EntryFailed    = "failed"
	EntryCancelled = "cancelled"
)

// GatewayInternal marks ledger entries produced by the engine itself rather than an external gateway.
const GatewayInternal = "internal"

const (
	PaymentSourceWallet = "wallet"
)

const (
	PayoutPending    = "pending"
	PayoutApproved   = "approved"
	PayoutProcessing = "processing"
	PayoutCompleted  = "completed"
	PayoutFailed     = "failed"
	PayoutRejected   = "rejected"
	PayoutCancelled  = "cancelled"
)

const (
	PayoutMethodMpesa  = "mpesa"
	PayoutMethodPayPal = "paypal"
	PayoutMethodBank   = "bank"
)

const (
	RescheduleStatusPending  = "pending"
	RescheduleStatusApproved = "approved"
	RescheduleStatusRejected = "rejected"
	RescheduleStatusExpired  = "expired"
)

const (
	NoShowNone    = ""
	NoShowStudent = "student"
	NoShowTutor   = "tutor"
	NoShowBoth    = "both"
)

const (
	DisputeReleaseFull = "release_full"
	DisputeRefundFull  = "refund_full"
	DisputeSplit       = "split"
)

const (
	AttendanceSourceWebhook   = "webhook"
	AttendanceSourceClassroom = "classroom"
)

// Setting keys stored in system_settings.
const (
	SettingCommissionRate = "commission_rate"
	SettingPayoutMinimum  = "payout_minimum_cents"
)
