package domain

type transitionKey struct {
	from  BookingStatus
	event Event
}

// transitions lists every legal (status, event) pair and the statuses it may lead to.
// When more than one target exists the caller picks one; the first is the default.
var transitions = map[transitionKey][]BookingStatus{
	{BookingPending, EventPay}:                   {BookingConfirmed, BookingAwaitingApproval},
	{BookingAwaitingApproval, EventApprove}:      {BookingConfirmed},
	{BookingAwaitingApproval, EventConfirm}:      {BookingConfirmed},
	{BookingPending, EventCancel}:                {BookingCancelled},
	{BookingAwaitingApproval, EventCancel}:       {BookingCancelled},
	{BookingConfirmed, EventCancel}:              {BookingCancelled},
	{BookingRescheduling, EventCancel}:           {BookingCancelled},
	{BookingConfirmed, EventSessionStarted}:      {BookingConfirmed},
	{BookingConfirmed, EventSessionEnded}:        {BookingCompleted},
	{BookingDisputed, EventSessionEnded}:         {BookingDisputed},
	{BookingConfirmed, EventRaiseDispute}:        {BookingDisputed},
	{BookingCompleted, EventRaiseDispute}:        {BookingDisputed},
	{BookingDisputed, EventResolveDispute}:       {BookingCompleted, BookingCancelled},
	{BookingConfirmed, EventRequestReschedule}:   {BookingRescheduling},
	{BookingRescheduling, EventApplyReschedule}:  {BookingConfirmed},
	{BookingRescheduling, EventRejectReschedule}: {BookingConfirmed},
	{BookingRescheduling, EventExpireReschedule}: {BookingConfirmed},
}

// NextStatus validates event against from and returns the resulting status.
// want selects among multiple targets; the zero value picks the default.
func NextStatus(from BookingStatus, event Event, want BookingStatus) (BookingStatus, error) {
	targets, ok := transitions[transitionKey{from, event}]
	if !ok {
		return from, &TransitionError{From: from, Event: event}
	}
	if want == "" {
		return targets[0], nil
	}
	for _, t := range targets {
		if t == want {
			return t, nil
		}
	}
	return from, &TransitionError{From: from, Event: event}
}

// CanApply reports whether event is legal from status from.
func CanApply(from BookingStatus, event Event) bool {
	_, ok := transitions[transitionKey{from, event}]
	return ok
}

// AllowedEvents returns the events accepted in status from, for error responses.
func AllowedEvents(from BookingStatus) []Event {
	var out []Event
	for _, ev := range eventOrder {
		if CanApply(from, ev) {
			out = append(out, ev)
		}
	}
	return out
}

var eventOrder = []Event{
	EventPay, EventApprove, EventConfirm, EventCancel,
	EventSessionStarted, EventSessionEnded,
	EventRaiseDispute, EventResolveDispute,
	EventRequestReschedule, EventApplyReschedule, EventRejectReschedule, EventExpireReschedule,
}
