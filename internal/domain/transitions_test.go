package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNextStatusLegalTransitions(t *testing.T) {
	cases := []struct {
		from  BookingStatus
		event Event
		want  BookingStatus
		pick  BookingStatus
	}{
		{BookingPending, EventPay, BookingConfirmed, ""},
		{BookingPending, EventPay, BookingAwaitingApproval, BookingAwaitingApproval},
		{BookingAwaitingApproval, EventApprove, BookingConfirmed, ""},
		{BookingAwaitingApproval, EventConfirm, BookingConfirmed, ""},
		{BookingConfirmed, EventCancel, BookingCancelled, ""},
		{BookingConfirmed, EventSessionStarted, BookingConfirmed, ""},
		{BookingConfirmed, EventSessionEnded, BookingCompleted, ""},
		{BookingDisputed, EventSessionEnded, BookingDisputed, ""},
		{BookingCompleted, EventRaiseDispute, BookingDisputed, ""},
		{BookingDisputed, EventResolveDispute, BookingCancelled, BookingCancelled},
		{BookingConfirmed, EventRequestReschedule, BookingRescheduling, ""},
		{BookingRescheduling, EventApplyReschedule, BookingConfirmed, ""},
		{BookingRescheduling, EventExpireReschedule, BookingConfirmed, ""},
	}
	for _, c := range cases {
		got, err := NextStatus(c.from, c.event, c.pick)
		if err != nil {
			t.Fatalf("%s --%s-->: %v", c.from, c.event, err)
		}
		if got != c.want {
			t.Fatalf("%s --%s-->: got %s want %s", c.from, c.event, got, c.want)
		}
	}
}

func TestNextStatusRejectsIllegalTransitions(t *testing.T) {
	cases := []struct {
		from  BookingStatus
		event Event
	}{
		{BookingCompleted, EventCancel},
		{BookingCancelled, EventPay},
		{BookingPending, EventSessionEnded},
		{BookingAwaitingApproval, EventRaiseDispute},
		{BookingRescheduling, EventSessionStarted},
		{BookingConfirmed, EventApplyReschedule},
		{BookingDisputed, EventCancel},
	}
	for _, c := range cases {
		_, err := NextStatus(c.from, c.event, "")
		if !errors.Is(err, ErrInvalidStateTransition) {
			t.Fatalf("%s --%s-->: expected ErrInvalidStateTransition, got %v", c.from, c.event, err)
		}
		var te *TransitionError
		if !errors.As(err, &te) || te.From != c.from {
			t.Fatalf("%s --%s-->: expected TransitionError carrying current status, got %v", c.from, c.event, err)
		}
	}
}

func TestNextStatusRejectsUnlistedTarget(t *testing.T) {
	if _, err := NextStatus(BookingDisputed, EventResolveDispute, BookingPending); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected rejection of disputed -> pending, got %v", err)
	}
}

func TestTerminalStatusesNeverReturnToPending(t *testing.T) {
	for _, from := range []BookingStatus{BookingCancelled, BookingCompleted} {
		for _, ev := range eventOrder {
			to, err := NextStatus(from, ev, "")
			if err != nil {
				continue
			}
			if to == BookingPending || to == BookingAwaitingApproval {
				t.Fatalf("%s --%s--> %s must not exist", from, ev, to)
			}
		}
	}
}

func TestAllowedEventsForConfirmed(t *testing.T) {
	got := AllowedEvents(BookingConfirmed)
	want := map[Event]bool{
		EventCancel: true, EventSessionStarted: true, EventSessionEnded: true,
		EventRaiseDispute: true, EventRequestReschedule: true,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for _, ev := range got {
		if !want[ev] {
			t.Fatalf("unexpected event %s", ev)
		}
	}
}

func TestDisplayStatus(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	confirmed := SessionView{Status: BookingConfirmed, PaymentStatus: PaymentHeld, StartTime: start, EndTime: end}

	if got := DisplayStatus(confirmed, start.Add(-time.Minute)); got != DisplayUpcoming {
		t.Fatalf("before start: got %s", got)
	}
	if got := DisplayStatus(confirmed, start.Add(30*time.Minute)); got != DisplayInProgress {
		t.Fatalf("during: got %s", got)
	}
	if got := DisplayStatus(confirmed, end.Add(time.Minute)); got != DisplayMissed {
		t.Fatalf("after end, never started: got %s", got)
	}
	confirmed.SessionStarted = true
	if got := DisplayStatus(confirmed, end.Add(time.Minute)); got != DisplayAwaitingSettlement {
		t.Fatalf("after end, started: got %s", got)
	}
	refunded := SessionView{Status: BookingCompleted, PaymentStatus: PaymentRefunded}
	if got := DisplayStatus(refunded, end); got != DisplayRefunded {
		t.Fatalf("refunded: got %s", got)
	}
	if got := DisplayStatus(SessionView{Status: BookingDisputed}, end); got != DisplayUnderReview {
		t.Fatalf("disputed: got %s", got)
	}
}

func TestParseRef(t *testing.T) {
	r, err := ParseRef(BookingRef(42).String())
	if err != nil {
		t.Fatalf("ParseRef: %v", err)
	}
	if r != BookingRef(42) {
		t.Fatalf("got %+v", r)
	}
	if _, err := ParseRef("invoice:1"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown kind, got %v", err)
	}
	if got := IdempotencyKey(BookingRef(7), "refund", "cancel"); got != "booking:7:refund:cancel" {
		t.Fatalf("IdempotencyKey: got %s", got)
	}
}
