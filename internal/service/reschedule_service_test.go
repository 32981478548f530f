package service

import (
	"errors"
	"testing"
	"time"

	"tutorly/internal/domain"
)

func TestRescheduleApproved(t *testing.T) {
	f := newFixture(t)
	b := f.bookPaid(10000)
	newStart := b.StartTime.Add(24 * time.Hour)

	req, err := f.eng.Reschedules.Request(f.ctx, b.ID, f.actor(f.student), RescheduleInput{
		StartTime: newStart, EndTime: newStart.Add(time.Hour), Reason: "exam",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !req.ExpiresAt.Equal(b.StartTime) {
		t.Fatalf("expiry %s should be capped at the original start %s", req.ExpiresAt, b.StartTime)
	}
	if got := f.booking(b.ID); got.Status != domain.BookingRescheduling {
		t.Fatalf("status %s", got.Status)
	}

	if _, err := f.eng.Reschedules.Request(f.ctx, b.ID, f.actor(f.tutor), RescheduleInput{
		StartTime: newStart, EndTime: newStart.Add(time.Hour),
	}); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("second request: %v", err)
	}
	if _, err := f.eng.Reschedules.Approve(f.ctx, req.ID, f.actor(f.student)); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("requester approving own request: %v", err)
	}

	out, err := f.eng.Reschedules.Approve(f.ctx, req.ID, f.actor(f.tutor))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != domain.RescheduleStatusApproved {
		t.Fatalf("request status %s", out.Status)
	}
	got := f.booking(b.ID)
	if got.Status != domain.BookingConfirmed || !got.StartTime.Equal(newStart) || got.PaymentStatus != domain.PaymentHeld {
		t.Fatalf("booking %s %s %s", got.Status, got.StartTime, got.PaymentStatus)
	}
	f.assertLedgerConsistent()
}

func TestRescheduleRejectedKeepsWindow(t *testing.T) {
	f := newFixture(t)
	b := f.bookPaid(10000)
	newStart := b.StartTime.Add(24 * time.Hour)
	req, err := f.eng.Reschedules.Request(f.ctx, b.ID, f.actor(f.tutor), RescheduleInput{StartTime: newStart, EndTime: newStart.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.eng.Reschedules.Reject(f.ctx, req.ID, f.actor(f.student)); err != nil {
		t.Fatal(err)
	}
	got := f.booking(b.ID)
	if got.Status != domain.BookingConfirmed || !got.StartTime.Equal(b.StartTime) {
		t.Fatalf("booking %s %s", got.Status, got.StartTime)
	}
	// a new request is allowed once the old one is closed
	if _, err := f.eng.Reschedules.Request(f.ctx, b.ID, f.actor(f.tutor), RescheduleInput{StartTime: newStart, EndTime: newStart.Add(time.Hour)}); err != nil {
		t.Fatalf("follow-up request: %v", err)
	}
}

func TestRescheduleIntoBusySlot(t *testing.T) {
	f := newFixture(t)
	b := f.bookPaid(10000)
	other := f.bookAt(t0.Add(4*time.Hour), 5000)

	_, err := f.eng.Reschedules.Request(f.ctx, b.ID, f.actor(f.student), RescheduleInput{
		StartTime: other.StartTime.Add(30 * time.Minute), EndTime: other.EndTime.Add(30 * time.Minute),
	})
	if !errors.Is(err, domain.ErrSlotUnavailable) {
		t.Fatalf("busy slot: %v", err)
	}
	if got := f.booking(b.ID); got.Status != domain.BookingConfirmed {
		t.Fatalf("status %s", got.Status)
	}
}

func TestRescheduleExpiresThroughSweep(t *testing.T) {
	f := newFixture(t)
	b := f.bookPaid(10000)
	newStart := b.StartTime.Add(24 * time.Hour)
	req, err := f.eng.Reschedules.Request(f.ctx, b.ID, f.actor(f.student), RescheduleInput{StartTime: newStart, EndTime: newStart.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}

	f.clock.Set(req.ExpiresAt)
	report := f.eng.Sweeps.Run(f.ctx)
	if report.ExpiredReschedules != 1 {
		t.Fatalf("report %+v", report)
	}
	got := f.booking(b.ID)
	if got.Status != domain.BookingConfirmed || !got.StartTime.Equal(b.StartTime) {
		t.Fatalf("booking %s %s", got.Status, got.StartTime)
	}
	list, err := f.eng.Reschedules.ListForBooking(f.ctx, b.ID, f.actor(f.student))
	if err != nil || len(list) != 1 || list[0].Status != domain.RescheduleStatusExpired {
		t.Fatalf("requests: %+v %v", list, err)
	}
}

func TestApproveAfterExpiryExpires(t *testing.T) {
	f := newFixture(t)
	b := f.bookPaid(10000)
	newStart := b.StartTime.Add(24 * time.Hour)
	req, err := f.eng.Reschedules.Request(f.ctx, b.ID, f.actor(f.student), RescheduleInput{StartTime: newStart, EndTime: newStart.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	f.clock.Set(req.ExpiresAt.Add(time.Second))
	out, err := f.eng.Reschedules.Approve(f.ctx, req.ID, f.actor(f.tutor))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != domain.RescheduleStatusExpired {
		t.Fatalf("request status %s", out.Status)
	}
	if got := f.booking(b.ID); !got.StartTime.Equal(b.StartTime) || got.Status != domain.BookingConfirmed {
		t.Fatalf("booking %s %s", got.Status, got.StartTime)
	}
}

func TestCancelWhileReschedulingClosesRequest(t *testing.T) {
	f := newFixture(t)
	b := f.bookPaid(10000)
	newStart := b.StartTime.Add(24 * time.Hour)
	req, err := f.eng.Reschedules.Request(f.ctx, b.ID, f.actor(f.tutor), RescheduleInput{StartTime: newStart, EndTime: newStart.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	out, err := f.eng.Bookings.Transition(f.ctx, b.ID, domain.EventCancel, f.actor(f.student), Payload{Reason: "found another tutor"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != domain.BookingCancelled || out.PaymentStatus != domain.PaymentRefunded {
		t.Fatalf("booking %s %s", out.Status, out.PaymentStatus)
	}
	closed, err := f.store.Reschedules.GetByID(req.ID)
	if err != nil || closed.Status != domain.RescheduleStatusRejected {
		t.Fatalf("request: %+v %v", closed, err)
	}
	if _, err := f.eng.Reschedules.Approve(f.ctx, req.ID, f.actor(f.student)); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("approve closed request: %v", err)
	}
}
