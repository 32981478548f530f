package service

import (
	"errors"
	"testing"
	"time"

	"tutorly/internal/domain"
	"tutorly/internal/models"
)

func TestAdjustPostsOffsettingEntries(t *testing.T) {
	f := newFixture(t)
	f.fund(f.student, 3000)
	e, err := f.eng.Admin.Adjust(f.ctx, f.actor(f.admin), AdjustmentInput{UserID: f.student.ID, AmountCents: -1000, Reason: "chargeback"})
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != domain.EntryDebit || e.RefKind != domain.RefAdjustment {
		t.Fatalf("entry %+v", e)
	}
	if f.balance(f.student) != 2000 {
		t.Fatalf("balance %d", f.balance(f.student))
	}
	if _, err := f.eng.Admin.Adjust(f.ctx, f.actor(f.admin), AdjustmentInput{UserID: f.student.ID, AmountCents: -5000, Reason: "x"}); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("overdraw: %v", err)
	}
	if _, err := f.eng.Admin.Adjust(f.ctx, f.actor(f.tutor), AdjustmentInput{UserID: f.tutor.ID, AmountCents: 100, Reason: "x"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("tutor adjust: %v", err)
	}

	target, err := f.store.ResolveRef(e.Ref())
	if err != nil {
		t.Fatal(err)
	}
	if a, ok := target.(*models.AuditLog); !ok || a.Action != "ledger.adjusted" {
		t.Fatalf("ref resolved to %#v", target)
	}

	_, derived, err := f.eng.Admin.Wallet(f.ctx, f.student.ID)
	if err != nil || derived != 2000 {
		t.Fatalf("derived balance %d %v", derived, err)
	}
	f.assertLedgerConsistent()
}

func TestDashboardCountsHeldEscrow(t *testing.T) {
	f := newFixture(t)
	f.bookPaid(10000)
	f.clock.Advance(3 * time.Hour)
	f.bookPaid(4000)

	stats, err := f.eng.Admin.Dashboard(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalBookings != 2 || stats.ConfirmedBookings != 2 || stats.HeldCents != 14000 {
		t.Fatalf("stats %+v", stats)
	}
	list, total, err := f.eng.Admin.ListLedger(f.ctx, domain.EntryBookingPayment, 1, 20)
	if err != nil || total != 2 || len(list) != 2 {
		t.Fatalf("ledger listing %d %v", total, err)
	}
}
