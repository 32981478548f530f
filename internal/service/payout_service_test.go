package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tutorly/internal/domain"
	"tutorly/internal/models"
	"tutorly/pkg/payment"
)

// earn settles one delivered session so the tutor holds 8500 cents.
func (f *fixture) earn() {
	f.t.Helper()
	b := f.bookPaid(10000)
	f.attendWholeSession(b, f.tutor, f.student)
	f.room("finish-"+uintString(b.ID), RoomFinished, b, nil, b.EndTime)
	if got := f.balance(f.tutor); got != 8500 {
		f.t.Fatalf("tutor balance %d after settlement", got)
	}
}

func (f *fixture) verifiedMethod() *models.PayoutMethod {
	f.t.Helper()
	m, err := f.eng.Payouts.AddMethod(f.ctx, f.actor(f.tutor), MethodInput{Kind: domain.PayoutMethodMpesa, Destination: "0712345678"})
	if err != nil {
		f.t.Fatal(err)
	}
	if m.Destination != "254712345678" {
		f.t.Fatalf("destination %q not normalized", m.Destination)
	}
	if err := f.eng.Payouts.VerifyMethod(f.ctx, f.actor(f.admin), m.ID); err != nil {
		f.t.Fatal(err)
	}
	return m
}

func TestPayoutLifecycle(t *testing.T) {
	f := newFixture(t)
	f.earn()
	m := f.verifiedMethod()

	p, err := f.eng.Payouts.Request(f.ctx, f.actor(f.tutor), PayoutInput{AmountCents: 5000, MethodID: m.ID})
	if err != nil {
		t.Fatal(err)
	}
	w := f.wallet(f.tutor)
	if w.BalanceCents != 8500 || w.ReservedCents != 5000 || w.AvailableCents() != 3500 {
		t.Fatalf("wallet after request: %+v", w)
	}

	p, err = f.eng.Payouts.Approve(f.ctx, f.actor(f.admin), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != domain.PayoutProcessing || p.ProviderRef == "" {
		t.Fatalf("after approve: %s %q", p.Status, p.ProviderRef)
	}
	if len(f.payoutGW.Sent) != 1 || f.payoutGW.Sent[0].Destination != "254712345678" {
		t.Fatalf("gateway saw %+v", f.payoutGW.Sent)
	}

	p, err = f.eng.Payouts.HandleResult(f.ctx, p.OrderID, true, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != domain.PayoutCompleted {
		t.Fatalf("status %s", p.Status)
	}
	w = f.wallet(f.tutor)
	if w.BalanceCents != 3500 || w.ReservedCents != 0 {
		t.Fatalf("wallet after payout: %+v", w)
	}
	// a repeated callback is a no-op
	if _, err := f.eng.Payouts.HandleResult(f.ctx, p.OrderID, false, "", "late failure"); err != nil {
		t.Fatal(err)
	}
	if f.balance(f.tutor) != 3500 {
		t.Fatalf("repeated callback moved money: %d", f.balance(f.tutor))
	}
	f.assertLedgerConsistent()
}

func TestConcurrentPayoutsCannotOverdraw(t *testing.T) {
	f := newFixture(t)
	f.earn()
	m := f.verifiedMethod()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.eng.Payouts.Request(f.ctx, f.actor(f.tutor), PayoutInput{AmountCents: 5100, MethodID: m.ID})
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrInsufficientFunds):
			failed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if failed != 1 {
		t.Fatalf("%d of 2 requests failed, want exactly 1", failed)
	}
	if w := f.wallet(f.tutor); w.ReservedCents != 5100 || w.AvailableCents() < 0 {
		t.Fatalf("wallet %+v", w)
	}
}

func TestPayoutFailureReleasesReservation(t *testing.T) {
	f := newFixture(t)
	f.earn()
	m := f.verifiedMethod()
	p, err := f.eng.Payouts.Request(f.ctx, f.actor(f.tutor), PayoutInput{AmountCents: 8500, MethodID: m.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.eng.Payouts.Approve(f.ctx, f.actor(f.admin), p.ID); err != nil {
		t.Fatal(err)
	}
	p, err = f.eng.Payouts.HandleResult(f.ctx, p.OrderID, false, "", "account closed")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != domain.PayoutFailed || p.FailureReason != "account closed" {
		t.Fatalf("payout %s %q", p.Status, p.FailureReason)
	}
	if w := f.wallet(f.tutor); w.BalanceCents != 8500 || w.ReservedCents != 0 {
		t.Fatalf("wallet %+v", w)
	}
	f.assertLedgerConsistent()
}

func TestPayoutSubmissionRetriedBySweep(t *testing.T) {
	f := newFixture(t)
	f.earn()
	m := f.verifiedMethod()
	p, err := f.eng.Payouts.Request(f.ctx, f.actor(f.tutor), PayoutInput{AmountCents: 1000, MethodID: m.ID})
	if err != nil {
		t.Fatal(err)
	}

	f.payoutGW.Fail = 1
	p, err = f.eng.Payouts.Approve(f.ctx, f.actor(f.admin), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != domain.PayoutApproved || p.SubmitAttempts != 1 {
		t.Fatalf("after failed submit: %s attempts %d", p.Status, p.SubmitAttempts)
	}

	if r := f.eng.Sweeps.Run(f.ctx); r.RetriedPayouts != 1 {
		t.Fatalf("report %+v", r)
	}
	got, err := f.store.Payouts.GetByID(p.ID)
	if err != nil || got.Status != domain.PayoutProcessing {
		t.Fatalf("payout %+v %v", got, err)
	}
}

func TestPayoutGivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	f.earn()
	m := f.verifiedMethod()
	p, err := f.eng.Payouts.Request(f.ctx, f.actor(f.tutor), PayoutInput{AmountCents: 1000, MethodID: m.ID})
	if err != nil {
		t.Fatal(err)
	}
	f.payoutGW.Fail = 10
	if _, err := f.eng.Payouts.Approve(f.ctx, f.actor(f.admin), p.ID); err != nil {
		t.Fatal(err)
	}
	f.eng.Sweeps.Run(f.ctx)
	f.eng.Sweeps.Run(f.ctx)

	got, err := f.store.Payouts.GetByID(p.ID)
	if err != nil || got.Status != domain.PayoutFailed || got.SubmitAttempts != 3 {
		t.Fatalf("payout %+v %v", got, err)
	}
	if w := f.wallet(f.tutor); w.ReservedCents != 0 {
		t.Fatalf("reservation kept: %+v", w)
	}
}

func TestPayoutRejectAndCancel(t *testing.T) {
	f := newFixture(t)
	f.earn()
	m := f.verifiedMethod()

	a, err := f.eng.Payouts.Request(f.ctx, f.actor(f.tutor), PayoutInput{AmountCents: 1000, MethodID: m.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.eng.Payouts.Reject(f.ctx, f.actor(f.admin), a.ID, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("reject without reason: %v", err)
	}
	if a, err = f.eng.Payouts.Reject(f.ctx, f.actor(f.admin), a.ID, "suspicious"); err != nil || a.Status != domain.PayoutRejected {
		t.Fatalf("reject: %v", err)
	}

	b, err := f.eng.Payouts.Request(f.ctx, f.actor(f.tutor), PayoutInput{AmountCents: 2000, MethodID: m.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.eng.Payouts.Cancel(f.ctx, f.actor(f.student), b.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("cancel someone else's payout: %v", err)
	}
	if b, err = f.eng.Payouts.Cancel(f.ctx, f.actor(f.tutor), b.ID); err != nil || b.Status != domain.PayoutCancelled {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.eng.Payouts.Cancel(f.ctx, f.actor(f.tutor), b.ID); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("cancel twice: %v", err)
	}
	if w := f.wallet(f.tutor); w.BalanceCents != 8500 || w.ReservedCents != 0 {
		t.Fatalf("wallet %+v", w)
	}
	f.assertLedgerConsistent()
}

func TestPayoutRequestGuards(t *testing.T) {
	f := newFixture(t)
	f.earn()
	m, err := f.eng.Payouts.AddMethod(f.ctx, f.actor(f.tutor), MethodInput{Kind: domain.PayoutMethodMpesa, Destination: "254700000001"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.eng.Payouts.Request(f.ctx, f.actor(f.tutor), PayoutInput{AmountCents: 1000, MethodID: m.ID}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("unverified method: %v", err)
	}
	if _, err := f.eng.Payouts.Request(f.ctx, f.actor(f.student), PayoutInput{AmountCents: 1000, MethodID: m.ID}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("student payout: %v", err)
	}
	if _, err := f.eng.Payouts.AddMethod(f.ctx, f.actor(f.tutor), MethodInput{Kind: domain.PayoutMethodMpesa, Destination: "12345"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("bad phone: %v", err)
	}
	if err := f.eng.Admin.UpdateSetting(f.ctx, f.actor(f.admin), domain.SettingPayoutMinimum, "2000"); err != nil {
		t.Fatal(err)
	}
	good := f.verifiedMethod()
	if _, err := f.eng.Payouts.Request(f.ctx, f.actor(f.tutor), PayoutInput{AmountCents: 1999, MethodID: good.ID}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("below minimum: %v", err)
	}
}

// hookGateway calls during before it accepts a submission.
type hookGateway struct {
	during func()
	sent   int
}

func (g *hookGateway) SubmitPayout(ctx context.Context, req payment.PayoutRequest) (*payment.PayoutResponse, error) {
	if g.during != nil {
		g.during()
	}
	g.sent++
	return &payment.PayoutResponse{ProviderRef: "hook-" + req.OrderID, Status: payment.StatusPending}, nil
}

func TestRejectCannotCloseSubmittingPayout(t *testing.T) {
	f := newFixture(t)
	f.earn()
	m := f.verifiedMethod()

	p, err := f.eng.Payouts.Request(f.ctx, f.actor(f.tutor), PayoutInput{AmountCents: 5000, MethodID: m.ID})
	if err != nil {
		t.Fatal(err)
	}
	var rejectErr error
	gw := &hookGateway{during: func() {
		_, rejectErr = f.eng.Payouts.Reject(f.ctx, f.actor(f.admin), p.ID, "changed my mind")
	}}
	f.eng.Payouts.gateways = payment.PayoutRouter{domain.PayoutMethodMpesa: gw}

	p, err = f.eng.Payouts.Approve(f.ctx, f.actor(f.admin), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(rejectErr, domain.ErrInvalidStateTransition) {
		t.Fatalf("reject during submission: %v", rejectErr)
	}
	if gw.sent != 1 || p.Status != domain.PayoutProcessing {
		t.Fatalf("sent %d status %s", gw.sent, p.Status)
	}

	p, err = f.eng.Payouts.HandleResult(f.ctx, p.OrderID, true, "RCPT1", "")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != domain.PayoutCompleted {
		t.Fatalf("status after callback %s", p.Status)
	}
	if w := f.wallet(f.tutor); w.BalanceCents != 3500 || w.ReservedCents != 0 {
		t.Fatalf("wallet %+v", w)
	}
	f.assertLedgerConsistent()
}

func TestRejectRefusesApprovedAwaitingRetry(t *testing.T) {
	f := newFixture(t)
	f.earn()
	m := f.verifiedMethod()
	f.payoutGW.Fail = 1

	p, err := f.eng.Payouts.Request(f.ctx, f.actor(f.tutor), PayoutInput{AmountCents: 5000, MethodID: m.ID})
	if err != nil {
		t.Fatal(err)
	}
	if p, err = f.eng.Payouts.Approve(f.ctx, f.actor(f.admin), p.ID); err != nil || p.Status != domain.PayoutApproved {
		t.Fatalf("approve with failing gateway: %v", err)
	}
	if _, err := f.eng.Payouts.Reject(f.ctx, f.actor(f.admin), p.ID, "too late"); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("reject approved payout: %v", err)
	}
	if w := f.wallet(f.tutor); w.ReservedCents != 5000 {
		t.Fatalf("reservation released: %+v", w)
	}
}

func TestMpesaPayoutMustBeWholeShillings(t *testing.T) {
	f := newFixture(t)
	f.earn()
	m := f.verifiedMethod()
	f.eng.Payouts.gateways = payment.PayoutRouter{domain.PayoutMethodMpesa: payment.NewLiberecMpesaProvider("http://127.0.0.1:1", "m@x.io", "pw", "", "cb")}

	if _, err := f.eng.Payouts.Request(f.ctx, f.actor(f.tutor), PayoutInput{AmountCents: 5050, MethodID: m.ID}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("fractional payout: %v", err)
	}
	if w := f.wallet(f.tutor); w.ReservedCents != 0 || w.BalanceCents != 8500 {
		t.Fatalf("wallet %+v", w)
	}
	if _, err := f.eng.Payouts.Request(f.ctx, f.actor(f.tutor), PayoutInput{AmountCents: 5000, MethodID: m.ID}); err != nil {
		t.Fatalf("whole shillings: %v", err)
	}
}

func TestPayoutNeedsConfiguredGateway(t *testing.T) {
	f := newFixture(t)
	f.earn()
	m, err := f.eng.Payouts.AddMethod(f.ctx, f.actor(f.tutor), MethodInput{Kind: domain.PayoutMethodBank, Destination: "0011223344"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.eng.Payouts.VerifyMethod(f.ctx, f.actor(f.admin), m.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.eng.Payouts.Request(f.ctx, f.actor(f.tutor), PayoutInput{AmountCents: 5000, MethodID: m.ID}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("bank payout without gateway: %v", err)
	}
	if w := f.wallet(f.tutor); w.ReservedCents != 0 {
		t.Fatalf("wallet %+v", w)
	}
}
