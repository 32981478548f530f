package service

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"tutorly/config"
	"tutorly/internal/database"
	"tutorly/internal/domain"
	"tutorly/internal/models"
	"tutorly/internal/repository"
	"tutorly/pkg/mq"
	"tutorly/pkg/payment"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// t0 is the wall clock every fixture starts at.
var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

type fixture struct {
	t        *testing.T
	ctx      context.Context
	cfg      *config.Config
	clock    *testClock
	db       *gorm.DB
	store    *repository.Store
	eng      *Engine
	gateway  *payment.StubProvider
	payoutGW *payment.StubPayoutGateway

	platform, student, tutor, admin models.User
}

func testConfig() *config.Config {
	return &config.Config{
		Payment: config.PaymentConfig{
			PaymentExpiry:  30 * time.Minute,
			Currency:       "KES",
			DefaultGateway: "stub",
		},
		Escrow: config.EscrowConfig{
			PlatformUserID:        1,
			DefaultCommissionRate: "15.00",
			MinAttendanceRatio:    0.5,
			EarlyJoinGrace:        15 * time.Minute,
			LateGrace:             15 * time.Minute,
			DisputeClaimWindow:    72 * time.Hour,
			RescheduleExpiry:      48 * time.Hour,
		},
		Payout: config.PayoutConfig{
			MinimumCents:      100,
			MaxSubmitAttempts: 3,
		},
	}
}

func newFixture(t *testing.T, tweak ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := testConfig()
	for _, fn := range tweak {
		fn(cfg)
	}
	clk := &testClock{now: t0}

	gcfg := database.GormConfig()
	gcfg.NowFunc = clk.Now
	db, err := gorm.Open(sqlite.Open(":memory:"), gcfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := database.SeedPlatformAccount(db, cfg); err != nil {
		t.Fatalf("seed platform: %v", err)
	}

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		cfg:      cfg,
		clock:    clk,
		db:       db,
		store:    repository.NewStore(db, 0),
		gateway:  &payment.StubProvider{},
		payoutGW: &payment.StubPayoutGateway{},
	}
	f.platform = models.User{ID: 1}
	f.student = f.user("student@example.com", domain.RoleClient)
	f.tutor = f.user("tutor@example.com", domain.RoleTutor)
	f.admin = f.user("admin@example.com", domain.RoleAdmin)

	f.eng = New(Deps{
		Store:     f.store,
		Config:    cfg,
		Gateways:  payment.Registry{"stub": f.gateway},
		Payouts:   payment.PayoutRouter{domain.PayoutMethodMpesa: f.payoutGW},
		Publisher: mq.NopPublisher{},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       clk.Now,
	})
	return f
}

func (f *fixture) user(email, role string) models.User {
	f.t.Helper()
	u := models.User{Email: email, Role: role}
	if err := f.store.Users.Create(&u); err != nil {
		f.t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func (f *fixture) actor(u models.User) Actor { return Actor{UserID: u.ID, Role: u.Role} }

// fund tops up a wallet through an admin adjustment.
func (f *fixture) fund(u models.User, cents int64) {
	f.t.Helper()
	if _, err := f.eng.Admin.Adjust(f.ctx, f.actor(f.admin), AdjustmentInput{UserID: u.ID, AmountCents: cents, Reason: "top up"}); err != nil {
		f.t.Fatalf("fund user %d: %v", u.ID, err)
	}
}

// book creates a one hour session starting an hour after the current clock.
func (f *fixture) book(price int64) *models.Booking {
	f.t.Helper()
	return f.bookAt(f.clock.Now().Add(time.Hour), price)
}

func (f *fixture) bookAt(start time.Time, price int64) *models.Booking {
	f.t.Helper()
	list, err := f.eng.Bookings.Create(f.ctx, f.actor(f.student), CreateBookingInput{
		TutorID:         f.tutor.ID,
		SubjectID:       7,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		TotalPriceCents: price,
	})
	if err != nil {
		f.t.Fatalf("create booking: %v", err)
	}
	return &list[0]
}

// bookPaid creates a booking and pays it from a freshly funded wallet.
func (f *fixture) bookPaid(price int64) *models.Booking {
	f.t.Helper()
	b := f.book(price)
	f.fund(f.student, price)
	res, err := f.eng.Payments.Pay(f.ctx, b.ID, f.actor(f.student), PayRequest{Gateway: domain.PaymentSourceWallet})
	if err != nil {
		f.t.Fatalf("pay booking %d: %v", b.ID, err)
	}
	if res.Booking.Status != domain.BookingConfirmed || res.Booking.PaymentStatus != domain.PaymentHeld {
		f.t.Fatalf("after pay: status %s payment %s", res.Booking.Status, res.Booking.PaymentStatus)
	}
	return res.Booking
}

func (f *fixture) booking(id uint) *models.Booking {
	f.t.Helper()
	b, err := f.store.Bookings.GetByID(id)
	if err != nil {
		f.t.Fatalf("load booking %d: %v", id, err)
	}
	return b
}

func (f *fixture) wallet(u models.User) *models.Wallet {
	f.t.Helper()
	w, err := f.store.Wallets.GetOrCreate(u.ID, "KES")
	if err != nil {
		f.t.Fatalf("wallet %d: %v", u.ID, err)
	}
	return w
}

func (f *fixture) balance(u models.User) int64 { return f.wallet(u).BalanceCents }

// assertLedgerConsistent checks every wallet against the sum of its completed entries.
func (f *fixture) assertLedgerConsistent() {
	f.t.Helper()
	for _, u := range []models.User{f.platform, f.student, f.tutor, f.admin} {
		derived, err := f.eng.Ledger.RecomputeBalance(f.store, u.ID)
		if err != nil {
			f.t.Fatalf("recompute %d: %v", u.ID, err)
		}
		if got := f.balance(u); got != derived {
			f.t.Fatalf("wallet of user %d holds %d but ledger says %d", u.ID, got, derived)
		}
	}
}

func (f *fixture) room(id, event string, b *models.Booking, who *models.User, at time.Time) string {
	f.t.Helper()
	ev := RoomEvent{ID: id, Event: event, CreatedAt: at.Unix()}
	ev.Room.Name = "booking-" + uintString(b.ID)
	if who != nil {
		ev.Participant.Identity = "user-" + uintString(who.ID)
	}
	out, err := f.eng.Webhooks.HandleRoomEvent(f.ctx, ev)
	if err != nil {
		f.t.Fatalf("room event %s %s: %v", id, event, err)
	}
	return out
}

func uintString(n uint) string { return strconv.FormatUint(uint64(n), 10) }

// attendWholeSession replays a session in which the given parties stay for the full window.
func (f *fixture) attendWholeSession(b *models.Booking, parties ...models.User) {
	f.t.Helper()
	f.clock.Set(b.StartTime)
	f.room("start-"+uintString(b.ID), RoomStarted, b, nil, b.StartTime)
	for i := range parties {
		f.room("join-"+uintString(b.ID)+"-"+uintString(parties[i].ID), ParticipantJoined, b, &parties[i], b.StartTime)
	}
	f.clock.Set(b.EndTime)
	for i := range parties {
		f.room("leave-"+uintString(b.ID)+"-"+uintString(parties[i].ID), ParticipantLeft, b, &parties[i], b.EndTime)
	}
}
