package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tutorly/internal/domain"
	"tutorly/internal/models"
	"tutorly/internal/repository"
)

// AttendanceService records when each party is in the classroom. Joins while
// an interval is still open are no-ops, so duplicate provider events and
// reconnecting sockets never double count.
type AttendanceService struct {
	store *repository.Store
	// earlyGrace is how long before start the in-house classroom opens.
	earlyGrace time.Duration
	now        func() time.Time
	log        *slog.Logger
}

func NewAttendanceService(store *repository.Store, earlyGrace time.Duration, log *slog.Logger) *AttendanceService {
	return &AttendanceService{store: store, earlyGrace: earlyGrace, now: time.Now, log: log.With("component", "attendance")}
}

// Join opens an interval for userID. created is false when one was already open.
func (s *AttendanceService) Join(ctx context.Context, bookingID, userID uint, at time.Time, source string) (row *models.ClassroomAttendance, created bool, err error) {
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		row, created, err = s.JoinIn(ctx, tx, bookingID, userID, at, source)
		return err
	})
	return row, created, err
}

// JoinIn is Join inside the caller's transaction.
func (s *AttendanceService) JoinIn(ctx context.Context, tx *repository.Store, bookingID, userID uint, at time.Time, source string) (*models.ClassroomAttendance, bool, error) {
	b, err := tx.Bookings.GetForUpdate(bookingID)
	if err != nil {
		return nil, false, err
	}
	role, err := partyRole(b, userID)
	if err != nil {
		return nil, false, err
	}
	if !classroomOpen(b.Status) {
		return nil, false, &domain.TransitionError{From: b.Status, Event: "participant_joined"}
	}
	open, err := tx.Attendance.OpenInterval(bookingID, userID)
	if err != nil {
		return nil, false, err
	}
	if open != nil {
		s.log.DebugContext(ctx, "join with interval already open", "booking_id", bookingID, "user_id", userID)
		return open, false, nil
	}
	if at.IsZero() {
		at = s.now()
	}
	if source == domain.AttendanceSourceClassroom && at.Before(b.StartTime.Add(-s.earlyGrace)) {
		return nil, false, domain.Invalid("classroom opens %s before the session", s.earlyGrace)
	}
	row := &models.ClassroomAttendance{
		BookingID: bookingID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  at.UTC(),
		Source:    source,
	}
	if err := tx.Attendance.Create(row); err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// Leave closes userID's open interval. Without one it does nothing.
func (s *AttendanceService) Leave(ctx context.Context, bookingID, userID uint, at time.Time) (row *models.ClassroomAttendance, err error) {
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		row, err = s.LeaveIn(ctx, tx, bookingID, userID, at)
		return err
	})
	return row, err
}

func (s *AttendanceService) LeaveIn(ctx context.Context, tx *repository.Store, bookingID, userID uint, at time.Time) (*models.ClassroomAttendance, error) {
	b, err := tx.Bookings.GetForUpdate(bookingID)
	if err != nil {
		return nil, err
	}
	if _, err := partyRole(b, userID); err != nil {
		return nil, err
	}
	open, err := tx.Attendance.OpenInterval(bookingID, userID)
	if err != nil || open == nil {
		return nil, err
	}
	if at.IsZero() {
		at = s.now()
	}
	if at.Before(open.JoinedAt) {
		at = open.JoinedAt
	}
	left := at.UTC()
	open.LeftAt = &left
	open.DurationSeconds = int64(left.Sub(open.JoinedAt) / time.Second)
	return open, tx.Attendance.Save(open)
}

// History lists a booking's intervals for one of its parties or an admin.
func (s *AttendanceService) History(ctx context.Context, bookingID uint, actor Actor) ([]models.ClassroomAttendance, error) {
	st := s.store.WithContext(ctx)
	b, err := st.Bookings.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(actor.UserID) && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return st.Attendance.ListForBooking(bookingID)
}

func partyRole(b *models.Booking, userID uint) (string, error) {
	switch userID {
	case b.TutorID:
		return domain.RoleTutor, nil
	case b.PayerID:
		return domain.RoleClient, nil
	}
	return "", fmt.Errorf("%w: user %d is not a party to booking %d", domain.ErrForbidden, userID, b.ID)
}

// classroomOpen lists statuses in which attendance is still recorded.
func classroomOpen(s domain.BookingStatus) bool {
	return s == domain.BookingConfirmed || s == domain.BookingDisputed
}
