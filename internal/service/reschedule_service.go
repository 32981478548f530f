package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tutorly/internal/domain"
	"tutorly/internal/models"
	"tutorly/internal/repository"
)

// RescheduleService moves a confirmed booking to a new window with the other
// party's consent. It never touches escrow.
type RescheduleService struct {
	store    *repository.Store
	bookings *BookingService
	expiry   time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func NewRescheduleService(store *repository.Store, bookings *BookingService, expiry time.Duration, log *slog.Logger) *RescheduleService {
	return &RescheduleService{store: store, bookings: bookings, expiry: expiry, now: time.Now, log: log.With("component", "reschedule")}
}

type RescheduleInput struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
	Reason    string    `json:"reason"`
}

// Request proposes a new window. The request expires after the configured
// period or at the original start time, whichever comes first.
func (s *RescheduleService) Request(ctx context.Context, bookingID uint, actor Actor, in RescheduleInput) (*models.RescheduleRequest, error) {
	now := s.now()
	if !in.EndTime.After(in.StartTime) {
		return nil, domain.Invalid("end_time must be after start_time")
	}
	if !in.StartTime.After(now) {
		return nil, domain.Invalid("proposed start_time must be in the future")
	}
	var req *models.RescheduleRequest
	_, err := s.bookings.transition(ctx, bookingID, domain.EventRequestReschedule, actor, Payload{Reason: in.Reason},
		func(tx *repository.Store, b *models.Booking) error {
			if actor.UserID == 0 || !b.IsParty(actor.UserID) {
				return fmt.Errorf("%w: only a party may propose a new window", domain.ErrForbidden)
			}
			busy, err := tx.Bookings.HasOverlap(b.TutorID, in.StartTime, in.EndTime, b.ID)
			if err != nil {
				return err
			}
			if busy {
				return domain.ErrSlotUnavailable
			}
			expires := now.Add(s.expiry)
			if b.StartTime.Before(expires) {
				expires = b.StartTime
			}
			pending := b.ID
			req = &models.RescheduleRequest{
				BookingID:        b.ID,
				RequestedBy:      actor.UserID,
				PendingBookingID: &pending,
				Status:           domain.RescheduleStatusPending,
				OriginalStart:    b.StartTime,
				OriginalEnd:      b.EndTime,
				ProposedStart:    in.StartTime.UTC(),
				ProposedEnd:      in.EndTime.UTC(),
				Reason:           in.Reason,
				ExpiresAt:        expires,
			}
			if err := tx.Reschedules.Create(req); err != nil {
				if repository.IsDuplicate(err) {
					return fmt.Errorf("%w: booking %d already has a pending reschedule", domain.ErrInvalidStateTransition, b.ID)
				}
				return err
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Approve applies the proposed window. A request past its expiry is expired
// instead and returned without error.
func (s *RescheduleService) Approve(ctx context.Context, requestID uint, actor Actor) (*models.RescheduleRequest, error) {
	return s.respond(ctx, requestID, actor, true)
}

// Reject keeps the original window.
func (s *RescheduleService) Reject(ctx context.Context, requestID uint, actor Actor) (*models.RescheduleRequest, error) {
	return s.respond(ctx, requestID, actor, false)
}

func (s *RescheduleService) respond(ctx context.Context, requestID uint, actor Actor, approve bool) (*models.RescheduleRequest, error) {
	peek, err := s.store.WithContext(ctx).Reschedules.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	var out *models.RescheduleRequest
	var booking *models.Booking
	var event domain.Event
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		b, err := tx.Bookings.GetForUpdate(peek.BookingID)
		if err != nil {
			return err
		}
		req, err := tx.Reschedules.GetForUpdate(requestID)
		if err != nil {
			return err
		}
		if req.Status != domain.RescheduleStatusPending {
			return fmt.Errorf("%w: reschedule request %d is %s", domain.ErrInvalidStateTransition, req.ID, req.Status)
		}
		if !actor.IsAdmin() && (!b.IsParty(actor.UserID) || actor.UserID == req.RequestedBy) {
			return fmt.Errorf("%w: only the other party may respond", domain.ErrForbidden)
		}
		now := s.now()
		status := domain.RescheduleStatusRejected
		event = domain.EventRejectReschedule
		p := Payload{}
		switch {
		case !now.Before(req.ExpiresAt):
			status = domain.RescheduleStatusExpired
			event = domain.EventExpireReschedule
			s.log.InfoContext(ctx, "response after expiry", "request_id", req.ID, "err", domain.ErrExpiredRequest)
		case approve:
			busy, err := tx.Bookings.HasOverlap(b.TutorID, req.ProposedStart, req.ProposedEnd, b.ID)
			if err != nil {
				return err
			}
			if busy {
				return domain.ErrSlotUnavailable
			}
			status = domain.RescheduleStatusApproved
			event = domain.EventApplyReschedule
			p = Payload{NewStart: req.ProposedStart, NewEnd: req.ProposedEnd}
		}
		if err := s.bookings.apply(ctx, tx, b, event, actor, p); err != nil {
			return err
		}
		if err := resolveRequest(tx, req, status, actor, now); err != nil {
			return err
		}
		out, booking = req, b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.bookings.announce(ctx, booking, event)
	return out, nil
}

func resolveRequest(tx *repository.Store, req *models.RescheduleRequest, status string, actor Actor, now time.Time) error {
	req.Status = status
	req.PendingBookingID = nil
	req.RespondedAt = &now
	if actor.UserID != 0 {
		by := actor.UserID
		req.RespondedBy = &by
	}
	return tx.Reschedules.Save(req)
}

// ExpireDue expires unanswered requests and returns their bookings to confirmed.
func (s *RescheduleService) ExpireDue(ctx context.Context, limit int) (int, error) {
	ids, err := s.store.WithContext(ctx).Reschedules.ListExpired(s.now(), limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if err := s.expire(ctx, id); err != nil {
			if errors.Is(err, domain.ErrInvalidStateTransition) {
				continue
			}
			s.log.WarnContext(ctx, "expire reschedule failed", "request_id", id, "err", err)
			continue
		}
		n++
	}
	return n, nil
}

func (s *RescheduleService) expire(ctx context.Context, id uint) error {
	peek, err := s.store.WithContext(ctx).Reschedules.GetByID(id)
	if err != nil {
		return err
	}
	var booking *models.Booking
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		b, err := tx.Bookings.GetForUpdate(peek.BookingID)
		if err != nil {
			return err
		}
		req, err := tx.Reschedules.GetForUpdate(id)
		if err != nil {
			return err
		}
		now := s.now()
		if req.Status != domain.RescheduleStatusPending || now.Before(req.ExpiresAt) {
			return fmt.Errorf("%w: request %d no longer due", domain.ErrInvalidStateTransition, id)
		}
		if err := s.bookings.apply(ctx, tx, b, domain.EventExpireReschedule, SystemActor(), Payload{}); err != nil {
			return err
		}
		booking = b
		return resolveRequest(tx, req, domain.RescheduleStatusExpired, SystemActor(), now)
	})
	if err != nil {
		return err
	}
	s.bookings.announce(ctx, booking, domain.EventExpireReschedule)
	return nil
}

// ListForBooking returns a booking's requests, newest first.
func (s *RescheduleService) ListForBooking(ctx context.Context, bookingID uint, actor Actor) ([]models.RescheduleRequest, error) {
	if _, err := s.bookings.Get(ctx, bookingID, actor); err != nil {
		return nil, err
	}
	return s.store.WithContext(ctx).Reschedules.ListForBooking(bookingID)
}
