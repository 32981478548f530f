package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"tutorly/internal/domain"
	"tutorly/internal/models"
	"tutorly/internal/repository"
)

// Room provider event types.
const (
	RoomStarted       = "room_started"
	RoomFinished      = "room_finished"
	ParticipantJoined = "participant_joined"
	ParticipantLeft   = "participant_left"
)

// Webhook outcomes reported back to the provider.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)

// RoomEvent is the video-room provider's webhook body.
type RoomEvent struct {
	ID    string `json:"id"`
	Event string `json:"event"`
	Room  struct {
		Name string `json:"name"`
		SID  string `json:"sid"`
	} `json:"room"`
	Participant struct {
		Identity string `json:"identity"`
	} `json:"participant"`
	CreatedAt int64 `json:"createdAt"` // unix seconds
}

// DedupKey identifies a delivery. Without an event id, room lifecycle events
// fall back to a payload hash; participant events return "" because a rejoin
// carries the same payload as the first join. Those are absorbed by the open
// interval check instead.
func (e RoomEvent) DedupKey() string {
	if e.ID != "" {
		return "room:" + e.ID
	}
	if e.Event == ParticipantJoined || e.Event == ParticipantLeft {
		return ""
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", e.Event, e.Room.Name, e.Participant.Identity, e.CreatedAt)))
	return "room:" + hex.EncodeToString(sum[:16])
}

// WebhookService turns room provider events into state machine events and
// attendance rows. Each delivery is recorded in the same transaction as its effect.
type WebhookService struct {
	store      *repository.Store
	bookings   *BookingService
	attendance *AttendanceService
	now        func() time.Time
	log        *slog.Logger
}

func NewWebhookService(store *repository.Store, bookings *BookingService, attendance *AttendanceService, log *slog.Logger) *WebhookService {
	return &WebhookService{store: store, bookings: bookings, attendance: attendance, now: time.Now, log: log.With("component", "room_webhook")}
}

// HandleRoomEvent returns the outcome to acknowledge with. Only storage
// failures are returned as errors; the provider should retry those.
func (s *WebhookService) HandleRoomEvent(ctx context.Context, ev RoomEvent) (string, error) {
	switch ev.Event {
	case RoomStarted, RoomFinished, ParticipantJoined, ParticipantLeft:
	default:
		s.log.InfoContext(ctx, "unknown room event ignored", "event", ev.Event)
		return OutcomeIgnored, nil
	}
	bookingID, err := parseTaggedID(ev.Room.Name, "booking-")
	if err != nil {
		s.log.WarnContext(ctx, "room name does not name a booking", "room", ev.Room.Name)
		return OutcomeIgnored, nil
	}
	at := s.now()
	if ev.CreatedAt > 0 {
		at = time.Unix(ev.CreatedAt, 0).UTC()
	}

	key := ev.DedupKey()
	outcome := OutcomeProcessed
	var changed *models.Booking
	var event domain.Event
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		changed = nil
		if key != "" {
			seen, err := tx.Events.Seen(key)
			if err != nil {
				return err
			}
			if seen {
				outcome = OutcomeDuplicate
				return nil
			}
		}
		switch ev.Event {
		case RoomStarted, RoomFinished:
			event = domain.EventSessionStarted
			if ev.Event == RoomFinished {
				event = domain.EventSessionEnded
			}
			b, err := s.bookings.TransitionIn(ctx, tx, bookingID, event, SystemActor(), Payload{})
			if err != nil {
				return err
			}
			changed = b
		default:
			userID, err := parseTaggedID(ev.Participant.Identity, "user-")
			if err != nil {
				return domain.Invalid("participant identity %q", ev.Participant.Identity)
			}
			if ev.Event == ParticipantJoined {
				_, _, err = s.attendance.JoinIn(ctx, tx, bookingID, userID, at, domain.AttendanceSourceWebhook)
			} else {
				_, err = s.attendance.LeaveIn(ctx, tx, bookingID, userID, at)
			}
			if err != nil {
				return err
			}
		}
		if key == "" {
			return nil
		}
		return tx.Events.Record(key, ev.Event)
	})
	switch {
	case err == nil:
	case IsIgnorable(err), errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotFound):
		s.log.InfoContext(ctx, "room event ignored", "event", ev.Event, "booking_id", bookingID, "reason", err)
		return OutcomeIgnored, nil
	case repository.IsDuplicate(err):
		return OutcomeDuplicate, nil
	default:
		return "", err
	}
	if changed != nil {
		s.bookings.announce(ctx, changed, event)
	}
	return outcome, nil
}

// parseTaggedID reads ids encoded as "<prefix><id>", e.g. booking-42.
func parseTaggedID(s, prefix string) (uint, error) {
	rest, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return 0, domain.Invalid("%q lacks prefix %q", s, prefix)
	}
	n, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || n == 0 {
		return 0, domain.Invalid("%q is not an id", s)
	}
	return uint(n), nil
}
