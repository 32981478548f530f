package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tutorly/config"
	"tutorly/internal/auth"
	"tutorly/internal/domain"
	"tutorly/internal/service"
	"tutorly/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var classroomUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// UpgradeClassroomWS relays WebRTC signaling (offer, answer, ice) between the
// parties of a booking. Query: token, booking_id. Connecting and
// disconnecting are recorded as attendance, like provider webhooks.
func UpgradeClassroomWS(cfg *config.JWTConfig, hub *ws.ClassroomHub, bookings *service.BookingService, attendance *service.AttendanceService, log *slog.Logger) gin.HandlerFunc {
	log = log.With("component", "classroom_ws")
	return func(c *gin.Context) {
		token := c.Query("token")
		bookingIDStr := c.Query("booking_id")
		if token == "" || bookingIDStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token and booking_id required"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		id, err := strconv.ParseUint(bookingIDStr, 10, 64)
		if err != nil || id == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking_id"})
			return
		}
		bookingID := uint(id)
		actor := service.Actor{UserID: claims.UserID, Role: claims.Role}
		b, err := bookings.Get(c.Request.Context(), bookingID, actor)
		if err != nil {
			writeError(c, log, err)
			return
		}
		if !b.IsParty(claims.UserID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not part of this booking"})
			return
		}
		if _, _, err := attendance.Join(c.Request.Context(), bookingID, claims.UserID, time.Time{}, domain.AttendanceSourceClassroom); err != nil {
			writeError(c, log, err)
			return
		}

		conn, err := classroomUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			leave(attendance, log, bookingID, claims.UserID)
			return
		}
		defer conn.Close()

		client := ws.NewClient(claims.UserID, claims.Role)
		room := hub.GetOrCreateRoom(bookingID)
		room.Join(client)
		room.SendToOthers(claims.UserID, gin.H{"type": "peer_joined", "user_id": claims.UserID})
		defer func() {
			if room.Leave(client) {
				leave(attendance, log, bookingID, claims.UserID)
				room.SendToOthers(claims.UserID, gin.H{"type": "peer_left", "user_id": claims.UserID})
			}
			client.Close()
			hub.Release(room)
		}()
		go ws.WritePump(client, conn)

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var msg struct {
				Type    string          `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}
			if json.Unmarshal(raw, &msg) != nil {
				continue
			}
			switch msg.Type {
			case "offer", "answer", "ice":
				room.SendToOthers(claims.UserID, gin.H{"type": msg.Type, "from": claims.UserID, "payload": msg.Payload})
			}
		}
	}
}

// leave runs detached from the request, which is gone by the time a socket closes.
func leave(attendance *service.AttendanceService, log *slog.Logger, bookingID, userID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := attendance.Leave(ctx, bookingID, userID, time.Time{}); err != nil {
		log.WarnContext(ctx, "record classroom leave", "booking_id", bookingID, "user_id", userID, "err", err)
	}
}
