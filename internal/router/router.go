package router

import (
	"log/slog"
	"net/http"

	"tutorly/config"
	"tutorly/internal/domain"
	"tutorly/internal/handler"
	"tutorly/internal/middleware"
	"tutorly/internal/repository"
	"tutorly/internal/service"
	"tutorly/internal/ws"

	"github.com/gin-gonic/gin"
)

func Setup(cfg *config.Config, store *repository.Store, eng *service.Engine, limiter middleware.Limiter, log *slog.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	bookingHandler := handler.NewBookingHandler(eng, log)
	walletHandler := handler.NewWalletHandler(store, eng.Admin, log)
	payoutHandler := handler.NewPayoutHandler(eng.Payouts, log)
	adminHandler := handler.NewAdminHandler(eng, log)
	paymentWebhookHandler := handler.NewPaymentWebhookHandler(eng.Payments, cfg, log)
	payoutWebhookHandler := handler.NewPayoutWebhookHandler(eng.Payouts, cfg.Payment.CallbackSecret, log)
	roomWebhookHandler := handler.NewRoomWebhookHandler(eng.Webhooks, cfg.Payment.RoomWebhookSecret, log)
	classroomHub := ws.NewClassroomHub()

	authMw := middleware.AuthRequired(&cfg.JWT)
	rateMw := middleware.RateLimit(limiter)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api/v1")
	{
		authed := api.Group("")
		authed.Use(authMw, rateMw)
		{
			authed.POST("/bookings", middleware.RequireRole(domain.RoleClient), bookingHandler.Create)
			authed.GET("/bookings/:id", bookingHandler.Get)
			authed.POST("/bookings/:id/pay", bookingHandler.Pay)
			authed.POST("/bookings/:id/approve", bookingHandler.Event(domain.EventApprove))
			authed.POST("/bookings/:id/confirm", bookingHandler.Event(domain.EventConfirm))
			authed.POST("/bookings/:id/cancel", bookingHandler.Event(domain.EventCancel))
			authed.PUT("/bookings/:id/archive", bookingHandler.Archive)
			authed.GET("/bookings/:id/attendance", bookingHandler.Attendance)
			authed.POST("/bookings/:id/dispute", bookingHandler.RaiseDispute)
			authed.POST("/bookings/:id/reschedule", bookingHandler.RequestReschedule)
			authed.GET("/bookings/:id/reschedules", bookingHandler.ListReschedules)
			authed.POST("/reschedules/:id/approve", bookingHandler.RespondReschedule(true))
			authed.POST("/reschedules/:id/reject", bookingHandler.RespondReschedule(false))
		}

		me := api.Group("/me")
		me.Use(authMw, rateMw)
		{
			me.GET("/bookings", bookingHandler.List)
			me.GET("/wallet", walletHandler.GetBalance)
			me.GET("/wallet/entries", walletHandler.GetTransactions)
			me.GET("/payouts", payoutHandler.List)
			me.POST("/payouts", middleware.RequireRole(domain.RoleTutor), payoutHandler.Create)
			me.POST("/payouts/:id/cancel", payoutHandler.Cancel)
			me.GET("/payout-methods", payoutHandler.ListMethods)
			me.POST("/payout-methods", middleware.RequireRole(domain.RoleTutor), payoutHandler.AddMethod)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.GET("/bookings", adminHandler.ListBookings)
			admin.GET("/bookings/:id/audit", adminHandler.AuditTrail)
			admin.POST("/bookings/:id/resolve", adminHandler.ResolveDispute)
			admin.POST("/bookings/:id/reverse", adminHandler.ReverseSettlement)
			admin.GET("/ledger", adminHandler.ListLedger)
			admin.GET("/wallets/:user_id", adminHandler.GetWallet)
			admin.POST("/adjustments", adminHandler.Adjust)
			admin.GET("/payouts", adminHandler.ListPayouts)
			admin.POST("/payouts/:id/approve", payoutHandler.Approve)
			admin.POST("/payouts/:id/reject", payoutHandler.Reject)
			admin.POST("/payout-methods/:id/verify", payoutHandler.VerifyMethod)
			admin.GET("/settings", adminHandler.GetSettings)
			admin.PUT("/settings/:key", adminHandler.UpdateSetting)
			admin.POST("/sweep", adminHandler.RunSweep)
		}

		hooks := api.Group("/webhooks")
		{
			hooks.POST("/room", roomWebhookHandler.Handle)
			hooks.POST("/payment", paymentWebhookHandler.Handle)
			hooks.POST("/mpesa", paymentWebhookHandler.Mpesa)
			hooks.POST("/midtrans", paymentWebhookHandler.Midtrans)
			hooks.POST("/payout", payoutWebhookHandler.Handle)
		}
	}

	r.GET("/ws/classroom", handler.UpgradeClassroomWS(&cfg.JWT, classroomHub, eng.Bookings, eng.Attendance, log))

	return r
}
