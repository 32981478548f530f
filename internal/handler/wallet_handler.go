package handler

import (
	"log/slog"
	"net/http"

	"tutorly/internal/middleware"
	"tutorly/internal/models"
	"tutorly/internal/repository"
	"tutorly/internal/service"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	store *repository.Store
	admin *service.AdminService
	log   *slog.Logger
}

func NewWalletHandler(store *repository.Store, admin *service.AdminService, log *slog.Logger) *WalletHandler {
	return &WalletHandler{store: store, admin: admin, log: log.With("component", "wallet_handler")}
}

// GetBalance returns the current user's wallet.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	w, _, err := h.admin.Wallet(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance_cents":   w.BalanceCents,
		"reserved_cents":  w.ReservedCents,
		"available_cents": w.AvailableCents(),
		"currency":        w.Currency,
	})
}

type entryResponse struct {
	*models.LedgerEntry
	Ref    string      `json:"ref"`
	Target interface{} `json:"target,omitempty"`
}

// GetTransactions lists the user's ledger entries, newest first. With
// ?expand=ref each entry carries the booking, payout or adjustment it belongs to.
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	page, limit := parsePagination(c)
	st := h.store.WithContext(c.Request.Context())
	list, total, err := st.Ledger.ListByUser(middleware.GetUserID(c), page, limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	expand := c.Query("expand") == "ref"
	out := make([]entryResponse, len(list))
	for i := range list {
		e := &list[i]
		out[i] = entryResponse{LedgerEntry: e}
		if e.RefKind == "" {
			continue
		}
		out[i].Ref = e.Ref().String()
		if expand {
			target, err := st.ResolveRef(e.Ref())
			if err != nil {
				h.log.WarnContext(c.Request.Context(), "resolve ledger ref", "entry_id", e.ID, "ref", out[i].Ref, "err", err)
				continue
			}
			out[i].Target = target
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "total": total, "page": page, "limit": limit})
}
