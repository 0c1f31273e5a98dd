package handlers

import (
	"errors"
	"expvar"
	"log/slog"
	"net/http"
	"strconv"

	"matchmarket-service/internal/middleware"
	"matchmarket-service/internal/services"
	"matchmarket-service/pkg/common"

	"github.com/gin-gonic/gin"
)

// Handler exposes the match market services over HTTP.
type Handler struct {
	Waitlist    *services.WaitlistService
	Earnings    *services.EarningsService
	Settlements *services.SettlementService
	Monitor     *services.MatchMonitorService
	Logger      *slog.Logger
}

func NewHandler(waitlist *services.WaitlistService, earnings *services.EarningsService, settlements *services.SettlementService, monitor *services.MatchMonitorService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Waitlist:    waitlist,
		Earnings:    earnings,
		Settlements: settlements,
		Monitor:     monitor,
		Logger:      logger,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, common.OK(nil, "Welcome To Match Market service"))
	})
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))

	api := r.Group("/api", middleware.Auth(jwtSecret))
	{
		api.POST("/matches/:id/waitlist", h.JoinWaitlist)
		api.DELETE("/matches/:id/waitlist", h.CancelWaitlist)
		api.GET("/matches/:id/waitlist", h.ListWaitlist)
		api.POST("/matches/:id/waitlist/payment", h.SubmitPayment)
		api.POST("/matches/:id/participation/cancel", h.CancelParticipation)
		api.POST("/matches/:id/settle", h.SettleMatch)
		api.POST("/settlements/:id/report-paid", h.ReportPaid)
	}

	admin := api.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.POST("/waitlist/confirm", h.ConfirmPayment)
		admin.POST("/waitlist/reject", h.RejectPayment)
		admin.GET("/settlements", h.ListSettlements)
		admin.GET("/settlements/stats", h.SettlementStats)
		admin.GET("/settlements/:id", h.GetSettlement)
		admin.POST("/settlements/:id/payments", h.AddSettlementPayment)
		admin.DELETE("/settlement-payments/:paymentId", h.DeleteSettlementPayment)
		admin.POST("/settlements/:id/suspend", h.SuspendSettlement)
		admin.POST("/settlements/:id/unsuspend", h.UnsuspendSettlement)
		admin.POST("/settlements/recompute", h.RecomputeSettlements)
		admin.POST("/monitor/run", h.RunMonitor)
	}
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrOverpayment),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrAlreadyWaiting),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrOfferExpired),
		errors.Is(err, services.ErrCapacityFull):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, common.Fail(status, err.Error()))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, common.Fail(http.StatusBadRequest, message))
}

func queryInt(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
