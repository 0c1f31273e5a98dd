package handlers

import (
	"net/http"

	"matchmarket-service/internal/middleware"
	"matchmarket-service/internal/services"
	"matchmarket-service/pkg/common"

	"github.com/gin-gonic/gin"
)

type SuspendRequest struct {
	Notes string `json:"notes"`
}

type RecomputeRequest struct {
	SellerId string `json:"seller_id"`
	Year     int    `json:"year" binding:"required"`
	Month    int    `json:"month" binding:"required"`
}

// period reads ?year=&month=, defaulting to the current month in the business
// location.
func (h *Handler) period(c *gin.Context) (int, int, bool) {
	curYear, curMonth := h.Settlements.CurrentPeriod()
	year, ok := queryInt(c, "year", curYear)
	if !ok {
		return 0, 0, false
	}
	month, ok := queryInt(c, "month", curMonth)
	if !ok {
		return 0, 0, false
	}
	return year, month, true
}

func (h *Handler) ListSettlements(c *gin.Context) {
	year, month, ok := h.period(c)
	if !ok {
		badRequest(c, "Invalid year or month")
		return
	}
	page, ok1 := queryInt(c, "page", 1)
	limit, ok2 := queryInt(c, "limit", 20)
	if !ok1 || !ok2 || page < 1 || limit < 1 {
		badRequest(c, "Invalid page or limit")
		return
	}

	summaries, err := h.Settlements.ListSummaries(c.Request.Context(), year, month)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.Paginate(summaries, page, limit, ""))
}

func (h *Handler) SettlementStats(c *gin.Context) {
	year, month, ok := h.period(c)
	if !ok {
		badRequest(c, "Invalid year or month")
		return
	}
	stats, err := h.Settlements.Stats(c.Request.Context(), year, month)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.OK(stats, ""))
}

func (h *Handler) GetSettlement(c *gin.Context) {
	summary, err := h.Settlements.GetSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.OK(summary, ""))
}

func (h *Handler) AddSettlementPayment(c *gin.Context) {
	var req services.AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.SettlementId = c.Param("id")
	req.RecordedBy = middleware.CurrentUser(c)

	res, err := h.Settlements.AddPayment(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.Created(res, "Payment recorded"))
}

func (h *Handler) DeleteSettlementPayment(c *gin.Context) {
	settlement, err := h.Settlements.DeletePayment(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.OK(settlement, "Payment deleted"))
}

func (h *Handler) SuspendSettlement(c *gin.Context) {
	h.setSuspended(c, true)
}

func (h *Handler) UnsuspendSettlement(c *gin.Context) {
	h.setSuspended(c, false)
}

func (h *Handler) setSuspended(c *gin.Context, suspended bool) {
	var req SuspendRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err.Error())
		return
	}
	settlement, err := h.Settlements.SetSuspended(c.Request.Context(), c.Param("id"), suspended, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	message := "Account reinstated"
	if suspended {
		message = "Account suspended"
	}
	c.JSON(http.StatusOK, common.OK(settlement, message))
}

func (h *Handler) RecomputeSettlements(c *gin.Context) {
	var req RecomputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if req.SellerId != "" {
		settlement, err := h.Settlements.Recompute(c.Request.Context(), req.SellerId, req.Year, req.Month)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, common.OK(settlement, "Settlement recomputed"))
		return
	}

	count, err := h.Settlements.RecomputeMonth(c.Request.Context(), req.Year, req.Month)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.OK(gin.H{"recomputed": count}, "Settlements recomputed"))
}

func (h *Handler) ReportPaid(c *gin.Context) {
	settlement, err := h.Settlements.ReportPaid(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.OK(settlement, "Payment reported, awaiting confirmation"))
}
