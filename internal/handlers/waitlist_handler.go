package handlers

import (
	"errors"
	"io"
	"net/http"

	"matchmarket-service/internal/middleware"
	"matchmarket-service/internal/services"
	"matchmarket-service/pkg/common"

	"github.com/gin-gonic/gin"
)

type JoinWaitlistRequest struct {
	UserName   string  `json:"user_name"`
	Gender     string  `json:"gender"`
	NtrpRating float64 `json:"ntrp_rating"`
}

type SubmitPaymentRequest struct {
	DepositorName string `json:"depositor_name" binding:"required"`
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *Handler) JoinWaitlist(c *gin.Context) {
	var req JoinWaitlistRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.Waitlist.Join(c.Request.Context(), services.JoinRequest{
		MatchId:    c.Param("id"),
		UserId:     middleware.CurrentUser(c),
		UserName:   req.UserName,
		Gender:     req.Gender,
		NtrpRating: req.NtrpRating,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.Created(res, "Joined waitlist"))
}

func (h *Handler) CancelWaitlist(c *gin.Context) {
	if err := h.Waitlist.Cancel(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.OK(nil, "Waitlist entry cancelled"))
}

func (h *Handler) ListWaitlist(c *gin.Context) {
	entries, err := h.Waitlist.ListWaitlist(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.OK(entries, ""))
}

func (h *Handler) SubmitPayment(c *gin.Context) {
	var req SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	participant, err := h.Waitlist.SubmitPayment(c.Request.Context(), services.SubmitPaymentRequest{
		MatchId:       c.Param("id"),
		UserId:        middleware.CurrentUser(c),
		DepositorName: req.DepositorName,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.OK(participant, "Payment submitted, awaiting confirmation"))
}

func (h *Handler) CancelParticipation(c *gin.Context) {
	offered, err := h.Waitlist.CancelParticipation(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.OK(gin.H{"offered_to": offered}, "Participation cancelled"))
}

func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req services.AdminWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	participant, err := h.Waitlist.ConfirmPayment(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.OK(participant, "Payment confirmed"))
}

func (h *Handler) RejectPayment(c *gin.Context) {
	var req services.AdminWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.Waitlist.RejectPayment(c.Request.Context(), req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.OK(nil, "Payment rejected"))
}

func (h *Handler) SettleMatch(c *gin.Context) {
	res, err := h.Earnings.SettleMatch(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.OK(res, "Match settled"))
}

func (h *Handler) RunMonitor(c *gin.Context) {
	res, err := h.Monitor.RunOnce(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.OK(res, "Monitor run completed"))
}
