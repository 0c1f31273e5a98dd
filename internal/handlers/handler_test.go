package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"matchmarket-service/internal/middleware"
	"matchmarket-service/internal/models"
	"matchmarket-service/internal/services"
	"matchmarket-service/internal/store"
	"matchmarket-service/internal/store/storetest"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

const jwtSecret = "handler-test-secret"

var ctx = context.Background()

type apiResponse struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Count   int64           `json:"count"`
}

type testAPI struct {
	router      *gin.Engine
	store       *store.GormStore
	settlements *services.SettlementService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := services.DefaultOptions()

	st := storetest.New(t)
	settlements := services.NewSettlementService(st, nil, logger, opts)
	h := NewHandler(
		services.NewWaitlistService(st, nil, nil, logger, opts),
		services.NewEarningsService(st, settlements, logger, opts),
		settlements,
		services.NewMatchMonitorService(st, nil, logger, opts),
		logger,
	)
	r := gin.New()
	h.RegisterRoutes(r, jwtSecret)
	return &testAPI{router: r, store: st, settlements: settlements}
}

func (a *testAPI) call(t *testing.T, method, path, userID, role string, body interface{}) (int, apiResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := middleware.IssueToken(jwtSecret, userID, role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func (a *testAPI) seedFullMatch(t *testing.T) {
	t.Helper()
	storetest.Seed(t, a.store, &models.Match{
		ID:             "m1",
		SellerId:       "seller-1",
		Title:          "Evening doubles",
		MatchDate:      datatypes.Date(time.Now().Add(48 * time.Hour)),
		StartTime:      datatypes.NewTime(18, 0, 0, 0),
		EndTime:        datatypes.NewTime(20, 0, 0, 0),
		BasePrice:      decimal.NewFromInt(20000),
		CurrentPrice:   decimal.NewFromInt(25000),
		ExpectedMale:   2,
		ExpectedFemale: 2,
		CurrentMale:    2,
		CurrentTotal:   2,
	})
	for _, id := range []string{"p-a", "p-b"} {
		require.NoError(t, a.store.CreateParticipant(ctx, &models.MatchParticipant{
			ID: "m1-" + id, MatchId: "m1", UserId: id, Gender: models.GenderMale,
			Status: models.ParticipantStatusConfirmed, PaymentAmount: decimal.NewFromInt(25000),
		}))
	}
}

func (a *testAPI) seedSettleable(t *testing.T, matchID, seller string, players int) {
	t.Helper()
	storetest.Seed(t, a.store, &models.Match{
		ID:           matchID,
		SellerId:     seller,
		Title:        "Match " + matchID,
		MatchDate:    datatypes.Date(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)),
		StartTime:    datatypes.NewTime(9, 0, 0, 0),
		EndTime:      datatypes.NewTime(11, 0, 0, 0),
		BasePrice:    decimal.NewFromInt(10000),
		CurrentPrice: decimal.NewFromInt(15000),
		ExpectedMale: players,
		CurrentMale:  players,
		CurrentTotal: players,
	})
	for i := 0; i < players; i++ {
		require.NoError(t, a.store.CreateParticipant(ctx, &models.MatchParticipant{
			ID: fmt.Sprintf("%s-%d", matchID, i), MatchId: matchID, UserId: fmt.Sprintf("player-%d", i), Gender: models.GenderMale,
			Status: models.ParticipantStatusConfirmed, PaymentAmount: decimal.NewFromInt(15000),
		}))
	}
}

func TestPing(t *testing.T) {
	api := newTestAPI(t)
	code, resp := api.call(t, http.MethodGet, "/ping", "", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Welcome To Match Market service", resp.Message)
}

func TestRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)
	code, _ := api.call(t, http.MethodGet, "/api/matches/m1/waitlist", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.call(t, http.MethodPost, "/api/admin/waitlist/confirm", "user-1", "", gin.H{"match_id": "m1", "user_id": "u"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestJoinWaitlist(t *testing.T) {
	api := newTestAPI(t)
	api.seedFullMatch(t)

	code, resp := api.call(t, http.MethodPost, "/api/matches/m1/waitlist", "w1", "", gin.H{"gender": "male", "user_name": "Kim"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, http.StatusCreated, resp.Status, "body status mirrors the reply")
	assert.True(t, resp.Success)
	var joined services.JoinResult
	require.NoError(t, json.Unmarshal(resp.Data, &joined))
	assert.EqualValues(t, 1, joined.Position)
	assert.Equal(t, models.WaitingStatusWaiting, joined.Applicant.Status)

	code, resp = api.call(t, http.MethodPost, "/api/matches/m1/waitlist", "w1", "", gin.H{"gender": "male"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, http.StatusConflict, resp.Status)
	assert.False(t, resp.Success)

	code, _ = api.call(t, http.MethodPost, "/api/matches/missing/waitlist", "w1", "", gin.H{"gender": "male"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.call(t, http.MethodPost, "/api/matches/m1/waitlist", "w2", "", gin.H{"gender": "robot"})
	assert.Equal(t, http.StatusBadRequest, code, "unknown gender is bad input")

	code, resp = api.call(t, http.MethodGet, "/api/matches/m1/waitlist", "w1", "", nil)
	require.Equal(t, http.StatusOK, code)
	var entries []services.WaitlistEntry
	require.NoError(t, json.Unmarshal(resp.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "w1", entries[0].UserId)

	code, _ = api.call(t, http.MethodDelete, "/api/matches/m1/waitlist", "w1", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestOfferSubmitConfirmFlow(t *testing.T) {
	api := newTestAPI(t)
	api.seedFullMatch(t)

	code, _ := api.call(t, http.MethodPost, "/api/matches/m1/waitlist", "w1", "", gin.H{"gender": "male"})
	require.Equal(t, http.StatusCreated, code)

	code, _ = api.call(t, http.MethodPost, "/api/matches/m1/waitlist/payment", "w1", "", gin.H{"depositor_name": "KIM"})
	assert.Equal(t, http.StatusConflict, code, "no offer yet")

	code, resp := api.call(t, http.MethodPost, "/api/matches/m1/participation/cancel", "p-a", "", nil)
	require.Equal(t, http.StatusOK, code)
	var cancelled struct {
		OfferedTo *models.WaitingApplicant `json:"offered_to"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &cancelled))
	require.NotNil(t, cancelled.OfferedTo)
	assert.Equal(t, "w1", cancelled.OfferedTo.UserId)

	code, _ = api.call(t, http.MethodPost, "/api/matches/m1/waitlist/payment", "w1", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code, "depositor name is required")

	code, resp = api.call(t, http.MethodPost, "/api/matches/m1/waitlist/payment", "w1", "", gin.H{"depositor_name": "KIM"})
	require.Equal(t, http.StatusOK, code)
	var pending models.MatchParticipant
	require.NoError(t, json.Unmarshal(resp.Data, &pending))
	assert.Equal(t, models.ParticipantStatusPaymentPending, pending.Status)

	code, _ = api.call(t, http.MethodPost, "/api/admin/waitlist/confirm", "admin-1", middleware.RoleAdmin, gin.H{"match_id": "m1"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = api.call(t, http.MethodPost, "/api/admin/waitlist/confirm", "admin-1", middleware.RoleAdmin, gin.H{"match_id": "m1", "user_id": "w1"})
	require.Equal(t, http.StatusOK, code)
	var confirmed models.MatchParticipant
	require.NoError(t, json.Unmarshal(resp.Data, &confirmed))
	assert.Equal(t, models.ParticipantStatusConfirmed, confirmed.Status)

	m, err := api.store.GetMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, m.CurrentMale)
	assert.Equal(t, 0, m.WaitingCount)
}

func TestSettlementAdminFlow(t *testing.T) {
	api := newTestAPI(t)
	api.seedSettleable(t, "A", "S", 2)
	storetest.Seed(t, api.store, &models.User{ID: "S", Name: "Seller S"})

	code, _ := api.call(t, http.MethodPost, "/api/matches/A/settle", "intruder", "", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, resp := api.call(t, http.MethodPost, "/api/matches/A/settle", "S", "", nil)
	require.Equal(t, http.StatusOK, code)
	var settled services.SettleResult
	require.NoError(t, json.Unmarshal(resp.Data, &settled))
	assert.True(t, settled.Settlement.CommissionDue.Equal(decimal.NewFromInt(1500)), settled.Settlement.CommissionDue.String())
	id := settled.Settlement.ID

	code, resp = api.call(t, http.MethodGet, "/api/admin/settlements?year=2024&month=3", "admin-1", middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, resp.Count)
	assert.True(t, resp.Success)
	assert.Equal(t, http.StatusOK, resp.Status)
	var summaries []services.SettlementSummary
	require.NoError(t, json.Unmarshal(resp.Data, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "Seller S", summaries[0].SellerName)

	code, _ = api.call(t, http.MethodGet, "/api/admin/settlements?year=2024&month=13", "admin-1", middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = api.call(t, http.MethodGet, "/api/admin/settlements?year=abc", "admin-1", middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.call(t, http.MethodPost, "/api/admin/settlements/"+id+"/payments", "admin-1", middleware.RoleAdmin, gin.H{"amount": "2000"})
	assert.Equal(t, http.StatusBadRequest, code, "overpayment")

	code, resp = api.call(t, http.MethodPost, "/api/admin/settlements/"+id+"/payments", "admin-1", middleware.RoleAdmin, gin.H{"amount": "1500", "method": "bank_transfer"})
	require.Equal(t, http.StatusCreated, code)
	var paid services.PaymentResult
	require.NoError(t, json.Unmarshal(resp.Data, &paid))
	assert.Equal(t, models.SettlementStatusConfirmed, paid.Settlement.PaymentStatus)
	assert.True(t, paid.Settlement.UnpaidAmount.IsZero())

	code, resp = api.call(t, http.MethodGet, "/api/admin/settlements/stats?year=2024&month=3", "admin-1", middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, code)
	var stats services.SettlementStats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 1, stats.SettledCount)

	code, resp = api.call(t, http.MethodDelete, "/api/admin/settlement-payments/"+paid.Payment.ID, "admin-1", middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, code)
	var reverted models.MonthlySettlement
	require.NoError(t, json.Unmarshal(resp.Data, &reverted))
	assert.Equal(t, models.SettlementStatusPending, reverted.PaymentStatus)

	code, resp = api.call(t, http.MethodPost, "/api/admin/settlements/"+id+"/suspend", "admin-1", middleware.RoleAdmin, gin.H{"notes": "overdue"})
	require.Equal(t, http.StatusOK, code)
	var suspended models.MonthlySettlement
	require.NoError(t, json.Unmarshal(resp.Data, &suspended))
	assert.True(t, suspended.IsAccountSuspended)
	assert.Equal(t, "overdue", suspended.AdminNotes)

	code, _ = api.call(t, http.MethodPost, "/api/settlements/"+id+"/report-paid", "someone-else", "", nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = api.call(t, http.MethodPost, "/api/settlements/"+id+"/report-paid", "S", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, resp = api.call(t, http.MethodPost, "/api/admin/settlements/recompute", "admin-1", middleware.RoleAdmin, gin.H{"year": 2024, "month": 3})
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"recomputed":1}`, string(resp.Data))
}

func TestSettlementPeriodDefaultsToBusinessMonth(t *testing.T) {
	api := newTestAPI(t)
	api.settlements.Options.Location = time.FixedZone("KST", 9*3600)
	api.settlements.Now = func() time.Time {
		return time.Date(2024, 3, 31, 20, 0, 0, 0, time.UTC) // already April 1st in KST
	}

	code, resp := api.call(t, http.MethodGet, "/api/admin/settlements/stats", "admin-1", middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, code)
	var stats services.SettlementStats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 2024, stats.Year)
	assert.Equal(t, 4, stats.Month)

	code, resp = api.call(t, http.MethodGet, "/api/admin/settlements/stats?month=2", "admin-1", middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 2024, stats.Year)
	assert.Equal(t, 2, stats.Month)
}

func TestRunMonitor(t *testing.T) {
	api := newTestAPI(t)
	code, resp := api.call(t, http.MethodPost, "/api/admin/monitor/run", "admin-1", middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, code)
	var res services.MonitorResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, 0, res.Scanned)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrOverpayment, http.StatusBadRequest},
		{services.ErrInvalidAmount, http.StatusBadRequest},
		{fmt.Errorf("%w: invalid period 2024-13", services.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: match is cancelled", services.ErrInvalidState), http.StatusConflict},
		{services.ErrAlreadyWaiting, http.StatusConflict},
		{services.ErrOfferExpired, http.StatusConflict},
		{services.ErrCapacityFull, http.StatusConflict},
		{&services.PersistenceError{Op: "get match", Err: errors.New("connection reset")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
