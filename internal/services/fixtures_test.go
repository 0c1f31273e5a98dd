package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"matchmarket-service/internal/models"
	"matchmarket-service/internal/notify"
	"matchmarket-service/internal/store"
	"matchmarket-service/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var ctx = context.Background()

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeNotifier) byKind(kind string) []notify.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notify.Notification
	for _, n := range f.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type fakeScheduler struct {
	mu     sync.Mutex
	offers []OfferExpiry
}

func (f *fakeScheduler) ScheduleOfferExpiry(_ context.Context, offer OfferExpiry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, offer)
	return nil
}

func (f *fakeScheduler) last() OfferExpiry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offers[len(f.offers)-1]
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.offers)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, dec(want).StringFixed(2), got.StringFixed(2), msgAndArgs...)
}

// fullMaleMatch returns an open match for 2 men and 2 women where both male
// slots are taken.
func fullMaleMatch(id string) models.Match {
	return models.Match{
		ID:             id,
		SellerId:       "seller-1",
		Title:          "Friday doubles",
		MatchDate:      datatypes.Date(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)),
		StartTime:      datatypes.NewTime(18, 0, 0, 0),
		EndTime:        datatypes.NewTime(20, 0, 0, 0),
		BasePrice:      dec("20000"),
		CurrentPrice:   dec("25000"),
		ExpectedMale:   2,
		ExpectedFemale: 2,
		CurrentMale:    2,
		CurrentTotal:   2,
		MatchType:      models.MatchTypeDoubles,
		Status:         models.MatchStatusOpen,
	}
}

func seedMatch(t *testing.T, st *store.GormStore, m models.Match) {
	t.Helper()
	storetest.Seed(t, st, &m)
}

func seedParticipant(t *testing.T, st *store.GormStore, matchID, userID, gender, status string, amount string) models.MatchParticipant {
	t.Helper()
	p := models.MatchParticipant{
		ID:            matchID + "-" + userID,
		MatchId:       matchID,
		UserId:        userID,
		Gender:        gender,
		Status:        status,
		PaymentAmount: dec(amount),
	}
	require.NoError(t, st.CreateParticipant(ctx, &p))
	return p
}

type waitlistFixture struct {
	svc       *WaitlistService
	store     *store.GormStore
	notifier  *fakeNotifier
	scheduler *fakeScheduler
	clock     *testClock
}

func newWaitlistFixture(t *testing.T) *waitlistFixture {
	t.Helper()
	st := storetest.New(t)
	seedMatch(t, st, fullMaleMatch("m1"))
	seedParticipant(t, st, "m1", "p-a", models.GenderMale, models.ParticipantStatusConfirmed, "25000")
	seedParticipant(t, st, "m1", "p-b", models.GenderMale, models.ParticipantStatusConfirmed, "25000")

	f := &waitlistFixture{
		store:     st,
		notifier:  &fakeNotifier{},
		scheduler: &fakeScheduler{},
		clock:     newTestClock(),
	}
	f.svc = NewWaitlistService(st, f.notifier, f.scheduler, discardLogger, DefaultOptions())
	f.svc.Now = f.clock.Now
	return f
}

func (f *waitlistFixture) join(t *testing.T, userID, gender string) *JoinResult {
	t.Helper()
	res, err := f.svc.Join(ctx, JoinRequest{MatchId: "m1", UserId: userID, UserName: userID, Gender: gender})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	return res
}

func (f *waitlistFixture) match(t *testing.T) *models.Match {
	t.Helper()
	m, err := f.store.GetMatch(ctx, "m1")
	require.NoError(t, err)
	return m
}

func (f *waitlistFixture) applicant(t *testing.T, userID string) *models.WaitingApplicant {
	t.Helper()
	a, err := f.store.FindApplicant(ctx, "m1", userID)
	require.NoError(t, err)
	return a
}
