package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kaimentalityy/InnoPaymentService/internal/criteria"
	"github.com/kaimentalityy/InnoPaymentService/internal/domain"
	"github.com/kaimentalityy/InnoPaymentService/internal/repository/payments_repo/memory"
)

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

// seed creates four payments at T1 < T2 < T3 < T4 and returns their ids in
// that order.
func seed(t *testing.T, amounts ...string) (*Engine, []string) {
	t.Helper()
	tick := 0
	repo := memory.NewPaymentRepositoryWithClock(func() time.Time {
		tick++
		return t0.Add(time.Duration(tick) * time.Hour)
	})
	var ids []string
	for i, a := range amounts {
		p, err := repo.Create(context.Background(), int64(100+i), int64(200+i%2), decimal.RequireFromString(a))
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	return NewEngine(repo, zaptest.NewLogger(t)), ids
}

func paymentIDs(ps []domain.Payment) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

func TestSearch_RecencyFirstPaging(t *testing.T) {
	engine, ids := seed(t, "10", "20", "30", "40")
	ctx := context.Background()

	page0, err := engine.Search(ctx, SearchParams{Page: 0, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[3], ids[2]}, paymentIDs(page0))

	page1, err := engine.Search(ctx, SearchParams{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1], ids[0]}, paymentIDs(page1))

	page2, err := engine.Search(ctx, SearchParams{Page: 2, Size: 2})
	require.NoError(t, err)
	assert.NotNil(t, page2)
	assert.Empty(t, page2)
}

func TestSearch_Filters(t *testing.T) {
	engine, ids := seed(t, "10", "20", "30", "40")
	ctx := context.Background()

	userID := int64(201)
	got, err := engine.Search(ctx, SearchParams{UserID: &userID, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[3], ids[1]}, paymentIDs(got))

	orderID := int64(102)
	got, err = engine.Search(ctx, SearchParams{UserID: &userID, OrderID: &orderID, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, got, "filters are combined with AND")

	pending := domain.PaymentStatusPending
	got, err = engine.Search(ctx, SearchParams{Status: &pending, Size: 10})
	require.NoError(t, err)
	assert.Len(t, got, 4)

	success := domain.PaymentStatusSuccess
	got, err = engine.Search(ctx, SearchParams{Status: &success, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_Validation(t *testing.T) {
	engine, _ := seed(t, "1")
	ctx := context.Background()

	_, err := engine.Search(ctx, SearchParams{Page: -1, Size: 2})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = engine.Search(ctx, SearchParams{Page: 0, Size: -2})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = engine.Search(ctx, SearchParams{Page: 0, Size: MaxPageSize + 1})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := engine.Search(ctx, SearchParams{Page: 0, Size: 0})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSumAmountInWindow(t *testing.T) {
	engine, _ := seed(t, "50.00", "100.00", "25.00")
	ctx := context.Background()

	total, err := engine.SumAmountInWindow(ctx, t0.Add(time.Hour), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "150.00", total.StringFixed(2), "both bounds are inclusive")

	local := time.FixedZone("UTC+5", 5*3600)
	total, err = engine.SumAmountInWindow(ctx, t0.Add(time.Hour).In(local), t0.Add(2*time.Hour).In(local))
	require.NoError(t, err)
	assert.Equal(t, "150.00", total.StringFixed(2))

	total, err = engine.SumAmountInWindow(ctx, t0.AddDate(1, 0, 0), t0.AddDate(1, 0, 1))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.Zero))

	_, err = engine.SumAmountInWindow(ctx, t0.Add(time.Hour), t0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

type brokenCollection struct{}

func (brokenCollection) Find(context.Context, criteria.Query) ([]domain.Payment, error) {
	return nil, errors.New("boom")
}

func (brokenCollection) SumAmount(context.Context, criteria.Query) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("boom")
}

func TestEngine_PropagatesStoreErrors(t *testing.T) {
	engine := NewEngine(brokenCollection{}, zaptest.NewLogger(t))

	_, err := engine.Search(context.Background(), SearchParams{Size: 1})
	assert.ErrorContains(t, err, "boom")
	_, err = engine.SumAmountInWindow(context.Background(), t0, t0)
	assert.ErrorContains(t, err, "boom")
}
