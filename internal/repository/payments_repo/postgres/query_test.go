package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaimentalityy/InnoPaymentService/internal/criteria"
	"github.com/kaimentalityy/InnoPaymentService/internal/domain"
)

func TestBuildWhere(t *testing.T) {
	where, args, err := buildWhere(nil)
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)

	userID := int64(200)
	status := domain.PaymentStatusFailed
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := criteria.NewBuilder().UserID(&userID).Status(&status).Between(start, start.Add(time.Hour)).Build()

	where, args, err = buildWhere(q.Criteria)
	require.NoError(t, err)
	assert.Equal(t, " WHERE user_id = $1 AND status = $2 AND created_at >= $3 AND created_at <= $4", where)
	assert.Equal(t, []any{int64(200), "FAILED", start, start.Add(time.Hour)}, args)
}

func TestBuildWhere_RejectsUnknownFieldOrOperator(t *testing.T) {
	_, _, err := buildWhere([]criteria.Criterion{{Field: "amount; DROP TABLE payments", Op: criteria.OpEq, Value: 1}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = buildWhere([]criteria.Criterion{{Field: criteria.FieldUserID, Op: "LIKE", Value: 1}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
