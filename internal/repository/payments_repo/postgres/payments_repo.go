package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/kaimentalityy/InnoPaymentService/internal/criteria"
	"github.com/kaimentalityy/InnoPaymentService/internal/domain"
	"github.com/kaimentalityy/InnoPaymentService/internal/repository/payments_repo"
	"github.com/kaimentalityy/InnoPaymentService/internal/util"
)

const paymentColumns = `id, order_id, user_id, amount, status, created_at, updated_at`

var columns = map[criteria.Field]string{
	criteria.FieldUserID:    "user_id",
	criteria.FieldOrderID:   "order_id",
	criteria.FieldStatus:    "status",
	criteria.FieldTimestamp: "created_at",
}

var operators = map[criteria.Operator]string{
	criteria.OpEq:  "=",
	criteria.OpGte: ">=",
	criteria.OpLte: "<=",
}

type paymentRepository struct {
	db  *sql.DB
	now payments_repo.Clock
}

func NewPaymentRepository(db *sql.DB) *paymentRepository {
	return &paymentRepository{db: db, now: payments_repo.UTCNow}
}

func (r *paymentRepository) Create(ctx context.Context, orderID, userID int64, amount decimal.Decimal) (*domain.Payment, error) {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + paymentColumns
	now := r.now().UTC()
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query,
		util.GenerateUUID(),
		orderID,
		userID,
		amount,
		domain.PaymentStatusPending,
		now,
		now,
	))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Class() == "22" {
			return nil, fmt.Errorf("failed to create payment for order %d: %w", orderID, domain.NewValidationError("%s", pqErr.Message))
		}
		return nil, fmt.Errorf("failed to create payment for order %d: %w", orderID, err)
	}
	return payment, nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return r.getByID(ctx, r.db, id, false)
}

func (r *paymentRepository) getByID(ctx context.Context, querier domain.Querier, id string, forUpdate bool) (*domain.Payment, error) {
	if !util.IsUUID(id) {
		return nil, fmt.Errorf("payment with id %s: %w", id, domain.ErrPaymentNotFound)
	}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	payment, err := scanPayment(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment with id %s: %w", id, domain.ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("failed to get payment by id %s: %w", id, err)
	}
	return payment, nil
}

// UpdateStatus locks the row, checks the transition and writes the new status
// in one transaction.
func (r *paymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) (payment *domain.Payment, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else if commitErr := tx.Commit(); commitErr != nil {
			payment = nil
			err = fmt.Errorf("failed to commit payment status update %s: %w", id, commitErr)
		}
	}()

	current, err := r.getByID(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(current.Status, status) {
		return nil, fmt.Errorf("payment %s %s -> %s: %w", id, current.Status, status, domain.ErrInvalidTransition)
	}

	query := `
		UPDATE payments
		SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + paymentColumns
	payment, err = scanPayment(tx.QueryRowContext(ctx, query, string(status), r.now().UTC(), id))
	if err != nil {
		return nil, fmt.Errorf("failed to update payment status %s: %w", id, err)
	}
	return payment, nil
}

func (r *paymentRepository) Find(ctx context.Context, q criteria.Query) ([]domain.Payment, error) {
	where, args, err := buildWhere(q.Criteria)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + paymentColumns + ` FROM payments` + where

	if q.Sort != nil {
		col, ok := columns[q.Sort.Field]
		if !ok {
			return nil, domain.NewValidationError("cannot sort by %q", q.Sort.Field)
		}
		dir := "ASC"
		if q.Sort.Desc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s, id ASC", col, dir)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search payments: %w", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) SumAmount(ctx context.Context, q criteria.Query) (decimal.Decimal, error) {
	where, args, err := buildWhere(q.Criteria)
	if err != nil {
		return decimal.Zero, err
	}
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments` + where

	var total decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payment amounts: %w", err)
	}
	return total, nil
}

// buildWhere renders criteria as an AND-ed, parameterised WHERE clause.
// Field and operator names come from fixed maps, never from input.
func buildWhere(cs []criteria.Criterion) (string, []any, error) {
	if len(cs) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(cs))
	args := make([]any, 0, len(cs))
	for _, c := range cs {
		col, ok := columns[c.Field]
		if !ok {
			return "", nil, domain.NewValidationError("unknown field %q", c.Field)
		}
		op, ok := operators[c.Op]
		if !ok {
			return "", nil, domain.NewValidationError("unsupported operator %q", c.Op)
		}
		value := c.Value
		if s, ok := value.(domain.PaymentStatus); ok {
			value = string(s)
		}
		args = append(args, value)
		parts = append(parts, fmt.Sprintf("%s %s $%d", col, op, len(args)))
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	payment := &domain.Payment{}
	var status string
	err := row.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.UserID,
		&payment.Amount,
		&status,
		&payment.Timestamp,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	payment.Status = domain.PaymentStatus(status)
	payment.Timestamp = payment.Timestamp.UTC()
	payment.UpdatedAt = payment.UpdatedAt.UTC()
	return payment, nil
}
