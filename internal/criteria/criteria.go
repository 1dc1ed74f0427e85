// Package criteria describes payment queries as data: an ordered list of
// predicates combined with AND, a sort order and a page window. The same
// Query is evaluated in memory via Match and rendered to SQL by the Postgres
// repository.
package criteria

import (
	"time"

	"github.com/kaimentalityy/InnoPaymentService/internal/domain"
)

type Field string

const (
	FieldUserID    Field = "userId"
	FieldOrderID   Field = "orderId"
	FieldStatus    Field = "status"
	FieldTimestamp Field = "timestamp"
)

type Operator string

const (
	OpEq  Operator = "="
	OpGte Operator = ">="
	OpLte Operator = "<="
)

type Criterion struct {
	Field Field
	Op    Operator
	Value any
}

// Match evaluates the criterion against p. A criterion whose value type does
// not fit its field never matches.
func (c Criterion) Match(p domain.Payment) bool {
	switch c.Field {
	case FieldUserID:
		v, ok := c.Value.(int64)
		return ok && compareInt(p.UserID, c.Op, v)
	case FieldOrderID:
		v, ok := c.Value.(int64)
		return ok && compareInt(p.OrderID, c.Op, v)
	case FieldStatus:
		v, ok := c.Value.(domain.PaymentStatus)
		return ok && c.Op == OpEq && p.Status == v
	case FieldTimestamp:
		v, ok := c.Value.(time.Time)
		return ok && compareTime(p.Timestamp, c.Op, v)
	}
	return false
}

func compareInt(a int64, op Operator, b int64) bool {
	switch op {
	case OpEq:
		return a == b
	case OpGte:
		return a >= b
	case OpLte:
		return a <= b
	}
	return false
}

func compareTime(a time.Time, op Operator, b time.Time) bool {
	switch op {
	case OpEq:
		return a.Equal(b)
	case OpGte:
		return !a.Before(b)
	case OpLte:
		return !a.After(b)
	}
	return false
}

type Sort struct {
	Field Field
	Desc  bool
}

type Query struct {
	Criteria []Criterion
	Sort     *Sort
	Offset   int
	// Limit <= 0 means no limit.
	Limit int
}

// Match reports whether p satisfies every criterion of q.
func (q Query) Match(p domain.Payment) bool {
	for _, c := range q.Criteria {
		if !c.Match(p) {
			return false
		}
	}
	return true
}

// Builder accumulates criteria, skipping filters whose input is absent.
type Builder struct {
	q Query
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Where(field Field, op Operator, value any) *Builder {
	b.q.Criteria = append(b.q.Criteria, Criterion{Field: field, Op: op, Value: value})
	return b
}

func (b *Builder) UserID(id *int64) *Builder {
	if id != nil {
		b.Where(FieldUserID, OpEq, *id)
	}
	return b
}

func (b *Builder) OrderID(id *int64) *Builder {
	if id != nil {
		b.Where(FieldOrderID, OpEq, *id)
	}
	return b
}

func (b *Builder) Status(status *domain.PaymentStatus) *Builder {
	if status != nil && *status != "" {
		b.Where(FieldStatus, OpEq, *status)
	}
	return b
}

// Between adds an inclusive [start, end] window on the timestamp, compared in UTC.
func (b *Builder) Between(start, end time.Time) *Builder {
	b.Where(FieldTimestamp, OpGte, start.UTC())
	b.Where(FieldTimestamp, OpLte, end.UTC())
	return b
}

func (b *Builder) OrderBy(field Field, desc bool) *Builder {
	b.q.Sort = &Sort{Field: field, Desc: desc}
	return b
}

func (b *Builder) Page(page, size int) *Builder {
	b.q.Offset = page * size
	b.q.Limit = size
	return b
}

func (b *Builder) Build() Query {
	q := b.q
	q.Criteria = append([]Criterion(nil), b.q.Criteria...)
	return q
}
