package payments_http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kaimentalityy/InnoPaymentService/internal/app/reporting"
	"github.com/kaimentalityy/InnoPaymentService/internal/domain"
)

const (
	ErrorCodeValidation = 4000
	ErrorCodeNotFound   = 4001
	ErrorCodeInternal   = 5000
)

type PaymentFinder interface {
	GetPayment(ctx context.Context, id string) (*domain.Payment, error)
}

type Reporter interface {
	Search(ctx context.Context, params reporting.SearchParams) ([]domain.Payment, error)
	SumAmountInWindow(ctx context.Context, start, end time.Time) (decimal.Decimal, error)
}

type PaymentHandler struct {
	finder   PaymentFinder
	reporter Reporter
	logger   *zap.Logger
}

func NewPaymentHandler(finder PaymentFinder, reporter Reporter, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{finder: finder, reporter: reporter, logger: l}
}

type PaymentResponse struct {
	ID        string `json:"id"`
	OrderID   int64  `json:"orderId"`
	UserID    int64  `json:"userId"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type TotalAmountResponse struct {
	TotalAmount string `json:"totalAmount"`
}

type ErrorDto struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func toPaymentResponse(p domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:        p.ID,
		OrderID:   p.OrderID,
		UserID:    p.UserID,
		Amount:    p.Amount.StringFixed(domain.AmountScale),
		Status:    string(p.Status),
		Timestamp: p.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func (h *PaymentHandler) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeValidation, "Payment ID is required")
		return
	}

	payment, err := h.finder.GetPayment(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, zap.String("payment_id", id))
		return
	}
	h.writeJSON(w, http.StatusOK, toPaymentResponse(*payment))
}

func (h *PaymentHandler) SearchPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := reporting.SearchParams{Page: 0, Size: reporting.DefaultPageSize}

	var err error
	if params.UserID, err = optionalInt64(query.Get("userId")); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeValidation, "Invalid userId format")
		return
	}
	if params.OrderID, err = optionalInt64(query.Get("orderId")); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeValidation, "Invalid orderId format")
		return
	}
	if s := query.Get("status"); s != "" {
		status, err := domain.ParsePaymentStatus(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, ErrorCodeValidation, err.Error())
			return
		}
		params.Status = &status
	}
	if s := query.Get("page"); s != "" {
		if params.Page, err = strconv.Atoi(s); err != nil {
			h.writeError(w, http.StatusBadRequest, ErrorCodeValidation, "Invalid page format")
			return
		}
	}
	if s := query.Get("size"); s != "" {
		if params.Size, err = strconv.Atoi(s); err != nil {
			h.writeError(w, http.StatusBadRequest, ErrorCodeValidation, "Invalid size format")
			return
		}
	}

	payments, err := h.reporter.Search(r.Context(), params)
	if err != nil {
		h.handleServiceError(w, err, zap.Int("page", params.Page), zap.Int("size", params.Size))
		return
	}

	resp := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, toPaymentResponse(p))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) TotalAmountHandler(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeValidation, "start must be an RFC3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeValidation, "end must be an RFC3339 timestamp")
		return
	}

	total, err := h.reporter.SumAmountInWindow(r.Context(), start.UTC(), end.UTC())
	if err != nil {
		h.handleServiceError(w, err, zap.Time("start", start), zap.Time("end", end))
		return
	}
	h.writeJSON(w, http.StatusOK, TotalAmountResponse{TotalAmount: total.StringFixed(domain.AmountScale)})
}

func (h *PaymentHandler) handleServiceError(w http.ResponseWriter, err error, fields ...zap.Field) {
	switch {
	case errors.Is(err, domain.ErrPaymentNotFound):
		h.logger.Warn("Payment not found", append(fields, zap.Error(err))...)
		h.writeError(w, http.StatusNotFound, ErrorCodeNotFound, "Payment not found")
	case errors.Is(err, domain.ErrValidation):
		h.logger.Warn("Rejected invalid request", append(fields, zap.Error(err))...)
		h.writeError(w, http.StatusBadRequest, ErrorCodeValidation, err.Error())
	default:
		h.logger.Error("Request failed", append(fields, zap.Error(err))...)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternal, "Internal server error")
	}
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, status, code int, message string) {
	h.writeJSON(w, status, ErrorDto{ErrorCode: code, ErrorMessage: message})
}

func (h *PaymentHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Не удалось отправить JSON-ответ", zap.Error(err))
	}
}

func optionalInt64(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
