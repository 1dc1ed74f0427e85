package payments_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func RegisterRoutes(r chi.Router, finder PaymentFinder, reporter Reporter, l *zap.Logger) {
	handler := NewPaymentHandler(finder, reporter, l.With(zap.String("component", "PaymentHTTPHandler")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Payments service is healthy!"))
	})

	r.Route("/payments", func(r chi.Router) {
		r.Get("/", handler.SearchPaymentsHandler)
		r.Get("/total", handler.TotalAmountHandler)
		r.Get("/{id}", handler.GetPaymentHandler)
	})
}
