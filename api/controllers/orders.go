package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/acecharity/raffle-backend/api/responses"
	orderssvc "github.com/acecharity/raffle-backend/internal/orders"
	pkgerrors "github.com/acecharity/raffle-backend/pkg/errors"
	"github.com/acecharity/raffle-backend/pkg/logger"
)

// GetOrderLog returns the append-only history of an order.
func GetOrderLog(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := svc.GetByID(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.ListLog(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := make([]orderLogEntryResponse, 0, len(entries))
		for _, entry := range entries {
			payload = append(payload, orderLogEntryResponse{At: entry.At, Message: entry.Message})
		}
		responses.WriteSuccess(w, payload)
	}
}

// RefundOrder reverses a completed order's payment.
func RefundOrder(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Refund(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type orderLogEntryResponse struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

func orderIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "orderID")
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id must be a uuid")
	}
	return orderID, nil
}
