package controllers

import (
	"net/http"

	"github.com/acecharity/raffle-backend/api/responses"
	"github.com/acecharity/raffle-backend/api/validators"
	checkoutsvc "github.com/acecharity/raffle-backend/internal/checkout"
	"github.com/acecharity/raffle-backend/pkg/db/models"
	pkgerrors "github.com/acecharity/raffle-backend/pkg/errors"
	"github.com/acecharity/raffle-backend/pkg/logger"
	"github.com/acecharity/raffle-backend/pkg/types"
)

// ViewCheckout resolves (or starts) the customer's checkout session.
func ViewCheckout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload viewCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.View(r.Context(), checkoutsvc.ViewInput{
			OrderKey:  payload.OrderKey,
			CartToken: payload.CartToken,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCheckoutViewResponse(view))
	}
}

// SubmitCheckout finalizes the order and captures payment.
func SubmitCheckout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload submitCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), checkoutsvc.SubmitInput{
			OrderKey:         payload.OrderKey,
			CartToken:        payload.CartToken,
			FirstName:        payload.FirstName,
			LastName:         payload.LastName,
			Email:            payload.Email,
			Phone:            payload.Phone,
			Location:         payload.Location,
			BenefactorTermID: payload.BenefactorTermID,
			AcceptedTerms:    payload.AcceptTerms,
			PaymentToken:     payload.PaymentToken,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, submitCheckoutResponse{
			Order:     newOrderResponse(result.Order),
			Reference: result.Reference,
		})
	}
}

type viewCheckoutRequest struct {
	OrderKey  string `json:"order_key,omitempty" validate:"omitempty,max=64"`
	CartToken string `json:"cart_token,omitempty" validate:"omitempty,max=64"`
}

type submitCheckoutRequest struct {
	OrderKey         string  `json:"order_key" validate:"required,max=64"`
	CartToken        string  `json:"cart_token,omitempty" validate:"omitempty,max=64"`
	FirstName        string  `json:"first_name" validate:"required,max=100"`
	LastName         string  `json:"last_name" validate:"required,max=100"`
	Email            string  `json:"email" validate:"required,email"`
	Phone            *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Location         *string `json:"location,omitempty" validate:"omitempty,max=200"`
	BenefactorTermID int     `json:"benefactor_term_id" validate:"min=0"`
	AcceptTerms      bool    `json:"accept_terms" validate:"required"`
	PaymentToken     string  `json:"payment_token,omitempty" validate:"omitempty,max=128"`
}

type checkoutViewResponse struct {
	Order       orderResponse        `json:"order"`
	Warnings    []string             `json:"warnings,omitempty"`
	Benefactors []benefactorResponse `json:"benefactors"`
	TermsURL    string               `json:"terms_url,omitempty"`
}

type submitCheckoutResponse struct {
	Order     orderResponse `json:"order"`
	Reference string        `json:"reference"`
}

type orderResponse struct {
	OrderKey      string             `json:"order_key"`
	OrderNumber   int64              `json:"order_number"`
	Status        string             `json:"status"`
	TicketStatus  string             `json:"ticket_status"`
	Cart          types.EnvelopeCart `json:"cart"`
	TotalAmount   string             `json:"total_amount"`
	Currency      string             `json:"currency"`
	ClientSecret  string             `json:"client_secret,omitempty"`
	PaymentStatus string             `json:"payment_status,omitempty"`
}

type benefactorResponse struct {
	TermID int    `json:"term_id"`
	Name   string `json:"name"`
}

func newCheckoutViewResponse(view *checkoutsvc.View) checkoutViewResponse {
	benefactors := make([]benefactorResponse, 0, len(view.Benefactors))
	for _, term := range view.Benefactors {
		benefactors = append(benefactors, benefactorResponse{TermID: term.TermID, Name: term.Name})
	}
	return checkoutViewResponse{
		Order:       newOrderResponse(view.Order),
		Warnings:    view.Warnings,
		Benefactors: benefactors,
		TermsURL:    view.TermsURL,
	}
}

func newOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		OrderKey:     order.OrderKey,
		OrderNumber:  order.OrderNumber,
		Status:       order.Status.String(),
		TicketStatus: order.TicketStatus.String(),
		Cart:         order.Cart,
		TotalAmount:  order.TotalAmount.StringFixed(2),
		Currency:     order.Currency.String(),
	}
	if order.PaymentClientSecret != nil {
		resp.ClientSecret = *order.PaymentClientSecret
	}
	return resp
}
