package controllers

import (
	"net/http"

	"github.com/acecharity/raffle-backend/api/responses"
	"github.com/acecharity/raffle-backend/api/validators"
	cartsvc "github.com/acecharity/raffle-backend/internal/cart"
	pkgerrors "github.com/acecharity/raffle-backend/pkg/errors"
	"github.com/acecharity/raffle-backend/pkg/logger"
	"github.com/acecharity/raffle-backend/pkg/types"
)

// SaveCart stores the browser's pre-checkout cart snapshot and returns the
// token identifying it.
func SaveCart(store *cartsvc.SessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart store unavailable"))
			return
		}

		var payload saveCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		for envelope := range payload.Cart {
			if !types.ValidEnvelopeNumber(envelope) {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "cart contains an unknown envelope"))
				return
			}
		}

		token := payload.Token
		if token == "" {
			minted, err := cartsvc.NewToken()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting cart token"))
				return
			}
			token = minted
		}

		if err := store.Save(r.Context(), token, payload.Cart); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving cart"))
			return
		}

		responses.WriteSuccess(w, saveCartResponse{Token: token})
	}
}

type saveCartRequest struct {
	Token string             `json:"token,omitempty" validate:"omitempty,max=64"`
	Cart  types.EnvelopeCart `json:"cart" validate:"required"`
}

type saveCartResponse struct {
	Token string `json:"token"`
}
