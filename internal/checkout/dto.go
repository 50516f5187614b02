package checkout

import (
	"time"

	"github.com/acecharity/raffle-backend/pkg/db/models"
)

// ViewInput identifies the checkout the customer is returning to. Both fields
// are optional: a blank OrderKey starts a fresh order.
type ViewInput struct {
	OrderKey  string
	CartToken string
}

// View is everything the checkout page needs to render.
type View struct {
	Order *models.Order
	// Warnings report envelopes dropped during cart reconciliation.
	Warnings []string
	// Benefactors lists the named beneficiaries the customer can direct
	// their donation to.
	Benefactors []models.BenefactorTerm
	TermsURL    string
}

// SubmitInput carries the final checkout form.
type SubmitInput struct {
	OrderKey         string
	CartToken        string
	FirstName        string
	LastName         string
	Email            string
	Phone            *string
	Location         *string
	BenefactorTermID int
	AcceptedTerms    bool
	PaymentToken     string
}

// SubmitResult reports a captured payment.
type SubmitResult struct {
	Order       *models.Order
	Reference   string
	CompletedAt time.Time
}
