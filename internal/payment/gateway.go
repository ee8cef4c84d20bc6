package payment

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Currency is the only currency charges are made in.
const Currency = "usd"

// ChargeRequest is what the adapter sends to a gateway. AmountMinor is in cents.
type ChargeRequest struct {
	Token       string
	AmountMinor int64
	Currency    string
	Description string
	ReturnURL   string
}

// Charge is the gateway's view of a confirmed payment attempt.
type Charge struct {
	ID     string
	Status string
}

// Gateway creates and confirms a charge in one blocking call.
type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
}

// ProviderError is a failure reported by the payment provider, such as a
// declined card. Message is meant for the paying user.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// StripeGateway charges through Stripe payment intents.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountMinor),
		Currency:      stripe.String(req.Currency),
		Description:   stripe.String(req.Description),
		PaymentMethod: stripe.String(req.Token),
		Confirm:       stripe.Bool(true),
	}
	if req.ReturnURL != "" {
		params.ReturnURL = stripe.String(req.ReturnURL)
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) {
			return nil, &ProviderError{Code: string(se.Code), Message: se.Msg}
		}
		return nil, errors.Wrap(err, "stripe payment intent")
	}
	return &Charge{ID: pi.ID, Status: string(pi.Status)}, nil
}
