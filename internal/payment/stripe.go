package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	return newStripeGateway(secretKey, nil)
}

func newStripeGateway(secretKey string, backends *stripe.Backends) (*StripeGateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, ErrMissingAPIKey
	}
	return &StripeGateway{api: client.New(secretKey, backends)}, nil
}

// CreateAuthorization creates a PaymentIntent with automatic payment methods.
func (g *StripeGateway) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Authorization, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, &ProviderError{Message: stripeErr.Msg, Code: string(stripeErr.Code), Err: err}
		}
		return nil, &ProviderError{Message: err.Error(), Err: err}
	}

	return &Authorization{ClientSecret: pi.ClientSecret, Reference: pi.ID}, nil
}
