package payment

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount = errors.New("amount must be greater than 0")
	ErrMissingAPIKey = errors.New("payment provider secret key is not configured")
)

type AuthorizationRequest struct {
	AmountMinor    int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// Authorization is the provider's handle on a pending charge. The client
// completes it with ClientSecret.
type Authorization struct {
	ClientSecret string
	Reference    string
}

// Gateway creates payment authorizations. Implementations never retry.
type Gateway interface {
	CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Authorization, error)
}

// ProviderError carries the provider's own message unchanged.
type ProviderError struct {
	Message string
	Code    string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment provider: %s (%s)", e.Message, e.Code)
	}
	return "payment provider: " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func validate(req AuthorizationRequest) error {
	if req.AmountMinor <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
