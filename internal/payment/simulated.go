package payment

import (
	"context"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// declineReasons are indexed by roll-95 for rolls 96..100.
var declineReasons = [...]string{
	1: "insufficient_funds",
	2: "expired_card",
	3: "incorrect_cvc",
	4: "processing_error",
	5: "card_declined",
}

// SimulatedGateway approves about 95% of authorizations. It is meant for
// local runs without provider credentials.
type SimulatedGateway struct {
	roll func() int
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{
		roll: func() int { return rand.Intn(101) }, // 0..100 inclusive
	}
}

func (g *SimulatedGateway) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Authorization, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if code := declineCode(g.roll()); code != "" {
		return nil, &ProviderError{Message: "Your card was declined.", Code: code}
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return &Authorization{
		ClientSecret: "pi_sim_" + id + "_secret_" + id[:12],
		Reference:    "pi_sim_" + id,
	}, nil
}

func declineCode(roll int) string {
	if roll < 95 {
		return ""
	}
	reason := roll - 95
	if reason == 0 || reason >= len(declineReasons) {
		return "generic_decline"
	}
	return declineReasons[reason]
}
