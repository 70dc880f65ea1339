package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrUnavailable covers timeouts, transport failures and provider-side
	// rejections. Local payment state must not advance past it.
	ErrUnavailable = errors.New("provider request failed")
	// ErrConfigMissing means the provider's credentials are absent from the
	// deployment. Surfaced at call time so a single-provider setup still runs.
	ErrConfigMissing = errors.New("provider credentials missing")
)

// Hold is the provider's answer to a hold request: the provider-issued
// payment id (the webhook correlation key) and where to send the payer.
type Hold struct {
	ProviderID      string
	ConfirmationURL string
	Metadata        string
}

// Provider is the capability seam over a payment system. CreateHold
// authorizes funds without capturing them; Capture finalizes a hold;
// Refund reverses it, fully or partially.
type Provider interface {
	CreateHold(ctx context.Context, orderID uuid.UUID, amountMinor int64, description string) (*Hold, error)
	Capture(ctx context.Context, providerID string, amountMinor int64) error
	Refund(ctx context.Context, providerID string, amountMinor int64) error
}
