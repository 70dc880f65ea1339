package pdf

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/adilbekov/handcarry-orders/internal/model"
)

func TestGenerateReceipt(t *testing.T) {
	p := model.Payment{
		ID:          uuid.New(),
		OrderID:     uuid.New(),
		Provider:    model.ProviderYooKassa,
		ProviderID:  "yk-1",
		AmountMinor: 115000,
		Status:      model.PaymentStatusCaptured,
	}
	o := model.Order{
		ID:          p.OrderID,
		SenderID:    uuid.New(),
		CarrierID:   uuid.New(),
		Status:      model.OrderStatusCompleted,
		Reward:      1000,
		PlatformFee: 150,
		TotalAmount: 1150,
	}

	content, err := NewGenerator().Generate(p, o)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(content, []byte("%PDF")), "output must be a PDF document")
}
