package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentProvider string

const (
	ProviderYooKassa      PaymentProvider = "YOOKASSA"
	ProviderCloudPayments PaymentProvider = "CLOUDPAYMENTS"
)

func ParsePaymentProvider(raw string) (PaymentProvider, bool) {
	switch PaymentProvider(raw) {
	case ProviderYooKassa:
		return ProviderYooKassa, true
	case ProviderCloudPayments:
		return ProviderCloudPayments, true
	default:
		return "", false
	}
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusHeld      PaymentStatus = "HELD"
	PaymentStatusCaptured  PaymentStatus = "CAPTURED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Payment is one escrow attempt for an order. AmountMinor is in minor
// currency units and must equal Order.TotalAmount*100 at creation.
// Status moves monotonically: no path back out of CAPTURED, REFUNDED
// or CANCELLED.
type Payment struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	Provider        PaymentProvider
	ProviderID      string // provider-issued payment id, webhook correlation key
	AmountMinor     int64
	Status          PaymentStatus
	ConfirmationURL string
	Metadata        string // provider-specific payload blob
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
