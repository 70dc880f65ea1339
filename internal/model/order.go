package model

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusCarrierSelected OrderStatus = "CARRIER_SELECTED"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusPackageReceived OrderStatus = "PACKAGE_RECEIVED"
	OrderStatusInTransit       OrderStatus = "IN_TRANSIT"
	OrderStatusDelivered       OrderStatus = "DELIVERED"
	OrderStatusCompleted       OrderStatus = "COMPLETED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusDispute         OrderStatus = "DISPUTE"
)

// orderTransitions is the canonical transition table. DISPUTE is not a
// target here: it is entered out-of-band via OpenDispute from any
// non-terminal state and exits only through dispute resolution.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusCarrierSelected, OrderStatusCancelled},
	OrderStatusCarrierSelected: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:            {OrderStatusPackageReceived, OrderStatusCancelled},
	OrderStatusPackageReceived: {OrderStatusInTransit},
	OrderStatusInTransit:       {OrderStatusDelivered},
	OrderStatusDelivered:       {OrderStatusCompleted},
	OrderStatusCompleted:       {},
	OrderStatusCancelled:       {},
	OrderStatusDispute:         {},
}

// CanTransition reports whether the transition table allows from → to.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist for the status.
// DISPUTE is terminal for the table but not for dispute resolution.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// ParseOrderStatus validates a client-supplied status string.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	s := OrderStatus(raw)
	if _, ok := orderTransitions[s]; !ok {
		return "", false
	}
	return s, true
}

// Order is one carrier's claim on a task. At most one order exists per
// (task, carrier) pair and at most one order per task ever passes PENDING.
type Order struct {
	ID             uuid.UUID
	TaskID         uuid.UUID
	SenderID       uuid.UUID // denormalized from the task
	CarrierID      uuid.UUID
	CarrierMessage string
	Status         OrderStatus
	Reward         int64
	PlatformFee    int64
	TotalAmount    int64 // Reward + PlatformFee
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderLedgerRow is the admin export read-model: an order joined with its
// most recent payment attempt, if any.
type OrderLedgerRow struct {
	ID              uuid.UUID
	TaskID          uuid.UUID
	SenderID        uuid.UUID
	CarrierID       uuid.UUID
	Status          OrderStatus
	Reward          int64
	PlatformFee     int64
	TotalAmount     int64
	PaymentProvider *string
	PaymentStatus   *string
	PaymentAmount   *int64
}
