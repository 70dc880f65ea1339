package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adilbekov/handcarry-orders/internal/config"
	"github.com/adilbekov/handcarry-orders/internal/model"
)

type OrderRepository interface {
	Create(ctx context.Context, order model.Order) (*model.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetByTaskAndCarrier(ctx context.Context, taskID, carrierID uuid.UUID) (*model.Order, error)
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error
	PromoteCarrier(ctx context.Context, taskID, orderID uuid.UUID) (*model.Order, error)
	ListForExport(ctx context.Context, status *model.OrderStatus) ([]model.OrderLedgerRow, error)
}

type LedgerGenerator interface {
	Generate(rows []model.OrderLedgerRow) ([]byte, error)
}

type OrderService struct {
	orders     OrderRepository
	tasks      TaskRepository
	ledger     LedgerGenerator
	feePercent float64
}

func NewOrderService(orders OrderRepository, tasks TaskRepository, ledger LedgerGenerator, cfg *config.Config) *OrderService {
	return &OrderService{
		orders:     orders,
		tasks:      tasks,
		ledger:     ledger,
		feePercent: cfg.Payments.FeePercent,
	}
}

// Respond records a carrier's bid on an active task. One response per
// (task, carrier); senders cannot respond to their own tasks.
func (s *OrderService) Respond(ctx context.Context, taskID, carrierID uuid.UUID, message string) (*model.Order, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: task", ErrNotFound)
		}
		return nil, err
	}
	if task.Status != model.TaskStatusActive {
		return nil, fmt.Errorf("%w: task is not active", ErrInvalidTransition)
	}
	if task.SenderID == carrierID {
		return nil, ErrSelfResponse
	}

	if _, err := s.orders.GetByTaskAndCarrier(ctx, taskID, carrierID); err == nil {
		return nil, ErrDuplicateResponse
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fee := s.platformFee(task.Reward)
	return s.orders.Create(ctx, model.Order{
		TaskID:         taskID,
		SenderID:       task.SenderID,
		CarrierID:      carrierID,
		CarrierMessage: message,
		Status:         model.OrderStatusPending,
		Reward:         task.Reward,
		PlatformFee:    fee,
		TotalAmount:    task.Reward + fee,
	})
}

// platformFee rounds reward*feePercent to the nearest whole unit, half away
// from zero. The result is persisted on the order and never recomputed.
func (s *OrderService) platformFee(reward int64) int64 {
	return int64(math.Round(float64(reward) * s.feePercent))
}

func (s *OrderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

// ListByTask returns all carrier responses for a task. Only the task's
// sender and moderators see the full list.
func (s *OrderService) ListByTask(ctx context.Context, taskID uuid.UUID, principal model.Principal) ([]model.Order, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: task", ErrNotFound)
		}
		return nil, err
	}
	if task.SenderID != principal.UserID && !principal.IsModerator() {
		return nil, ErrForbidden
	}
	return s.orders.ListByTask(ctx, taskID)
}

// RequestTransition moves an order along the transition table on behalf of
// one of its parties. PACKAGE_RECEIVED and DELIVERED are carrier-only;
// every other transition may be requested by either party.
func (s *OrderService) RequestTransition(ctx context.Context, orderID uuid.UUID, target model.OrderStatus, actorID uuid.UUID) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if order.SenderID != actorID && order.CarrierID != actorID {
		return nil, ErrForbidden
	}
	switch target {
	case model.OrderStatusPackageReceived, model.OrderStatusDelivered:
		if order.CarrierID != actorID {
			return nil, fmt.Errorf("%w: only the carrier may report %s", ErrForbidden, target)
		}
	}

	if !model.CanTransition(order.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
	}

	if err := s.orders.UpdateStatus(ctx, orderID, target); err != nil {
		return nil, err
	}
	order.Status = target
	return order, nil
}

// SelectCarrier promotes one response and cancels every sibling as a single
// atomic unit, then marks the task IN_PROGRESS. Concurrent selections for
// the same task resolve to exactly one winner.
func (s *OrderService) SelectCarrier(ctx context.Context, taskID, orderID, senderID uuid.UUID) (*model.Order, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: task", ErrNotFound)
		}
		return nil, err
	}
	if task.SenderID != senderID {
		return nil, fmt.Errorf("%w: only the task sender selects a carrier", ErrForbidden)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if order.TaskID != taskID {
		return nil, fmt.Errorf("%w: order does not belong to task", ErrInvalidInput)
	}
	if order.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("%w: order is not pending", ErrInvalidTransition)
	}

	promoted, err := s.orders.PromoteCarrier(ctx, taskID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Lost the race: another selection already landed.
			return nil, fmt.Errorf("%w: order is not pending", ErrInvalidTransition)
		}
		return nil, err
	}
	return promoted, nil
}

// OpenDispute pulls an order out of normal progression from any non-terminal
// state. Either party or a moderator may flag it.
func (s *OrderService) OpenDispute(ctx context.Context, orderID uuid.UUID, principal model.Principal) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if order.SenderID != principal.UserID && order.CarrierID != principal.UserID && !principal.IsModerator() {
		return nil, ErrForbidden
	}
	if order.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, model.OrderStatusDispute)
	}

	if err := s.orders.UpdateStatus(ctx, orderID, model.OrderStatusDispute); err != nil {
		return nil, err
	}
	order.Status = model.OrderStatusDispute
	return order, nil
}

// ResolveDispute is the moderator's terminal decision. A refund decision
// reuses CANCELLED even when the order had already reached DELIVERED; the
// system does not distinguish "never delivered" from "delivered, refunded".
// Moving money is a separate administrative step, not part of this call.
func (s *OrderService) ResolveDispute(ctx context.Context, orderID, moderatorID uuid.UUID, refund bool) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if order.Status != model.OrderStatusDispute {
		return nil, ErrNotInDispute
	}

	status := model.OrderStatusCompleted
	if refund {
		status = model.OrderStatusCancelled
	}
	if err := s.orders.UpdateStatus(ctx, orderID, status); err != nil {
		return nil, err
	}
	order.Status = status
	return order, nil
}

type ExportLedgerResult struct {
	FileName string
	Content  []byte
}

// ExportLedger builds the admin xlsx of orders with their latest payment.
func (s *OrderService) ExportLedger(ctx context.Context, rawStatus string) (*ExportLedgerResult, error) {
	var status *model.OrderStatus
	if rawStatus != "" {
		parsed, ok := model.ParseOrderStatus(rawStatus)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, rawStatus)
		}
		status = &parsed
	}

	rows, err := s.orders.ListForExport(ctx, status)
	if err != nil {
		return nil, err
	}
	content, err := s.ledger.Generate(rows)
	if err != nil {
		return nil, err
	}

	name := "orders-ledger.xlsx"
	if status != nil {
		name = fmt.Sprintf("orders-ledger-%s.xlsx", *status)
	}
	return &ExportLedgerResult{FileName: name, Content: content}, nil
}
