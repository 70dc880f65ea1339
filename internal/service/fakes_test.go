package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adilbekov/handcarry-orders/internal/model"
	"github.com/adilbekov/handcarry-orders/internal/payment"
)

type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]model.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[uuid.UUID]model.Task)}
}

func (r *fakeTaskRepo) Create(_ context.Context, task model.Task) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task.ID = uuid.New()
	task.CreatedAt = time.Now().UTC()
	r.tasks[task.ID] = task
	saved := task
	return &saved, nil
}

func (r *fakeTaskRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := task
	return &copied, nil
}

func (r *fakeTaskRepo) UpdateModeration(_ context.Context, taskID uuid.UUID, status model.TaskStatus, moderatorID uuid.UUID, moderatedAt time.Time, note *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	task.Status = status
	task.ModeratedBy = &moderatorID
	task.ModeratedAt = &moderatedAt
	task.ModeratorNote = note
	r.tasks[taskID] = task
	return nil
}

func (r *fakeTaskRepo) put(task model.Task) model.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	r.tasks[task.ID] = task
	return task
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]model.Order
	tasks  *fakeTaskRepo
}

func newFakeOrderRepo(tasks *fakeTaskRepo) *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]model.Order), tasks: tasks}
}

func (r *fakeOrderRepo) Create(_ context.Context, order model.Order) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order.ID = uuid.New()
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt
	r.orders[order.ID] = order
	saved := order
	return &saved, nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := order
	return &copied, nil
}

func (r *fakeOrderRepo) GetByTaskAndCarrier(_ context.Context, taskID, carrierID uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.TaskID == taskID && order.CarrierID == carrierID {
			copied := order
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) ListByTask(_ context.Context, taskID uuid.UUID) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []model.Order
	for _, order := range r.orders {
		if order.TaskID == taskID {
			result = append(result, order)
		}
	}
	return result, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	r.orders[id] = order
	return nil
}

// PromoteCarrier mirrors the SQL transaction: a single critical section
// with a compare-and-swap on PENDING.
func (r *fakeOrderRepo) PromoteCarrier(_ context.Context, taskID, orderID uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	winner, ok := r.orders[orderID]
	if !ok || winner.TaskID != taskID || winner.Status != model.OrderStatusPending {
		return nil, gorm.ErrRecordNotFound
	}

	for id, order := range r.orders {
		if order.TaskID == taskID && id != orderID && order.Status == model.OrderStatusPending {
			order.Status = model.OrderStatusCancelled
			r.orders[id] = order
		}
	}

	winner.Status = model.OrderStatusCarrierSelected
	r.orders[orderID] = winner

	r.tasks.mu.Lock()
	if task, ok := r.tasks.tasks[taskID]; ok && task.Status == model.TaskStatusActive {
		task.Status = model.TaskStatusInProgress
		r.tasks.tasks[taskID] = task
	}
	r.tasks.mu.Unlock()

	copied := winner
	return &copied, nil
}

func (r *fakeOrderRepo) ListForExport(_ context.Context, status *model.OrderStatus) ([]model.OrderLedgerRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []model.OrderLedgerRow
	for _, order := range r.orders {
		if status != nil && order.Status != *status {
			continue
		}
		rows = append(rows, model.OrderLedgerRow{
			ID:          order.ID,
			TaskID:      order.TaskID,
			SenderID:    order.SenderID,
			CarrierID:   order.CarrierID,
			Status:      order.Status,
			Reward:      order.Reward,
			PlatformFee: order.PlatformFee,
			TotalAmount: order.TotalAmount,
		})
	}
	return rows, nil
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]model.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[uuid.UUID]model.Payment)}
}

func (r *fakePaymentRepo) Create(_ context.Context, p model.Payment) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	r.payments[p.ID] = p
	saved := p
	return &saved, nil
}

func (r *fakePaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := p
	return &copied, nil
}

func (r *fakePaymentRepo) GetByProviderID(_ context.Context, provider model.PaymentProvider, providerID string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.Provider == provider && p.ProviderID == providerID {
			copied := p
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) GetPendingByOrder(_ context.Context, orderID uuid.UUID) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.OrderID == orderID && p.Status == model.PaymentStatusPending {
			copied := p
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	r.payments[id] = p
	return nil
}

func (r *fakePaymentRepo) UpdateStatusIf(_ context.Context, id uuid.UUID, from, to model.PaymentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	r.payments[id] = p
	return true, nil
}

type fakeProvider struct {
	mu          sync.Mutex
	holdCalls   int
	captures    []string
	refunds     []int64
	createErr   error
	captureErr  error
	refundErr   error
	nextHoldIDs []string
}

func (p *fakeProvider) CreateHold(_ context.Context, orderID uuid.UUID, amountMinor int64, _ string) (*payment.Hold, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.holdCalls++
	id := uuid.NewString()
	if len(p.nextHoldIDs) > 0 {
		id = p.nextHoldIDs[0]
		p.nextHoldIDs = p.nextHoldIDs[1:]
	}
	return &payment.Hold{ProviderID: id, ConfirmationURL: "https://pay.example/confirm/" + id}, nil
}

func (p *fakeProvider) Capture(_ context.Context, providerID string, _ int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.captureErr != nil {
		return p.captureErr
	}
	p.captures = append(p.captures, providerID)
	return nil
}

func (p *fakeProvider) Refund(_ context.Context, _ string, amountMinor int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refundErr != nil {
		return p.refundErr
	}
	p.refunds = append(p.refunds, amountMinor)
	return nil
}

type fakeLedger struct{}

func (fakeLedger) Generate(rows []model.OrderLedgerRow) ([]byte, error) {
	return []byte("ledger"), nil
}

type fakeReceipts struct{}

func (fakeReceipts) Generate(_ model.Payment, _ model.Order) ([]byte, error) {
	return []byte("%PDF-receipt"), nil
}
