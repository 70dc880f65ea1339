package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adilbekov/handcarry-orders/internal/model"
)

const orderColumns = `
	id, task_id, sender_id, carrier_id, carrier_message,
	status, reward, platform_fee, total_amount, created_at, updated_at
`

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order model.Order) (*model.Order, error) {
	var saved model.Order
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO orders (
			task_id, sender_id, carrier_id, carrier_message,
			status, reward, platform_fee, total_amount
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+orderColumns,
		order.TaskID,
		order.SenderID,
		order.CarrierID,
		order.CarrierMessage,
		order.Status,
		order.Reward,
		order.PlatformFee,
		order.TotalAmount,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &order, nil
}

func (r *OrderRepository) GetByTaskAndCarrier(ctx context.Context, taskID, carrierID uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+orderColumns+`
		FROM orders
		WHERE task_id = ? AND carrier_id = ?
		LIMIT 1
	`, taskID, carrierID).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &order, nil
}

func (r *OrderRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+orderColumns+`
		FROM orders
		WHERE task_id = ?
		ORDER BY created_at ASC
	`, taskID).Scan(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?
	`, status, id).Error
}

// PromoteCarrier cancels every sibling response, promotes the chosen order
// and moves the task to IN_PROGRESS as one transaction. The promote is a
// compare-and-swap on status = PENDING so two concurrent selections for the
// same task cannot both win.
func (r *OrderRepository) PromoteCarrier(ctx context.Context, taskID, orderID uuid.UUID) (*model.Order, error) {
	var promoted model.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			UPDATE orders
			SET status = ?, updated_at = NOW()
			WHERE task_id = ? AND id <> ? AND status = ?
		`, model.OrderStatusCancelled, taskID, orderID, model.OrderStatusPending).Error; err != nil {
			return err
		}

		result := tx.Exec(`
			UPDATE orders
			SET status = ?, updated_at = NOW()
			WHERE id = ? AND task_id = ? AND status = ?
		`, model.OrderStatusCarrierSelected, orderID, taskID, model.OrderStatusPending)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Exec(`
			UPDATE tasks SET status = ? WHERE id = ? AND status = ?
		`, model.TaskStatusInProgress, taskID, model.TaskStatusActive).Error; err != nil {
			return err
		}

		return tx.Raw(`
			SELECT `+orderColumns+`
			FROM orders
			WHERE id = ?
		`, orderID).Scan(&promoted).Error
	})
	if err != nil {
		return nil, err
	}
	return &promoted, nil
}

func (r *OrderRepository) ListForExport(ctx context.Context, status *model.OrderStatus) ([]model.OrderLedgerRow, error) {
	query := `
		SELECT
			o.id, o.task_id, o.sender_id, o.carrier_id,
			o.status, o.reward, o.platform_fee, o.total_amount,
			p.provider AS payment_provider,
			p.status AS payment_status,
			p.amount_minor AS payment_amount
		FROM orders o
		LEFT JOIN LATERAL (
			SELECT provider, status, amount_minor
			FROM payments
			WHERE order_id = o.id
			ORDER BY created_at DESC
			LIMIT 1
		) p ON TRUE
	`
	args := []interface{}{}
	if status != nil {
		query += " WHERE o.status = ?"
		args = append(args, *status)
	}
	query += " ORDER BY o.created_at ASC"

	var rows []model.OrderLedgerRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
