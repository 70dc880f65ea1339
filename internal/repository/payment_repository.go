package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adilbekov/handcarry-orders/internal/model"
)

const paymentColumns = `
	id, order_id, provider, provider_id, amount_minor,
	status, confirmation_url, metadata, created_at, updated_at
`

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment model.Payment) (*model.Payment, error) {
	var saved model.Payment
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO payments (
			order_id, provider, provider_id, amount_minor,
			status, confirmation_url, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+paymentColumns,
		payment.OrderID,
		payment.Provider,
		payment.ProviderID,
		payment.AmountMinor,
		payment.Status,
		payment.ConfirmationURL,
		payment.Metadata,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &payment, nil
}

func (r *PaymentRepository) GetByProviderID(ctx context.Context, provider model.PaymentProvider, providerID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+paymentColumns+`
		FROM payments
		WHERE provider = ? AND provider_id = ?
		LIMIT 1
	`, provider, providerID).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &payment, nil
}

func (r *PaymentRepository) GetPendingByOrder(ctx context.Context, orderID uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = ? AND status = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, orderID, model.PaymentStatusPending).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &payment, nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE payments SET status = ?, updated_at = NOW() WHERE id = ?
	`, status, id).Error
}

// UpdateStatusIf applies the status only when the payment is still in the
// expected state and reports whether a row changed. Webhook idempotency
// rides on this: a re-delivered event finds zero rows to update.
func (r *PaymentRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE payments SET status = ?, updated_at = NOW() WHERE id = ? AND status = ?
	`, to, id, from)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
