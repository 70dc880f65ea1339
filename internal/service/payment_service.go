package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/adilbekov/handcarry-orders/internal/model"
	"github.com/adilbekov/handcarry-orders/internal/payment"
)

type PaymentRepository interface {
	Create(ctx context.Context, p model.Payment) (*model.Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	GetByProviderID(ctx context.Context, provider model.PaymentProvider, providerID string) (*model.Payment, error)
	GetPendingByOrder(ctx context.Context, orderID uuid.UUID) (*model.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus) error
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus) (bool, error)
}

type ReceiptGenerator interface {
	Generate(p model.Payment, o model.Order) ([]byte, error)
}

type PaymentService struct {
	payments  PaymentRepository
	orders    OrderRepository
	providers map[model.PaymentProvider]payment.Provider
	receipts  ReceiptGenerator
	log       zerolog.Logger
}

func NewPaymentService(
	payments PaymentRepository,
	orders OrderRepository,
	providers map[model.PaymentProvider]payment.Provider,
	receipts ReceiptGenerator,
	log zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		payments:  payments,
		orders:    orders,
		providers: providers,
		receipts:  receipts,
		log:       log,
	}
}

// CreateHold opens an escrow hold for an order's full amount. For an order
// that is still payable, an existing PENDING payment is returned as-is, so
// a client retry cannot open a second hold; once the order has moved on the
// retry fails like any other hold attempt.
func (s *PaymentService) CreateHold(ctx context.Context, orderID uuid.UUID, providerName model.PaymentProvider, actor model.Principal) (*model.Payment, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order", ErrNotFound)
		}
		return nil, err
	}
	if order.SenderID != actor.UserID && !actor.IsModerator() {
		return nil, fmt.Errorf("%w: only the sender pays for the order", ErrForbidden)
	}

	if order.Status != model.OrderStatusCarrierSelected {
		return nil, fmt.Errorf("%w: order must be %s to open a hold", ErrInvalidTransition, model.OrderStatusCarrierSelected)
	}

	if existing, err := s.payments.GetPendingByOrder(ctx, orderID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	provider, ok := s.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, providerName)
	}

	amountMinor := order.TotalAmount * 100
	hold, err := provider.CreateHold(ctx, orderID, amountMinor, fmt.Sprintf("Delivery order %s", orderID))
	if err != nil {
		return nil, mapProviderError(err)
	}

	return s.payments.Create(ctx, model.Payment{
		OrderID:         orderID,
		Provider:        providerName,
		ProviderID:      hold.ProviderID,
		AmountMinor:     amountMinor,
		Status:          model.PaymentStatusPending,
		ConfirmationURL: hold.ConfirmationURL,
		Metadata:        hold.Metadata,
	})
}

func (s *PaymentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// Capture finalizes a held payment. Local state advances only after the
// provider confirms; a provider failure leaves the payment HELD.
func (s *PaymentService) Capture(ctx context.Context, paymentID uuid.UUID, actor model.Principal) (*model.Payment, error) {
	p, order, err := s.paymentWithOrder(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if order.SenderID != actor.UserID && !actor.IsModerator() {
		return nil, ErrForbidden
	}
	if p.Status != model.PaymentStatusHeld {
		return nil, ErrNotCapturable
	}

	provider, ok := s.providers[p.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, p.Provider)
	}
	if err := provider.Capture(ctx, p.ProviderID, p.AmountMinor); err != nil {
		return nil, mapProviderError(err)
	}

	if err := s.payments.UpdateStatus(ctx, p.ID, model.PaymentStatusCaptured); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatusCaptured
	return p, nil
}

// Refund reverses a payment, fully by default or partially when an amount
// is given. No status precondition is enforced: an administrator may need
// to push a refund through regardless of where the ledger stands.
func (s *PaymentService) Refund(ctx context.Context, paymentID uuid.UUID, amountMinor *int64, actor model.Principal) (*model.Payment, error) {
	p, order, err := s.paymentWithOrder(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if order.SenderID != actor.UserID && !actor.IsModerator() {
		return nil, ErrForbidden
	}

	amount := p.AmountMinor
	if amountMinor != nil {
		if *amountMinor <= 0 || *amountMinor > p.AmountMinor {
			return nil, fmt.Errorf("%w: refund amount out of range", ErrInvalidInput)
		}
		amount = *amountMinor
	}

	provider, ok := s.providers[p.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, p.Provider)
	}
	if err := provider.Refund(ctx, p.ProviderID, amount); err != nil {
		return nil, mapProviderError(err)
	}

	if err := s.payments.UpdateStatus(ctx, p.ID, model.PaymentStatusRefunded); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatusRefunded
	return p, nil
}

// WebhookEvent is a provider callback normalized just enough to look the
// payment up; the event vocabulary itself is mapped in IngestWebhook.
type WebhookEvent struct {
	Provider   model.PaymentProvider
	ProviderID string
	Event      string // YooKassa event name; empty for CloudPayments
	Status     string // payment object status as reported by the provider
}

// IngestWebhook reconciles provider state with the escrow ledger. Unknown
// payment ids are a silent no-op: the event may belong to a payment this
// system never tracked. Duplicate deliveries are absorbed by conditional
// status updates, so re-processing a confirmed event changes nothing.
func (s *PaymentService) IngestWebhook(ctx context.Context, event WebhookEvent) error {
	p, err := s.payments.GetByProviderID(ctx, event.Provider, event.ProviderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Info().
				Str("provider", string(event.Provider)).
				Str("provider_id", event.ProviderID).
				Msg("webhook for unknown payment ignored")
			return nil
		}
		return err
	}

	switch s.classify(event) {
	case webhookOutcomeHeld:
		return s.markHeld(ctx, p)
	case webhookOutcomeCancelled:
		return s.markCancelled(ctx, p)
	default:
		s.log.Debug().
			Str("provider", string(event.Provider)).
			Str("event", event.Event).
			Str("status", event.Status).
			Msg("webhook event ignored")
		return nil
	}
}

type webhookOutcome int

const (
	webhookOutcomeIgnore webhookOutcome = iota
	webhookOutcomeHeld
	webhookOutcomeCancelled
)

func (s *PaymentService) classify(event WebhookEvent) webhookOutcome {
	switch event.Provider {
	case model.ProviderYooKassa:
		if event.Event == "payment.succeeded" && event.Status == "succeeded" {
			return webhookOutcomeHeld
		}
		if event.Event == "payment.canceled" {
			return webhookOutcomeCancelled
		}
	case model.ProviderCloudPayments:
		switch event.Status {
		case "Authorized", "Completed":
			return webhookOutcomeHeld
		case "Cancelled", "Declined":
			return webhookOutcomeCancelled
		}
	}
	return webhookOutcomeIgnore
}

func (s *PaymentService) markHeld(ctx context.Context, p *model.Payment) error {
	applied, err := s.payments.UpdateStatusIf(ctx, p.ID, model.PaymentStatusPending, model.PaymentStatusHeld)
	if err != nil {
		return err
	}
	if !applied {
		// Already held (or further along): duplicate delivery, nothing to do.
		return nil
	}

	order, err := s.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if !model.CanTransition(order.Status, model.OrderStatusPaid) {
		s.log.Warn().
			Str("order_id", order.ID.String()).
			Str("status", string(order.Status)).
			Msg("payment held but order cannot move to PAID")
		return nil
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, model.OrderStatusPaid); err != nil {
		return err
	}

	s.log.Info().
		Str("payment_id", p.ID.String()).
		Str("order_id", order.ID.String()).
		Msg("escrow hold confirmed")
	return nil
}

// markCancelled applies a provider-side cancellation. A hold can die both
// before and after confirmation (an authorized hold expires uncaptured), so
// the update is attempted from PENDING and from HELD; CAPTURED and REFUNDED
// stay untouched.
func (s *PaymentService) markCancelled(ctx context.Context, p *model.Payment) error {
	for _, from := range []model.PaymentStatus{model.PaymentStatusPending, model.PaymentStatusHeld} {
		applied, err := s.payments.UpdateStatusIf(ctx, p.ID, from, model.PaymentStatusCancelled)
		if err != nil {
			return err
		}
		if applied {
			s.log.Info().
				Str("payment_id", p.ID.String()).
				Str("from", string(from)).
				Msg("payment cancelled by provider")
			return nil
		}
	}
	return nil
}

type ReceiptResult struct {
	FileName string
	Content  []byte
}

// Receipt renders the PDF receipt for a captured payment. Only the order's
// parties and moderators may fetch it.
func (s *PaymentService) Receipt(ctx context.Context, paymentID uuid.UUID, actor model.Principal) (*ReceiptResult, error) {
	p, order, err := s.paymentWithOrder(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if order.SenderID != actor.UserID && order.CarrierID != actor.UserID && !actor.IsModerator() {
		return nil, ErrForbidden
	}
	if p.Status != model.PaymentStatusCaptured {
		return nil, fmt.Errorf("%w: receipt is available for captured payments only", ErrInvalidInput)
	}

	content, err := s.receipts.Generate(*p, *order)
	if err != nil {
		return nil, err
	}
	return &ReceiptResult{
		FileName: fmt.Sprintf("receipt-%s.pdf", p.ID),
		Content:  content,
	}, nil
}

func (s *PaymentService) paymentWithOrder(ctx context.Context, paymentID uuid.UUID) (*model.Payment, *model.Order, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	order, err := s.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: order", ErrNotFound)
		}
		return nil, nil, err
	}
	return p, order, nil
}

func mapProviderError(err error) error {
	switch {
	case errors.Is(err, payment.ErrConfigMissing):
		return ErrProviderConfigMissing
	case errors.Is(err, payment.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	default:
		return err
	}
}
