package services

import (
	"errors"
	"fmt"
	"time"

	"vastra/internal/logger"
	"vastra/internal/models"
	"vastra/internal/pricing"
	"vastra/internal/repositories"
	"vastra/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher publishes order lifecycle events to the message broker.
type EventPublisher interface {
	PublishOrderCreated(event map[string]interface{}) error
}

// OrderItemInput is one cart row submitted at checkout. Price and the
// display fields are client-supplied hints; the service re-reads the
// variant for the authoritative price and stock.
type OrderItemInput struct {
	ProductID string  `json:"product_id" validate:"required"`
	VariantID string  `json:"variant_id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	SKU       string  `json:"sku"`
	Size      string  `json:"size"`
	Color     string  `json:"color"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	Price     float64 `json:"price"`
}

// CreateOrderInput is the full checkout snapshot. IdempotencyKey is
// optional; clients that set one per checkout attempt can retry safely
// after a network failure without double-charging stock.
type CreateOrderInput struct {
	UserID          string               `json:"user_id"`
	Items           []OrderItemInput     `json:"items" validate:"required,min=1,dive"`
	ShippingAddress models.Address       `json:"shipping_address" validate:"required"`
	PaymentMethod   models.PaymentMethod `json:"payment_method" validate:"required,oneof=CARD UPI COD"`
	IdempotencyKey  string               `json:"idempotency_key" validate:"omitempty,max=64"`
}

// OrderService turns a cart snapshot into a durable, priced,
// stock-adjusted order. This is the only place authoritative totals
// are computed and stock is mutated.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	userRepo    repositories.UserRepository
	publisher   EventPublisher
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orderRepo repositories.OrderRepository,
	productRepo repositories.ProductRepository,
	userRepo repositories.UserRepository,
	publisher EventPublisher,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		publisher:   publisher,
	}
}

// CreateOrder validates every item against live stock before touching
// anything, then applies one atomic conditional decrement per item, and
// finally writes the order. A decrement that loses the race to the last
// units, or a failed order write, rolls back the decrements already
// applied, so callers observe all-or-nothing stock effects.
func (s *OrderService) CreateOrder(input CreateOrderInput) (*models.Order, error) {
	log := logger.L().With(
		zap.String("user_id", input.UserID),
		zap.Int("item_count", len(input.Items)),
	)

	if input.UserID == "" {
		return nil, ErrUnauthorized
	}
	if _, err := s.userRepo.GetByID(input.UserID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to verify user: %w", err)
	}

	if len(input.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// A retried checkout attempt returns the order it already created
	// instead of decrementing stock a second time.
	if input.IdempotencyKey != "" {
		existing, err := s.orderRepo.GetByIdempotencyKey(input.IdempotencyKey)
		if err == nil {
			if existing.UserID != input.UserID {
				return nil, ErrForbidden
			}
			log.Info("returning order for replayed checkout attempt",
				zap.String("order_id", existing.ID),
			)
			return existing, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	// Validation pass. No stock is mutated until every item checks out.
	subtotal := 0.0
	lineItems := make([]models.OrderLineItem, 0, len(input.Items))

	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w for %s: quantity must be positive", ErrInsufficientStock, item.Name)
		}

		variant, product, err := s.productRepo.GetVariant(item.ProductID, item.VariantID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, fmt.Errorf("%w for %s", ErrVariantNotFound, item.Name)
			}
			return nil, fmt.Errorf("failed to read variant for %s: %w", item.Name, err)
		}

		if variant.Stock < item.Quantity {
			return nil, fmt.Errorf("%w for %s (requested: %d, available: %d)",
				ErrInsufficientStock, item.Name, item.Quantity, variant.Stock)
		}

		// The client-submitted price is ignored; the re-read variant
		// decides what the shopper pays.
		unitPrice := product.UnitPrice(variant)
		lineTotal := pricing.LineTotal(unitPrice, item.Quantity)
		subtotal += lineTotal

		lineItems = append(lineItems, models.OrderLineItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			SKU:       variant.SKU,
			Size:      variant.Size,
			Color:     variant.Color,
			Image:     item.Image,
			Quantity:  item.Quantity,
			Price:     unitPrice,
			Total:     lineTotal,
		})
	}

	// Mutation pass: conditional decrements, compensated on failure.
	for i, item := range input.Items {
		ok, err := s.productRepo.DecrementVariantStock(item.VariantID, item.Quantity)
		if err != nil {
			s.compensateDecrements(input.Items[:i])
			return nil, fmt.Errorf("failed to decrement stock for %s: %w", item.Name, err)
		}
		if !ok {
			// Lost the race since the validation pass.
			s.compensateDecrements(input.Items[:i])
			return nil, fmt.Errorf("%w for %s (requested: %d)", ErrInsufficientStock, item.Name, item.Quantity)
		}
	}

	shippingCost := pricing.ShippingCost(subtotal)
	tax := pricing.Tax(subtotal)
	discount := 0.0
	total := pricing.GrandTotal(subtotal, shippingCost, tax, discount)

	now := time.Now()
	order := &models.Order{
		ID:              uuid.New().String(),
		OrderNumber:     utils.GenerateOrderNumber(),
		IdempotencyKey:  input.IdempotencyKey,
		UserID:          input.UserID,
		Status:          models.OrderStatusPending,
		Items:           lineItems,
		Subtotal:        subtotal,
		Tax:             tax,
		ShippingCost:    shippingCost,
		Discount:        discount,
		Total:           total,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.ShippingAddress,
		ShippingMethod:  "STANDARD",
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orderRepo.Create(order); err != nil {
		s.compensateDecrements(input.Items)
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}

	log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Float64("total", order.Total),
	)

	s.publishOrderCreated(order)

	return order, nil
}

// compensateDecrements re-increments stock for items whose decrement
// already went through. Failures here are logged, not returned: the
// order itself has already failed and that error takes precedence.
func (s *OrderService) compensateDecrements(items []OrderItemInput) {
	for _, item := range items {
		if err := s.productRepo.IncrementVariantStock(item.VariantID, item.Quantity); err != nil {
			logger.L().Error("failed to compensate stock decrement",
				zap.String("variant_id", item.VariantID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
}

// publishOrderCreated emits the order.created event. Publishing is
// best-effort: a broker outage must not fail a placed order.
func (s *OrderService) publishOrderCreated(order *models.Order) {
	if s.publisher == nil {
		logger.L().Debug("event publisher not configured, skipping order.created")
		return
	}

	event := map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
		"status":       string(order.Status),
		"total":        order.Total,
	}
	if err := s.publisher.PublishOrderCreated(event); err != nil {
		logger.L().Warn("failed to publish order.created event",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}
}

// GetAllOrders retrieves all orders. Admin-only at the boundary.
func (s *OrderService) GetAllOrders() ([]models.Order, error) {
	return s.orderRepo.GetAll()
}

// GetOrdersForUser retrieves the orders placed by one user.
func (s *OrderService) GetOrdersForUser(userID string) ([]models.Order, error) {
	return s.orderRepo.GetByUserID(userID)
}

// GetOrder retrieves a single order. Non-admin callers only see their
// own orders.
func (s *OrderService) GetOrder(orderID, requesterID string, isAdmin bool) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !isAdmin && order.UserID != requesterID {
		return nil, ErrForbidden
	}
	return order, nil
}

// UpdateOrderStatus moves an order along the fulfillment path,
// enforcing the legal transition table. DELIVERED and CANCELLED are
// terminal; CANCELLED is only reachable before shipping.
func (s *OrderService) UpdateOrderStatus(orderID string, next models.OrderStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	if !order.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
	}

	return s.orderRepo.UpdateStatus(orderID, next)
}

// MarkAsPaid records a confirmed payment for the order with the given
// number. Idempotent under webhook re-delivery.
func (s *OrderService) MarkAsPaid(orderNumber string) error {
	order, err := s.orderRepo.GetByOrderNumber(orderNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	if order.PaymentStatus == models.PaymentStatusCompleted {
		logger.L().Info("order already marked as paid", zap.String("order_number", orderNumber))
		return nil
	}

	return s.orderRepo.UpdatePaymentStatus(order.ID, models.PaymentStatusCompleted)
}

// MarkAsFailed records a failed payment for the order with the given
// number. Idempotent under webhook re-delivery.
func (s *OrderService) MarkAsFailed(orderNumber string) error {
	order, err := s.orderRepo.GetByOrderNumber(orderNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	if order.PaymentStatus == models.PaymentStatusFailed {
		logger.L().Info("order already marked as failed", zap.String("order_number", orderNumber))
		return nil
	}

	return s.orderRepo.UpdatePaymentStatus(order.ID, models.PaymentStatusFailed)
}
