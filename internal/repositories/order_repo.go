package repositories

import (
	"vastra/internal/models"
)

// OrderRepository defines the interface for order data access. Orders
// are immutable after creation except for status, payment status and
// the updated-at timestamp.
type OrderRepository interface {
	GetAll() ([]models.Order, error)
	GetByID(id string) (*models.Order, error)
	GetByUserID(userID string) ([]models.Order, error)
	GetByOrderNumber(orderNumber string) (*models.Order, error)
	GetByIdempotencyKey(key string) (*models.Order, error)
	Create(order *models.Order) error
	UpdateStatus(id string, status models.OrderStatus) error
	UpdatePaymentStatus(id string, status models.PaymentStatus) error
}
