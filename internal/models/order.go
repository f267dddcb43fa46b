package models

import "time"

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// orderTransitions is the legal forward path plus cancellation, which is
// only reachable before shipping. DELIVERED and CANCELLED are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// PaymentMethod is how the shopper chose to pay.
type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "CARD"
	PaymentMethodUPI  PaymentMethod = "UPI"
	PaymentMethodCOD  PaymentMethod = "COD"
)

// Address is a shipping or billing address attached to an order.
type Address struct {
	FullName string `json:"full_name" validate:"required,max=100"`
	Line1    string `json:"line1" validate:"required,max=200"`
	Line2    string `json:"line2" validate:"omitempty,max=200"`
	City     string `json:"city" validate:"required,max=80"`
	State    string `json:"state" validate:"required,max=80"`
	PostCode string `json:"post_code" validate:"required,max=20"`
	Country  string `json:"country" validate:"required,max=60"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
}

// OrderLineItem is a frozen copy of a cart item at order-creation time.
// It keeps the variant identifiers but never references the live variant,
// so later stock or price changes cannot alter a placed order.
type OrderLineItem struct {
	ID        uint    `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID   string  `json:"-" gorm:"index;type:varchar(36)"`
	ProductID string  `json:"product_id" gorm:"type:varchar(36)"`
	VariantID string  `json:"variant_id" gorm:"type:varchar(36)"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku"`
	Size      string  `json:"size"`
	Color     string  `json:"color"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"` // unit price at the time of order
	Total     float64 `json:"total"` // Price * Quantity
}

// Order is the durable record of a purchase. Line items and totals are
// immutable once created; only Status, PaymentStatus and UpdatedAt may
// change afterwards.
type Order struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderNumber     string          `json:"order_number" gorm:"uniqueIndex;type:varchar(40)"`
	IdempotencyKey  string          `json:"-" gorm:"index;type:varchar(64)"`
	UserID          string          `json:"user_id" gorm:"index;type:varchar(36)"`
	Status          OrderStatus     `json:"status" gorm:"type:varchar(20)"`
	Items           []OrderLineItem `json:"items" gorm:"constraint:OnDelete:CASCADE"`
	Subtotal        float64         `json:"subtotal"`
	Tax             float64         `json:"tax"`
	ShippingCost    float64         `json:"shipping_cost"`
	Discount        float64         `json:"discount"`
	Total           float64         `json:"total"`
	ShippingAddress Address         `json:"shipping_address" gorm:"embedded;embeddedPrefix:ship_"`
	BillingAddress  Address         `json:"billing_address" gorm:"embedded;embeddedPrefix:bill_"`
	ShippingMethod  string          `json:"shipping_method" gorm:"type:varchar(20)"`
	PaymentMethod   PaymentMethod   `json:"payment_method" gorm:"type:varchar(10)"`
	PaymentStatus   PaymentStatus   `json:"payment_status" gorm:"type:varchar(20)"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
