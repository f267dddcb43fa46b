package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"vastra/internal/models"
	"vastra/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingPublisher records published events so tests can assert on them.
type capturingPublisher struct {
	mu     sync.Mutex
	events []map[string]interface{}
	err    error
}

func (p *capturingPublisher) PublishOrderCreated(event map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// failingDecrementRepo fails the conditional decrement for one variant,
// after any earlier decrements have already been applied.
type failingDecrementRepo struct {
	*repositories.MockProductRepository
	failVariantID string
}

func (r *failingDecrementRepo) DecrementVariantStock(variantID string, qty int) (bool, error) {
	if variantID == r.failVariantID {
		return false, errors.New("storage unavailable")
	}
	return r.MockProductRepository.DecrementVariantStock(variantID, qty)
}

// failingCreateOrderRepo accepts everything except the final write.
type failingCreateOrderRepo struct {
	*repositories.MockOrderRepository
}

func (r *failingCreateOrderRepo) Create(order *models.Order) error {
	return errors.New("storage unavailable")
}

type orderServiceFixture struct {
	service     *OrderService
	orderRepo   *repositories.MockOrderRepository
	productRepo *repositories.MockProductRepository
	userRepo    *repositories.MockUserRepository
	publisher   *capturingPublisher
	user        models.User
	tee         models.Product
	hoodie      models.Product
}

func newOrderServiceFixture(t *testing.T) *orderServiceFixture {
	t.Helper()

	f := &orderServiceFixture{
		orderRepo:   repositories.NewMockOrderRepository(),
		productRepo: repositories.NewMockProductRepository(),
		userRepo:    repositories.NewMockUserRepository(),
		publisher:   &capturingPublisher{},
	}

	f.user = models.User{Username: "asha", Email: "asha@example.com", Password: "hash"}
	require.NoError(t, f.userRepo.Create(&f.user))

	f.tee = models.Product{
		Name:  "Heavyweight Oversized Tee",
		Slug:  "heavyweight-oversized-tee",
		Price: 1200,
		Variants: []models.Variant{
			{SKU: "TEE-BLK-M", Size: "M", Color: "Black", Stock: 10},
		},
	}
	require.NoError(t, f.productRepo.Create(&f.tee))

	f.hoodie = models.Product{
		Name:  "Relaxed Fit Hoodie",
		Slug:  "relaxed-fit-hoodie",
		Price: 2600,
		Variants: []models.Variant{
			{SKU: "HOOD-GRY-L", Size: "L", Color: "Grey", Stock: 5},
		},
	}
	require.NoError(t, f.productRepo.Create(&f.hoodie))

	f.service = NewOrderService(f.orderRepo, f.productRepo, f.userRepo, f.publisher)
	return f
}

func (f *orderServiceFixture) itemFor(p models.Product, qty int) OrderItemInput {
	v := p.Variants[0]
	return OrderItemInput{
		ProductID: p.ID,
		VariantID: v.ID,
		Name:      p.Name,
		SKU:       v.SKU,
		Size:      v.Size,
		Color:     v.Color,
		Quantity:  qty,
		Price:     1, // deliberately wrong: the service must ignore it
	}
}

func (f *orderServiceFixture) shippingAddress() models.Address {
	return models.Address{
		FullName: "Asha Rao",
		Line1:    "14 MG Road",
		City:     "Bengaluru",
		State:    "Karnataka",
		PostCode: "560001",
		Country:  "India",
	}
}

func (f *orderServiceFixture) variantStock(t *testing.T, p models.Product) int {
	t.Helper()
	v, _, err := f.productRepo.GetVariant(p.ID, p.Variants[0].ID)
	require.NoError(t, err)
	return v.Stock
}

func TestCreateOrderComputesAuthoritativeTotals(t *testing.T) {
	f := newOrderServiceFixture(t)

	order, err := f.service.CreateOrder(CreateOrderInput{
		UserID: f.user.ID,
		Items: []OrderItemInput{
			f.itemFor(f.tee, 3),    // 3 x 1200 = 3600
			f.itemFor(f.hoodie, 1), // 1 x 2600 = 2600
		},
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodCard,
	})
	require.NoError(t, err)
	require.NotNil(t, order)

	// Subtotal 6200 clears the free-shipping threshold; 18% tax on the
	// subtotal only.
	assert.Equal(t, 6200.0, order.Subtotal)
	assert.Equal(t, 0.0, order.ShippingCost)
	assert.Equal(t, 1116.0, order.Tax)
	assert.Equal(t, 7316.0, order.Total)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))

	// Line items carry the authoritative price, not the submitted one.
	require.Len(t, order.Items, 2)
	assert.Equal(t, 1200.0, order.Items[0].Price)
	assert.Equal(t, 3600.0, order.Items[0].Total)
	assert.Equal(t, "TEE-BLK-M", order.Items[0].SKU)

	// Stock was decremented for both variants.
	assert.Equal(t, 7, f.variantStock(t, f.tee))
	assert.Equal(t, 4, f.variantStock(t, f.hoodie))

	// The order is durable and the event is out.
	persisted, err := f.orderRepo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, persisted.OrderNumber)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, order.ID, f.publisher.events[0]["order_id"])
}

func TestCreateOrderBelowThresholdChargesFlatShipping(t *testing.T) {
	f := newOrderServiceFixture(t)

	order, err := f.service.CreateOrder(CreateOrderInput{
		UserID:          f.user.ID,
		Items:           []OrderItemInput{f.itemFor(f.tee, 3)}, // 3600
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodCOD,
	})
	require.NoError(t, err)

	assert.Equal(t, 3600.0, order.Subtotal)
	assert.Equal(t, 200.0, order.ShippingCost)
	assert.Equal(t, 648.0, order.Tax)
	assert.Equal(t, 4448.0, order.Total)
}

func TestCreateOrderUsesSalePrice(t *testing.T) {
	f := newOrderServiceFixture(t)

	sale := 999.0
	f.tee.SalePrice = &sale
	require.NoError(t, f.productRepo.Update(&f.tee))

	order, err := f.service.CreateOrder(CreateOrderInput{
		UserID:          f.user.ID,
		Items:           []OrderItemInput{f.itemFor(f.tee, 2)},
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodUPI,
	})
	require.NoError(t, err)

	assert.Equal(t, 999.0, order.Items[0].Price)
	assert.Equal(t, 1998.0, order.Subtotal)
}

func TestCreateOrderRejectsInsufficientStock(t *testing.T) {
	f := newOrderServiceFixture(t)

	_, err := f.service.CreateOrder(CreateOrderInput{
		UserID:          f.user.ID,
		Items:           []OrderItemInput{f.itemFor(f.hoodie, 6)}, // only 5 in stock
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodCard,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Relaxed Fit Hoodie")

	// Nothing was decremented and nothing was persisted.
	assert.Equal(t, 5, f.variantStock(t, f.hoodie))
	orders, err := f.orderRepo.GetAll()
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, f.publisher.events)
}

func TestCreateOrderRejectsUnknownVariant(t *testing.T) {
	f := newOrderServiceFixture(t)

	item := f.itemFor(f.tee, 1)
	item.VariantID = "no-such-variant"

	_, err := f.service.CreateOrder(CreateOrderInput{
		UserID:          f.user.ID,
		Items:           []OrderItemInput{item},
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodCard,
	})
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func TestCreateOrderRejectsEmptyCart(t *testing.T) {
	f := newOrderServiceFixture(t)

	_, err := f.service.CreateOrder(CreateOrderInput{
		UserID:          f.user.ID,
		Items:           []OrderItemInput{},
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodCard,
	})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateOrderRejectsNonPositiveQuantity(t *testing.T) {
	f := newOrderServiceFixture(t)

	_, err := f.service.CreateOrder(CreateOrderInput{
		UserID:          f.user.ID,
		Items:           []OrderItemInput{f.itemFor(f.tee, 0)},
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodCard,
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 10, f.variantStock(t, f.tee))
}

func TestCreateOrderRejectsUnknownUser(t *testing.T) {
	f := newOrderServiceFixture(t)

	for _, userID := range []string{"", "no-such-user"} {
		_, err := f.service.CreateOrder(CreateOrderInput{
			UserID:          userID,
			Items:           []OrderItemInput{f.itemFor(f.tee, 1)},
			ShippingAddress: f.shippingAddress(),
			PaymentMethod:   models.PaymentMethodCard,
		})
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
}

func TestCreateOrderCompensatesEarlierDecrements(t *testing.T) {
	f := newOrderServiceFixture(t)

	repo := &failingDecrementRepo{
		MockProductRepository: f.productRepo,
		failVariantID:         f.hoodie.Variants[0].ID,
	}
	service := NewOrderService(f.orderRepo, repo, f.userRepo, f.publisher)

	_, err := service.CreateOrder(CreateOrderInput{
		UserID: f.user.ID,
		Items: []OrderItemInput{
			f.itemFor(f.tee, 2),
			f.itemFor(f.hoodie, 1),
		},
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodCard,
	})
	require.Error(t, err)

	// The tee decrement went through first and must have been undone.
	assert.Equal(t, 10, f.variantStock(t, f.tee))
	assert.Equal(t, 5, f.variantStock(t, f.hoodie))
	orders, err := f.orderRepo.GetAll()
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrderCompensatesWhenWriteFails(t *testing.T) {
	f := newOrderServiceFixture(t)

	service := NewOrderService(
		&failingCreateOrderRepo{MockOrderRepository: f.orderRepo},
		f.productRepo, f.userRepo, f.publisher,
	)

	_, err := service.CreateOrder(CreateOrderInput{
		UserID:          f.user.ID,
		Items:           []OrderItemInput{f.itemFor(f.tee, 3)},
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodCard,
	})
	require.Error(t, err)

	assert.Equal(t, 10, f.variantStock(t, f.tee))
	assert.Empty(t, f.publisher.events)
}

func TestCreateOrderSurvivesPublisherFailure(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.publisher.err = errors.New("broker down")

	order, err := f.service.CreateOrder(CreateOrderInput{
		UserID:          f.user.ID,
		Items:           []OrderItemInput{f.itemFor(f.tee, 1)},
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodCard,
	})
	require.NoError(t, err, "a broker outage must not fail a placed order")
	assert.NotNil(t, order)
}

func TestCreateOrderWithoutPublisher(t *testing.T) {
	f := newOrderServiceFixture(t)
	service := NewOrderService(f.orderRepo, f.productRepo, f.userRepo, nil)

	_, err := service.CreateOrder(CreateOrderInput{
		UserID:          f.user.ID,
		Items:           []OrderItemInput{f.itemFor(f.tee, 1)},
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodCard,
	})
	assert.NoError(t, err)
}

func TestCreateOrderConcurrentBuyersLastUnit(t *testing.T) {
	f := newOrderServiceFixture(t)

	scarce := models.Product{
		Name:  "Limited Drop Jacket",
		Slug:  "limited-drop-jacket",
		Price: 4800,
		Variants: []models.Variant{
			{SKU: "JKT-BLK-M", Size: "M", Color: "Black", Stock: 1},
		},
	}
	require.NoError(t, f.productRepo.Create(&scarce))

	const buyers = 20
	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.CreateOrder(CreateOrderInput{
				UserID:          f.user.ID,
				Items:           []OrderItemInput{f.itemFor(scarce, 1)},
				ShippingAddress: f.shippingAddress(),
				PaymentMethod:   models.PaymentMethodCard,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one buyer may win the last unit")
	assert.Equal(t, 0, f.variantStock(t, scarce), "stock must never go negative")

	orders, err := f.orderRepo.GetAll()
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCreateOrderIdempotencyKeyReplay(t *testing.T) {
	f := newOrderServiceFixture(t)

	input := CreateOrderInput{
		UserID:          f.user.ID,
		Items:           []OrderItemInput{f.itemFor(f.tee, 2)},
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodCard,
		IdempotencyKey:  "checkout-attempt-1",
	}

	first, err := f.service.CreateOrder(input)
	require.NoError(t, err)

	// The retry returns the same order and takes no more stock.
	second, err := f.service.CreateOrder(input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, 8, f.variantStock(t, f.tee))

	orders, err := f.orderRepo.GetAll()
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	// A fresh attempt with a new key is a new order.
	input.IdempotencyKey = "checkout-attempt-2"
	third, err := f.service.CreateOrder(input)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, 6, f.variantStock(t, f.tee))
}

func TestCreateOrderIdempotencyKeyIsPerUser(t *testing.T) {
	f := newOrderServiceFixture(t)

	input := CreateOrderInput{
		UserID:          f.user.ID,
		Items:           []OrderItemInput{f.itemFor(f.tee, 1)},
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodCard,
		IdempotencyKey:  "checkout-attempt-1",
	}
	_, err := f.service.CreateOrder(input)
	require.NoError(t, err)

	// Another user replaying the same key must not see the first
	// user's order.
	other := models.User{Username: "ravi", Email: "ravi@example.com", Password: "hash"}
	require.NoError(t, f.userRepo.Create(&other))
	input.UserID = other.ID
	_, err = f.service.CreateOrder(input)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGetOrderOwnership(t *testing.T) {
	f := newOrderServiceFixture(t)

	order, err := f.service.CreateOrder(CreateOrderInput{
		UserID:          f.user.ID,
		Items:           []OrderItemInput{f.itemFor(f.tee, 1)},
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodCard,
	})
	require.NoError(t, err)

	got, err := f.service.GetOrder(order.ID, f.user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = f.service.GetOrder(order.ID, "someone-else", false)
	assert.ErrorIs(t, err, ErrForbidden)

	// Admins may read any order.
	_, err = f.service.GetOrder(order.ID, "someone-else", true)
	assert.NoError(t, err)

	_, err = f.service.GetOrder("no-such-order", f.user.ID, false)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetOrdersForUserOnlyReturnsOwn(t *testing.T) {
	f := newOrderServiceFixture(t)

	other := models.User{Username: "ravi", Email: "ravi@example.com", Password: "hash"}
	require.NoError(t, f.userRepo.Create(&other))

	for _, userID := range []string{f.user.ID, f.user.ID, other.ID} {
		_, err := f.service.CreateOrder(CreateOrderInput{
			UserID:          userID,
			Items:           []OrderItemInput{f.itemFor(f.tee, 1)},
			ShippingAddress: f.shippingAddress(),
			PaymentMethod:   models.PaymentMethodCard,
		})
		require.NoError(t, err)
	}

	mine, err := f.service.GetOrdersForUser(f.user.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := f.service.GetAllOrders()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdateOrderStatusTransitions(t *testing.T) {
	f := newOrderServiceFixture(t)

	newOrder := func(t *testing.T) *models.Order {
		t.Helper()
		order, err := f.service.CreateOrder(CreateOrderInput{
			UserID:          f.user.ID,
			Items:           []OrderItemInput{f.itemFor(f.tee, 1)},
			ShippingAddress: f.shippingAddress(),
			PaymentMethod:   models.PaymentMethodCard,
		})
		require.NoError(t, err)
		return order
	}

	t.Run("forward path to delivered", func(t *testing.T) {
		order := newOrder(t)
		for _, next := range []models.OrderStatus{
			models.OrderStatusProcessing,
			models.OrderStatusShipped,
			models.OrderStatusDelivered,
		} {
			require.NoError(t, f.service.UpdateOrderStatus(order.ID, next))
		}

		// Delivered is terminal.
		err := f.service.UpdateOrderStatus(order.ID, models.OrderStatusCancelled)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("cannot skip processing", func(t *testing.T) {
		order := newOrder(t)
		err := f.service.UpdateOrderStatus(order.ID, models.OrderStatusShipped)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("cancel before shipping", func(t *testing.T) {
		order := newOrder(t)
		require.NoError(t, f.service.UpdateOrderStatus(order.ID, models.OrderStatusCancelled))

		// Cancelled is terminal too.
		err := f.service.UpdateOrderStatus(order.ID, models.OrderStatusProcessing)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown status", func(t *testing.T) {
		order := newOrder(t)
		err := f.service.UpdateOrderStatus(order.ID, models.OrderStatus("TELEPORTED"))
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown order", func(t *testing.T) {
		err := f.service.UpdateOrderStatus("no-such-order", models.OrderStatusProcessing)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestMarkAsPaidIsIdempotent(t *testing.T) {
	f := newOrderServiceFixture(t)

	order, err := f.service.CreateOrder(CreateOrderInput{
		UserID:          f.user.ID,
		Items:           []OrderItemInput{f.itemFor(f.tee, 1)},
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodCard,
	})
	require.NoError(t, err)

	// Webhooks redeliver; both calls must succeed.
	require.NoError(t, f.service.MarkAsPaid(order.OrderNumber))
	require.NoError(t, f.service.MarkAsPaid(order.OrderNumber))

	persisted, err := f.orderRepo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, persisted.PaymentStatus)

	assert.ErrorIs(t, f.service.MarkAsPaid("ORD-00000000-000000-000-0000"), ErrOrderNotFound)
}

func TestMarkAsFailed(t *testing.T) {
	f := newOrderServiceFixture(t)

	order, err := f.service.CreateOrder(CreateOrderInput{
		UserID:          f.user.ID,
		Items:           []OrderItemInput{f.itemFor(f.tee, 1)},
		ShippingAddress: f.shippingAddress(),
		PaymentMethod:   models.PaymentMethodUPI,
	})
	require.NoError(t, err)

	require.NoError(t, f.service.MarkAsFailed(order.OrderNumber))
	require.NoError(t, f.service.MarkAsFailed(order.OrderNumber))

	persisted, err := f.orderRepo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, persisted.PaymentStatus)
}

func TestOrderNumbersAreUniquePerOrder(t *testing.T) {
	f := newOrderServiceFixture(t)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		order, err := f.service.CreateOrder(CreateOrderInput{
			UserID:          f.user.ID,
			Items:           []OrderItemInput{f.itemFor(f.tee, 1)},
			ShippingAddress: f.shippingAddress(),
			PaymentMethod:   models.PaymentMethodCard,
		})
		require.NoError(t, err)
		require.False(t, seen[order.OrderNumber], fmt.Sprintf("duplicate order number %s", order.OrderNumber))
		seen[order.OrderNumber] = true
		time.Sleep(2 * time.Millisecond)
	}
}
