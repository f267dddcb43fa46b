package handlers

import (
	"errors"

	"vastra/internal/logger"
	"vastra/internal/middleware"
	"vastra/internal/models"
	"vastra/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// OrderHandler handles HTTP requests for orders and payment webhooks.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes. The group is expected to
// be behind AuthRequired.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Patch("/:id/status", middleware.AdminRequired(), h.HandleUpdateOrderStatus)
}

// RegisterWebhookRoutes registers the payment webhook outside the
// authenticated group; gateways call it with their own credentials.
func (h *OrderHandler) RegisterWebhookRoutes(router fiber.Router) {
	router.Post("/payments/webhook", h.HandlePaymentWebhook)
}

// HandleCreateOrder turns the submitted cart snapshot into an order.
// The user id comes from the verified token, never from the body.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var input services.CreateOrderInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	input.UserID = middleware.UserID(c)

	if err := h.validate.Struct(input); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorMessages := make(map[string]string)
			for _, e := range validationErrors {
				errorMessages[e.Field()] = "failed on the '" + e.Tag() + "' rule"
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":  "Validation failed",
				"fields": errorMessages,
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Validation failed",
		})
	}

	order, err := h.service.CreateOrder(input)
	if err != nil {
		return h.orderErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order": order,
	})
}

// HandleGetOrders lists the authenticated user's orders; admins see
// every order.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	var (
		orders []models.Order
		err    error
	)
	if middleware.IsAdmin(c) {
		orders, err = h.service.GetAllOrders()
	} else {
		orders, err = h.service.GetOrdersForUser(middleware.UserID(c))
	}
	if err != nil {
		logger.FromCtx(c.UserContext()).Error("failed to list orders", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not retrieve orders",
		})
	}
	return c.JSON(fiber.Map{"orders": orders})
}

// HandleGetOrderByID retrieves one order with an ownership check.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.Params("id"), middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Order not found",
			})
		case errors.Is(err, services.ErrForbidden):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Cannot access another user's order",
			})
		}
		logger.FromCtx(c.UserContext()).Error("failed to get order", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not retrieve order",
		})
	}
	return c.JSON(fiber.Map{"order": order})
}

// HandleUpdateOrderStatus moves an order along the fulfillment path.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var body struct {
		Status models.OrderStatus `json:"status" validate:"required"`
	}
	if err := c.BodyParser(&body); err != nil || body.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Status is required",
		})
	}

	err := h.service.UpdateOrderStatus(c.Params("id"), body.Status)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Order not found",
			})
		case errors.Is(err, services.ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.FromCtx(c.UserContext()).Error("failed to update order status", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update order status",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Order status updated",
		"status":  body.Status,
	})
}

// HandlePaymentWebhook records a gateway's verdict for an order. The
// endpoint is idempotent: gateways redeliver.
func (h *OrderHandler) HandlePaymentWebhook(c *fiber.Ctx) error {
	var body struct {
		OrderNumber string               `json:"order_number" validate:"required"`
		Status      models.PaymentStatus `json:"status" validate:"required,oneof=COMPLETED FAILED"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "order_number and a COMPLETED or FAILED status are required",
		})
	}

	var err error
	if body.Status == models.PaymentStatusCompleted {
		err = h.service.MarkAsPaid(body.OrderNumber)
	} else {
		err = h.service.MarkAsFailed(body.OrderNumber)
	}
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Order not found",
			})
		}
		logger.FromCtx(c.UserContext()).Error("failed to process payment webhook", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not process payment update",
		})
	}

	return c.JSON(fiber.Map{"message": "Payment status recorded"})
}

// orderErrorResponse maps the order-path error taxonomy onto HTTP
// statuses: 401 unauthenticated, 400 for cart/stock problems, 500 for
// store failures. The body keeps the item-naming message so clients
// can show which row failed.
func (h *OrderHandler) orderErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	case errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrVariantNotFound),
		errors.Is(err, services.ErrInsufficientStock):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	logger.FromCtx(c.UserContext()).Error("failed to create order", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Could not create order",
	})
}
