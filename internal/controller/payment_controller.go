// FILE: internal/controller/payment_controller.go
package controller

import (
	"fmt"

	"sales-offers-billing/internal/dto"
	"sales-offers-billing/internal/pkg/apperror"
	"sales-offers-billing/internal/pkg/logger"
	"sales-offers-billing/internal/pkg/serverutils"
	"sales-offers-billing/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IPaymentController interface {
	RegisterRoutes(api fiber.Router, jwtMiddleware fiber.Handler)
	Verify(ctx *fiber.Ctx) error
	Webhook(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
}

type paymentController struct {
	payments      service.PaymentService
	subscriptions service.SubscriptionService
	logger        logger.ILogger
}

func NewPaymentController(payments service.PaymentService, subscriptions service.SubscriptionService, log logger.ILogger) IPaymentController {
	return &paymentController{
		payments:      payments,
		subscriptions: subscriptions,
		logger:        log,
	}
}

func (c *paymentController) RegisterRoutes(api fiber.Router, jwtMiddleware fiber.Handler) {
	h := api.Group("/payments")
	// Gateway callback, authenticated by signature
	h.Post("/webhook", c.Webhook)

	// Protected Routes
	h.Post("/verify", jwtMiddleware, c.Verify)
	h.Get("/", jwtMiddleware, c.History)
}

func (c *paymentController) Verify(ctx *fiber.Ctx) error {
	userId, _, ok := serverutils.UserFromContext(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	var req dto.VerifyPaymentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fmt.Errorf("request body: %w", apperror.ErrInvalidInput)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.payments.Verify(ctx.UserContext(), userId, req.Reference)
	if err != nil {
		return err
	}

	body := dto.MessageResponse{Message: res.Message}
	if res.Pending {
		return ctx.Status(fiber.StatusAccepted).JSON(&serverutils.BaseResponse[dto.MessageResponse]{
			Success: true,
			Code:    fiber.StatusAccepted,
			Message: res.Message,
			Data:    body,
		})
	}
	return ctx.JSON(serverutils.SuccessResponse(res.Message, body))
}

func (c *paymentController) Webhook(ctx *fiber.Ctx) error {
	signature := ctx.Get("signature")
	if signature == "" {
		signature = ctx.Get("x-paystack-signature")
	}

	// Signature is computed over the raw bytes, so the body must not be re-encoded
	err := c.payments.HandleWebhook(ctx.UserContext(), ctx.Body(), signature)
	if err != nil {
		c.logger.Warn(logger.ModuleWebhook, "Webhook rejected", map[string]interface{}{
			"error": err.Error(),
			"ip":    ctx.IP(),
		})
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}
	return ctx.SendStatus(fiber.StatusOK)
}

func (c *paymentController) History(ctx *fiber.Ctx) error {
	userId, _, ok := serverutils.UserFromContext(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	payments, err := c.subscriptions.ListPayments(ctx.UserContext(), userId, ctx.QueryInt("limit", 0), ctx.QueryInt("offset", 0))
	if err != nil {
		return err
	}

	res := make([]*dto.PaymentResponse, 0, len(payments))
	for _, p := range payments {
		res = append(res, dto.NewPaymentResponse(p))
	}
	return ctx.JSON(serverutils.SuccessResponse("Payment history", res))
}
