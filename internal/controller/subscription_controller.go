// FILE: internal/controller/subscription_controller.go
package controller

import (
	"fmt"

	"sales-offers-billing/internal/dto"
	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/pkg/apperror"
	"sales-offers-billing/internal/pkg/serverutils"
	"sales-offers-billing/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISubscriptionController interface {
	RegisterRoutes(api fiber.Router, jwtMiddleware fiber.Handler)
	Create(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	Current(ctx *fiber.Ctx) error
}

type subscriptionController struct {
	payments      service.PaymentService
	subscriptions service.SubscriptionService
}

func NewSubscriptionController(payments service.PaymentService, subscriptions service.SubscriptionService) ISubscriptionController {
	return &subscriptionController{
		payments:      payments,
		subscriptions: subscriptions,
	}
}

func (c *subscriptionController) RegisterRoutes(api fiber.Router, jwtMiddleware fiber.Handler) {
	h := api.Group("/subscriptions", jwtMiddleware)
	// Static paths first so they are not captured by :planId
	h.Post("/cancel", c.Cancel)
	h.Get("/current", c.Current)
	h.Post("/:planId", c.Create)
}

func (c *subscriptionController) Create(ctx *fiber.Ctx) error {
	userId, email, ok := serverutils.UserFromContext(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	planId, err := uuid.Parse(ctx.Params("planId"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid plan id format"))
	}

	var req dto.CreateSubscriptionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fmt.Errorf("request body: %w", apperror.ErrInvalidInput)
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.payments.Purchase(ctx.UserContext(), service.PurchaseInput{
		AccountId:   userId,
		Email:       email,
		PlanId:      planId,
		BillingMode: entity.BillingMode(req.BillingMode),
	})
	if err != nil {
		return err
	}

	message := "Subscription created. Complete payment to activate"
	if res.PaymentReference == "" {
		message = "Subscription activated"
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse(message, res))
}

func (c *subscriptionController) Cancel(ctx *fiber.Ctx) error {
	userId, _, ok := serverutils.UserFromContext(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	if _, err := c.subscriptions.Cancel(ctx.UserContext(), userId); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription cancelled", dto.MessageResponse{
		Message: "Your subscription has been cancelled",
	}))
}

func (c *subscriptionController) Current(ctx *fiber.Ctx) error {
	userId, _, ok := serverutils.UserFromContext(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	res, err := c.subscriptions.GetCurrentSummary(ctx.UserContext(), userId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Current subscription", res))
}
