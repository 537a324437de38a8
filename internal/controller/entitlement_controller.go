// FILE: internal/controller/entitlement_controller.go
package controller

import (
	"sales-offers-billing/internal/dto"
	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/pkg/serverutils"
	"sales-offers-billing/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IEntitlementController interface {
	RegisterRoutes(api fiber.Router, jwtMiddleware fiber.Handler)
	CheckQuota(ctx *fiber.Ctx) error
}

type entitlementController struct {
	entitlements service.EntitlementService
}

func NewEntitlementController(entitlements service.EntitlementService) IEntitlementController {
	return &entitlementController{entitlements: entitlements}
}

func (c *entitlementController) RegisterRoutes(api fiber.Router, jwtMiddleware fiber.Handler) {
	api.Get("/entitlements/:feature", jwtMiddleware, c.CheckQuota)
}

// CheckQuota answers whether one more action is allowed given the caller-supplied usage.
// A denied action is still a 200 with allowed=false.
func (c *entitlementController) CheckQuota(ctx *fiber.Ctx) error {
	userId, _, ok := serverutils.UserFromContext(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	usage := ctx.QueryInt("usage", 0)
	decision, err := c.entitlements.CheckQuota(ctx.UserContext(), userId, entity.FeatureKey(ctx.Params("feature")), usage)
	if err != nil {
		return err
	}

	message := "Allowed"
	if err := decision.Err(); err != nil {
		message = err.Error()
	}
	return ctx.JSON(serverutils.SuccessResponse(message, dto.QuotaResponse{
		Feature:   string(decision.Feature),
		Allowed:   decision.Allowed,
		Limit:     decision.Limit,
		Used:      decision.Used,
		Unlimited: decision.Unlimited(),
		PlanName:  decision.PlanName,
	}))
}
