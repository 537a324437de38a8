// FILE: internal/controller/plan_controller.go
// Controller for the public plan catalog
package controller

import (
	"sales-offers-billing/internal/dto"
	"sales-offers-billing/internal/pkg/serverutils"
	"sales-offers-billing/internal/service"

	"github.com/gofiber/fiber/v2"
)

type PlanController interface {
	RegisterRoutes(api fiber.Router, jwtMiddleware fiber.Handler)
}

type planController struct {
	planService service.PlanService
}

func NewPlanController(planService service.PlanService) PlanController {
	return &planController{
		planService: planService,
	}
}

func (c *planController) RegisterRoutes(api fiber.Router, _ fiber.Handler) {
	// Public endpoints
	api.Get("/plans", c.GetAllPlans)
}

// GetAllPlans returns all active plans ordered for the pricing page
// @Summary Get all subscription plans
// @Tags Plans
// @Produce json
// @Success 200 {object} []dto.PlanResponse
// @Router /api/plans [get]
func (c *planController) GetAllPlans(ctx *fiber.Ctx) error {
	plans, err := c.planService.ListActivePlans(ctx.UserContext())
	if err != nil {
		return err
	}

	res := make([]*dto.PlanResponse, 0, len(plans))
	for _, p := range plans {
		res = append(res, dto.NewPlanResponse(p))
	}
	return ctx.JSON(serverutils.SuccessResponse("Plans retrieved", res))
}
