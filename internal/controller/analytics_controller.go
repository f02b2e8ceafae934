package controller

import (
	"strings"

	"ai-tutoring-be/internal/dto"
	"ai-tutoring-be/internal/pkg/serverutils"
	"ai-tutoring-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAnalyticsController interface {
	RegisterRoutes(r fiber.Router)
	Audit(ctx *fiber.Ctx) error
	Reports(ctx *fiber.Ctx) error
}

type analyticsController struct {
	analyticsService service.IAnalyticsService
	guard            fiber.Handler
}

func NewAnalyticsController(analyticsService service.IAnalyticsService, guard fiber.Handler) IAnalyticsController {
	return &analyticsController{
		analyticsService: analyticsService,
		guard:            guard,
	}
}

func (c *analyticsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/analytics")
	h.Use(c.guard)
	h.Post("audit/:student_id", c.Audit)
	h.Get("reports/:student_id", c.Reports)
}

func (c *analyticsController) Audit(ctx *fiber.Ctx) error {
	studentId := strings.TrimSpace(ctx.Params("student_id"))
	if studentId == "" {
		return fiber.NewError(fiber.StatusBadRequest, "student_id is required")
	}

	var req dto.AuditRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.StudentId = studentId

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.analyticsService.Audit(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Diagnosis ready", res))
}

func (c *analyticsController) Reports(ctx *fiber.Ctx) error {
	res, err := c.analyticsService.Reports(ctx.UserContext(), ctx.Params("student_id"), ctx.QueryInt("limit", 0))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get reports", res))
}
