package controller

import (
	"ai-tutoring-be/internal/config"
	"ai-tutoring-be/internal/dto"
	"ai-tutoring-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	cfg *config.Config
}

func NewHealthController(cfg *config.Config) IHealthController {
	return &healthController{cfg: cfg}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
}

// Health always answers 200; missing settings are reported, not failed on.
func (c *healthController) Health(ctx *fiber.Ctx) error {
	missing := c.cfg.Readiness()
	status := "ok"
	if len(missing) > 0 {
		status = "degraded"
	}
	if missing == nil {
		missing = []string{}
	}

	vectorStore := "memory"
	if c.cfg.UsesPgVector() {
		vectorStore = "pgvector"
	} else if c.cfg.Ai.VectorStoreURL == "" {
		vectorStore = ""
	}

	return ctx.JSON(serverutils.SuccessResponse("Health check", dto.HealthResponse{
		Status:      status,
		Ready:       len(missing) == 0,
		Missing:     missing,
		LLMProvider: c.cfg.Ai.LLMProvider,
		VectorStore: vectorStore,
	}))
}
