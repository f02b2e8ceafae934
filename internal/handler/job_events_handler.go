package handler

import (
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/service"
	internalWS "ai-tutoring-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// JobEventsHandler streams job progress over a websocket. Each connection
// watches one job id.
type JobEventsHandler struct {
	generatorService service.IGeneratorService
	hub              *internalWS.Hub
	guard            fiber.Handler
	logger           logger.ILogger
}

func NewJobEventsHandler(generatorService service.IGeneratorService, hub *internalWS.Hub, guard fiber.Handler, log logger.ILogger) *JobEventsHandler {
	return &JobEventsHandler{
		generatorService: generatorService,
		hub:              hub,
		guard:            guard,
		logger:           log,
	}
}

func (h *JobEventsHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/generator/:job_id/events", h.guard, h.ServeWs)
}

func (h *JobEventsHandler) ServeWs(c *fiber.Ctx) error {
	jobId, err := uuid.Parse(c.Params("job_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid job_id")
	}

	// unknown jobs fail before the upgrade so the client gets a 404
	status, err := h.generatorService.Status(c.UserContext(), jobId)
	if err != nil {
		return err
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("JobEventsHandler", "Watching job", map[string]interface{}{"job_id": jobId.String()})

		// current state first, then live checkpoints
		if err := conn.WriteJSON(map[string]interface{}{
			"type": service.JobProgressEventType,
			"data": map[string]interface{}{
				"job_id":          status.JobId,
				"status":          status.Status,
				"generated_count": status.GeneratedCount,
				"requested_count": status.RequestedCount,
			},
		}); err != nil {
			return
		}

		internalWS.ServeWs(h.hub, conn, jobId.String())
		h.logger.Info("JobEventsHandler", "Stopped watching job", map[string]interface{}{"job_id": jobId.String()})
	})(c)
}
