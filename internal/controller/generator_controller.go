package controller

import (
	"io"
	"strings"

	"ai-tutoring-be/internal/dto"
	"ai-tutoring-be/internal/pkg/serverutils"
	"ai-tutoring-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const maxUploadBytes = 8 * 1024 * 1024

type IGeneratorController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Draft(ctx *fiber.Ctx) error
	Review(ctx *fiber.Ctx) error
}

type generatorController struct {
	generatorService service.IGeneratorService
	guard            fiber.Handler
}

func NewGeneratorController(generatorService service.IGeneratorService, guard fiber.Handler) IGeneratorController {
	return &generatorController{
		generatorService: generatorService,
		guard:            guard,
	}
}

func (c *generatorController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/generator")
	h.Use(c.guard)
	h.Post("upload", c.Upload)
	h.Get(":job_id/status", c.Status)
	h.Get(":job_id/draft", c.Draft)
	h.Post(":job_id/review", c.Review)
}

func (c *generatorController) Upload(ctx *fiber.Ctx) error {
	var req dto.UploadSourceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if strings.HasPrefix(ctx.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		file, err := ctx.FormFile("file")
		if err == nil {
			if file.Size > maxUploadBytes {
				return fiber.NewError(fiber.StatusRequestEntityTooLarge, "file exceeds 8MB")
			}
			f, err := file.Open()
			if err != nil {
				return err
			}
			defer f.Close()
			data, err := io.ReadAll(f)
			if err != nil {
				return err
			}
			req.FileName = file.Filename
			req.FileData = data
		}
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.generatorService.Upload(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Generation job queued", res))
}

func (c *generatorController) Status(ctx *fiber.Ctx) error {
	jobId, err := jobIdParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.generatorService.Status(ctx.UserContext(), jobId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get job status", res))
}

func (c *generatorController) Draft(ctx *fiber.Ctx) error {
	jobId, err := jobIdParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.generatorService.Draft(ctx.UserContext(), jobId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get job draft", res))
}

func (c *generatorController) Review(ctx *fiber.Ctx) error {
	jobId, err := jobIdParam(ctx)
	if err != nil {
		return err
	}

	var req dto.ReviewJobRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.JobId = jobId
	req.Decision = strings.ToLower(strings.TrimSpace(req.Decision))

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.generatorService.Review(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success review job", res))
}

func jobIdParam(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("job_id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid job_id")
	}
	return id, nil
}
