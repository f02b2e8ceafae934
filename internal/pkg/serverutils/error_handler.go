package serverutils

import (
	"errors"
	"strconv"

	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/repository/contract"
	"ai-tutoring-be/pkg/ai/generation"
	"ai-tutoring-be/pkg/ai/tutor"
	"ai-tutoring-be/pkg/ingest"
	"ai-tutoring-be/pkg/llm"

	"github.com/gofiber/fiber/v2"
)

const defaultRetryAfter = 5

// ErrorHandlerMiddleware turns handler errors into the JSON envelope.
// Missing configuration and provider outages are both 503 but carry
// different error codes so clients can tell "not set up" from "try again".
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return HandleError(ctx, err, log)
	}
}

func HandleError(ctx *fiber.Ctx, err error, log logger.ILogger) error {
	var (
		validation *ValidationFailure
		configErr  *llm.ErrConfiguration
		rateLimit  *llm.ErrRateLimit
		fiberErr   *fiber.Error
	)

	switch {
	case errors.As(err, &validation):
		res := ErrorResponse(fiber.StatusBadRequest, validation.Error())
		res.Error = "VALIDATION_FAILED"
		res.Data = validation.Fields
		return ctx.Status(fiber.StatusBadRequest).JSON(res)

	case errors.As(err, &configErr):
		log.Error("HTTP", "Request needs missing configuration", map[string]interface{}{
			"path":    ctx.Path(),
			"missing": configErr.Missing,
		})
		res := ErrorResponse(fiber.StatusServiceUnavailable, "service not configured: "+configErr.Error())
		res.Error = "NOT_CONFIGURED"
		res.Data = fiber.Map{"missing": configErr.Missing}
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(res)

	case llm.IsTransient(err):
		wait := defaultRetryAfter
		if errors.As(err, &rateLimit) && rateLimit.RetryAfter > 0 {
			wait = int(rateLimit.RetryAfter.Seconds() + 0.5)
		}
		ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(wait))
		res := ErrorResponse(fiber.StatusServiceUnavailable, "model provider unavailable, try again later")
		res.Error = "PROVIDER_UNAVAILABLE"
		res.Retryable = true
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(res)

	case errors.Is(err, contract.ErrNotFound):
		res := ErrorResponse(fiber.StatusNotFound, err.Error())
		res.Error = "NOT_FOUND"
		return ctx.Status(fiber.StatusNotFound).JSON(res)

	case errors.Is(err, generation.ErrInvalidTransition),
		errors.Is(err, generation.ErrJobClosed),
		errors.Is(err, tutor.ErrSessionEnded):
		res := ErrorResponse(fiber.StatusConflict, err.Error())
		res.Error = "CONFLICT"
		return ctx.Status(fiber.StatusConflict).JSON(res)

	case errors.Is(err, ingest.ErrUnsupportedFormat):
		res := ErrorResponse(fiber.StatusUnsupportedMediaType, err.Error())
		res.Error = "UNSUPPORTED_FORMAT"
		return ctx.Status(fiber.StatusUnsupportedMediaType).JSON(res)

	case errors.Is(err, ingest.ErrEmptySource):
		res := ErrorResponse(fiber.StatusBadRequest, err.Error())
		res.Error = "EMPTY_SOURCE"
		return ctx.Status(fiber.StatusBadRequest).JSON(res)

	case errors.As(err, &fiberErr):
		return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
	}

	log.Error("HTTP", "Unhandled error", map[string]interface{}{
		"path":   ctx.Path(),
		"method": ctx.Method(),
		"error":  err.Error(),
	})
	res := ErrorResponse(fiber.StatusInternalServerError, "internal server error")
	res.Error = "INTERNAL"
	return ctx.Status(fiber.StatusInternalServerError).JSON(res)
}
