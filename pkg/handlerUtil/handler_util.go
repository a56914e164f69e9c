package handlerUtil

import (
	"errors"

	"Shelfscan/internal/api/scan"
	"Shelfscan/pkg/log"
	"Shelfscan/pkg/provider"
	"Shelfscan/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// providerErrorStatus maps the analysis error taxonomy onto HTTP statuses.
func providerErrorStatus(code provider.ErrorCode) int {
	switch code {
	case provider.CodeInvalidImageFormat:
		return fiber.StatusBadRequest
	case provider.CodeRateLimitExceeded:
		return fiber.StatusTooManyRequests
	case provider.CodeNetworkError:
		return fiber.StatusGatewayTimeout
	case provider.CodeModelUnavailable:
		return fiber.StatusServiceUnavailable
	case provider.CodeParsingError:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	if errors.Is(err, scan.ErrNoImageProvided) {
		h.logger.WithFields(fields).Warn("No image provided")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No image provided",
			"code":  "NO_IMAGE_PROVIDED",
		})
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		h.logger.WithFields(fields).Warn("Operation failed with error response")
		return c.Status(respErr.Code).JSON(fiber.Map{"error": err.Error()})
	}

	var provErr *provider.Error
	if errors.As(err, &provErr) {
		fields["code"] = string(provErr.Code)
		fields["provider"] = provErr.Provider
		fields["retryable"] = provErr.Retryable

		// Parsing errors indicate a prompt-contract violation and are logged
		// distinctly from transient backend failures.
		if provErr.Code == provider.CodeParsingError {
			h.logger.WithFields(fields).Error("Backend violated the response contract")
		} else {
			h.logger.WithFields(fields).Warn("Vision backend request failed")
		}

		return c.Status(providerErrorStatus(provErr.Code)).JSON(fiber.Map{
			"error":     provErr.Message,
			"code":      string(provErr.Code),
			"retryable": provErr.Retryable,
		})
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return h.HandleValidationError(c, requestID, err, path)
	}

	h.logger.WithFields(fields).Error("Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "An unexpected error occurred",
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Validation failed: " + err.Error(),
		"code":  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(utils.StatusMessage(fiber.StatusRequestTimeout))
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
