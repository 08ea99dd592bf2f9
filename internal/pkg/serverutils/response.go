package serverutils

import (
	"ai-accelerator-be/internal/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessResponse(message string, data interface{}) Response {
	return Response{Message: message, Data: data}
}

// ValidateRequest runs struct validation and wraps failures as typed
// validation errors so the error handler maps them to 400.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return apperror.Wrap(apperror.KindValidation, "request failed validation", err)
	}
	return nil
}

// ErrorHandlerMiddleware converts typed errors bubbling out of handlers into
// their HTTP status and a safe client message.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		if fiberErr, ok := err.(*fiber.Error); ok {
			return ctx.Status(fiberErr.Code).JSON(fiber.Map{"message": fiberErr.Message})
		}
		return ctx.Status(apperror.HTTPStatus(err)).JSON(fiber.Map{
			"message": err.Error(),
		})
	}
}
