package serverutils

import (
	"errors"
	"strings"

	"turion-be/internal/dto"
	"turion-be/internal/service"
	"turion-be/pkg/llm"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type BaseResponse[T any] struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func SuccessResponse[T any](message string, data T) BaseResponse[T] {
	return BaseResponse[T]{
		Success: true,
		Code:    fiber.StatusOK,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(code int, message string) BaseResponse[any] {
	return BaseResponse[any]{
		Success: false,
		Code:    code,
		Message: message,
	}
}

// ValidationError carries the failed fields of a request DTO.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, rule := range e.Fields {
		parts = append(parts, field+" failed "+rule)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Fields[fe.Field()] = fe.Tag()
	}
	return verr
}

// ErrorHandlerMiddleware turns errors returned by handlers into JSON error
// bodies with a matching status code.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code, message, data := StatusFor(err)
		body := ErrorResponse(code, message)
		body.Data = data
		return ctx.Status(code).JSON(body)
	}
}

// StatusFor maps a service error to an HTTP status, the message shown to the
// client and an optional payload.
func StatusFor(err error) (int, string, any) {
	var (
		creditErr   *dto.InsufficientCreditError
		providerErr *llm.ProviderError
		validErr    *ValidationError
		fiberErr    *fiber.Error
	)

	switch {
	case errors.As(err, &creditErr):
		return fiber.StatusPaymentRequired, "Insufficient credits", creditErr
	case errors.As(err, &validErr):
		return fiber.StatusBadRequest, validErr.Error(), validErr.Fields
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message, nil
	case errors.Is(err, llm.ErrProviderUnavailable), errors.As(err, &providerErr):
		return fiber.StatusServiceUnavailable, "AI provider unavailable", nil
	case errors.Is(err, service.ErrNoPortAvailable):
		return fiber.StatusServiceUnavailable, err.Error(), nil
	case errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, service.ErrProjectNotFound):
		return fiber.StatusNotFound, err.Error(), nil
	case errors.Is(err, service.ErrInvalidProjectState),
		errors.Is(err, service.ErrScaffoldInProgress),
		errors.Is(err, service.ErrNoPortReserved),
		errors.Is(err, service.ErrStepAlreadyTerminal):
		return fiber.StatusConflict, err.Error(), nil
	case errors.Is(err, service.ErrEmptyTitle),
		errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrEmptyProjectName),
		errors.Is(err, service.ErrInvalidProjectType),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidTransactionType):
		return fiber.StatusBadRequest, err.Error(), nil
	}
	return fiber.StatusInternalServerError, "Internal server error", nil
}
