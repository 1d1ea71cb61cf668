package server

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/attachment"
	"github.com/abhisek/dsatutor/internal/llm"
	"github.com/abhisek/dsatutor/internal/store"
	"github.com/abhisek/dsatutor/internal/tutor"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Error codes.
const (
	CodeNotFound       = "NOT_FOUND"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeConflict       = "CONFLICT"
	CodeTurnInProgress = "TURN_IN_PROGRESS"
	CodeNotAssessed    = "NOT_ASSESSED"
	CodeUnavailable    = "SERVICE_UNAVAILABLE"
	CodeTimeout        = "TIMEOUT"
	CodeInternal       = "INTERNAL_ERROR"
	CodeHTTP           = "HTTP_ERROR"
)

// ErrTurnInProgress is returned when a user already has a turn running.
var ErrTurnInProgress = errors.New("a turn is already in progress for this user")

type mapping struct {
	target error
	status int
	code   string
}

var errorMappings = []mapping{
	{store.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{store.ErrEmailTaken, http.StatusConflict, CodeConflict},
	{ErrTurnInProgress, http.StatusConflict, CodeTurnInProgress},
	{tutor.ErrNotAssessed, http.StatusConflict, CodeNotAssessed},
	{attachment.ErrTooLarge, http.StatusRequestEntityTooLarge, CodeInvalidInput},
	{attachment.ErrUnsupported, http.StatusUnsupportedMediaType, CodeInvalidInput},
	{store.ErrUnavailable, http.StatusServiceUnavailable, CodeUnavailable},
}

// errorHandler renders errors as ErrorResponse.
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		for _, m := range errorMappings {
			if errors.Is(err, m.target) {
				log.Warn("request failed",
					zap.String("path", c.Path()),
					zap.String("code", m.code),
					zap.Error(err),
				)
				return c.Status(m.status).JSON(ErrorResponse{Code: m.code, Message: err.Error(), Status: m.status})
			}
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			log.Warn("fiber error", zap.Int("code", fiberErr.Code), zap.String("message", fiberErr.Message))
			code := CodeHTTP
			if fiberErr.Code == http.StatusBadRequest {
				code = CodeInvalidInput
			}
			return c.Status(fiberErr.Code).JSON(ErrorResponse{Code: code, Message: fiberErr.Message, Status: fiberErr.Code})
		}

		if llm.IsUnavailable(err) {
			log.Error("model unavailable", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(http.StatusServiceUnavailable).JSON(ErrorResponse{
				Code:    CodeUnavailable,
				Message: "The language model is unavailable. Please try again shortly.",
				Status:  http.StatusServiceUnavailable,
			})
		}

		log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Code:    CodeInternal,
			Message: "Internal server error",
			Status:  http.StatusInternalServerError,
		})
	}
}
