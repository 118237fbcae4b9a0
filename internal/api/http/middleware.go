package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/bid2build/bid2build/internal/api/dto"
	"github.com/bid2build/bid2build/internal/observability"
	apperrors "github.com/bid2build/bid2build/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(requestid.New())
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(recoverMiddleware(logger))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func recoverMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
		}()
		return c.Next()
	}
}

// ErrorHandler renders every error as {success:false, code, message, errors?, details?}.
func ErrorHandler(logger *zap.Logger, metrics *observability.Metrics) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		domainErr := toDomainError(err)

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		metrics.RecordError(route, c.Method(), domainErr.Code)
		if domainErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error("request failed", zap.String("path", c.Path()), zap.Error(domainErr))
		}

		return c.Status(domainErr.HTTPStatus).JSON(dto.ErrorResponse{
			Success: false,
			Code:    domainErr.Code,
			Message: domainErr.Message,
			Errors:  domainErr.Fields,
			Details: domainErr.Details,
		})
	}
}

func toDomainError(err error) *apperrors.DomainError {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := strings.ToUpper(strings.ReplaceAll(http.StatusText(fe.Code), " ", "_"))
		if code == "" {
			code = "HTTP_ERROR"
		}
		return apperrors.NewDomainError(code, fe.Message, fe.Code, nil)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewDomainError("TIMEOUT", "request timed out", http.StatusGatewayTimeout, nil)
	}
	return apperrors.ToDomainError(err)
}
