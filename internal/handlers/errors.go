package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"marketplace/internal/common"
	"marketplace/internal/middleware"
	"marketplace/internal/models"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorHandler renders service errors as ErrorResponse JSON. Unknown errors become a
// generic 500 and are logged with the request id.
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := errorResponse(err)
		if status == http.StatusInternalServerError {
			middleware.LoggerFromEcho(c, logger).Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Warn("failed to write error response", zap.Error(err))
		}
	}
}

func errorResponse(err error) (int, *common.ErrorResponse) {
	var (
		notFound     *common.NotFoundError
		forbidden    *common.ForbiddenError
		validation   *common.ValidationError
		conflict     *common.ConflictError
		unauthorized *common.UnauthorizedError
		httpErr      *echo.HTTPError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, common.CreateErrorResponse("VALIDATION_ERROR", validation.Error(),
			map[string]string{"field": validation.Field})
	case errors.As(err, &notFound):
		return http.StatusNotFound, common.CreateErrorResponse("NOT_FOUND", notFound.Error(), nil)
	case errors.As(err, &forbidden):
		return http.StatusForbidden, common.CreateErrorResponse("FORBIDDEN", forbidden.Error(), nil)
	case errors.As(err, &conflict):
		return http.StatusConflict, common.CreateErrorResponse("CONFLICT", conflict.Error(),
			map[string]string{"field": conflict.Field})
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized, common.CreateErrorResponse("UNAUTHORIZED", unauthorized.Error(), nil)
	case errors.As(err, &httpErr):
		message := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok {
			message = m
		}
		return httpErr.Code, common.CreateErrorResponse(http.StatusText(httpErr.Code), message, nil)
	default:
		return http.StatusInternalServerError, common.CreateErrorResponse("INTERNAL_ERROR", "internal server error", nil)
	}
}

// principal returns the authenticated caller set by the JWT middleware.
func principal(c echo.Context) (models.Principal, error) {
	p, ok := common.GetPrincipalFromContext(c.Request().Context())
	if !ok {
		return models.Principal{}, common.Unauthorized("authentication required")
	}
	return p, nil
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.Validation(name, "must be a positive integer")
	}
	return id, nil
}

func bindJSON(c echo.Context, dst interface{}) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return common.Validation("body", "malformed JSON payload")
	}
	return nil
}
