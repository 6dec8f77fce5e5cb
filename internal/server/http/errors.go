package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/and161185/skillmarket/internal/errs"
)

type errorBody struct {
	Error string `json:"error"`
}

// errorHandler maps service errors to HTTP responses. Anything unrecognised
// is logged and reported as a bare 500.
func errorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, msg := statusFor(err)
		if code == http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, errorBody{Error: msg})
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}

func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict, "already taken"
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, "conflict, retry"
	case errors.As(err, &he) && he.Code < http.StatusInternalServerError:
		return he.Code, strings.ToLower(http.StatusText(he.Code))
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), errs.ErrValidation.Error()+": ")
	if msg == "" || msg == errs.ErrValidation.Error() {
		return "invalid request"
	}
	return msg
}
