package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorHandler renders every handler error as a ResponseError envelope.
// Canceled requests get the non-standard 499 so they can be told apart from
// real server failures in the logs.
func ErrorHandler(log Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if err == nil || c.Response().Committed {
			return
		}

		resp := &ResponseError{
			Status:  http.StatusInternalServerError,
			Success: false,
			Err:     err,
		}

		var he *echo.HTTPError
		var re *ResponseError
		switch {
		case errors.As(err, &he):
			resp.Status = he.Code
			resp.ErrorMessage = fmt.Sprint(he.Message)
		case errors.As(err, &re):
			resp = re
		case errors.Is(err, context.Canceled) && c.Request().Context().Err() == context.Canceled:
			resp.Status = 499
		}

		if resp.Status == http.StatusNotFound && isNotFoundHandler(c.Handler()) {
			resp.ErrorMessage = "no route matched"
		}

		if err := c.JSON(resp.Status, resp); err != nil {
			log.Errorw("could not write error response", "code", resp.Status, "response_body", resp)
		}
	}
}
