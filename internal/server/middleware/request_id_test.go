package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddleware(t *testing.T) {
	e := echo.New()

	handler := func(c echo.Context) error {
		reqID, ok := c.Get(XRequestID).(string)
		require.True(t, ok, "request id missing from echo context")
		assert.Equal(t, reqID, GetRequestIDFromContext(c.Request().Context()))
		assert.Equal(t, reqID, GetRequestIDFromEchoContext(c))
		return c.String(http.StatusOK, reqID)
	}

	t.Run("propagates the inbound header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(XRequestID, "custom-request-id")
		rec := httptest.NewRecorder()

		c := e.NewContext(req, rec)
		err := RequestID()(handler)(c)

		assert.NoError(t, err)
		assert.Equal(t, "custom-request-id", c.Get(XRequestID))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "custom-request-id", rec.Body.String())
		assert.Equal(t, "custom-request-id", rec.Header().Get(XRequestID))
	})

	t.Run("generates an id when none is sent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		c := e.NewContext(req, rec)
		err := RequestID()(handler)(c)

		assert.NoError(t, err)
		generated := rec.Header().Get(XRequestID)
		assert.NotEmpty(t, generated)
		assert.Equal(t, generated, rec.Body.String())
	})
}
