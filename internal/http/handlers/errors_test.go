package handlers

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/http/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{errs.Validation("invalid_budget", "bad"), fiber.StatusBadRequest},
		{errs.Adapter("kevel", errors.New("503")), fiber.StatusBadGateway},
		{errs.NotFound("media_buy", "buy_1"), fiber.StatusNotFound},
		{errs.Tenant("inactive"), fiber.StatusForbidden},
		{errs.Internal("db down", errors.New("conn refused")), fiber.StatusInternalServerError},
		{errors.New("plain"), fiber.StatusInternalServerError},
		{eris.Wrap(errs.NotFound("package", "pkg_1"), "load"), fiber.StatusNotFound},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusFor(tt.err), tt.err.Error())
	}
}

func errorApp(err error, tool bool) *fiber.App {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		if tool {
			return writeToolError(c, zap.NewNop(), err)
		}
		return writeError(c, zap.NewNop(), err)
	})
	return app
}

func TestWriteToolError_Envelope(t *testing.T) {
	resp, err := errorApp(errs.AdapterMessage("kevel", "adapter_rejected", "flight rejected", ""), true).Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	var body dto.ToolResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, dto.ToolStatusError, body.Status)
	assert.Equal(t, "flight rejected", body.Error)
	assert.Equal(t, "adapter_rejected", body.Code)
	assert.Equal(t, "backend: kevel", body.Detail)
	assert.Empty(t, body.MediaBuyID)
}

func TestWriteError_HidesForeignErrors(t *testing.T) {
	resp, err := errorApp(errors.New("pq: password authentication failed"), false).Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var body dto.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "internal error", body.Error)
	assert.Equal(t, "internal", body.Code)
}
