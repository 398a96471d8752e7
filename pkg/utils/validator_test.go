package utils

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intakeRequest struct {
	ElementDetailID uint   `json:"element_detail_id" validate:"required"`
	AnsLimitDays    int    `json:"ans_limit_days,omitempty" validate:"min=0"`
	Internal        string `json:"-" validate:"max=2"`
}

func TestValidationErrorResponse_UsesJSONNames(t *testing.T) {
	validate := NewValidator()
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		return ValidationErrorResponse(c, validate.Struct(&intakeRequest{AnsLimitDays: -1, Internal: "long"}))
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.ElementsMatch(t, []string{
		"element_detail_id: required",
		"ans_limit_days: min=0",
		"Internal: max=2",
	}, body.Fields)
}
