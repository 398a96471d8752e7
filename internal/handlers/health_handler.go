package handlers

import (
	"context"
	"time"

	"github.com/automax/routing/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, fiber.StatusOK, "ok", nil)
}

// Ready checks the database answers within two seconds.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, err.Error())
	}
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Database unavailable")
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "ready", nil)
}
