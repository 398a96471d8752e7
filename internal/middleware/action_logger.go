package middleware

import (
	"strings"
	"time"

	"github.com/automax/routing/internal/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ActionLoggerConfig struct {
	Enabled     bool
	SkipPaths   []string
	SkipMethods []string
	Log         *logger.Logger
}

// ActionLogger logs every routing action with the acting group, the module
// and the outcome.
func ActionLogger(config ActionLoggerConfig) fiber.Handler {
	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	skipMethods := make(map[string]bool)
	for _, method := range config.SkipMethods {
		skipMethods[method] = true
	}

	return func(c *fiber.Ctx) error {
		if !config.Enabled || skipPaths[c.Path()] || skipMethods[c.Method()] {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		status := c.Response().StatusCode()
		outcome := "success"
		if err != nil || status >= fiber.StatusBadRequest {
			outcome = "failed"
		}

		kv := []interface{}{
			"action", getActionFromMethod(c.Method()),
			"module", getModuleFromPath(c.Path()),
			"resource_id", c.Params("id"),
			"group_id", ActingGroupID(c),
			"status", status,
			"outcome", outcome,
			"duration_ms", duration.Milliseconds(),
		}
		if err != nil {
			kv = append(kv, "error", err)
		}
		if outcome == "failed" {
			config.Log.Warn("Routing action", kv...)
		} else {
			config.Log.Info("Routing action", kv...)
		}
		return err
	}
}

func getActionFromMethod(method string) string {
	switch method {
	case fiber.MethodPost:
		return "create"
	case fiber.MethodPut, fiber.MethodPatch:
		return "update"
	case fiber.MethodDelete:
		return "delete"
	case fiber.MethodGet:
		return "view"
	default:
		return "other"
	}
}

// getModuleFromPath picks the last meaningful segment, so
// /api/v1/record-cards/<uuid>/reassign gives "reassign".
func getModuleFromPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg == "" || seg == "api" || seg == "v1" || isID(seg) {
			continue
		}
		return seg
	}
	return "unknown"
}

func isID(s string) bool {
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	return strings.Trim(s, "0123456789") == ""
}
