package handlers

import (
	"github.com/automax/routing/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the routing API on v1.
func RegisterRoutes(v1 fiber.Router, auth *middleware.AuthMiddleware, cards *RecordCardHandler, groups *GroupHandler) {
	recordCards := v1.Group("/record-cards", auth.Authenticate())
	recordCards.Post("/", auth.RequirePermission("record_cards:create"), cards.Create)
	recordCards.Get("/:id", auth.RequirePermission("record_cards:view"), cards.Get)
	recordCards.Get("/:id/derivation", auth.RequirePermission("record_cards:view"), cards.PreviewDerivation)
	recordCards.Post("/:id/transition", auth.RequirePermission("record_cards:transition"), cards.Transition)
	recordCards.Get("/:id/reassignment-options", auth.RequirePermission("record_cards:reassign"), cards.ReassignmentOptions)
	recordCards.Post("/:id/reassign", auth.RequirePermission("record_cards:reassign"), cards.Reassign)
	recordCards.Get("/:id/claim-check", auth.RequirePermission("record_cards:claim"), cards.CheckClaim)
	recordCards.Post("/:id/claim", auth.RequirePermission("record_cards:claim"), cards.Claim)
	recordCards.Get("/:id/alarms", auth.RequirePermission("record_cards:view"), cards.Alarms)

	groupRoutes := v1.Group("/groups", auth.Authenticate())
	groupRoutes.Get("/", auth.RequirePermission("groups:view"), groups.List)
	groupRoutes.Post("/", auth.RequirePermission("groups:manage"), groups.Create)
	groupRoutes.Post("/rebuild", auth.RequirePermission("groups:manage"), groups.Rebuild)
	groupRoutes.Get("/:id", auth.RequirePermission("groups:view"), groups.Get)
	groupRoutes.Get("/:id/ambit", auth.RequirePermission("groups:view"), groups.Ambit)
	groupRoutes.Put("/:id/move", auth.RequirePermission("groups:manage"), groups.Move)
	groupRoutes.Delete("/:id", auth.RequirePermission("groups:manage"), groups.Delete)
	groupRoutes.Post("/:id/reassignment-targets/:target_id", auth.RequirePermission("groups:manage"), groups.AddReassignmentTarget)
}
