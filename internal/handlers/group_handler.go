package handlers

import (
	"strconv"

	"github.com/automax/routing/internal/models"
	"github.com/automax/routing/internal/services"
	"github.com/automax/routing/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type GroupHandler struct {
	service   services.GroupService
	validator *validator.Validate
}

func NewGroupHandler(service services.GroupService, validate *validator.Validate) *GroupHandler {
	return &GroupHandler{service: service, validator: validate}
}

func parseGroupID(c *fiber.Ctx, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *GroupHandler) Create(c *fiber.Ctx) error {
	var req models.GroupCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return utils.ValidationErrorResponse(c, err)
	}

	group, err := h.service.Create(c.Context(), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Group created", models.ToGroupResponse(group))
}

func (h *GroupHandler) List(c *fiber.Ctx) error {
	groups, err := h.service.List(c.Context())
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "", models.ToGroupResponses(groups))
}

func (h *GroupHandler) Get(c *fiber.Ctx) error {
	id, ok := parseGroupID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid ID")
	}
	group, err := h.service.Get(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "", models.ToGroupResponse(group))
}

func (h *GroupHandler) Ambit(c *fiber.Ctx) error {
	id, ok := parseGroupID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid ID")
	}
	pivot, members, err := h.service.Ambit(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "", fiber.Map{
		"ambit_group": models.ToGroupResponse(pivot),
		"groups":      models.ToGroupResponses(members),
	})
}

func (h *GroupHandler) Move(c *fiber.Ctx) error {
	id, ok := parseGroupID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid ID")
	}
	var req models.GroupMoveRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return utils.ValidationErrorResponse(c, err)
	}

	group, err := h.service.Move(c.Context(), id, &req)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Group moved", models.ToGroupResponse(group))
}

func (h *GroupHandler) Delete(c *fiber.Ctx) error {
	id, ok := parseGroupID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid ID")
	}
	var req models.GroupDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return utils.ValidationErrorResponse(c, err)
	}

	result, err := h.service.Delete(c.Context(), id, &req)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Group deleted", result)
}

func (h *GroupHandler) Rebuild(c *fiber.Ctx) error {
	updated, err := h.service.Rebuild(c.Context())
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Plates rebuilt", fiber.Map{"updated": updated})
}

func (h *GroupHandler) AddReassignmentTarget(c *fiber.Ctx) error {
	id, ok := parseGroupID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid ID")
	}
	target, ok := parseGroupID(c, "target_id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid target ID")
	}
	if err := h.service.AddReassignmentTarget(c.Context(), id, target); err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Reassignment target added", nil)
}
