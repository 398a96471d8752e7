package handlers

import (
	"strconv"

	"github.com/automax/routing/internal/middleware"
	"github.com/automax/routing/internal/models"
	"github.com/automax/routing/internal/services"
	"github.com/automax/routing/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type RecordCardHandler struct {
	service   services.RecordCardService
	validator *validator.Validate
}

func NewRecordCardHandler(service services.RecordCardService, validate *validator.Validate) *RecordCardHandler {
	return &RecordCardHandler{service: service, validator: validate}
}

// derivationResponse tells which group a derivation picked and how.
type derivationResponse struct {
	Strategy string                `json:"strategy"`
	Group    *models.GroupResponse `json:"group,omitempty"`
}

func toDerivationResponse(d *services.Derivation) derivationResponse {
	resp := derivationResponse{Strategy: d.Strategy}
	if d.Group != nil {
		g := models.ToGroupResponse(d.Group)
		resp.Group = &g
	}
	return resp
}

func (h *RecordCardHandler) Create(c *fiber.Ctx) error {
	var req models.RecordCardCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return utils.ValidationErrorResponse(c, err)
	}

	card, derivation, err := h.service.Create(c.Context(), &req, middleware.ActingGroupID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Record card created", fiber.Map{
		"record_card": models.ToRecordCardResponse(card),
		"derivation":  toDerivationResponse(derivation),
	})
}

func (h *RecordCardHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid ID")
	}
	card, err := h.service.Get(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "", models.ToRecordCardResponse(card))
}

// PreviewDerivation answers which group would take the record card in
// next_state, without saving anything.
func (h *RecordCardHandler) PreviewDerivation(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid ID")
	}
	next, err := strconv.Atoi(c.Query("next_state"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid next_state")
	}
	var districtID *uint
	if raw := c.Query("district_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid district_id")
		}
		d := uint(v)
		districtID = &d
	}

	derivation, err := h.service.PreviewDerivation(c.Context(), id, models.RecordState(next), districtID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "", toDerivationResponse(derivation))
}

func (h *RecordCardHandler) Transition(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid ID")
	}
	var req models.RecordCardTransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return utils.ValidationErrorResponse(c, err)
	}

	card, derivation, err := h.service.Transition(c.Context(), id, &req, middleware.ActingGroupID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Record card updated", fiber.Map{
		"record_card": models.ToRecordCardResponse(card),
		"derivation":  toDerivationResponse(derivation),
	})
}

func (h *RecordCardHandler) ReassignmentOptions(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid ID")
	}
	outside := middleware.HasPermission(c, middleware.PermissionReassignOutsideAmbit)
	options, err := h.service.ReassignmentOptions(c.Context(), id, middleware.ActingGroupID(c), outside)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, options.Reason, fiber.Map{
		"groups":      models.ToGroupResponses(options.Groups),
		"restriction": options.Restriction,
		"reason":      options.Reason,
	})
}

func (h *RecordCardHandler) Reassign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid ID")
	}
	var req models.RecordCardReassignRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return utils.ValidationErrorResponse(c, err)
	}

	outside := middleware.HasPermission(c, middleware.PermissionReassignOutsideAmbit)
	card, err := h.service.Reassign(c.Context(), id, &req, middleware.ActingGroupID(c), outside)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Record card reassigned", models.ToRecordCardResponse(card))
}

func (h *RecordCardHandler) CheckClaim(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid ID")
	}
	err = h.service.CheckClaim(c.Context(), id)
	if claimErr, ok := services.AsRecordClaimError(err); ok {
		return utils.SuccessResponse(c, fiber.StatusOK, claimErr.Message, fiber.Map{
			"can_claim":       false,
			"must_be_comment": claimErr.MustBeComment,
		})
	}
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "", fiber.Map{"can_claim": true})
}

func (h *RecordCardHandler) Claim(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid ID")
	}
	var req models.RecordCardClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return utils.ValidationErrorResponse(c, err)
	}

	result, err := h.service.Claim(c.Context(), id, &req, middleware.ActingGroupID(c))
	if err != nil {
		return serviceError(c, err)
	}
	if result.Claim == nil {
		return utils.SuccessResponse(c, fiber.StatusOK, result.Message, fiber.Map{"comment": result.Comment})
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Claim created", models.ToRecordCardResponse(result.Claim))
}

func (h *RecordCardHandler) Alarms(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid ID")
	}
	acting := middleware.ActingGroupID(c)
	alarms, err := h.service.Alarms(c.Context(), id, &acting)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "", fiber.Map{
		"alarms": alarms.Map(),
		"active": alarms.Active(),
		"alarm":  alarms.CheckAlarms(),
	})
}
