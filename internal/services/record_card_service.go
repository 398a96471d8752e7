package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/automax/routing/internal/logger"
	"github.com/automax/routing/internal/models"
	"github.com/automax/routing/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrReassignmentNotAllowed = errors.New("target group is not a reassignment candidate")
	ErrNotAuthorized          = errors.New("group is not authorized to process the record card")
	ErrRecordCardClosed       = errors.New("record card is closed")
	ErrInvalidState           = errors.New("invalid record card state")
)

// Reasons stored on reassignment history rows.
const (
	ReassignmentReasonManual     = "reassignment"
	ReassignmentReasonDerivation = "derivation"
	CommentReasonClaim           = "claim"
)

// ClaimResult is the outcome of a claim. Either Claim is the new record card,
// or the claim was stored as Comment with the explanation in Message.
type ClaimResult struct {
	Claim   *models.RecordCard        `json:"claim,omitempty"`
	Comment *models.RecordCardComment `json:"comment,omitempty"`
	Message string                    `json:"message,omitempty"`
}

type RecordCardService interface {
	Create(ctx context.Context, req *models.RecordCardCreateRequest, actingGroupID uint) (*models.RecordCard, *Derivation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.RecordCard, error)
	PreviewDerivation(ctx context.Context, id uuid.UUID, nextState models.RecordState, districtID *uint) (*Derivation, error)
	Transition(ctx context.Context, id uuid.UUID, req *models.RecordCardTransitionRequest, actingGroupID uint) (*models.RecordCard, *Derivation, error)

	ReassignmentOptions(ctx context.Context, id uuid.UUID, actingGroupID uint, outsideAmbit bool) (*ReassignmentOptions, error)
	Reassign(ctx context.Context, id uuid.UUID, req *models.RecordCardReassignRequest, actingGroupID uint, outsideAmbit bool) (*models.RecordCard, error)

	CheckClaim(ctx context.Context, id uuid.UUID) error
	Claim(ctx context.Context, id uuid.UUID, req *models.RecordCardClaimRequest, actingGroupID uint) (*ClaimResult, error)

	Alarms(ctx context.Context, id uuid.UUID, actingGroupID *uint) (Alarms, error)
}

type recordCardService struct {
	cards     repository.RecordCardRepository
	groups    *groupLookup
	selector  *DerivationSelector
	evaluator *ReassignmentEvaluator
	validator *ClaimValidator
	log       *logger.Logger
	now       func() time.Time
}

func NewRecordCardService(
	cards repository.RecordCardRepository,
	groups repository.GroupRepository,
	selector *DerivationSelector,
	evaluator *ReassignmentEvaluator,
	validator *ClaimValidator,
	log *logger.Logger,
) RecordCardService {
	return &recordCardService{
		cards:     cards,
		groups:    &groupLookup{repo: groups},
		selector:  selector,
		evaluator: evaluator,
		validator: validator,
		log:       log,
		now:       time.Now,
	}
}

func (s *recordCardService) Create(ctx context.Context, req *models.RecordCardCreateRequest, actingGroupID uint) (*models.RecordCard, *Derivation, error) {
	acting, err := s.actingGroup(ctx, actingGroupID)
	if err != nil {
		return nil, nil, err
	}

	normalizedID, err := s.cards.GenerateNormalizedID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate record card id: %w", err)
	}

	card := &models.RecordCard{
		NormalizedRecordID:   normalizedID,
		Description:          req.Description,
		RecordStateID:        models.StatePendingValidate,
		ElementDetailID:      req.ElementDetailID,
		ResponsibleProfileID: &acting.ID,
		ApplicantID:          req.ApplicantID,
		Urgent:               req.Urgent,
		Mayorship:            req.Mayorship,
	}
	if req.Ubication != nil {
		card.Ubication = &models.Ubication{
			StreetType:   req.Ubication.StreetType,
			Street:       req.Ubication.Street,
			StreetNumber: req.Ubication.StreetNumber,
			Letter:       req.Ubication.Letter,
			DistrictID:   req.Ubication.DistrictID,
		}
	}
	if req.AnsLimitDays > 0 {
		limit := s.now().AddDate(0, 0, req.AnsLimitDays)
		card.AnsLimitDate = &limit
	}
	card.Alarm = ComputeAlarms(card, nil).CheckAlarms()

	derivation, assignment, err := s.derive(ctx, card, models.StatePendingValidate, nil)
	if err != nil {
		return nil, nil, err
	}
	if err := s.cards.CreateAssigned(ctx, card, assignment); err != nil {
		return nil, nil, fmt.Errorf("failed to create record card: %w", err)
	}
	if assignment != nil {
		card.ResponsibleProfile = derivation.Group
	}

	s.log.Info("Record card created", "record_card", card.NormalizedRecordID, "responsible", *card.ResponsibleProfileID, "strategy", derivation.Strategy)
	return card, derivation, nil
}

// derive runs the derivation for state and makes the group found responsible
// on the in-memory card. Nothing is stored: the caller saves the card with the
// returned assignment row, which is nil when the responsible group is kept.
func (s *recordCardService) derive(ctx context.Context, card *models.RecordCard, state models.RecordState, actingGroupID *uint) (*Derivation, *models.RecordCardReassignment, error) {
	derivation, err := s.selector.Select(ctx, DerivationRequest{Card: card, NextState: state})
	if err != nil {
		return nil, nil, err
	}
	if derivation.Group == nil || isResponsible(card, derivation.Group.ID) {
		return derivation, nil, nil
	}

	var assignment *models.RecordCardReassignment
	if card.ResponsibleProfileID != nil {
		assignment = &models.RecordCardReassignment{
			PreviousResponsibleID: *card.ResponsibleProfileID,
			NextResponsibleID:     derivation.Group.ID,
			GroupID:               actingGroupID,
			Reason:                ReassignmentReasonDerivation,
		}
	}
	card.ResponsibleProfileID = &derivation.Group.ID
	card.ResponsibleProfile = nil
	return derivation, assignment, nil
}

func (s *recordCardService) Get(ctx context.Context, id uuid.UUID) (*models.RecordCard, error) {
	return s.cards.FindByID(ctx, id)
}

func (s *recordCardService) PreviewDerivation(ctx context.Context, id uuid.UUID, nextState models.RecordState, districtID *uint) (*Derivation, error) {
	if !nextState.Valid() {
		return nil, ErrInvalidState
	}
	card, err := s.cards.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.selector.Select(ctx, DerivationRequest{Card: card, NextState: nextState, DistrictID: districtID, IsCheck: true})
}

func (s *recordCardService) Transition(ctx context.Context, id uuid.UUID, req *models.RecordCardTransitionRequest, actingGroupID uint) (*models.RecordCard, *Derivation, error) {
	next := models.RecordState(*req.NextState)
	if !next.Valid() {
		return nil, nil, ErrInvalidState
	}

	card, acting, err := s.cardForGroup(ctx, id, actingGroupID)
	if err != nil {
		return nil, nil, err
	}
	if next == card.RecordStateID {
		return nil, nil, fmt.Errorf("%w: record card is already %s", ErrInvalidState, next)
	}

	derivation := &Derivation{Strategy: StrategyNone}
	var assignment *models.RecordCardReassignment
	if !next.IsClosed() {
		if derivation, assignment, err = s.derive(ctx, card, next, &acting.ID); err != nil {
			return nil, nil, err
		}
	}

	previous := card.RecordStateID
	card.RecordStateID = next
	if previous == models.StatePendingValidate && !next.IsClosed() {
		card.IsValidated = true
	}

	var resolution *models.RecordCardResolution
	if next.IsClosed() {
		closedAt := s.now()
		card.ClosingDate = &closedAt
		if req.ResolutionTypeID != nil {
			resolution = &models.RecordCardResolution{ResolutionTypeID: *req.ResolutionTypeID}
		}
	}

	history := &models.RecordCardStateHistory{
		RecordCardID:  card.ID,
		PreviousState: previous,
		NextState:     next,
		GroupID:       &acting.ID,
	}
	if err := s.cards.SaveTransition(ctx, card, history, resolution, assignment); err != nil {
		return nil, nil, fmt.Errorf("failed to save transition: %w", err)
	}
	if assignment != nil {
		card.ResponsibleProfile = derivation.Group
	}

	s.log.Info("Record card transitioned", "record_card", card.NormalizedRecordID, "from", previous.String(), "to", next.String(), "group_id", acting.ID)
	return card, derivation, nil
}

func (s *recordCardService) ReassignmentOptions(ctx context.Context, id uuid.UUID, actingGroupID uint, outsideAmbit bool) (*ReassignmentOptions, error) {
	card, err := s.cards.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	acting, err := s.actingGroup(ctx, actingGroupID)
	if err != nil {
		return nil, err
	}
	return s.evaluator.Evaluate(ctx, card, acting, outsideAmbit)
}

func (s *recordCardService) Reassign(ctx context.Context, id uuid.UUID, req *models.RecordCardReassignRequest, actingGroupID uint, outsideAmbit bool) (*models.RecordCard, error) {
	card, err := s.cards.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	acting, err := s.actingGroup(ctx, actingGroupID)
	if err != nil {
		return nil, err
	}

	options, err := s.evaluator.Evaluate(ctx, card, acting, outsideAmbit)
	if err != nil {
		return nil, err
	}
	if options.Restriction == RestrictionDenied {
		return nil, ErrNotAuthorized
	}
	if !options.Contains(req.GroupID) {
		if options.Reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrReassignmentNotAllowed, options.Reason)
		}
		return nil, ErrReassignmentNotAllowed
	}

	previous := *card.ResponsibleProfileID
	card.ResponsibleProfileID = &req.GroupID
	card.ResponsibleProfile = nil
	card.Reassigned = true
	card.Alarm = true

	err = s.cards.SaveReassignment(ctx, card, &models.RecordCardReassignment{
		PreviousResponsibleID: previous,
		NextResponsibleID:     req.GroupID,
		GroupID:               &acting.ID,
		Reason:                ReassignmentReasonManual,
		Comment:               req.Comment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save reassignment: %w", err)
	}

	s.log.Info("Record card reassigned", "record_card", card.NormalizedRecordID, "from", previous, "to", req.GroupID, "group_id", acting.ID)
	return card, nil
}

func (s *recordCardService) CheckClaim(ctx context.Context, id uuid.UUID) error {
	card, err := s.cards.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.validator.Validate(ctx, card)
}

func (s *recordCardService) Claim(ctx context.Context, id uuid.UUID, req *models.RecordCardClaimRequest, actingGroupID uint) (*ClaimResult, error) {
	parent, err := s.cards.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(ctx, parent); err != nil {
		claimErr, ok := AsRecordClaimError(err)
		if !ok || !claimErr.MustBeComment {
			return nil, err
		}
		comment := &models.RecordCardComment{
			RecordCardID: parent.ID,
			GroupID:      &actingGroupID,
			Reason:       CommentReasonClaim,
			Comment:      fmt.Sprintf("%s\n%s", claimErr.Message, req.Description),
		}
		if err := s.cards.CreateComment(ctx, comment); err != nil {
			return nil, fmt.Errorf("failed to store claim comment: %w", err)
		}
		s.log.Info("Claim stored as comment", "record_card", parent.NormalizedRecordID, "reason", claimErr.Message)
		return &ClaimResult{Comment: comment, Message: claimErr.Message}, nil
	}

	claim := &models.RecordCard{
		NormalizedRecordID:   claimNormalizedID(parent),
		Description:          req.Description,
		RecordStateID:        models.StatePendingValidate,
		ElementDetailID:      parent.ElementDetailID,
		ElementDetail:        parent.ElementDetail,
		ResponsibleProfileID: parent.ResponsibleProfileID,
		ApplicantID:          parent.ApplicantID,
		ClaimedFromID:        &parent.ID,
		ClaimsNumber:         parent.ClaimsNumber + 1,
		Urgent:               parent.Urgent,
		Mayorship:            parent.Mayorship,
		Ubication:            copyUbication(parent.Ubication),
	}
	claim.Alarm = ComputeAlarms(claim, nil).CheckAlarms()

	derivation, assignment, err := s.derive(ctx, claim, models.StatePendingValidate, &actingGroupID)
	if err != nil {
		return nil, err
	}
	if err := s.cards.CreateAssigned(ctx, claim, assignment); err != nil {
		return nil, fmt.Errorf("failed to create claim: %w", err)
	}
	if assignment != nil {
		claim.ResponsibleProfile = derivation.Group
	}

	s.log.Info("Record card claimed", "record_card", parent.NormalizedRecordID, "claim", claim.NormalizedRecordID, "claims_number", claim.ClaimsNumber)
	return &ClaimResult{Claim: claim}, nil
}

func (s *recordCardService) Alarms(ctx context.Context, id uuid.UUID, actingGroupID *uint) (Alarms, error) {
	card, err := s.cards.FindByID(ctx, id)
	if err != nil {
		return Alarms{}, err
	}
	return ComputeAlarms(card, actingGroupID), nil
}

func (s *recordCardService) actingGroup(ctx context.Context, id uint) (*models.Group, error) {
	g, err := s.groups.enabled(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrNotAuthorized
	}
	return g, nil
}

// cardForGroup loads the card and checks acting may process it.
func (s *recordCardService) cardForGroup(ctx context.Context, id uuid.UUID, actingGroupID uint) (*models.RecordCard, *models.Group, error) {
	card, err := s.cards.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if card.RecordStateID.IsClosed() {
		return nil, nil, ErrRecordCardClosed
	}
	acting, err := s.actingGroup(ctx, actingGroupID)
	if err != nil {
		return nil, nil, err
	}
	allowed, err := s.groups.canProcess(ctx, card, acting)
	if err != nil {
		return nil, nil, err
	}
	if !allowed {
		return nil, nil, ErrNotAuthorized
	}
	return card, acting, nil
}

// claimNormalizedID numbers a claim after the card it reopens: RC-2024-000012
// is claimed as RC-2024-000012-02, then RC-2024-000012-03.
func claimNormalizedID(parent *models.RecordCard) string {
	base := parent.NormalizedRecordID
	if parent.ClaimsNumber > 0 {
		if i := strings.LastIndex(base, "-"); i > 0 {
			base = base[:i]
		}
	}
	return fmt.Sprintf("%s-%02d", base, parent.ClaimsNumber+2)
}

func copyUbication(u *models.Ubication) *models.Ubication {
	if u == nil {
		return nil
	}
	c := *u
	c.ID = uuid.Nil
	c.District = nil
	c.CreatedAt, c.UpdatedAt = time.Time{}, time.Time{}
	c.Polygons = make([]models.UbicationPolygon, 0, len(u.Polygons))
	for _, p := range u.Polygons {
		c.Polygons = append(c.Polygons, models.UbicationPolygon{Zone: p.Zone, PolygonCode: p.PolygonCode})
	}
	return &c
}
