package services

import (
	"context"
	"time"

	"github.com/automax/routing/internal/config"
	"github.com/automax/routing/internal/models"
	"github.com/automax/routing/internal/repository"
)

// Restriction tells how a candidate list was narrowed.
type Restriction string

const (
	RestrictionNone        Restriction = "none"
	RestrictionAmbit       Restriction = "ambit"
	RestrictionCoordinator Restriction = "coordinator"
	RestrictionDenied      Restriction = "denied"
)

const (
	ReasonNotAuthorized       = "the group is not authorized to process the record card in its current state"
	ReasonNotReassignable     = "the record card is marked as non-reassignable"
	ReasonValidated           = "validated record cards of this theme can only be reassigned inside the ambit"
	ReasonExpired             = "the reassignment window has expired, the record card must be cancelled by expiration"
	ReasonClaimsLimit         = "the record card reached the claims limit, it can only be reassigned inside the ambit"
	ReasonNoOutsidePermission = "the group is not allowed to reassign outside its ambit"
	ReasonOnlyCoordinator     = "only a coordinator is allowed to send the response"
)

// ReassignmentOptions are the groups an acting group may hand a record card
// over to. Reason explains any restriction to the user.
type ReassignmentOptions struct {
	Groups      []models.Group `json:"groups"`
	Restriction Restriction    `json:"restriction"`
	Reason      string         `json:"reason,omitempty"`
}

// Contains reports whether groupID is one of the candidates.
func (o *ReassignmentOptions) Contains(groupID uint) bool {
	return containsGroup(o.Groups, groupID)
}

type ReassignmentEvaluator struct {
	groups *groupLookup
	cards  repository.RecordCardRepository
	rules  repository.DerivationRepository
	tree   *AmbitTree
	cfg    config.RoutingConfig
	now    func() time.Time
}

func NewReassignmentEvaluator(groups repository.GroupRepository, cards repository.RecordCardRepository, rules repository.DerivationRepository, tree *AmbitTree, cfg config.RoutingConfig) *ReassignmentEvaluator {
	return &ReassignmentEvaluator{
		groups: &groupLookup{repo: groups},
		cards:  cards,
		rules:  rules,
		tree:   tree,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Evaluate lists where acting may reassign card to. outsideAmbit is the
// permission to leave the ambit of the acting group.
func (e *ReassignmentEvaluator) Evaluate(ctx context.Context, card *models.RecordCard, acting *models.Group, outsideAmbit bool) (*ReassignmentOptions, error) {
	allowed, err := e.groups.canProcess(ctx, card, acting)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &ReassignmentOptions{Groups: []models.Group{}, Restriction: RestrictionDenied, Reason: ReasonNotAuthorized}, nil
	}

	if card.ReassignmentNotAllowed {
		return e.ambitOptions(ctx, card, acting, ReasonNotReassignable)
	}

	reason, err := e.ambitOnlyReason(ctx, card, acting)
	if err != nil {
		return nil, err
	}
	if reason == "" && !outsideAmbit {
		reason = ReasonNoOutsidePermission
	}
	if reason != "" {
		return e.ambitOptions(ctx, card, acting, reason)
	}

	if e.claimsLimitReached(card) {
		return e.coordinatorOptions(ctx, card, acting)
	}
	return e.unrestrictedOptions(ctx, card, acting)
}

func (e *ReassignmentEvaluator) ambitOnlyReason(ctx context.Context, card *models.RecordCard, acting *models.Group) (string, error) {
	if card.IsValidated {
		theme, err := loadTheme(ctx, e.rules, card)
		if err != nil {
			return "", err
		}
		if !theme.ValidatedReassignable {
			return ReasonValidated, nil
		}
	}
	if e.expired(card, acting) {
		return ReasonExpired, nil
	}
	if e.claimsLimitReached(card) && acting.IsAmbit {
		return ReasonClaimsLimit, nil
	}
	return "", nil
}

// expired reports whether the answer limit date plus the reassignment window
// of the acting group lies in the past.
func (e *ReassignmentEvaluator) expired(card *models.RecordCard, acting *models.Group) bool {
	if card.AnsLimitDate == nil {
		return false
	}
	deadline := card.AnsLimitDate.AddDate(0, 0, acting.ReassignmentWindowDays)
	return deadline.Before(e.now())
}

func (e *ReassignmentEvaluator) claimsLimitReached(card *models.RecordCard) bool {
	return card.ClaimsNumber >= e.cfg.MaxClaims
}

// ambitOptions restricts the candidates to the subtree of the coordinator of
// acting. A coordinator acting on its own ambit pivots on its parent so it
// can reach its siblings.
func (e *ReassignmentEvaluator) ambitOptions(ctx context.Context, card *models.RecordCard, acting *models.Group, reason string) (*ReassignmentOptions, error) {
	pivot, err := e.tree.AmbitCoordinator(ctx, acting)
	if err != nil {
		return nil, err
	}
	if pivot.ID == acting.ID && pivot.ParentID != nil {
		if pivot, err = e.groups.repo.FindByID(ctx, *pivot.ParentID); err != nil {
			return nil, err
		}
	}

	members, err := e.groups.repo.ListAmbit(ctx, pivot)
	if err != nil {
		return nil, err
	}
	candidates := withoutResponsible(members, card)

	previous, err := e.previousResponsible(ctx, card)
	if err != nil {
		return nil, err
	}
	if previous != 0 {
		candidates = moveToFront(candidates, previous)
	}
	return &ReassignmentOptions{Groups: candidates, Restriction: RestrictionAmbit, Reason: reason}, nil
}

func (e *ReassignmentEvaluator) coordinatorOptions(ctx context.Context, card *models.RecordCard, acting *models.Group) (*ReassignmentOptions, error) {
	coordinator, err := e.tree.AmbitCoordinator(ctx, acting)
	if err != nil {
		return nil, err
	}
	candidates := withoutResponsible([]models.Group{*coordinator}, card)
	return &ReassignmentOptions{Groups: candidates, Restriction: RestrictionCoordinator, Reason: ReasonOnlyCoordinator}, nil
}

func (e *ReassignmentEvaluator) unrestrictedOptions(ctx context.Context, card *models.RecordCard, acting *models.Group) (*ReassignmentOptions, error) {
	targets, err := e.groups.repo.ListReassignmentTargets(ctx, acting.ID)
	if err != nil {
		return nil, err
	}
	candidates := withoutResponsible(targets, card)

	previous, err := e.previousResponsible(ctx, card)
	if err != nil {
		return nil, err
	}
	if previous != 0 && !isResponsible(card, previous) {
		if containsGroup(candidates, previous) {
			candidates = moveToFront(candidates, previous)
		} else {
			g, err := e.groups.enabled(ctx, previous)
			if err != nil {
				return nil, err
			}
			if g != nil {
				candidates = append([]models.Group{*g}, candidates...)
			}
		}
	}
	return &ReassignmentOptions{Groups: candidates, Restriction: RestrictionNone}, nil
}

// previousResponsible returns the group the card was last taken from, or 0.
func (e *ReassignmentEvaluator) previousResponsible(ctx context.Context, card *models.RecordCard) (uint, error) {
	last, err := e.cards.LastReassignment(ctx, card.ID)
	if err != nil || last == nil {
		return 0, err
	}
	return last.PreviousResponsibleID, nil
}

func isResponsible(card *models.RecordCard, groupID uint) bool {
	return card.ResponsibleProfileID != nil && *card.ResponsibleProfileID == groupID
}

func withoutResponsible(groups []models.Group, card *models.RecordCard) []models.Group {
	out := make([]models.Group, 0, len(groups))
	for _, g := range groups {
		if !isResponsible(card, g.ID) {
			out = append(out, g)
		}
	}
	return out
}

func containsGroup(groups []models.Group, id uint) bool {
	for _, g := range groups {
		if g.ID == id {
			return true
		}
	}
	return false
}

// moveToFront moves the group with id to the head of groups when present.
func moveToFront(groups []models.Group, id uint) []models.Group {
	for i, g := range groups {
		if g.ID != id {
			continue
		}
		if i == 0 {
			return groups
		}
		out := make([]models.Group, 0, len(groups))
		out = append(out, g)
		out = append(out, groups[:i]...)
		return append(out, groups[i+1:]...)
	}
	return groups
}
