package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/automax/routing/internal/config"
	"github.com/automax/routing/internal/models"
	"github.com/automax/routing/internal/repository"
)

// RecordClaimError is a failed claim eligibility check. With MustBeComment
// set the claim is not an error for the caller: it is stored as a comment on
// the record card and the action stops there.
type RecordClaimError struct {
	Message       string
	MustBeComment bool
}

func (e *RecordClaimError) Error() string {
	return e.Message
}

// AsRecordClaimError unwraps a RecordClaimError from err.
func AsRecordClaimError(err error) (*RecordClaimError, bool) {
	var claimErr *RecordClaimError
	if errors.As(err, &claimErr) {
		return claimErr, true
	}
	return nil, false
}

// ClaimValidator decides whether a closed record card can be reopened as a
// claim. The checks are exported so callers can run a subset of them.
type ClaimValidator struct {
	cards repository.RecordCardRepository
	rules repository.DerivationRepository
	cfg   config.RoutingConfig
	now   func() time.Time
}

func NewClaimValidator(cards repository.RecordCardRepository, rules repository.DerivationRepository, cfg config.RoutingConfig) *ClaimValidator {
	return &ClaimValidator{cards: cards, rules: rules, cfg: cfg, now: time.Now}
}

// Validate runs every check in order and returns the first failure.
func (v *ClaimValidator) Validate(ctx context.Context, card *models.RecordCard) error {
	checks := []func(context.Context, *models.RecordCard) error{
		v.CheckClosed,
		v.CheckNoOpenClaim,
		v.CheckDaysLimit,
		v.CheckApplicantNotBlocked,
		v.CheckResponseWindow,
	}
	for _, check := range checks {
		if err := check(ctx, card); err != nil {
			return err
		}
	}
	return nil
}

func (v *ClaimValidator) CheckClosed(_ context.Context, card *models.RecordCard) error {
	if !card.RecordStateID.IsClosed() {
		return &RecordClaimError{
			Message:       fmt.Sprintf("record card %s is %s, only closed or cancelled record cards can be claimed", card.NormalizedRecordID, card.RecordStateID),
			MustBeComment: true,
		}
	}
	return nil
}

func (v *ClaimValidator) CheckNoOpenClaim(ctx context.Context, card *models.RecordCard) error {
	open, err := v.cards.HasOpenClaim(ctx, card.ID)
	if err != nil {
		return err
	}
	if open {
		return &RecordClaimError{
			Message: fmt.Sprintf("record card %s already has an open claim", card.NormalizedRecordID),
		}
	}
	return nil
}

func (v *ClaimValidator) CheckDaysLimit(ctx context.Context, card *models.RecordCard) error {
	closedAt, err := v.closingDate(ctx, card)
	if err != nil || closedAt == nil {
		return err
	}
	limit := closedAt.AddDate(0, 0, v.cfg.ClaimDaysLimit)
	if v.now().After(limit) {
		return &RecordClaimError{
			Message: fmt.Sprintf("the %d days to claim record card %s ended %d days ago",
				v.cfg.ClaimDaysLimit, card.NormalizedRecordID, daysBetween(limit, v.now())),
		}
	}
	return nil
}

func (v *ClaimValidator) CheckApplicantNotBlocked(ctx context.Context, card *models.RecordCard) error {
	if card.Applicant == nil || !card.Applicant.Blocked {
		return nil
	}
	theme, err := loadTheme(ctx, v.rules, card)
	if err != nil {
		return err
	}
	if theme.IgnoresApplicantBlock {
		return nil
	}
	return &RecordClaimError{Message: "the applicant is blocked and can not claim"}
}

func (v *ClaimValidator) CheckResponseWindow(ctx context.Context, card *models.RecordCard) error {
	resolution := card.Resolution
	if resolution == nil || resolution.ResolutionType == nil || resolution.ResolutionType.CanClaimInsideAns {
		return nil
	}
	if card.AnsLimitDate == nil || !v.now().Before(*card.AnsLimitDate) {
		return nil
	}
	theme, err := loadTheme(ctx, v.rules, card)
	if err != nil {
		return err
	}
	if theme.AllowClaimsInsideWindow {
		return nil
	}
	return &RecordClaimError{
		Message: fmt.Sprintf("record card %s can not be claimed before its answer limit date, %d days remaining",
			card.NormalizedRecordID, daysBetween(v.now(), *card.AnsLimitDate)),
		MustBeComment: true,
	}
}

// closingDate is the date of the last transition to a closed state, falling
// back to the closing date stored on the card.
func (v *ClaimValidator) closingDate(ctx context.Context, card *models.RecordCard) (*time.Time, error) {
	history, err := v.cards.LastClosingTransition(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	if history != nil {
		return &history.CreatedAt, nil
	}
	return card.ClosingDate, nil
}

// daysBetween rounds the distance between two instants up to whole days.
func daysBetween(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}
