package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/automax/routing/internal/models"
	"github.com/automax/routing/internal/repository"
	"gorm.io/gorm"
)

type groupLookup struct {
	repo repository.GroupRepository
}

// enabled returns the group when it exists and is enabled, nil otherwise.
func (l *groupLookup) enabled(ctx context.Context, id uint) (*models.Group, error) {
	g, err := l.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !g.Enabled {
		return nil, nil
	}
	return g, nil
}

// responsible returns the current responsible group of card, nil if none.
func (l *groupLookup) responsible(ctx context.Context, card *models.RecordCard) (*models.Group, error) {
	if card.ResponsibleProfileID == nil {
		return nil, nil
	}
	if card.ResponsibleProfile != nil && card.ResponsibleProfile.ID == *card.ResponsibleProfileID {
		return card.ResponsibleProfile, nil
	}
	return l.enabled(ctx, *card.ResponsibleProfileID)
}

// canProcess reports whether acting may work on card in its current state:
// the card must be open and acting must be its responsible group or one of
// that group's ancestors.
func (l *groupLookup) canProcess(ctx context.Context, card *models.RecordCard, acting *models.Group) (bool, error) {
	if acting == nil || !acting.Enabled || !card.RecordStateID.IsOpen() {
		return false, nil
	}
	responsible, err := l.responsible(ctx, card)
	if err != nil || responsible == nil {
		return false, err
	}
	return acting.Contains(responsible), nil
}

func loadTheme(ctx context.Context, rules repository.DerivationRepository, card *models.RecordCard) (*models.ElementDetail, error) {
	if card.ElementDetail != nil && card.ElementDetail.ID == card.ElementDetailID {
		return card.ElementDetail, nil
	}
	theme, err := rules.FindElementDetail(ctx, card.ElementDetailID)
	if err != nil {
		return nil, fmt.Errorf("failed to load theme %d: %w", card.ElementDetailID, err)
	}
	card.ElementDetail = theme
	return theme, nil
}
