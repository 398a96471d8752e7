package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/automax/routing/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RecordCardRepository interface {
	Create(ctx context.Context, card *models.RecordCard) error
	CreateAssigned(ctx context.Context, card *models.RecordCard, assignment *models.RecordCardReassignment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RecordCard, error)
	GenerateNormalizedID(ctx context.Context) (string, error)
	CreateApplicant(ctx context.Context, applicant *models.Applicant) error

	// State transitions
	SaveTransition(ctx context.Context, card *models.RecordCard, history *models.RecordCardStateHistory, resolution *models.RecordCardResolution, assignment *models.RecordCardReassignment) error
	LastClosingTransition(ctx context.Context, cardID uuid.UUID) (*models.RecordCardStateHistory, error)

	// Reassignment
	SaveReassignment(ctx context.Context, card *models.RecordCard, reassignment *models.RecordCardReassignment) error
	LastReassignment(ctx context.Context, cardID uuid.UUID) (*models.RecordCardReassignment, error)

	// Claims
	HasOpenClaim(ctx context.Context, cardID uuid.UUID) (bool, error)

	CreateComment(ctx context.Context, comment *models.RecordCardComment) error
	ListComments(ctx context.Context, cardID uuid.UUID) ([]models.RecordCardComment, error)

	MarkResponseTimeExpired(ctx context.Context, now time.Time) (int64, error)
}

type recordCardRepository struct {
	db *gorm.DB
}

func NewRecordCardRepository(db *gorm.DB) RecordCardRepository {
	return &recordCardRepository{db: db}
}

func (r *recordCardRepository) Create(ctx context.Context, card *models.RecordCard) error {
	return r.db.WithContext(ctx).Create(card).Error
}

// CreateAssigned stores a new card together with the row recording how its
// responsible group was derived. A nil assignment stores the card alone.
func (r *recordCardRepository) CreateAssigned(ctx context.Context, card *models.RecordCard, assignment *models.RecordCardReassignment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(card).Error; err != nil {
			return err
		}
		if assignment == nil {
			return nil
		}
		assignment.RecordCardID = card.ID
		return tx.Create(assignment).Error
	})
}

func (r *recordCardRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.RecordCard, error) {
	var card models.RecordCard
	err := r.db.WithContext(ctx).
		Preload("ElementDetail").
		Preload("ResponsibleProfile").
		Preload("Ubication").
		Preload("Ubication.Polygons").
		Preload("Applicant").
		Preload("Resolution").
		Preload("Resolution.ResolutionType").
		First(&card, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// GenerateNormalizedID numbers record cards per year. Claims are numbered
// after the card they reopen and are not counted.
func (r *recordCardRepository) GenerateNormalizedID(ctx context.Context) (string, error) {
	now := time.Now()
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.RecordCard{}).
		Where("created_at >= ? AND created_at < ?", start, start.AddDate(1, 0, 0)).
		Where("claimed_from_id IS NULL").
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RC-%d-%06d", now.Year(), count+1), nil
}

func (r *recordCardRepository) CreateApplicant(ctx context.Context, applicant *models.Applicant) error {
	return r.db.WithContext(ctx).Create(applicant).Error
}

// SaveTransition applies a state change, its history row and the optional
// resolution and derived assignment in one transaction.
func (r *recordCardRepository) SaveTransition(ctx context.Context, card *models.RecordCard, history *models.RecordCardStateHistory, resolution *models.RecordCardResolution, assignment *models.RecordCardReassignment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(card).
			Select("record_state_id", "closing_date", "responsible_profile_id", "is_validated").
			Updates(card).Error
		if err != nil {
			return err
		}
		if err := tx.Create(history).Error; err != nil {
			return err
		}
		if resolution != nil {
			resolution.RecordCardID = card.ID
			if err := tx.Create(resolution).Error; err != nil {
				return err
			}
		}
		if assignment != nil {
			assignment.RecordCardID = card.ID
			if err := tx.Create(assignment).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *recordCardRepository) LastClosingTransition(ctx context.Context, cardID uuid.UUID) (*models.RecordCardStateHistory, error) {
	var history models.RecordCardStateHistory
	err := r.db.WithContext(ctx).
		Where("record_card_id = ? AND next_state IN ?", cardID, []models.RecordState{models.StateClosed, models.StateCancelled}).
		Order("created_at DESC, id DESC").
		First(&history).Error
	return found(&history, err)
}

func (r *recordCardRepository) SaveReassignment(ctx context.Context, card *models.RecordCard, reassignment *models.RecordCardReassignment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(card).
			Select("responsible_profile_id", "reassigned", "alarm").
			Updates(card).Error
		if err != nil {
			return err
		}
		reassignment.RecordCardID = card.ID
		return tx.Create(reassignment).Error
	})
}

func (r *recordCardRepository) LastReassignment(ctx context.Context, cardID uuid.UUID) (*models.RecordCardReassignment, error) {
	var reassignment models.RecordCardReassignment
	err := r.db.WithContext(ctx).
		Where("record_card_id = ?", cardID).
		Order("created_at DESC, id DESC").
		First(&reassignment).Error
	return found(&reassignment, err)
}

func (r *recordCardRepository) HasOpenClaim(ctx context.Context, cardID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RecordCard{}).
		Where("claimed_from_id = ?", cardID).
		Where("record_state_id NOT IN ?", []models.RecordState{models.StateClosed, models.StateCancelled}).
		Count(&count).Error
	return count > 0, err
}

func (r *recordCardRepository) CreateComment(ctx context.Context, comment *models.RecordCardComment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *recordCardRepository) ListComments(ctx context.Context, cardID uuid.UUID) ([]models.RecordCardComment, error) {
	var comments []models.RecordCardComment
	err := r.db.WithContext(ctx).
		Where("record_card_id = ?", cardID).
		Order("created_at, id").
		Find(&comments).Error
	return comments, err
}

// MarkResponseTimeExpired flags the open record cards whose answer limit date
// has passed.
func (r *recordCardRepository) MarkResponseTimeExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RecordCard{}).
		Where("ans_limit_date IS NOT NULL").
		Where("ans_limit_date < ?", now).
		Where("response_time_expired = ?", false).
		Where("record_state_id NOT IN ?", []models.RecordState{models.StateClosed, models.StateCancelled, models.StateNoProcessed}).
		Updates(map[string]interface{}{"response_time_expired": true, "alarm": true})

	return result.RowsAffected, result.Error
}
