package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/automax/routing/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidMove      = errors.New("group cannot be placed below itself or its descendants")
	ErrGroupHasChildren = errors.New("group still has children")
)

// Reason stored on record card reassignments caused by a group deletion.
const ReasonGroupDeleted = "group_deleted"

type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	FindByID(ctx context.Context, id uint) (*models.Group, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
	GetChildren(ctx context.Context, parentID uint) ([]models.Group, error)
	HasChildren(ctx context.Context, id uint) (bool, error)

	// Ambit queries, prefix matched on the plate
	ListAmbit(ctx context.Context, pivot *models.Group) ([]models.Group, error)
	InAmbit(ctx context.Context, pivot *models.Group, groupID uint) (bool, error)

	// Reassignment edges
	AddReassignmentTarget(ctx context.Context, originID, targetID uint) error
	ListReassignmentTargets(ctx context.Context, originID uint) ([]models.Group, error)

	// Structural changes, each one rebuilds plates in its own transaction
	Move(ctx context.Context, id, parentID uint) (*models.Group, error)
	DeleteAndReassign(ctx context.Context, id, destinationID uint, now time.Time) (*models.GroupDeletionResult, error)
	RebuildPlates(ctx context.Context) (int, error)
}

type groupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parentPlate := ""
		group.Level = 0
		if group.ParentID != nil {
			var parent models.Group
			if err := tx.First(&parent, "id = ?", *group.ParentID).Error; err != nil {
				return fmt.Errorf("parent group not found: %w", err)
			}
			group.Level = parent.Level + 1
			parentPlate = parent.Plate
		}

		if err := tx.Create(group).Error; err != nil {
			return err
		}
		group.Plate = models.BuildPlate(parentPlate, group.ID)
		return tx.Model(group).Update("plate", group.Plate).Error
	})
}

func (r *groupRepository) FindByID(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.Group, error) {
	var groups []models.Group
	if len(ids) == 0 {
		return groups, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("level").Find(&groups).Error
	return groups, err
}

func (r *groupRepository) List(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).Order("plate").Find(&groups).Error
	return groups, err
}

func (r *groupRepository) GetChildren(ctx context.Context, parentID uint) ([]models.Group, error) {
	var children []models.Group
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("sort_order, description").
		Find(&children).Error
	return children, err
}

func (r *groupRepository) HasChildren(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Group{}).Where("parent_id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *groupRepository) ListAmbit(ctx context.Context, pivot *models.Group) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Where("plate LIKE ? AND enabled = ?", pivot.Plate+"%", true).
		Order("plate").
		Find(&groups).Error
	return groups, err
}

func (r *groupRepository) InAmbit(ctx context.Context, pivot *models.Group, groupID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Group{}).
		Where("id = ? AND plate LIKE ? AND enabled = ?", groupID, pivot.Plate+"%", true).
		Count(&count).Error
	return count > 0, err
}

func (r *groupRepository) AddReassignmentTarget(ctx context.Context, originID, targetID uint) error {
	edge := &models.GroupReassignment{
		OriginGroupID: originID,
		TargetGroupID: targetID,
		Enabled:       true,
	}
	return r.db.WithContext(ctx).Create(edge).Error
}

func (r *groupRepository) ListReassignmentTargets(ctx context.Context, originID uint) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Joins("JOIN group_reassignments ON group_reassignments.target_group_id = profile_groups.id").
		Where("group_reassignments.origin_group_id = ? AND group_reassignments.enabled = ?", originID, true).
		Where("profile_groups.enabled = ?", true).
		Order("profile_groups.description").
		Find(&groups).Error
	return groups, err
}

func (r *groupRepository) Move(ctx context.Context, id, parentID uint) (*models.Group, error) {
	var moved models.Group
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group, parent models.Group
		if err := tx.First(&group, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.First(&parent, "id = ?", parentID).Error; err != nil {
			return fmt.Errorf("parent group not found: %w", err)
		}
		if group.Contains(&parent) {
			return ErrInvalidMove
		}

		if err := tx.Model(&group).Update("parent_id", parentID).Error; err != nil {
			return err
		}
		if _, err := rebuildPlates(tx); err != nil {
			return err
		}
		return tx.First(&moved, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &moved, nil
}

// DeleteAndReassign hands every enabled derivation rule and open record card
// of the group over to the destination and soft deletes the group. Rules are
// disabled and recreated rather than updated so the old rows stay as history.
func (r *groupRepository) DeleteAndReassign(ctx context.Context, id, destinationID uint, now time.Time) (*models.GroupDeletionResult, error) {
	result := &models.GroupDeletionResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group, destination models.Group
		if err := tx.First(&group, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.First(&destination, "id = ? AND enabled = ?", destinationID, true).Error; err != nil {
			return fmt.Errorf("destination group not found: %w", err)
		}
		if group.Contains(&destination) {
			return ErrInvalidMove
		}

		var children int64
		if err := tx.Model(&models.Group{}).Where("parent_id = ?", id).Count(&children).Error; err != nil {
			return err
		}
		if children > 0 {
			return ErrGroupHasChildren
		}

		moved, err := swapDerivations(tx, id, destinationID, now, func(d *models.DerivationDirect) {
			d.ID, d.GroupID, d.Enabled, d.DisabledAt, d.Group = 0, destinationID, true, nil, nil
		})
		if err != nil {
			return err
		}
		result.DerivationsMoved += moved

		moved, err = swapDerivations(tx, id, destinationID, now, func(d *models.DerivationDistrict) {
			d.ID, d.GroupID, d.Enabled, d.DisabledAt, d.Group = 0, destinationID, true, nil, nil
		})
		if err != nil {
			return err
		}
		result.DerivationsMoved += moved

		moved, err = swapDerivations(tx, id, destinationID, now, func(d *models.DerivationPolygon) {
			dest := destinationID
			d.ID, d.GroupID, d.Enabled, d.DisabledAt, d.Group = 0, &dest, true, nil, nil
		})
		if err != nil {
			return err
		}
		result.DerivationsMoved += moved

		cards, err := reassignOpenRecordCards(tx, id, destinationID)
		if err != nil {
			return err
		}
		result.RecordCardsMoved = cards

		if err := tx.Model(&models.GroupReassignment{}).
			Where("origin_group_id = ? OR target_group_id = ?", id, id).
			Update("enabled", false).Error; err != nil {
			return err
		}

		if err := tx.Model(&group).Update("enabled", false).Error; err != nil {
			return err
		}
		if err := tx.Delete(&group).Error; err != nil {
			return err
		}

		rebuilt, err := rebuildPlates(tx)
		if err != nil {
			return err
		}
		result.PlatesRebuilt = rebuilt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *groupRepository) RebuildPlates(ctx context.Context) (int, error) {
	var updated int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = rebuildPlates(tx)
		return err
	})
	return updated, err
}

// swapDerivations disables the enabled rules of type T pointing at groupID and
// inserts a reset copy of each one.
func swapDerivations[T any](tx *gorm.DB, groupID, destinationID uint, now time.Time, reset func(*T)) (int, error) {
	var rules []T
	if err := tx.Where("group_id = ? AND enabled = ?", groupID, true).Find(&rules).Error; err != nil {
		return 0, err
	}
	if len(rules) == 0 {
		return 0, nil
	}

	err := tx.Model(new(T)).
		Where("group_id = ? AND enabled = ?", groupID, true).
		Updates(map[string]interface{}{"enabled": false, "disabled_at": now}).Error
	if err != nil {
		return 0, err
	}

	for i := range rules {
		reset(&rules[i])
	}
	if err := tx.Create(&rules).Error; err != nil {
		return 0, err
	}
	return len(rules), nil
}

func reassignOpenRecordCards(tx *gorm.DB, groupID, destinationID uint) (int64, error) {
	closed := []models.RecordState{models.StateClosed, models.StateCancelled, models.StateNoProcessed}

	var ids []uuid.UUID
	err := tx.Model(&models.RecordCard{}).
		Where("responsible_profile_id = ? AND record_state_id NOT IN ?", groupID, closed).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}

	history := make([]models.RecordCardReassignment, 0, len(ids))
	for _, cardID := range ids {
		history = append(history, models.RecordCardReassignment{
			RecordCardID:          cardID,
			PreviousResponsibleID: groupID,
			NextResponsibleID:     destinationID,
			Reason:                ReasonGroupDeleted,
		})
	}
	if err := tx.Create(&history).Error; err != nil {
		return 0, err
	}

	res := tx.Model(&models.RecordCard{}).
		Where("id IN ?", ids).
		Update("responsible_profile_id", destinationID)
	return res.RowsAffected, res.Error
}
