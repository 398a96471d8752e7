package services

import (
	"context"
	"time"

	"github.com/automax/routing/internal/logger"
	"github.com/automax/routing/internal/models"
	"github.com/automax/routing/internal/repository"
)

type GroupService interface {
	Create(ctx context.Context, req *models.GroupCreateRequest) (*models.Group, error)
	Get(ctx context.Context, id uint) (*models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
	Move(ctx context.Context, id uint, req *models.GroupMoveRequest) (*models.Group, error)
	Delete(ctx context.Context, id uint, req *models.GroupDeleteRequest) (*models.GroupDeletionResult, error)
	Rebuild(ctx context.Context) (int, error)
	Ambit(ctx context.Context, id uint) (*models.Group, []models.Group, error)
	AddReassignmentTarget(ctx context.Context, originID, targetID uint) error
}

type groupService struct {
	groups repository.GroupRepository
	tree   *AmbitTree
	log    *logger.Logger
	now    func() time.Time
}

func NewGroupService(groups repository.GroupRepository, tree *AmbitTree, log *logger.Logger) GroupService {
	return &groupService{groups: groups, tree: tree, log: log, now: time.Now}
}

func (s *groupService) Create(ctx context.Context, req *models.GroupCreateRequest) (*models.Group, error) {
	group := &models.Group{
		Description:            req.Description,
		ParentID:               req.ParentID,
		IsAmbit:                req.IsAmbit,
		SortOrder:              req.SortOrder,
		AmbitTreeLevels:        s.tree.cfg.AmbitTreeLevels,
		ReassignmentWindowDays: req.ReassignmentWindowDays,
		Enabled:                true,
	}
	if req.AmbitTreeLevels != nil {
		group.AmbitTreeLevels = *req.AmbitTreeLevels
	}
	err := s.tree.Mutate(ctx, "create", func(ctx context.Context) error {
		return s.groups.Create(ctx, group)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Group created", "group_id", group.ID, "plate", group.Plate)
	return group, nil
}

func (s *groupService) Get(ctx context.Context, id uint) (*models.Group, error) {
	return s.groups.FindByID(ctx, id)
}

func (s *groupService) List(ctx context.Context) ([]models.Group, error) {
	return s.groups.List(ctx)
}

func (s *groupService) Move(ctx context.Context, id uint, req *models.GroupMoveRequest) (*models.Group, error) {
	var moved *models.Group
	err := s.tree.Mutate(ctx, "move", func(ctx context.Context) error {
		var err error
		moved, err = s.groups.Move(ctx, id, req.ParentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Group moved", "group_id", id, "parent_id", req.ParentID, "plate", moved.Plate)
	return moved, nil
}

func (s *groupService) Delete(ctx context.Context, id uint, req *models.GroupDeleteRequest) (*models.GroupDeletionResult, error) {
	var result *models.GroupDeletionResult
	err := s.tree.Mutate(ctx, "delete", func(ctx context.Context) error {
		var err error
		result, err = s.groups.DeleteAndReassign(ctx, id, req.DestinationID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Group deleted", "group_id", id, "destination_id", req.DestinationID,
		"derivations", result.DerivationsMoved, "record_cards", result.RecordCardsMoved)
	return result, nil
}

func (s *groupService) Rebuild(ctx context.Context) (int, error) {
	updated, err := s.tree.Rebuild(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info("Group plates rebuilt", "updated", updated)
	return updated, nil
}

func (s *groupService) Ambit(ctx context.Context, id uint) (*models.Group, []models.Group, error) {
	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return s.tree.Ambit(ctx, group)
}

func (s *groupService) AddReassignmentTarget(ctx context.Context, originID, targetID uint) error {
	if _, err := s.groups.FindByID(ctx, originID); err != nil {
		return err
	}
	if _, err := s.groups.FindByID(ctx, targetID); err != nil {
		return err
	}
	return s.groups.AddReassignmentTarget(ctx, originID, targetID)
}
