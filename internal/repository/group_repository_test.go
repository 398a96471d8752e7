package repository

import (
	"context"
	"testing"
	"time"

	"github.com/automax/routing/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupRepository_CreateBuildsPlate(t *testing.T) {
	repo := NewGroupRepository(newTestDB(t))

	root := createGroup(t, repo, "City council", nil)
	area := createGroup(t, repo, "Environment", root)
	team := createGroup(t, repo, "Street cleaning", area)

	assert.Equal(t, models.BuildPlate("", root.ID), root.Plate)
	assert.Equal(t, 0, root.Level)
	assert.Equal(t, root.Plate+models.BuildPlate("", area.ID), area.Plate)
	assert.Equal(t, 2, team.Level)

	stored, err := repo.FindByID(context.Background(), team.ID)
	require.NoError(t, err)
	assert.Equal(t, team.Plate, stored.Plate)

	coordinator, err := stored.AncestorID(1)
	require.NoError(t, err)
	assert.Equal(t, area.ID, coordinator)
}

func TestGroupRepository_ListAmbit(t *testing.T) {
	repo := NewGroupRepository(newTestDB(t))
	ctx := context.Background()

	root := createGroup(t, repo, "City council", nil)
	env := createGroup(t, repo, "Environment", root)
	cleaning := createGroup(t, repo, "Street cleaning", env)
	mobility := createGroup(t, repo, "Mobility", root)

	ambit, err := repo.ListAmbit(ctx, env)
	require.NoError(t, err)
	require.Len(t, ambit, 2)
	assert.Equal(t, env.ID, ambit[0].ID)
	assert.Equal(t, cleaning.ID, ambit[1].ID)

	inside, err := repo.InAmbit(ctx, env, cleaning.ID)
	require.NoError(t, err)
	assert.True(t, inside)

	inside, err = repo.InAmbit(ctx, env, mobility.ID)
	require.NoError(t, err)
	assert.False(t, inside)
}

func TestGroupRepository_ListReassignmentTargets(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupRepository(db)
	ctx := context.Background()

	origin := createGroup(t, repo, "Origin", nil)
	zeta := createGroup(t, repo, "Zeta", nil)
	alpha := createGroup(t, repo, "Alpha", nil)
	disabled := createGroup(t, repo, "Disabled", nil)
	require.NoError(t, db.Model(disabled).Update("enabled", false).Error)

	for _, target := range []*models.Group{zeta, alpha, disabled} {
		require.NoError(t, repo.AddReassignmentTarget(ctx, origin.ID, target.ID))
	}

	targets, err := repo.ListReassignmentTargets(ctx, origin.ID)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "Alpha", targets[0].Description)
	assert.Equal(t, "Zeta", targets[1].Description)
}

func TestGroupRepository_MoveRebuildsSubtree(t *testing.T) {
	repo := NewGroupRepository(newTestDB(t))
	ctx := context.Background()

	root := createGroup(t, repo, "City council", nil)
	env := createGroup(t, repo, "Environment", root)
	mobility := createGroup(t, repo, "Mobility", root)
	cleaning := createGroup(t, repo, "Street cleaning", env)
	night := createGroup(t, repo, "Night shift", cleaning)

	moved, err := repo.Move(ctx, cleaning.ID, mobility.ID)
	require.NoError(t, err)
	assert.Equal(t, mobility.Plate+models.BuildPlate("", cleaning.ID), moved.Plate)
	assert.Equal(t, 2, moved.Level)

	child, err := repo.FindByID(ctx, night.ID)
	require.NoError(t, err)
	assert.Equal(t, moved.Plate+models.BuildPlate("", night.ID), child.Plate)
	assert.Equal(t, 3, child.Level)

	ambit, err := repo.ListAmbit(ctx, env)
	require.NoError(t, err)
	assert.Len(t, ambit, 1)
}

func TestGroupRepository_MoveBelowOwnSubtree(t *testing.T) {
	repo := NewGroupRepository(newTestDB(t))
	ctx := context.Background()

	root := createGroup(t, repo, "City council", nil)
	env := createGroup(t, repo, "Environment", root)
	cleaning := createGroup(t, repo, "Street cleaning", env)

	_, err := repo.Move(ctx, env.ID, cleaning.ID)
	assert.ErrorIs(t, err, ErrInvalidMove)

	_, err = repo.Move(ctx, env.ID, env.ID)
	assert.ErrorIs(t, err, ErrInvalidMove)

	stored, err := repo.FindByID(ctx, cleaning.ID)
	require.NoError(t, err)
	assert.Equal(t, cleaning.Plate, stored.Plate)
}

func TestGroupRepository_RebuildPlatesRepairsStalePlates(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupRepository(db)
	ctx := context.Background()

	root := createGroup(t, repo, "City council", nil)
	env := createGroup(t, repo, "Environment", root)
	require.NoError(t, db.Model(&models.Group{}).Where("id = ?", env.ID).
		Updates(map[string]interface{}{"plate": "99-", "level": 7}).Error)

	updated, err := repo.RebuildPlates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	stored, err := repo.FindByID(ctx, env.ID)
	require.NoError(t, err)
	assert.Equal(t, env.Plate, stored.Plate)
	assert.Equal(t, 1, stored.Level)

	updated, err = repo.RebuildPlates(ctx)
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestGroupRepository_DeleteAndReassign(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupRepository(db)
	derivations := NewDerivationRepository(db)
	cards := NewRecordCardRepository(db)
	ctx := context.Background()

	root := createGroup(t, repo, "City council", nil)
	old := createGroup(t, repo, "Old team", root)
	dest := createGroup(t, repo, "New team", root)
	require.NoError(t, repo.AddReassignmentTarget(ctx, root.ID, old.ID))

	theme := &models.ElementDetail{Description: "Graffiti", Active: true}
	require.NoError(t, derivations.CreateElementDetail(ctx, theme))
	require.NoError(t, derivations.CreateDirect(ctx, &models.DerivationDirect{
		ElementDetailID: theme.ID, RecordStateID: models.StatePendingValidate, GroupID: old.ID, Enabled: true,
	}))
	require.NoError(t, derivations.CreateDistrict(ctx, &models.DerivationDistrict{
		ElementDetailID: theme.ID, RecordStateID: models.StateInPlanning, DistrictID: 5, GroupID: old.ID, Enabled: true,
	}))

	open := &models.RecordCard{NormalizedRecordID: "RC-1", ElementDetailID: theme.ID, ResponsibleProfileID: &old.ID, RecordStateID: models.StateInResolution}
	closed := &models.RecordCard{NormalizedRecordID: "RC-2", ElementDetailID: theme.ID, ResponsibleProfileID: &old.ID, RecordStateID: models.StateClosed}
	require.NoError(t, cards.Create(ctx, open))
	require.NoError(t, cards.Create(ctx, closed))

	now := time.Now()
	result, err := repo.DeleteAndReassign(ctx, old.ID, dest.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 2, result.DerivationsMoved)
	assert.Equal(t, int64(1), result.RecordCardsMoved)

	rule, err := derivations.FindDirect(ctx, theme.ID, models.StatePendingValidate)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, dest.ID, rule.GroupID)

	var disabled []models.DerivationDirect
	require.NoError(t, db.Where("group_id = ? AND enabled = ?", old.ID, false).Find(&disabled).Error)
	require.Len(t, disabled, 1)
	assert.NotNil(t, disabled[0].DisabledAt)

	district, err := derivations.FindDistrict(ctx, theme.ID, models.StateInPlanning, 5)
	require.NoError(t, err)
	require.NotNil(t, district)
	assert.Equal(t, dest.ID, district.GroupID)

	movedCard, err := cards.FindByID(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, dest.ID, *movedCard.ResponsibleProfileID)

	last, err := cards.LastReassignment(ctx, open.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, ReasonGroupDeleted, last.Reason)
	assert.Equal(t, old.ID, last.PreviousResponsibleID)

	closedCard, err := cards.FindByID(ctx, closed.ID)
	require.NoError(t, err)
	assert.Equal(t, old.ID, *closedCard.ResponsibleProfileID)

	_, err = repo.FindByID(ctx, old.ID)
	assert.Error(t, err)

	targets, err := repo.ListReassignmentTargets(ctx, root.ID)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestGroupRepository_DeleteGroupWithChildren(t *testing.T) {
	repo := NewGroupRepository(newTestDB(t))
	ctx := context.Background()

	root := createGroup(t, repo, "City council", nil)
	env := createGroup(t, repo, "Environment", root)
	createGroup(t, repo, "Street cleaning", env)
	other := createGroup(t, repo, "Mobility", root)

	_, err := repo.DeleteAndReassign(ctx, env.ID, other.ID, time.Now())
	assert.ErrorIs(t, err, ErrGroupHasChildren)

	_, err = repo.DeleteAndReassign(ctx, root.ID, env.ID, time.Now())
	assert.ErrorIs(t, err, ErrInvalidMove)
}
