package services

import (
	"context"
	"testing"

	"github.com/automax/routing/internal/logger"
	"github.com/automax/routing/internal/models"
	"github.com/automax/routing/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupService_CreateAndMove(t *testing.T) {
	f := newFixture(t)
	svc := NewGroupService(f.groups, f.tree, logger.NewNop())
	ctx := context.Background()

	root, err := svc.Create(ctx, &models.GroupCreateRequest{Description: "City council"})
	require.NoError(t, err)
	left, err := svc.Create(ctx, &models.GroupCreateRequest{Description: "Urban services", ParentID: &root.ID, IsAmbit: true})
	require.NoError(t, err)
	right, err := svc.Create(ctx, &models.GroupCreateRequest{Description: "Mobility", ParentID: &root.ID, IsAmbit: true})
	require.NoError(t, err)
	leaf, err := svc.Create(ctx, &models.GroupCreateRequest{Description: "Street cleaning", ParentID: &left.ID})
	require.NoError(t, err)
	assert.Equal(t, models.BuildPlate(left.Plate, leaf.ID), leaf.Plate)
	assert.Len(t, f.snapshots.saved, 4)

	moved, err := svc.Move(ctx, leaf.ID, &models.GroupMoveRequest{ParentID: right.ID})
	require.NoError(t, err)
	assert.Equal(t, models.BuildPlate(right.Plate, leaf.ID), moved.Plate)
	assert.Equal(t, "move", f.snapshots.saved[len(f.snapshots.saved)-1].Reason)

	pivot, members, err := svc.Ambit(ctx, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, right.ID, pivot.ID)
	assert.Equal(t, []uint{right.ID, leaf.ID}, ids(members))

	_, err = svc.Move(ctx, root.ID, &models.GroupMoveRequest{ParentID: leaf.ID})
	assert.ErrorIs(t, err, repository.ErrInvalidMove)
}

func TestGroupService_Delete(t *testing.T) {
	f := newFixture(t)
	o := f.orgTree(t)
	svc := NewGroupService(f.groups, f.tree, logger.NewNop())
	ctx := context.Background()
	card := f.assignedCard(t, o.leafA1, nil)

	_, err := svc.Delete(ctx, o.coordA.ID, &models.GroupDeleteRequest{DestinationID: o.coordB.ID})
	assert.ErrorIs(t, err, repository.ErrGroupHasChildren)

	result, err := svc.Delete(ctx, o.leafA1.ID, &models.GroupDeleteRequest{DestinationID: o.leafA2.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RecordCardsMoved)

	stored, err := f.cards.FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, o.leafA2.ID, *stored.ResponsibleProfileID)

	_, members, err := svc.Ambit(ctx, o.leafA2.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{o.coordA.ID, o.leafA2.ID}, ids(members))
}

func TestGroupService_AddReassignmentTarget(t *testing.T) {
	f := newFixture(t)
	o := f.orgTree(t)
	svc := NewGroupService(f.groups, f.tree, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.AddReassignmentTarget(ctx, o.leafA1.ID, o.leafB1.ID))
	assert.Error(t, svc.AddReassignmentTarget(ctx, o.leafA1.ID, 9999))

	targets, err := f.groups.ListReassignmentTargets(ctx, o.leafA1.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{o.leafB1.ID}, ids(targets))
}
