package services

import (
	"context"
	"testing"

	"github.com/automax/routing/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// orgTree is the tree most tests run on:
//
//	root
//	├── coordA (ambit)
//	│   ├── leafA1
//	│   └── leafA2
//	└── coordB (ambit)
//	    └── leafB1
type orgTree struct {
	root, coordA, leafA1, leafA2, coordB, leafB1 *models.Group
}

func (f *fixture) orgTree(t *testing.T) *orgTree {
	t.Helper()
	o := &orgTree{}
	o.root = f.group(t, "City council", nil, false)
	o.coordA = f.group(t, "Urban services", o.root, true)
	o.leafA1 = f.group(t, "Street cleaning", o.coordA, false)
	o.leafA2 = f.group(t, "Waste collection", o.coordA, false)
	o.coordB = f.group(t, "Mobility", o.root, true)
	o.leafB1 = f.group(t, "Traffic lights", o.coordB, false)
	return o
}

func TestAmbitTree_AmbitGroup(t *testing.T) {
	f := newFixture(t)
	o := f.orgTree(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		group *models.Group
		want  uint
	}{
		{"leaf climbs to its coordinator", o.leafA1, o.coordA.ID},
		{"coordinator is its own ambit", o.coordA, o.coordA.ID},
		{"root stays root", o.root, o.root.ID},
		{"other branch", o.leafB1, o.coordB.ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.tree.AmbitGroup(ctx, tc.group)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.ID)

			again, err := f.tree.AmbitGroup(ctx, got)
			require.NoError(t, err)
			assert.Equal(t, got.ID, again.ID)
		})
	}
}

func TestAmbitTree_AmbitGroupWithoutLevels(t *testing.T) {
	f := newFixture(t)
	f.cfg.AmbitTreeLevels = 0
	f.rebuild()
	o := f.orgTree(t)

	got, err := f.tree.AmbitGroup(context.Background(), o.leafA2)
	require.NoError(t, err)
	assert.Equal(t, o.leafA2.ID, got.ID)
}

func TestAmbitTree_AmbitGroupUsesGroupDepth(t *testing.T) {
	f := newFixture(t)
	o := f.orgTree(t)
	ctx := context.Background()
	district := f.groupWithDepth(t, "Eixample district", o.coordA, false, 0)
	shallow := f.groupWithDepth(t, "Eixample cleaning", district, false, 1)
	deep := f.groupWithDepth(t, "Eixample gardens", district, false, 2)
	require.Equal(t, 3, shallow.Level)
	require.Equal(t, 3, deep.Level)

	got, err := f.tree.AmbitGroup(ctx, shallow)
	require.NoError(t, err)
	assert.Equal(t, o.coordA.ID, got.ID)

	got, err = f.tree.AmbitGroup(ctx, deep)
	require.NoError(t, err)
	assert.Equal(t, district.ID, got.ID)

	again, err := f.tree.AmbitGroup(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, district.ID, again.ID)

	_, members, err := f.tree.Ambit(ctx, deep)
	require.NoError(t, err)
	assert.Equal(t, []uint{district.ID, shallow.ID, deep.ID}, ids(members))
}

func TestAmbitTree_AmbitCoordinator(t *testing.T) {
	f := newFixture(t)
	f.cfg.AmbitTreeLevels = 2
	f.rebuild()
	o := f.orgTree(t)
	ctx := context.Background()

	coordinator, err := f.tree.AmbitCoordinator(ctx, o.leafA1)
	require.NoError(t, err)
	assert.Equal(t, o.coordA.ID, coordinator.ID)

	ambit, err := f.tree.AmbitGroup(ctx, o.leafA1)
	require.NoError(t, err)
	assert.Equal(t, o.leafA1.ID, ambit.ID)
}

func TestAmbitTree_Ambit(t *testing.T) {
	f := newFixture(t)
	o := f.orgTree(t)
	ctx := context.Background()
	require.NoError(t, f.db.Model(o.leafA2).Update("enabled", false).Error)

	pivot, members, err := f.tree.Ambit(ctx, o.leafA1)
	require.NoError(t, err)
	assert.Equal(t, o.coordA.ID, pivot.ID)
	assert.Equal(t, []uint{o.coordA.ID, o.leafA1.ID}, ids(members))
}

func TestAmbitTree_RebuildStoresSnapshot(t *testing.T) {
	f := newFixture(t)
	o := f.orgTree(t)
	ctx := context.Background()
	require.NoError(t, f.db.Model(o.leafB1).Update("plate", "broken-").Error)

	updated, err := f.tree.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	require.Len(t, f.snapshots.saved, 1)
	snapshot := f.snapshots.saved[0]
	assert.Equal(t, "rebuild", snapshot.Reason)
	assert.Len(t, snapshot.Groups, 6)

	stored, err := f.groups.FindByID(ctx, o.leafB1.ID)
	require.NoError(t, err)
	assert.Equal(t, o.leafB1.Plate, stored.Plate)

	updated, err = f.tree.Rebuild(ctx)
	require.NoError(t, err)
	assert.Zero(t, updated)
}
