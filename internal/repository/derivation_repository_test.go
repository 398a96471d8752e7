package repository

import (
	"context"
	"testing"

	"github.com/automax/routing/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivationRepository_FindDirect(t *testing.T) {
	db := newTestDB(t)
	groups := NewGroupRepository(db)
	repo := NewDerivationRepository(db)
	ctx := context.Background()

	team := createGroup(t, groups, "Street cleaning", nil)
	off := createGroup(t, groups, "Switched off", nil)
	require.NoError(t, db.Model(off).Update("enabled", false).Error)

	theme := &models.ElementDetail{Description: "Litter", Active: true}
	require.NoError(t, repo.CreateElementDetail(ctx, theme))

	rule, err := repo.FindDirect(ctx, theme.ID, models.StatePendingValidate)
	require.NoError(t, err)
	assert.Nil(t, rule)

	require.NoError(t, repo.CreateDirect(ctx, &models.DerivationDirect{
		ElementDetailID: theme.ID, RecordStateID: models.StatePendingValidate, GroupID: off.ID, Enabled: true,
	}))
	rule, err = repo.FindDirect(ctx, theme.ID, models.StatePendingValidate)
	require.NoError(t, err)
	assert.Nil(t, rule, "rules pointing at disabled groups never match")

	require.NoError(t, repo.CreateDirect(ctx, &models.DerivationDirect{
		ElementDetailID: theme.ID, RecordStateID: models.StatePendingValidate, GroupID: team.ID, Enabled: true,
	}))
	rule, err = repo.FindDirect(ctx, theme.ID, models.StatePendingValidate)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, team.ID, rule.GroupID)
	require.NotNil(t, rule.Group)
	assert.Equal(t, "Street cleaning", rule.Group.Description)

	rule, err = repo.FindDirect(ctx, theme.ID, models.StateInResolution)
	require.NoError(t, err)
	assert.Nil(t, rule)
}

func TestDerivationRepository_SpatialRules(t *testing.T) {
	db := newTestDB(t)
	groups := NewGroupRepository(db)
	repo := NewDerivationRepository(db)
	ctx := context.Background()

	team := createGroup(t, groups, "District 5 team", nil)
	theme := &models.ElementDetail{Description: "Potholes", PolygonZone: "ZONA_NETEJA", Active: true}
	require.NoError(t, repo.CreateElementDetail(ctx, theme))

	spatial, err := repo.HasSpatialRules(ctx, theme.ID)
	require.NoError(t, err)
	assert.False(t, spatial)

	require.NoError(t, repo.CreateDistrict(ctx, &models.DerivationDistrict{
		ElementDetailID: theme.ID, RecordStateID: models.StatePendingValidate, DistrictID: 5, GroupID: team.ID, Enabled: true,
	}))
	require.NoError(t, repo.CreatePolygon(ctx, &models.DerivationPolygon{
		ElementDetailID: theme.ID, RecordStateID: models.StateInPlanning, Zone: "ZONA_NETEJA", PolygonCode: "P12", DistrictMode: true, Enabled: true,
	}))

	spatial, err = repo.HasSpatialRules(ctx, theme.ID)
	require.NoError(t, err)
	assert.True(t, spatial)

	has, err := repo.HasDistrictRules(ctx, theme.ID, models.StatePendingValidate)
	require.NoError(t, err)
	assert.True(t, has)
	has, err = repo.HasPolygonRules(ctx, theme.ID, models.StatePendingValidate)
	require.NoError(t, err)
	assert.False(t, has)

	district, err := repo.FindDistrict(ctx, theme.ID, models.StatePendingValidate, 5)
	require.NoError(t, err)
	require.NotNil(t, district)
	assert.Equal(t, team.ID, district.GroupID)

	district, err = repo.FindDistrict(ctx, theme.ID, models.StatePendingValidate, 7)
	require.NoError(t, err)
	assert.Nil(t, district)

	polygon, err := repo.FindPolygon(ctx, theme.ID, models.StateInPlanning, "ZONA_NETEJA", "P12")
	require.NoError(t, err)
	require.NotNil(t, polygon)
	assert.True(t, polygon.DistrictMode)
	assert.Nil(t, polygon.GroupID)
}
