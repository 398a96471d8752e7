package repository

import (
	"context"
	"errors"

	"github.com/automax/routing/internal/models"
	"gorm.io/gorm"
)

// DerivationRepository reads the routing rules of a theme. A rule pointing at
// a disabled or deleted group never matches. Lookups that find no rule return
// (nil, nil).
type DerivationRepository interface {
	FindElementDetail(ctx context.Context, id uint) (*models.ElementDetail, error)
	CreateElementDetail(ctx context.Context, theme *models.ElementDetail) error

	FindDirect(ctx context.Context, themeID uint, state models.RecordState) (*models.DerivationDirect, error)
	FindDistrict(ctx context.Context, themeID uint, state models.RecordState, districtID uint) (*models.DerivationDistrict, error)
	FindPolygon(ctx context.Context, themeID uint, state models.RecordState, zone, code string) (*models.DerivationPolygon, error)

	HasPolygonRules(ctx context.Context, themeID uint, state models.RecordState) (bool, error)
	HasDistrictRules(ctx context.Context, themeID uint, state models.RecordState) (bool, error)
	HasSpatialRules(ctx context.Context, themeID uint) (bool, error)

	CreateDirect(ctx context.Context, rule *models.DerivationDirect) error
	CreateDistrict(ctx context.Context, rule *models.DerivationDistrict) error
	CreatePolygon(ctx context.Context, rule *models.DerivationPolygon) error
}

type derivationRepository struct {
	db *gorm.DB
}

func NewDerivationRepository(db *gorm.DB) DerivationRepository {
	return &derivationRepository{db: db}
}

func (r *derivationRepository) FindElementDetail(ctx context.Context, id uint) (*models.ElementDetail, error) {
	var theme models.ElementDetail
	err := r.db.WithContext(ctx).First(&theme, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &theme, nil
}

func (r *derivationRepository) CreateElementDetail(ctx context.Context, theme *models.ElementDetail) error {
	return r.db.WithContext(ctx).Create(theme).Error
}

// enabledGroups is the subquery of group ids a rule may still point at.
func (r *derivationRepository) enabledGroups(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Group{}).Select("id").Where("enabled = ?", true)
}

func (r *derivationRepository) FindDirect(ctx context.Context, themeID uint, state models.RecordState) (*models.DerivationDirect, error) {
	var rule models.DerivationDirect
	err := r.db.WithContext(ctx).
		Preload("Group").
		Where("element_detail_id = ? AND record_state_id = ? AND enabled = ?", themeID, state, true).
		Where("group_id IN (?)", r.enabledGroups(ctx)).
		Order("id").
		First(&rule).Error
	return found(&rule, err)
}

func (r *derivationRepository) FindDistrict(ctx context.Context, themeID uint, state models.RecordState, districtID uint) (*models.DerivationDistrict, error) {
	var rule models.DerivationDistrict
	err := r.db.WithContext(ctx).
		Preload("Group").
		Where("element_detail_id = ? AND record_state_id = ? AND district_id = ? AND enabled = ?", themeID, state, districtID, true).
		Where("group_id IN (?)", r.enabledGroups(ctx)).
		Order("id").
		First(&rule).Error
	return found(&rule, err)
}

func (r *derivationRepository) FindPolygon(ctx context.Context, themeID uint, state models.RecordState, zone, code string) (*models.DerivationPolygon, error) {
	var rule models.DerivationPolygon
	err := r.db.WithContext(ctx).
		Preload("Group").
		Where("element_detail_id = ? AND record_state_id = ? AND zone = ? AND polygon_code = ? AND enabled = ?", themeID, state, zone, code, true).
		Where("(district_mode = ? OR group_id IN (?))", true, r.enabledGroups(ctx)).
		Order("id").
		First(&rule).Error
	return found(&rule, err)
}

func (r *derivationRepository) HasPolygonRules(ctx context.Context, themeID uint, state models.RecordState) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DerivationPolygon{}).
		Where("element_detail_id = ? AND record_state_id = ? AND enabled = ?", themeID, state, true).
		Count(&count).Error
	return count > 0, err
}

func (r *derivationRepository) HasDistrictRules(ctx context.Context, themeID uint, state models.RecordState) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DerivationDistrict{}).
		Where("element_detail_id = ? AND record_state_id = ? AND enabled = ?", themeID, state, true).
		Count(&count).Error
	return count > 0, err
}

// HasSpatialRules reports whether the theme has any enabled polygon or district
// rule, whatever the state.
func (r *derivationRepository) HasSpatialRules(ctx context.Context, themeID uint) (bool, error) {
	var polygons, districts int64
	err := r.db.WithContext(ctx).Model(&models.DerivationPolygon{}).
		Where("element_detail_id = ? AND enabled = ?", themeID, true).
		Count(&polygons).Error
	if err != nil {
		return false, err
	}
	if polygons > 0 {
		return true, nil
	}
	err = r.db.WithContext(ctx).Model(&models.DerivationDistrict{}).
		Where("element_detail_id = ? AND enabled = ?", themeID, true).
		Count(&districts).Error
	return districts > 0, err
}

func (r *derivationRepository) CreateDirect(ctx context.Context, rule *models.DerivationDirect) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *derivationRepository) CreateDistrict(ctx context.Context, rule *models.DerivationDistrict) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *derivationRepository) CreatePolygon(ctx context.Context, rule *models.DerivationPolygon) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// found turns gorm's not found error into an absent result.
func found[T any](v *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
