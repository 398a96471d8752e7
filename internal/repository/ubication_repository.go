package repository

import (
	"context"

	"github.com/automax/routing/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UbicationRepository persists what the geocoder resolved for an ubication.
type UbicationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ubication, error)
	SaveGeocodedFields(ctx context.Context, u *models.Ubication) error
	SavePolygonCode(ctx context.Context, ubicationID uuid.UUID, zone, code string) error
	CreateDistrict(ctx context.Context, district *models.District) error
}

type ubicationRepository struct {
	db *gorm.DB
}

func NewUbicationRepository(db *gorm.DB) UbicationRepository {
	return &ubicationRepository{db: db}
}

func (r *ubicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Ubication, error) {
	var u models.Ubication
	err := r.db.WithContext(ctx).Preload("Polygons").First(&u, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *ubicationRepository) SaveGeocodedFields(ctx context.Context, u *models.Ubication) error {
	return r.db.WithContext(ctx).Model(u).
		Select("official_street_name", "numbering_type", "neighborhood_id", "neighborhood",
			"statistical_sector", "district_id", "x_coordinate", "y_coordinate", "latitude", "longitude").
		Updates(u).Error
}

func (r *ubicationRepository) SavePolygonCode(ctx context.Context, ubicationID uuid.UUID, zone, code string) error {
	row := &models.UbicationPolygon{UbicationID: ubicationID, Zone: zone, PolygonCode: code}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ubication_id"}, {Name: "zone"}},
		DoUpdates: clause.AssignmentColumns([]string{"polygon_code"}),
	}).Create(row).Error
}

func (r *ubicationRepository) CreateDistrict(ctx context.Context, district *models.District) error {
	return r.db.WithContext(ctx).Create(district).Error
}
