package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ubication is the location of a record card. Coordinates, district and
// polygon codes are filled lazily from the geocoder and kept once resolved.
type Ubication struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	StreetType   string    `gorm:"size:20" json:"street_type"`
	Street       string    `gorm:"size:200" json:"street"`
	StreetNumber string    `gorm:"size:20" json:"street_number"`
	Letter       string    `gorm:"size:5" json:"letter"`

	OfficialStreetName string `gorm:"size:200" json:"official_street_name"`
	NumberingType      string `gorm:"size:20" json:"numbering_type"`
	NeighborhoodID     string `gorm:"size:20" json:"neighborhood_id"`
	Neighborhood       string `gorm:"size:100" json:"neighborhood"`
	StatisticalSector  string `gorm:"size:20" json:"statistical_sector"`

	DistrictID *uint     `gorm:"index" json:"district_id"`
	District   *District `gorm:"foreignKey:DistrictID" json:"district,omitempty"`

	// UTM ETRS89 and WGS84 coordinates
	XCoordinate *float64 `json:"x_coordinate"`
	YCoordinate *float64 `json:"y_coordinate"`
	Latitude    *float64 `gorm:"type:decimal(10,8)" json:"latitude"`
	Longitude   *float64 `gorm:"type:decimal(11,8)" json:"longitude"`

	Polygons []UbicationPolygon `gorm:"foreignKey:UbicationID" json:"polygons,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *Ubication) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// UbicationPolygon caches the polygon code of an ubication for one zone.
type UbicationPolygon struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UbicationID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_ubication_zone;not null" json:"ubication_id"`
	Zone        string    `gorm:"size:50;uniqueIndex:idx_ubication_zone;not null" json:"zone"`
	PolygonCode string    `gorm:"size:50;not null" json:"polygon_code"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u *Ubication) HasAddress() bool {
	return u != nil && strings.TrimSpace(u.Street) != ""
}

func (u *Ubication) HasCoordinates() bool {
	return u != nil && u.XCoordinate != nil && u.YCoordinate != nil
}

// PolygonCode returns the cached code for zone, or "" when not resolved yet.
func (u *Ubication) PolygonCode(zone string) string {
	if u == nil {
		return ""
	}
	for _, p := range u.Polygons {
		if p.Zone == zone {
			return p.PolygonCode
		}
	}
	return ""
}

// SetPolygonCode updates the in-memory cache for zone.
func (u *Ubication) SetPolygonCode(zone, code string) {
	for i := range u.Polygons {
		if u.Polygons[i].Zone == zone {
			u.Polygons[i].PolygonCode = code
			return
		}
	}
	u.Polygons = append(u.Polygons, UbicationPolygon{UbicationID: u.ID, Zone: zone, PolygonCode: code})
}

// UbicationRequest carries the raw address typed at intake
type UbicationRequest struct {
	StreetType   string `json:"street_type" validate:"max=20"`
	Street       string `json:"street" validate:"max=200"`
	StreetNumber string `json:"street_number" validate:"max=20"`
	Letter       string `json:"letter" validate:"max=5"`
	DistrictID   *uint  `json:"district_id"`
}
