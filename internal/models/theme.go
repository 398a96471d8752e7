package models

import (
	"time"
)

// ElementDetail is the theme a record card is classified under. It carries
// the derivation rules deciding which group answers it.
type ElementDetail struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Description string `gorm:"size:255;not null" json:"description"`

	// Zone whose polygon codes drive polygon derivations, e.g. "ZONA_NETEJA"
	PolygonZone string `gorm:"size:50" json:"polygon_zone"`

	ValidatedReassignable   bool `json:"validated_reassignable"`
	AllowClaimsInsideWindow bool `json:"allow_claims_inside_window"`
	IgnoresApplicantBlock   bool `json:"ignores_applicant_block"`
	Active                  bool `json:"active"`

	DirectDerivations   []DerivationDirect   `gorm:"foreignKey:ElementDetailID" json:"direct_derivations,omitempty"`
	DistrictDerivations []DerivationDistrict `gorm:"foreignKey:ElementDetailID" json:"district_derivations,omitempty"`
	PolygonDerivations  []DerivationPolygon  `gorm:"foreignKey:ElementDetailID" json:"polygon_derivations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// District is a city district as returned by the geocoder.
type District struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;not null" json:"name"`
}

// DerivationDirect routes (theme, state) to a group regardless of location.
type DerivationDirect struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	ElementDetailID uint        `gorm:"index;not null" json:"element_detail_id"`
	RecordStateID   RecordState `gorm:"index;not null" json:"record_state_id"`
	GroupID         uint        `gorm:"index;not null" json:"group_id"`
	Group           *Group      `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Enabled         bool        `gorm:"index" json:"enabled"`
	DisabledAt      *time.Time  `json:"disabled_at"`
	CreatedAt       time.Time   `json:"created_at"`
}

// DerivationDistrict routes (theme, state, district) to a group.
type DerivationDistrict struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	ElementDetailID uint        `gorm:"index;not null" json:"element_detail_id"`
	RecordStateID   RecordState `gorm:"index;not null" json:"record_state_id"`
	DistrictID      uint        `gorm:"index;not null" json:"district_id"`
	GroupID         uint        `gorm:"index;not null" json:"group_id"`
	Group           *Group      `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Enabled         bool        `gorm:"index" json:"enabled"`
	DisabledAt      *time.Time  `json:"disabled_at"`
	CreatedAt       time.Time   `json:"created_at"`
}

// DerivationPolygon routes (theme, state, zone, polygon) to a group. With
// DistrictMode set the group comes from the district rules instead.
type DerivationPolygon struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	ElementDetailID uint        `gorm:"index;not null" json:"element_detail_id"`
	RecordStateID   RecordState `gorm:"index;not null" json:"record_state_id"`
	Zone            string      `gorm:"size:50;index;not null" json:"zone"`
	PolygonCode     string      `gorm:"size:50;index;not null" json:"polygon_code"`
	DistrictMode    bool        `json:"district_mode"`
	GroupID         *uint       `gorm:"index" json:"group_id"`
	Group           *Group      `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Enabled         bool        `gorm:"index" json:"enabled"`
	DisabledAt      *time.Time  `json:"disabled_at"`
	CreatedAt       time.Time   `json:"created_at"`
}
