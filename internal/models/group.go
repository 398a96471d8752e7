package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// PlateSeparator terminates every id inside a group plate.
const PlateSeparator = "-"

// ErrStalePlate means a plate no longer matches the tree shape. It is a data
// integrity failure: some structural change skipped the plate rebuild.
var ErrStalePlate = errors.New("group plate does not match its tree level")

// Group is a node of the organization tree. Plate holds the materialized path
// from the root down to the group itself, e.g. "1-4-9-".
type Group struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Description string `gorm:"size:255;not null" json:"description"`
	ParentID    *uint  `gorm:"index" json:"parent_id"`
	Parent      *Group `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Level       int    `gorm:"default:0" json:"level"`
	Plate       string `gorm:"size:1000;index" json:"plate"`
	IsAmbit     bool   `json:"is_ambit"`
	SortOrder   int    `json:"sort_order"`

	// Tree depth of the ancestor whose subtree the group works on. Zero makes
	// the group its own ambit.
	AmbitTreeLevels int `gorm:"default:0" json:"ambit_tree_levels"`

	// Days past the answer limit date during which the group may still reassign
	ReassignmentWindowDays int  `json:"reassignment_window_days"`
	Enabled                bool `json:"enabled"`

	ReassignmentTargets []GroupReassignment `gorm:"foreignKey:OriginGroupID" json:"reassignment_targets,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// GroupReassignment is an explicit hand-off edge between two groups.
type GroupReassignment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	OriginGroupID uint      `gorm:"index;not null" json:"origin_group_id"`
	TargetGroupID uint      `gorm:"index;not null" json:"target_group_id"`
	TargetGroup   *Group    `gorm:"foreignKey:TargetGroupID" json:"target_group,omitempty"`
	Enabled       bool      `json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
}

// BuildPlate appends id to the parent plate. An empty parent plate starts a root.
func BuildPlate(parentPlate string, id uint) string {
	return parentPlate + strconv.FormatUint(uint64(id), 10) + PlateSeparator
}

// PlateIDs splits a plate into the ids of the path, root first.
func PlateIDs(plate string) ([]uint, error) {
	trimmed := strings.TrimSuffix(plate, PlateSeparator)
	if trimmed == "" || trimmed == plate {
		return nil, fmt.Errorf("malformed plate %q: %w", plate, ErrStalePlate)
	}
	parts := strings.Split(trimmed, PlateSeparator)
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed plate %q: %w", plate, ErrStalePlate)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// AncestorID returns the id of the ancestor at the given depth (0 = root).
func (g *Group) AncestorID(depth int) (uint, error) {
	ids, err := PlateIDs(g.Plate)
	if err != nil {
		return 0, err
	}
	if len(ids) != g.Level+1 || ids[len(ids)-1] != g.ID {
		return 0, fmt.Errorf("group %d plate %q level %d: %w", g.ID, g.Plate, g.Level, ErrStalePlate)
	}
	if depth < 0 || depth > g.Level {
		return 0, fmt.Errorf("depth %d out of range for group %d at level %d", depth, g.ID, g.Level)
	}
	return ids[depth], nil
}

// Contains reports whether other is g itself or one of its descendants.
func (g *Group) Contains(other *Group) bool {
	if g == nil || other == nil || g.Plate == "" {
		return false
	}
	return strings.HasPrefix(other.Plate, g.Plate)
}

func (g *Group) IsRoot() bool {
	return g.ParentID == nil
}

// GroupCreateRequest for creating a new group
type GroupCreateRequest struct {
	Description            string `json:"description" validate:"required,min=1,max=255"`
	ParentID               *uint  `json:"parent_id"`
	IsAmbit                bool   `json:"is_ambit"`
	SortOrder              int    `json:"sort_order"`
	ReassignmentWindowDays int    `json:"reassignment_window_days" validate:"min=0"`
	// Defaults to routing.ambittreelevels when absent
	AmbitTreeLevels *int `json:"ambit_tree_levels" validate:"omitempty,min=0"`
}

// GroupMoveRequest moves a group below a new parent
type GroupMoveRequest struct {
	ParentID uint `json:"parent_id" validate:"required"`
}

// GroupDeleteRequest names the group inheriting derivations and open record cards
type GroupDeleteRequest struct {
	DestinationID uint `json:"destination_id" validate:"required"`
}

// GroupResponse for API responses
type GroupResponse struct {
	ID              uint   `json:"id"`
	Description     string `json:"description"`
	ParentID        *uint  `json:"parent_id"`
	Level           int    `json:"level"`
	Plate           string `json:"plate"`
	IsAmbit         bool   `json:"is_ambit"`
	AmbitTreeLevels int    `json:"ambit_tree_levels"`
	Enabled         bool   `json:"enabled"`
}

func ToGroupResponse(g *Group) GroupResponse {
	return GroupResponse{
		ID:              g.ID,
		Description:     g.Description,
		ParentID:        g.ParentID,
		Level:           g.Level,
		Plate:           g.Plate,
		IsAmbit:         g.IsAmbit,
		AmbitTreeLevels: g.AmbitTreeLevels,
		Enabled:         g.Enabled,
	}
}

func ToGroupResponses(groups []Group) []GroupResponse {
	out := make([]GroupResponse, len(groups))
	for i := range groups {
		out[i] = ToGroupResponse(&groups[i])
	}
	return out
}

func (Group) TableName() string {
	return "profile_groups"
}

// GroupDeletionResult reports what a group deletion handed over.
type GroupDeletionResult struct {
	DerivationsMoved int   `json:"derivations_moved"`
	RecordCardsMoved int64 `json:"record_cards_moved"`
	PlatesRebuilt    int   `json:"plates_rebuilt"`
}
