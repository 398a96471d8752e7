package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecordState is the lifecycle state of a record card.
type RecordState int

const (
	StatePendingValidate    RecordState = 0
	StateInPlanning         RecordState = 1
	StateInResolution       RecordState = 2
	StatePendingAnswer      RecordState = 3
	StateClosed             RecordState = 4
	StateCancelled          RecordState = 5
	StateExternalReturned   RecordState = 6
	StateNoProcessed        RecordState = 7
	StateExternalProcessing RecordState = 8
)

var recordStateNames = map[RecordState]string{
	StatePendingValidate:    "pending_validate",
	StateInPlanning:         "in_planning",
	StateInResolution:       "in_resolution",
	StatePendingAnswer:      "pending_answer",
	StateClosed:             "closed",
	StateCancelled:          "cancelled",
	StateExternalReturned:   "external_returned",
	StateNoProcessed:        "no_processed",
	StateExternalProcessing: "external_processing",
}

func (s RecordState) String() string {
	if name, ok := recordStateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s RecordState) Valid() bool {
	_, ok := recordStateNames[s]
	return ok
}

// IsClosed reports whether the state ends the record card lifecycle.
func (s RecordState) IsClosed() bool {
	return s == StateClosed || s == StateCancelled
}

// IsOpen reports whether a group can still work on the record card.
func (s RecordState) IsOpen() bool {
	return !s.IsClosed() && s != StateNoProcessed
}

// RecordCard is a citizen complaint.
type RecordCard struct {
	ID                 uuid.UUID   `gorm:"type:uuid;primary_key" json:"id"`
	NormalizedRecordID string      `gorm:"size:30;uniqueIndex;not null" json:"normalized_record_id"`
	Description        string      `gorm:"type:text" json:"description"`
	RecordStateID      RecordState `gorm:"index;not null" json:"record_state_id"`

	ElementDetailID uint           `gorm:"index;not null" json:"element_detail_id"`
	ElementDetail   *ElementDetail `gorm:"foreignKey:ElementDetailID" json:"element_detail,omitempty"`

	ResponsibleProfileID *uint  `gorm:"index" json:"responsible_profile_id"`
	ResponsibleProfile   *Group `gorm:"foreignKey:ResponsibleProfileID" json:"responsible_profile,omitempty"`

	UbicationID *uuid.UUID `gorm:"type:uuid" json:"ubication_id"`
	Ubication   *Ubication `gorm:"foreignKey:UbicationID" json:"ubication,omitempty"`

	ApplicantID *uuid.UUID `gorm:"type:uuid;index" json:"applicant_id"`
	Applicant   *Applicant `gorm:"foreignKey:ApplicantID" json:"applicant,omitempty"`

	// Set on claims: the closed record card this one reopens
	ClaimedFromID *uuid.UUID `gorm:"type:uuid;index" json:"claimed_from_id"`
	ClaimsNumber  int        `gorm:"default:0" json:"claims_number"`

	IsValidated            bool `json:"is_validated"`
	Reassigned             bool `json:"reassigned"`
	ReassignmentNotAllowed bool `json:"reassignment_not_allowed"`

	AnsLimitDate *time.Time `json:"ans_limit_date"`
	ClosingDate  *time.Time `json:"closing_date"`

	// Alarm flags
	Urgent                         bool `json:"urgent"`
	PendingApplicantResponse       bool `json:"pending_applicant_response"`
	ApplicantResponse              bool `json:"applicant_response"`
	ResponseTimeExpired            bool `gorm:"index" json:"response_time_expired"`
	PossibleSimilarRecords         bool `json:"possible_similar_records"`
	Mayorship                      bool `json:"mayorship"`
	CitizenAlarm                   bool `json:"citizen_alarm"`
	CitizenWebAlarm                bool `json:"citizen_web_alarm"`
	CancelRequest                  bool `json:"cancel_request"`
	ResponseToResponsible          bool `json:"response_to_responsible"`
	PendingResponseFromResponsible bool `json:"pending_response_from_responsible"`
	Alarm                          bool `json:"alarm"`

	Resolution *RecordCardResolution `gorm:"foreignKey:RecordCardID" json:"resolution,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *RecordCard) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Applicant is the citizen behind a record card.
type Applicant struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	FullName  string    `gorm:"size:200" json:"full_name"`
	Email     string    `gorm:"size:100" json:"email"`
	Blocked   bool      `json:"blocked"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *Applicant) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ResolutionType classifies how a record card was resolved.
type ResolutionType struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	Description       string `gorm:"size:100;not null" json:"description"`
	CanClaimInsideAns bool   `json:"can_claim_inside_ans"`
}

type RecordCardResolution struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	RecordCardID     uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"record_card_id"`
	ResolutionTypeID uint            `gorm:"not null" json:"resolution_type_id"`
	ResolutionType   *ResolutionType `gorm:"foreignKey:ResolutionTypeID" json:"resolution_type,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// RecordCardStateHistory records every state change.
type RecordCardStateHistory struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	RecordCardID  uuid.UUID   `gorm:"type:uuid;index;not null" json:"record_card_id"`
	PreviousState RecordState `json:"previous_state"`
	NextState     RecordState `json:"next_state"`
	GroupID       *uint       `json:"group_id"`
	Automatic     bool        `json:"automatic"`
	CreatedAt     time.Time   `gorm:"index" json:"created_at"`
}

// RecordCardReassignment records every change of responsible group.
type RecordCardReassignment struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	RecordCardID          uuid.UUID `gorm:"type:uuid;index;not null" json:"record_card_id"`
	PreviousResponsibleID uint      `json:"previous_responsible_id"`
	NextResponsibleID     uint      `json:"next_responsible_id"`
	GroupID               *uint     `json:"group_id"`
	Reason                string    `gorm:"size:100" json:"reason"`
	Comment               string    `gorm:"type:text" json:"comment"`
	CreatedAt             time.Time `gorm:"index" json:"created_at"`
}

type RecordCardComment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RecordCardID uuid.UUID `gorm:"type:uuid;index;not null" json:"record_card_id"`
	GroupID      *uint     `json:"group_id"`
	Reason       string    `gorm:"size:100" json:"reason"`
	Comment      string    `gorm:"type:text;not null" json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecordCardCreateRequest for intake of a new record card
type RecordCardCreateRequest struct {
	Description     string            `json:"description" validate:"required,min=1"`
	ElementDetailID uint              `json:"element_detail_id" validate:"required"`
	ApplicantID     *uuid.UUID        `json:"applicant_id"`
	Ubication       *UbicationRequest `json:"ubication"`
	AnsLimitDays    int               `json:"ans_limit_days" validate:"min=0"`
	Urgent          bool              `json:"urgent"`
	Mayorship       bool              `json:"mayorship"`
}

// RecordCardTransitionRequest moves a record card to another state
type RecordCardTransitionRequest struct {
	NextState        *int  `json:"next_state" validate:"required,min=0,max=8"`
	ResolutionTypeID *uint `json:"resolution_type_id"`
}

// RecordCardReassignRequest hands a record card over to another group
type RecordCardReassignRequest struct {
	GroupID uint   `json:"group_id" validate:"required"`
	Comment string `json:"comment" validate:"max=2000"`
}

// RecordCardClaimRequest reopens a closed record card
type RecordCardClaimRequest struct {
	Description string `json:"description" validate:"required,min=1"`
}

// RecordCardResponse for API responses
type RecordCardResponse struct {
	ID                   uuid.UUID  `json:"id"`
	NormalizedRecordID   string     `json:"normalized_record_id"`
	Description          string     `json:"description"`
	RecordState          string     `json:"record_state"`
	RecordStateID        int        `json:"record_state_id"`
	ElementDetailID      uint       `json:"element_detail_id"`
	ResponsibleProfileID *uint      `json:"responsible_profile_id"`
	ClaimedFromID        *uuid.UUID `json:"claimed_from_id,omitempty"`
	ClaimsNumber         int        `json:"claims_number"`
	IsValidated          bool       `json:"is_validated"`
	Reassigned           bool       `json:"reassigned"`
	AnsLimitDate         *time.Time `json:"ans_limit_date"`
	ClosingDate          *time.Time `json:"closing_date"`
	CreatedAt            time.Time  `json:"created_at"`
}

func ToRecordCardResponse(r *RecordCard) RecordCardResponse {
	return RecordCardResponse{
		ID:                   r.ID,
		NormalizedRecordID:   r.NormalizedRecordID,
		Description:          r.Description,
		RecordState:          r.RecordStateID.String(),
		RecordStateID:        int(r.RecordStateID),
		ElementDetailID:      r.ElementDetailID,
		ResponsibleProfileID: r.ResponsibleProfileID,
		ClaimedFromID:        r.ClaimedFromID,
		ClaimsNumber:         r.ClaimsNumber,
		IsValidated:          r.IsValidated,
		Reassigned:           r.Reassigned,
		AnsLimitDate:         r.AnsLimitDate,
		ClosingDate:          r.ClosingDate,
		CreatedAt:            r.CreatedAt,
	}
}
