package services

import (
	"github.com/automax/routing/internal/models"
)

// Alarm keys, as exposed to clients.
const (
	AlarmUrgent                         = "urgent"
	AlarmPendingApplicantResponse       = "pending_applicant_response"
	AlarmApplicantResponse              = "applicant_response"
	AlarmResponseTimeExpired            = "response_time_expired"
	AlarmReassigned                     = "reassigned"
	AlarmPossibleSimilarRecords         = "possible_similar_records"
	AlarmMayorship                      = "mayorship"
	AlarmCitizenAlarm                   = "citizen_alarm"
	AlarmCitizenWebAlarm                = "citizen_web_alarm"
	AlarmCancelRequest                  = "cancel_request"
	AlarmClaimed                        = "claimed"
	AlarmResponseToResponsible          = "response_to_responsible"
	AlarmPendingResponseFromResponsible = "pending_response_from_responsible"
)

// alarmKeys fixes the order alarms are listed in.
var alarmKeys = []string{
	AlarmUrgent,
	AlarmPendingApplicantResponse,
	AlarmApplicantResponse,
	AlarmResponseTimeExpired,
	AlarmReassigned,
	AlarmPossibleSimilarRecords,
	AlarmMayorship,
	AlarmCitizenAlarm,
	AlarmCitizenWebAlarm,
	AlarmCancelRequest,
	AlarmClaimed,
	AlarmResponseToResponsible,
	AlarmPendingResponseFromResponsible,
}

// Alarms are the visual signals of a record card seen by one group.
type Alarms struct {
	flags map[string]bool
}

// ComputeAlarms derives the alarms of card for the acting group. The two
// responsible scoped alarms only show to the responsible group itself.
func ComputeAlarms(card *models.RecordCard, actingGroupID *uint) Alarms {
	responsible := actingGroupID != nil && isResponsible(card, *actingGroupID)
	return Alarms{flags: map[string]bool{
		AlarmUrgent:                         card.Urgent,
		AlarmPendingApplicantResponse:       card.PendingApplicantResponse,
		AlarmApplicantResponse:              card.ApplicantResponse,
		AlarmResponseTimeExpired:            card.ResponseTimeExpired,
		AlarmReassigned:                     card.Reassigned,
		AlarmPossibleSimilarRecords:         card.PossibleSimilarRecords,
		AlarmMayorship:                      card.Mayorship,
		AlarmCitizenAlarm:                   card.CitizenAlarm,
		AlarmCitizenWebAlarm:                card.CitizenWebAlarm,
		AlarmCancelRequest:                  card.CancelRequest,
		AlarmClaimed:                        card.ClaimsNumber > 0,
		AlarmResponseToResponsible:          responsible && card.ResponseToResponsible,
		AlarmPendingResponseFromResponsible: responsible && card.PendingResponseFromResponsible,
	}}
}

func (a Alarms) Get(key string) bool {
	return a.flags[key]
}

// Map returns a copy of every alarm by key.
func (a Alarms) Map() map[string]bool {
	out := make(map[string]bool, len(alarmKeys))
	for _, k := range alarmKeys {
		out[k] = a.flags[k]
	}
	return out
}

// Active lists the keys of the alarms that are set, in display order.
func (a Alarms) Active() []string {
	active := []string{}
	for _, k := range alarmKeys {
		if a.flags[k] {
			active = append(active, k)
		}
	}
	return active
}

// CheckAlarms reports whether any alarm outside exclude is set.
func (a Alarms) CheckAlarms(exclude ...string) bool {
	skip := make(map[string]struct{}, len(exclude))
	for _, k := range exclude {
		skip[k] = struct{}{}
	}
	for _, k := range alarmKeys {
		if _, ok := skip[k]; ok {
			continue
		}
		if a.flags[k] {
			return true
		}
	}
	return false
}
