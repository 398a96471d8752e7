package services

import (
	"testing"

	"github.com/automax/routing/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestComputeAlarms_NoneSet(t *testing.T) {
	alarms := ComputeAlarms(&models.RecordCard{}, nil)

	assert.False(t, alarms.CheckAlarms())
	assert.Empty(t, alarms.Active())
	assert.Len(t, alarms.Map(), 13)
}

func TestComputeAlarms_ResponsibleScoped(t *testing.T) {
	responsible, other := uint(4), uint(9)
	card := &models.RecordCard{
		ResponsibleProfileID:           &responsible,
		ResponseToResponsible:          true,
		PendingResponseFromResponsible: true,
	}

	seen := ComputeAlarms(card, &responsible)
	assert.True(t, seen.Get(AlarmResponseToResponsible))
	assert.True(t, seen.Get(AlarmPendingResponseFromResponsible))
	assert.True(t, seen.CheckAlarms())

	assert.False(t, ComputeAlarms(card, &other).CheckAlarms())
	assert.False(t, ComputeAlarms(card, nil).CheckAlarms())
}

func TestComputeAlarms_Exclude(t *testing.T) {
	card := &models.RecordCard{Urgent: true, ClaimsNumber: 2}
	alarms := ComputeAlarms(card, nil)

	assert.Equal(t, []string{AlarmUrgent, AlarmClaimed}, alarms.Active())
	assert.True(t, alarms.CheckAlarms(AlarmUrgent))
	assert.True(t, alarms.CheckAlarms(AlarmClaimed))
	assert.False(t, alarms.CheckAlarms(AlarmUrgent, AlarmClaimed))
}

func TestComputeAlarms_EveryFlag(t *testing.T) {
	group := uint(1)
	card := &models.RecordCard{
		ResponsibleProfileID:           &group,
		Urgent:                         true,
		PendingApplicantResponse:       true,
		ApplicantResponse:              true,
		ResponseTimeExpired:            true,
		Reassigned:                     true,
		PossibleSimilarRecords:         true,
		Mayorship:                      true,
		CitizenAlarm:                   true,
		CitizenWebAlarm:                true,
		CancelRequest:                  true,
		ClaimsNumber:                   1,
		ResponseToResponsible:          true,
		PendingResponseFromResponsible: true,
	}
	alarms := ComputeAlarms(card, &group)

	assert.Equal(t, alarmKeys, alarms.Active())
	for key, set := range alarms.Map() {
		assert.True(t, set, key)
	}
	assert.False(t, alarms.CheckAlarms(alarmKeys...))
}
