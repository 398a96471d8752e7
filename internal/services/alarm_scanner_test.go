package services

import (
	"context"
	"testing"
	"time"

	"github.com/automax/routing/internal/logger"
	"github.com/automax/routing/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestAlarmScanner_Scan(t *testing.T) {
	f := newFixture(t)
	o := f.orgTree(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	late := f.assignedCard(t, o.leafA1, func(c *models.RecordCard) { c.AnsLimitDate = &past })
	onTime := f.assignedCard(t, o.leafA1, func(c *models.RecordCard) { c.AnsLimitDate = &future })

	scanner := NewAlarmScanner(f.cards, time.Minute, logger.NewNop(), f.metrics)
	marked, err := scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	stored, err := f.cards.FindByID(ctx, late.ID)
	require.NoError(t, err)
	assert.True(t, stored.ResponseTimeExpired)
	assert.True(t, stored.Alarm)

	stored, err = f.cards.FindByID(ctx, onTime.ID)
	require.NoError(t, err)
	assert.False(t, stored.ResponseTimeExpired)

	marked, err = scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, marked)
}

func TestAlarmScanner_StartStop(t *testing.T) {
	f := newFixture(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	scanner := NewAlarmScanner(f.cards, 10*time.Millisecond, logger.NewNop(), f.metrics)

	scanner.Start(context.Background())
	scanner.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	scanner.Stop()
	scanner.Stop()
}

func TestAlarmScanner_StopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	scanner := NewAlarmScanner(f.cards, time.Hour, logger.NewNop(), f.metrics)
	ctx, cancel := context.WithCancel(context.Background())

	scanner.Start(ctx)
	cancel()
	scanner.Stop()
}
