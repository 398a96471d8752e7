package services

import (
	"context"
	"fmt"
	"time"

	"github.com/automax/routing/internal/config"
	"github.com/automax/routing/internal/database"
	"github.com/automax/routing/internal/logger"
	"github.com/automax/routing/internal/metrics"
	"github.com/automax/routing/internal/models"
	"github.com/automax/routing/internal/repository"
	"github.com/automax/routing/internal/storage"
)

// AmbitTree answers ambit questions on the group tree and serializes every
// structural change to it.
type AmbitTree struct {
	groups    repository.GroupRepository
	lock      database.Locker
	snapshots storage.SnapshotStore
	cfg       config.RoutingConfig
	log       *logger.Logger
	metrics   *metrics.RoutingMetrics
	now       func() time.Time
}

func NewAmbitTree(groups repository.GroupRepository, lock database.Locker, snapshots storage.SnapshotStore, cfg config.RoutingConfig, log *logger.Logger, m *metrics.RoutingMetrics) *AmbitTree {
	return &AmbitTree{
		groups:    groups,
		lock:      lock,
		snapshots: snapshots,
		cfg:       cfg,
		log:       log,
		metrics:   m,
		now:       time.Now,
	}
}

// AmbitGroup returns the ancestor whose subtree the group works on. It walks
// up max(g.Level-g.AmbitTreeLevels, 0) levels, so a root group or a group
// without a configured depth is its own ambit group.
func (t *AmbitTree) AmbitGroup(ctx context.Context, g *models.Group) (*models.Group, error) {
	if g.AmbitTreeLevels <= 0 {
		return g, nil
	}
	return t.ancestorAt(ctx, g, g.AmbitTreeLevels)
}

// AmbitCoordinator returns the nearest ancestor, the group included, at the
// coordinator depth.
func (t *AmbitTree) AmbitCoordinator(ctx context.Context, g *models.Group) (*models.Group, error) {
	return t.ancestorAt(ctx, g, t.cfg.CoordinatorLevel)
}

func (t *AmbitTree) ancestorAt(ctx context.Context, g *models.Group, depth int) (*models.Group, error) {
	if g.IsRoot() || g.Level <= depth {
		return g, nil
	}
	id, err := g.AncestorID(depth)
	if err != nil {
		return nil, err
	}
	return t.groups.FindByID(ctx, id)
}

// Ambit lists the enabled groups under the ambit group of g.
func (t *AmbitTree) Ambit(ctx context.Context, g *models.Group) (*models.Group, []models.Group, error) {
	pivot, err := t.AmbitGroup(ctx, g)
	if err != nil {
		return nil, nil, err
	}
	members, err := t.groups.ListAmbit(ctx, pivot)
	if err != nil {
		return nil, nil, err
	}
	return pivot, members, nil
}

// Rebuild recomputes every plate from the parent links.
func (t *AmbitTree) Rebuild(ctx context.Context) (int, error) {
	var updated int
	err := t.Mutate(ctx, "rebuild", func(ctx context.Context) error {
		var err error
		updated, err = t.groups.RebuildPlates(ctx)
		return err
	})
	return updated, err
}

// Mutate runs a structural change of the tree under the tree lock and stores
// a snapshot of the resulting plates. fn must rebuild the plates it touches
// inside its own transaction.
func (t *AmbitTree) Mutate(ctx context.Context, reason string, fn func(ctx context.Context) error) error {
	release, err := t.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			t.log.Warn("Failed to release group tree lock", "error", err)
		}
	}()

	start := t.now()
	if err := fn(ctx); err != nil {
		return fmt.Errorf("group tree %s: %w", reason, err)
	}
	t.metrics.RebuildDuration.Observe(time.Since(start).Seconds())

	t.snapshot(ctx, reason)
	return nil
}

func (t *AmbitTree) snapshot(ctx context.Context, reason string) {
	groups, err := t.groups.List(ctx)
	if err != nil {
		t.log.Warn("Failed to list groups for plate snapshot", "reason", reason, "error", err)
		return
	}
	name, err := t.snapshots.Save(ctx, &storage.PlateSnapshot{
		TakenAt: t.now(),
		Reason:  reason,
		Groups:  models.ToGroupResponses(groups),
	})
	if err != nil {
		t.log.Warn("Failed to store plate snapshot", "reason", reason, "error", err)
		return
	}
	if name != "" {
		t.log.Debug("Plate snapshot stored", "object", name, "groups", len(groups))
	}
}
