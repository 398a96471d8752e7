package services

import (
	"context"
	"testing"

	"github.com/automax/routing/internal/config"
	"github.com/automax/routing/internal/database"
	"github.com/automax/routing/internal/geocoder"
	"github.com/automax/routing/internal/logger"
	"github.com/automax/routing/internal/metrics"
	"github.com/automax/routing/internal/models"
	"github.com/automax/routing/internal/repository"
	"github.com/automax/routing/internal/storage"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testZone = "ZONA_NETEJA"

type fixture struct {
	db         *gorm.DB
	cfg        config.RoutingConfig
	groups     repository.GroupRepository
	rules      repository.DerivationRepository
	cards      repository.RecordCardRepository
	ubications repository.UbicationRepository
	geo        *geocoder.DummyClient
	metrics    *metrics.RoutingMetrics
	snapshots  *memorySnapshots
	tree       *AmbitTree
	selector   *DerivationSelector
	evaluator  *ReassignmentEvaluator
	validator  *ClaimValidator
}

func testRoutingConfig() config.RoutingConfig {
	return config.RoutingConfig{
		GeocodingEnabled: true,
		AllPolygonsCode:  "*",
		AmbitTreeLevels:  1,
		CoordinatorLevel: 1,
		MaxClaims:        3,
		ClaimDaysLimit:   60,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	f := &fixture{
		db:         db,
		cfg:        testRoutingConfig(),
		groups:     repository.NewGroupRepository(db),
		rules:      repository.NewDerivationRepository(db),
		cards:      repository.NewRecordCardRepository(db),
		ubications: repository.NewUbicationRepository(db),
		geo: geocoder.NewDummyClient(geocoder.AddressInfo{
			Street:      "GRAN VIA DE LES CORTS CATALANES",
			XCoordinate: 430112.5,
			YCoordinate: 4582311.25,
			DistrictID:  5,
		}, map[string]string{testZone: "P12"}),
		metrics:   metrics.NewNop(),
		snapshots: &memorySnapshots{},
	}
	f.rebuild()
	return f
}

// rebuild wires the services again, after a test changed f.cfg.
func (f *fixture) rebuild() {
	log := logger.NewNop()
	resolver := geocoder.NewResolver(f.geo, f.ubications, log)
	f.tree = NewAmbitTree(f.groups, database.NewLocalLock(), f.snapshots, f.cfg, log, f.metrics)
	f.selector = NewDerivationSelector(f.rules, resolver, f.cfg, log, f.metrics)
	f.evaluator = NewReassignmentEvaluator(f.groups, f.cards, f.rules, f.tree, f.cfg)
	f.validator = NewClaimValidator(f.cards, f.rules, f.cfg)
}

func (f *fixture) group(t *testing.T, description string, parent *models.Group, isAmbit bool) *models.Group {
	t.Helper()
	return f.groupWithDepth(t, description, parent, isAmbit, f.cfg.AmbitTreeLevels)
}

func (f *fixture) groupWithDepth(t *testing.T, description string, parent *models.Group, isAmbit bool, depth int) *models.Group {
	t.Helper()
	g := &models.Group{Description: description, IsAmbit: isAmbit, AmbitTreeLevels: depth, Enabled: true}
	if parent != nil {
		g.ParentID = &parent.ID
	}
	require.NoError(t, f.groups.Create(context.Background(), g))
	return g
}

func (f *fixture) theme(t *testing.T, zone string) *models.ElementDetail {
	t.Helper()
	theme := &models.ElementDetail{Description: "Litter", PolygonZone: zone, Active: true}
	require.NoError(t, f.rules.CreateElementDetail(context.Background(), theme))
	return theme
}

func (f *fixture) card(t *testing.T, card *models.RecordCard) *models.RecordCard {
	t.Helper()
	ctx := context.Background()
	if card.NormalizedRecordID == "" {
		id, err := f.cards.GenerateNormalizedID(ctx)
		require.NoError(t, err)
		card.NormalizedRecordID = id
	}
	require.NoError(t, f.cards.Create(ctx, card))
	stored, err := f.cards.FindByID(ctx, card.ID)
	require.NoError(t, err)
	return stored
}

func address() *models.Ubication {
	return &models.Ubication{StreetType: "C", Street: "Gran Via", StreetNumber: "585"}
}

func ids(groups []models.Group) []uint {
	out := make([]uint, len(groups))
	for i, g := range groups {
		out[i] = g.ID
	}
	return out
}

type memorySnapshots struct {
	saved []*storage.PlateSnapshot
}

func (m *memorySnapshots) Save(_ context.Context, s *storage.PlateSnapshot) (string, error) {
	m.saved = append(m.saved, s)
	return "memory", nil
}
