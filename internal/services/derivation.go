package services

import (
	"context"
	"fmt"

	"github.com/automax/routing/internal/config"
	"github.com/automax/routing/internal/geocoder"
	"github.com/automax/routing/internal/logger"
	"github.com/automax/routing/internal/metrics"
	"github.com/automax/routing/internal/models"
	"github.com/automax/routing/internal/repository"
)

const (
	StrategyDirect   = "direct"
	StrategyPolygon  = "polygon"
	StrategyDistrict = "district"
	StrategyNone     = "none"
)

// DerivationRequest asks which group answers a record card once it reaches
// NextState. With IsCheck set nothing resolved by the geocoder is saved.
type DerivationRequest struct {
	Card       *models.RecordCard
	NextState  models.RecordState
	DistrictID *uint
	IsCheck    bool
}

// Derivation is the outcome of a selection. Group is nil when no rule matched
// and the record card keeps its responsible group.
type Derivation struct {
	Group    *models.Group
	Strategy string
}

type derivationInput struct {
	theme      *models.ElementDetail
	state      models.RecordState
	ubication  *models.Ubication
	districtID *uint
	persist    bool
}

type derivationStrategy interface {
	name() string
	derive(ctx context.Context, in *derivationInput) (*models.Group, error)
}

// DerivationSelector picks the responsible group of a record card. Direct
// rules win; otherwise the spatial strategies run in their fixed order and the
// first group found is returned.
type DerivationSelector struct {
	rules   repository.DerivationRepository
	log     *logger.Logger
	metrics *metrics.RoutingMetrics

	direct  derivationStrategy
	spatial []derivationStrategy
}

func NewDerivationSelector(rules repository.DerivationRepository, resolver *geocoder.Resolver, cfg config.RoutingConfig, log *logger.Logger, m *metrics.RoutingMetrics) *DerivationSelector {
	district := &districtStrategy{rules: rules, resolver: resolver, geocoding: cfg.GeocodingEnabled, log: log}
	return &DerivationSelector{
		rules:   rules,
		log:     log,
		metrics: m,
		direct:  &directStrategy{rules: rules},
		spatial: []derivationStrategy{
			&polygonStrategy{
				rules:       rules,
				resolver:    resolver,
				geocoding:   cfg.GeocodingEnabled,
				allPolygons: cfg.AllPolygonsCode,
				district:    district,
			},
			district,
		},
	}
}

func (s *DerivationSelector) Select(ctx context.Context, req DerivationRequest) (*Derivation, error) {
	theme := req.Card.ElementDetail
	if theme == nil || theme.ID != req.Card.ElementDetailID {
		var err error
		if theme, err = s.rules.FindElementDetail(ctx, req.Card.ElementDetailID); err != nil {
			return nil, fmt.Errorf("failed to load theme %d: %w", req.Card.ElementDetailID, err)
		}
	}

	in := &derivationInput{
		theme:      theme,
		state:      req.NextState,
		ubication:  req.Card.Ubication,
		districtID: req.DistrictID,
		persist:    !req.IsCheck,
	}

	group, err := s.direct.derive(ctx, in)
	if err != nil {
		return nil, err
	}
	if group != nil {
		return s.found(group, StrategyDirect), nil
	}

	for _, strategy := range s.spatial {
		group, err := strategy.derive(ctx, in)
		if err != nil {
			if err := s.handleSpatialError(ctx, theme, strategy.name(), err); err != nil {
				return nil, err
			}
			continue
		}
		if group != nil {
			return s.found(group, strategy.name()), nil
		}
	}

	s.metrics.DerivationTotal.WithLabelValues(StrategyNone).Inc()
	return &Derivation{Strategy: StrategyNone}, nil
}

// handleSpatialError re-raises a spatial failure when the theme has spatial
// rules; a theme without them did not need the lookup at all.
func (s *DerivationSelector) handleSpatialError(ctx context.Context, theme *models.ElementDetail, strategy string, cause error) error {
	spatial, err := s.rules.HasSpatialRules(ctx, theme.ID)
	if err != nil {
		return err
	}
	if spatial {
		return fmt.Errorf("%s derivation of theme %d: %w", strategy, theme.ID, cause)
	}
	s.log.Warn("Spatial derivation failed, ignored", "theme_id", theme.ID, "strategy", strategy, "error", cause)
	return nil
}

func (s *DerivationSelector) found(group *models.Group, strategy string) *Derivation {
	s.metrics.DerivationTotal.WithLabelValues(strategy).Inc()
	return &Derivation{Group: group, Strategy: strategy}
}

type directStrategy struct {
	rules repository.DerivationRepository
}

func (d *directStrategy) name() string { return StrategyDirect }

func (d *directStrategy) derive(ctx context.Context, in *derivationInput) (*models.Group, error) {
	rule, err := d.rules.FindDirect(ctx, in.theme.ID, in.state)
	if err != nil || rule == nil {
		return nil, err
	}
	return rule.Group, nil
}

type polygonStrategy struct {
	rules       repository.DerivationRepository
	resolver    *geocoder.Resolver
	geocoding   bool
	allPolygons string
	district    *districtStrategy
}

func (p *polygonStrategy) name() string { return StrategyPolygon }

func (p *polygonStrategy) derive(ctx context.Context, in *derivationInput) (*models.Group, error) {
	zone := in.theme.PolygonZone
	u := in.ubication
	if zone == "" || u == nil {
		return nil, nil
	}
	code := u.PolygonCode(zone)
	if code == "" && !u.HasAddress() && !u.HasCoordinates() {
		return nil, nil
	}

	has, err := p.rules.HasPolygonRules(ctx, in.theme.ID, in.state)
	if err != nil || !has {
		return nil, err
	}

	if code == "" && p.geocoding {
		if code, err = p.resolver.ResolvePolygonCode(ctx, u, zone, in.persist); err != nil {
			return nil, err
		}
	}

	var rule *models.DerivationPolygon
	if code != "" {
		if rule, err = p.rules.FindPolygon(ctx, in.theme.ID, in.state, zone, code); err != nil {
			return nil, err
		}
	}
	if rule == nil && p.allPolygons != "" {
		if rule, err = p.rules.FindPolygon(ctx, in.theme.ID, in.state, zone, p.allPolygons); err != nil {
			return nil, err
		}
	}
	if rule == nil {
		return nil, nil
	}

	if rule.DistrictMode {
		return p.district.derive(ctx, in)
	}
	return rule.Group, nil
}

type districtStrategy struct {
	rules     repository.DerivationRepository
	resolver  *geocoder.Resolver
	geocoding bool
	log       *logger.Logger
}

func (d *districtStrategy) name() string { return StrategyDistrict }

func (d *districtStrategy) derive(ctx context.Context, in *derivationInput) (*models.Group, error) {
	has, err := d.rules.HasDistrictRules(ctx, in.theme.ID, in.state)
	if err != nil || !has {
		return nil, err
	}

	districtID, err := d.districtOf(ctx, in)
	if err != nil || districtID == 0 {
		return nil, err
	}

	rule, err := d.rules.FindDistrict(ctx, in.theme.ID, in.state, districtID)
	if err != nil || rule == nil {
		return nil, err
	}
	return rule.Group, nil
}

// districtOf returns the explicit district, the one stored on the ubication
// or the one the geocoder finds for its address. Zero means unknown. Geocoder
// failures are returned so the exception policy of Select applies to them.
func (d *districtStrategy) districtOf(ctx context.Context, in *derivationInput) (uint, error) {
	if in.districtID != nil {
		return *in.districtID, nil
	}
	u := in.ubication
	if u == nil {
		return 0, nil
	}
	if u.DistrictID != nil {
		return *u.DistrictID, nil
	}
	if !d.geocoding || !u.HasAddress() {
		return 0, nil
	}

	info, err := d.resolver.ResolveAddress(ctx, u, in.persist)
	if err != nil {
		return 0, err
	}
	if info.DistrictID == 0 {
		d.log.Debug("Geocoder found no district", "theme_id", in.theme.ID, "ubication_id", u.ID)
	}
	return info.DistrictID, nil
}
