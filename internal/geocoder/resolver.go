package geocoder

import (
	"context"
	"fmt"

	"github.com/automax/routing/internal/config"
	"github.com/automax/routing/internal/logger"
	"github.com/automax/routing/internal/metrics"
	"github.com/automax/routing/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// UbicationStore persists what the geocoder resolved for an ubication.
type UbicationStore interface {
	SaveGeocodedFields(ctx context.Context, u *models.Ubication) error
	SavePolygonCode(ctx context.Context, ubicationID uuid.UUID, zone, code string) error
}

// Resolver resolves ubications and writes the answers back, so that an
// ubication is sent to the external service at most once per zone.
type Resolver struct {
	client Client
	store  UbicationStore
	log    *logger.Logger
}

func NewResolver(client Client, store UbicationStore, log *logger.Logger) *Resolver {
	return &Resolver{client: client, store: store, log: log}
}

// ResolveAddress looks the ubication up. With persist set, the coordinates
// and a missing district are written on u and saved right after the call.
// An ubication not stored yet only keeps them in memory; they are saved with
// its record card.
func (r *Resolver) ResolveAddress(ctx context.Context, u *models.Ubication, persist bool) (*AddressInfo, error) {
	if !u.HasAddress() {
		return nil, notFound("ubication has no street")
	}
	info, err := r.client.ResolveAddress(ctx, AddressFromUbication(u))
	if err != nil {
		return nil, err
	}
	if !persist {
		return info, nil
	}

	info.ApplyTo(u)
	if u.ID == uuid.Nil {
		return info, nil
	}
	if err := r.store.SaveGeocodedFields(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to save geocoded ubication %s: %w", u.ID, err)
	}
	r.log.Debug("ubication geocoded", "ubication_id", u.ID, "district_id", u.DistrictID)
	return info, nil
}

// ResolvePolygonCode returns the polygon of u in zone, from the ubication
// cache when present. "" means the ubication lies in no polygon.
func (r *Resolver) ResolvePolygonCode(ctx context.Context, u *models.Ubication, zone string, persist bool) (string, error) {
	if code := u.PolygonCode(zone); code != "" {
		return code, nil
	}

	info := InfoFromUbication(u)
	if info == nil {
		var err error
		if info, err = r.ResolveAddress(ctx, u, persist); err != nil {
			return "", err
		}
	}

	code, err := r.client.ResolvePolygonCode(ctx, zone, info)
	if err != nil {
		return "", err
	}
	if code == "" || !persist {
		return code, nil
	}

	u.SetPolygonCode(zone, code)
	if u.ID == uuid.Nil {
		return code, nil
	}
	if err := r.store.SavePolygonCode(ctx, u.ID, zone, code); err != nil {
		return "", fmt.Errorf("failed to cache polygon code of ubication %s: %w", u.ID, err)
	}
	return code, nil
}

// New builds the client selected by configuration.
func New(cfg config.GeocoderConfig, shared *redis.Client, log *logger.Logger, m *metrics.RoutingMetrics) Client {
	switch cfg.Provider {
	case "http":
		if !cfg.SharedCache {
			shared = nil
		}
		log.Info("Geocoder configured", "provider", "http", "base_url", cfg.BaseURL, "timeout", cfg.Timeout)
		return NewCachedClient(NewHTTPClient(cfg, m), shared, cfg.CacheTTL, log, m)
	case "dummy":
		log.Info("Geocoder configured", "provider", "dummy")
		return NewDummyClient(AddressInfo{
			Street:      "DUMMY STREET",
			XCoordinate: 430000,
			YCoordinate: 4580000,
			Latitude:    41.3874,
			Longitude:   2.1686,
			DistrictID:  1,
		}, nil)
	default:
		log.Info("Geocoder disabled", "provider", cfg.Provider)
		return NullClient{}
	}
}
