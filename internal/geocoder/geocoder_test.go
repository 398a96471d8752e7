package geocoder

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/automax/routing/internal/config"
	"github.com/automax/routing/internal/logger"
	"github.com/automax/routing/internal/metrics"
	"github.com/automax/routing/internal/models"
	"github.com/google/uuid"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://geocoder.test/api"

func newMockedHTTPClient(t *testing.T) *HTTPClient {
	t.Helper()
	c := NewHTTPClient(config.GeocoderConfig{BaseURL: testBaseURL, Timeout: time.Second}, metrics.NewNop())
	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

const addressOK = `{"status":"OK","results":[{"street_name":"CARRER DE MALLORCA","numbering_type":"N",
"neighborhood_id":"7","neighborhood_name":"la Sagrada Familia","statistical_sector":"031",
"x_etrs89":431234.5,"y_etrs89":4583210.25,"latitude":41.4036,"longitude":2.1744,"district_code":"02"}]}`

func TestHTTPClient_ResolveAddress(t *testing.T) {
	c := newMockedHTTPClient(t)
	httpmock.RegisterResponder("GET", `=~^http://geocoder\.test/api/address`,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "CARRER DE MALLORCA", req.URL.Query().Get("street"))
			assert.Equal(t, "401", req.URL.Query().Get("number"))
			return httpmock.NewStringResponse(http.StatusOK, addressOK), nil
		})

	info, err := c.ResolveAddress(context.Background(), Address{Street: "Carrer de  Mallorca", Number: "401"})
	require.NoError(t, err)

	assert.Equal(t, "CARRER DE MALLORCA", info.Street)
	assert.Equal(t, uint(2), info.DistrictID)
	assert.InDelta(t, 431234.5, info.XCoordinate, 0.001)
	assert.Equal(t, "la Sagrada Familia", info.Neighborhood)
}

func TestHTTPClient_FailuresBecomeAddressNotFound(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"server error", httpmock.NewStringResponder(http.StatusInternalServerError, "boom")},
		{"no results", httpmock.NewStringResponder(http.StatusOK, `{"status":"ZERO_RESULTS","results":[]}`)},
		{"bad json", httpmock.NewStringResponder(http.StatusOK, `{"status":`)},
		{"transport", httpmock.NewErrorResponder(errors.New("connection refused"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newMockedHTTPClient(t)
			httpmock.RegisterResponder("GET", `=~^http://geocoder\.test/api/address`, tt.responder)

			_, err := c.ResolveAddress(context.Background(), Address{Street: "Nowhere", Number: "1"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAddressNotFound)
		})
	}
}

func TestHTTPClient_ResolvePolygonCode(t *testing.T) {
	c := newMockedHTTPClient(t)
	httpmock.RegisterResponder("GET", `=~^http://geocoder\.test/api/zone`,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "ZONA_NETEJA", req.URL.Query().Get("type"))
			assert.Equal(t, "431234.50", req.URL.Query().Get("x"))
			return httpmock.NewStringResponse(http.StatusOK, `{"status":"OK","code":"P07"}`), nil
		})

	code, err := c.ResolvePolygonCode(context.Background(), "ZONA_NETEJA", &AddressInfo{XCoordinate: 431234.5, YCoordinate: 4583210.25})
	require.NoError(t, err)
	assert.Equal(t, "P07", code)
}

func TestNormalizeStreet(t *testing.T) {
	assert.Equal(t, "PLACA DE CATALUNYA", NormalizeStreet("  Plaça de   Catalunya "))
	assert.Equal(t, "PASSEIG DE GRACIA", NormalizeStreet("passeig de Gràcia"))
}

func TestCachedClient_HitsInnerOnce(t *testing.T) {
	inner := NewDummyClient(AddressInfo{Street: "X", XCoordinate: 1, YCoordinate: 2}, map[string]string{"Z": "P1"})
	c := NewCachedClient(inner, nil, time.Minute, logger.NewNop(), metrics.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		info, err := c.ResolveAddress(ctx, Address{Street: "Gràcia", Number: "1"})
		require.NoError(t, err)
		code, err := c.ResolvePolygonCode(ctx, "Z", info)
		require.NoError(t, err)
		assert.Equal(t, "P1", code)
	}

	assert.Equal(t, 1, inner.AddressCalls())
	assert.Equal(t, 1, inner.PolygonCalls())

	// Accent variants share the cache entry
	_, err := c.ResolveAddress(ctx, Address{Street: "GRACIA", Number: "1"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.AddressCalls())
}

func TestCachedClient_DoesNotCacheFailures(t *testing.T) {
	inner := NewDummyClient(AddressInfo{Street: "X"}, nil)
	inner.Fail(ErrAddressNotFound)
	c := NewCachedClient(inner, nil, time.Minute, logger.NewNop(), nil)

	_, err := c.ResolveAddress(context.Background(), Address{Street: "A", Number: "1"})
	require.ErrorIs(t, err, ErrAddressNotFound)

	inner.Fail(nil)
	_, err = c.ResolveAddress(context.Background(), Address{Street: "A", Number: "1"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.AddressCalls())
}

type memoryUbicationStore struct {
	saved    int
	polygons map[string]string
}

func (m *memoryUbicationStore) SaveGeocodedFields(ctx context.Context, u *models.Ubication) error {
	m.saved++
	return nil
}

func (m *memoryUbicationStore) SavePolygonCode(ctx context.Context, id uuid.UUID, zone, code string) error {
	if m.polygons == nil {
		m.polygons = map[string]string{}
	}
	m.polygons[zone] = code
	return nil
}

func TestResolver_WritesBackOnlyWhenPersisting(t *testing.T) {
	client := NewDummyClient(AddressInfo{Street: "MALLORCA", XCoordinate: 10, YCoordinate: 20, DistrictID: 5}, map[string]string{"Z": "P9"})
	store := &memoryUbicationStore{}
	r := NewResolver(client, store, logger.NewNop())
	ctx := context.Background()

	dry := &models.Ubication{ID: uuid.New(), Street: "Mallorca", StreetNumber: "1"}
	code, err := r.ResolvePolygonCode(ctx, dry, "Z", false)
	require.NoError(t, err)
	assert.Equal(t, "P9", code)
	assert.Nil(t, dry.DistrictID)
	assert.Empty(t, dry.Polygons)
	assert.Zero(t, store.saved)

	u := &models.Ubication{ID: uuid.New(), Street: "Mallorca", StreetNumber: "1"}
	code, err = r.ResolvePolygonCode(ctx, u, "Z", true)
	require.NoError(t, err)
	assert.Equal(t, "P9", code)
	require.NotNil(t, u.DistrictID)
	assert.Equal(t, uint(5), *u.DistrictID)
	assert.Equal(t, "P9", u.PolygonCode("Z"))
	assert.Equal(t, 1, store.saved)
	assert.Equal(t, "P9", store.polygons["Z"])

	before := client.PolygonCalls()
	_, err = r.ResolvePolygonCode(ctx, u, "Z", true)
	require.NoError(t, err)
	assert.Equal(t, before, client.PolygonCalls())
}

func TestResolver_UnsavedUbicationStaysInMemory(t *testing.T) {
	client := NewDummyClient(AddressInfo{Street: "MALLORCA", XCoordinate: 10, YCoordinate: 20, DistrictID: 5}, map[string]string{"Z": "P9"})
	store := &memoryUbicationStore{}
	r := NewResolver(client, store, logger.NewNop())

	u := &models.Ubication{Street: "Mallorca", StreetNumber: "1"}
	code, err := r.ResolvePolygonCode(context.Background(), u, "Z", true)
	require.NoError(t, err)
	assert.Equal(t, "P9", code)
	assert.Equal(t, "P9", u.PolygonCode("Z"))
	require.NotNil(t, u.DistrictID)
	assert.Zero(t, store.saved)
	assert.Empty(t, store.polygons)
}

func TestResolver_KeepsExplicitDistrict(t *testing.T) {
	client := NewDummyClient(AddressInfo{Street: "MALLORCA", DistrictID: 5}, nil)
	r := NewResolver(client, &memoryUbicationStore{}, logger.NewNop())

	explicit := uint(3)
	u := &models.Ubication{ID: uuid.New(), Street: "Mallorca", DistrictID: &explicit}
	_, err := r.ResolveAddress(context.Background(), u, true)
	require.NoError(t, err)
	assert.Equal(t, uint(3), *u.DistrictID)
}

func TestResolver_NoAddress(t *testing.T) {
	client := NewDummyClient(AddressInfo{}, nil)
	r := NewResolver(client, &memoryUbicationStore{}, logger.NewNop())

	_, err := r.ResolveAddress(context.Background(), &models.Ubication{}, true)
	assert.ErrorIs(t, err, ErrAddressNotFound)
	assert.Zero(t, client.AddressCalls())
}
