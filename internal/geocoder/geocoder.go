// Package geocoder resolves complaint addresses to coordinates, districts and
// zone polygon codes through an external lookup service.
package geocoder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/automax/routing/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrAddressNotFound is returned for every failed lookup: no match, a
// non-success answer or a transport error.
var ErrAddressNotFound = errors.New("address not found")

// Address is the raw address sent to the geocoder.
type Address struct {
	Street string
	Number string
	Letter string
}

// AddressInfo is a resolved address.
type AddressInfo struct {
	Street            string  `json:"street"`
	NumberingType     string  `json:"numbering_type"`
	NeighborhoodID    string  `json:"neighborhood_id"`
	Neighborhood      string  `json:"neighborhood"`
	StatisticalSector string  `json:"statistical_sector"`
	XCoordinate       float64 `json:"x_coordinate"`
	YCoordinate       float64 `json:"y_coordinate"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	// 0 when the service did not report a district
	DistrictID uint `json:"district_id"`
}

// Client is the contract of the external geocoding service.
type Client interface {
	ResolveAddress(ctx context.Context, addr Address) (*AddressInfo, error)
	// ResolvePolygonCode returns "" when the coordinates fall in no polygon of zone.
	ResolvePolygonCode(ctx context.Context, zone string, info *AddressInfo) (string, error)
}

func AddressFromUbication(u *models.Ubication) Address {
	return Address{
		Street: strings.TrimSpace(strings.TrimSpace(u.StreetType) + " " + strings.TrimSpace(u.Street)),
		Number: strings.TrimSpace(u.StreetNumber),
		Letter: strings.TrimSpace(u.Letter),
	}
}

// InfoFromUbication rebuilds the coordinate part of an AddressInfo from
// already resolved ubication fields.
func InfoFromUbication(u *models.Ubication) *AddressInfo {
	if !u.HasCoordinates() {
		return nil
	}
	info := &AddressInfo{
		Street:      u.OfficialStreetName,
		XCoordinate: *u.XCoordinate,
		YCoordinate: *u.YCoordinate,
	}
	if u.DistrictID != nil {
		info.DistrictID = *u.DistrictID
	}
	return info
}

// ApplyTo writes the resolved fields on u. The district is only set when u
// has none, an explicit district typed at intake wins.
func (i *AddressInfo) ApplyTo(u *models.Ubication) {
	x, y := i.XCoordinate, i.YCoordinate
	lat, lng := i.Latitude, i.Longitude
	u.XCoordinate = &x
	u.YCoordinate = &y
	u.Latitude = &lat
	u.Longitude = &lng
	u.OfficialStreetName = i.Street
	u.NumberingType = i.NumberingType
	u.NeighborhoodID = i.NeighborhoodID
	u.Neighborhood = i.Neighborhood
	u.StatisticalSector = i.StatisticalSector
	if u.DistrictID == nil && i.DistrictID != 0 {
		d := i.DistrictID
		u.DistrictID = &d
	}
}

// NormalizeStreet strips accents, collapses whitespace and upper-cases a
// street name so that equivalent spellings share one lookup.
func NormalizeStreet(street string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, street)
	if err != nil {
		stripped = street
	}
	return cases.Upper(language.Und).String(strings.Join(strings.Fields(stripped), " "))
}

func notFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrAddressNotFound, fmt.Sprintf(format, args...))
}
