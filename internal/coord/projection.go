// Package coord converts logical coordinates between coordinate reference
// systems. Native projections go through WGS84 longitude/latitude; codes
// without a native implementation are delegated to github.com/wroge/wgs84.
package coord

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

var (
	// ErrOutOfDomain is returned when a coordinate cannot be transformed,
	// e.g. a latitude of ±90° in Web Mercator or a point far outside the
	// area a local projection is defined for.
	ErrOutOfDomain = errors.New("coord: coordinate outside projection domain")

	// ErrUnsupportedEPSG is returned for EPSG codes no implementation knows.
	ErrUnsupportedEPSG = errors.New("coord: unsupported EPSG code")
)

const (
	// EarthCircumference is the equatorial circumference in meters.
	EarthCircumference = 40075016.685578488
	// OriginShift is half the earth's circumference.
	OriginShift = EarthCircumference / 2.0
)

// Projection converts between a CRS and WGS84 longitude/latitude (degrees).
type Projection interface {
	ToWGS84(p orb.Point) (orb.Point, error)
	FromWGS84(lonLat orb.Point) (orb.Point, error)
	EPSG() int
}

// ForEPSG returns a native Projection for the given EPSG code, or nil.
func ForEPSG(epsg int) Projection {
	switch epsg {
	case 2056:
		return SwissLV95{}
	case 4326:
		return WGS84Identity{}
	case 3857, 900913:
		return WebMercator{}
	default:
		return nil
	}
}

// WGS84Identity is a no-op projection for data already in EPSG:4326.
type WGS84Identity struct{}

func (WGS84Identity) EPSG() int { return 4326 }

func (WGS84Identity) ToWGS84(p orb.Point) (orb.Point, error) { return checkLonLat(p) }

func (WGS84Identity) FromWGS84(p orb.Point) (orb.Point, error) { return checkLonLat(p) }

// WebMercator implements EPSG:3857 on a sphere of the WGS84 semi-major axis.
type WebMercator struct{}

func (WebMercator) EPSG() int { return 3857 }

func (WebMercator) ToWGS84(p orb.Point) (orb.Point, error) {
	if err := checkFinite(p); err != nil {
		return p, err
	}
	lon := (p[0] / OriginShift) * 180.0
	lat := (p[1] / OriginShift) * 180.0
	lat = 180.0 / math.Pi * (2.0*math.Atan(math.Exp(lat*math.Pi/180.0)) - math.Pi/2.0)
	return orb.Point{lon, lat}, nil
}

func (WebMercator) FromWGS84(p orb.Point) (orb.Point, error) {
	if _, err := checkLonLat(p); err != nil {
		return p, err
	}
	if p[1] <= -90 || p[1] >= 90 {
		return p, fmt.Errorf("%w: latitude %g has no Web Mercator y", ErrOutOfDomain, p[1])
	}
	x := p[0] * OriginShift / 180.0
	y := math.Log(math.Tan((90.0+p[1])*math.Pi/360.0)) / (math.Pi / 180.0)
	y = y * OriginShift / 180.0
	return orb.Point{x, y}, nil
}

// SwissLV95 implements EPSG:2056 (CH1903+ / LV95) with swisstopo's published
// polynomial approximation. Accuracy is about a meter inside Switzerland;
// the polynomials diverge far outside it, so coordinates beyond a generous
// margin around the country are rejected.
//
// Reference: https://www.swisstopo.admin.ch/en/knowledge-facts/surveying-geodesy/reference-frames/local/lv95.html
type SwissLV95 struct{}

// Domain of the approximation, with a margin around the national border.
var (
	swissLonLat = orb.Bound{Min: orb.Point{4.5, 44.5}, Max: orb.Point{12.0, 49.0}}
	swissENBox  = orb.Bound{Min: orb.Point{2_250_000, 950_000}, Max: orb.Point{2_950_000, 1_450_000}}
)

func (SwissLV95) EPSG() int { return 2056 }

// ToWGS84 converts easting/northing to longitude/latitude.
func (SwissLV95) ToWGS84(p orb.Point) (orb.Point, error) {
	if err := checkFinite(p); err != nil {
		return p, err
	}
	if !swissENBox.Contains(p) {
		return p, fmt.Errorf("%w: LV95 %v outside Switzerland", ErrOutOfDomain, p)
	}
	// Auxiliary values: differences from Bern reference in 1000 km units
	y := (p[0] - 2_600_000) / 1_000_000
	x := (p[1] - 1_200_000) / 1_000_000

	// Longitude and latitude in 10000" units
	lonSec := 2.6779094 +
		4.728982*y +
		0.791484*y*x +
		0.1306*y*x*x -
		0.0436*y*y*y
	latSec := 16.9023892 +
		3.238272*x -
		0.270978*y*y -
		0.002528*x*x -
		0.0447*y*y*x -
		0.0140*x*x*x

	return orb.Point{lonSec * 100.0 / 36.0, latSec * 100.0 / 36.0}, nil
}

// FromWGS84 converts longitude/latitude to easting/northing.
func (SwissLV95) FromWGS84(p orb.Point) (orb.Point, error) {
	if err := checkFinite(p); err != nil {
		return p, err
	}
	if !swissLonLat.Contains(p) {
		return p, fmt.Errorf("%w: lon/lat %v outside Switzerland", ErrOutOfDomain, p)
	}
	phi := (p[1]*3600 - 169028.66) / 10000
	lambda := (p[0]*3600 - 26782.5) / 10000

	easting := 2_600_072.37 +
		211_455.93*lambda -
		10_938.51*lambda*phi -
		0.36*lambda*phi*phi -
		44.54*lambda*lambda*lambda
	northing := 1_200_147.07 +
		308_807.95*phi +
		3_745.25*lambda*lambda +
		76.63*phi*phi -
		194.56*lambda*lambda*phi +
		119.79*phi*phi*phi

	return orb.Point{easting, northing}, nil
}

func checkFinite(p orb.Point) error {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
		return fmt.Errorf("%w: non-finite coordinate %v", ErrOutOfDomain, p)
	}
	return nil
}

func checkLonLat(p orb.Point) (orb.Point, error) {
	if err := checkFinite(p); err != nil {
		return p, err
	}
	if p[1] < -90 || p[1] > 90 {
		return p, fmt.Errorf("%w: latitude %g", ErrOutOfDomain, p[1])
	}
	return p, nil
}
