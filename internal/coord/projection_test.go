package coord

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestForEPSG(t *testing.T) {
	tests := []struct {
		epsg     int
		wantNil  bool
		wantEPSG int
	}{
		{2056, false, 2056},
		{4326, false, 4326},
		{3857, false, 3857},
		{900913, false, 3857},
		{32632, true, 0}, // UTM 32N has no native implementation
		{0, true, 0},
	}
	for _, tt := range tests {
		p := ForEPSG(tt.epsg)
		if tt.wantNil {
			if p != nil {
				t.Errorf("ForEPSG(%d) = %v, want nil", tt.epsg, p)
			}
			continue
		}
		if p == nil {
			t.Fatalf("ForEPSG(%d) = nil, want non-nil", tt.epsg)
		}
		if got := p.EPSG(); got != tt.wantEPSG {
			t.Errorf("ForEPSG(%d).EPSG() = %d, want %d", tt.epsg, got, tt.wantEPSG)
		}
	}
}

// TestProjectionRoundTrip verifies that ToWGS84(FromWGS84(p)) ≈ p for all projections.
func TestProjectionRoundTrip(t *testing.T) {
	points := []orb.Point{
		{8.5417, 47.3769}, // Zurich
		{6.6323, 46.5197}, // Lausanne
		{7.4474, 46.9480}, // Bern
		{9.3767, 47.4245}, // St. Gallen
		{8.9511, 46.0037}, // Lugano
	}

	for _, proj := range []Projection{WGS84Identity{}, WebMercator{}, SwissLV95{}} {
		for _, ll := range points {
			xy, err := proj.FromWGS84(ll)
			if err != nil {
				t.Fatalf("EPSG:%d FromWGS84(%v): %v", proj.EPSG(), ll, err)
			}
			got, err := proj.ToWGS84(xy)
			if err != nil {
				t.Fatalf("EPSG:%d ToWGS84(%v): %v", proj.EPSG(), xy, err)
			}
			// SwissLV95 is a polynomial approximation; allow ~1m (~0.00001°).
			const tol = 1e-4
			if math.Abs(got[0]-ll[0]) > tol || math.Abs(got[1]-ll[1]) > tol {
				t.Errorf("EPSG:%d roundtrip %v -> %v", proj.EPSG(), ll, got)
			}
		}
	}
}

func TestWebMercatorKnownValues(t *testing.T) {
	wm := WebMercator{}

	ll, err := wm.ToWGS84(orb.Point{0, 0})
	if err != nil || math.Abs(ll[0]) > 1e-10 || math.Abs(ll[1]) > 1e-10 {
		t.Errorf("ToWGS84(0, 0) = %v, %v, want (0, 0)", ll, err)
	}

	xy, _ := wm.FromWGS84(orb.Point{180, 0})
	if math.Abs(xy[0]-OriginShift) > 1 {
		t.Errorf("FromWGS84(180, 0).x = %v, want ~%v", xy[0], OriginShift)
	}
	xy, _ = wm.FromWGS84(orb.Point{-180, 0})
	if math.Abs(xy[0]+OriginShift) > 1 {
		t.Errorf("FromWGS84(-180, 0).x = %v, want ~%v", xy[0], -OriginShift)
	}
}

func TestWebMercatorPolesOutOfDomain(t *testing.T) {
	for _, lat := range []float64{90, -90, 91} {
		if _, err := (WebMercator{}).FromWGS84(orb.Point{0, lat}); !errors.Is(err, ErrOutOfDomain) {
			t.Errorf("FromWGS84(0, %v) err = %v, want ErrOutOfDomain", lat, err)
		}
	}
	if _, err := (WebMercator{}).ToWGS84(orb.Point{math.NaN(), 0}); !errors.Is(err, ErrOutOfDomain) {
		t.Errorf("ToWGS84(NaN) err = %v, want ErrOutOfDomain", err)
	}
}

// Reference points from swisstopo:
//
// Bern (Federal Palace):  E 2_600_000  N 1_200_000  →  lon 7.438632  lat 46.951083
// Zurich (ETH):           E 2_683_474  N 1_247_862  →  lon 8.547970  lat 47.376870
// Geneva (Jet d'eau):     E 2_500_560  N 1_118_017  →  lon 6.143200  lat 46.207450
func TestSwissLV95ReferencePoints(t *testing.T) {
	refs := []struct {
		name   string
		en, ll orb.Point
		tolDeg float64
	}{
		{"Bern", orb.Point{2_600_000, 1_200_000}, orb.Point{7.438632, 46.951083}, 0.001},
		{"Zurich", orb.Point{2_683_474, 1_247_862}, orb.Point{8.5417, 47.3769}, 0.005},
		{"Geneva", orb.Point{2_500_560, 1_118_017}, orb.Point{6.1432, 46.2075}, 0.01},
	}
	s := SwissLV95{}
	for _, ref := range refs {
		t.Run(ref.name, func(t *testing.T) {
			got, err := s.ToWGS84(ref.en)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got[0]-ref.ll[0]) > ref.tolDeg || math.Abs(got[1]-ref.ll[1]) > ref.tolDeg {
				t.Errorf("ToWGS84(%v) = %v, want ~%v", ref.en, got, ref.ll)
			}
		})
	}
}

func TestSwissLV95OutsideSwitzerland(t *testing.T) {
	s := SwissLV95{}
	if _, err := s.FromWGS84(orb.Point{-73.98, 40.75}); !errors.Is(err, ErrOutOfDomain) {
		t.Errorf("FromWGS84(New York) err = %v, want ErrOutOfDomain", err)
	}
	if _, err := s.ToWGS84(orb.Point{0, 0}); !errors.Is(err, ErrOutOfDomain) {
		t.Errorf("ToWGS84(0, 0) err = %v, want ErrOutOfDomain", err)
	}
}
