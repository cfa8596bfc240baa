package source

import (
	"context"
	"errors"
	"image"
	"image/color"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/pspoerri/mapreproject/internal/encode"
	"github.com/pspoerri/mapreproject/internal/mapservice"
)

var (
	red   = color.NRGBA{255, 0, 0, 255}
	blue  = color.NRGBA{0, 0, 255, 255}
	green = color.NRGBA{0, 255, 0, 255}
	black = color.NRGBA{0, 0, 0, 255}
)

func TestParseWorldFile(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"north up", "10.0\n0.0\n0.0\n-10.0\n2600005.0\n1199995.0\n", false},
		{"windows line endings", "1\r\n0\r\n0\r\n-1\r\n0.5\r\n9.5\r\n", false},
		{"too short", "1\n0\n0\n-1\n", true},
		{"not a number", "1\n0\n0\n-1\nabc\n9.5\n", true},
		{"rotated", "1\n0.1\n0\n-1\n0.5\n9.5\n", true},
		{"zero pixel size", "0\n0\n0\n-1\n0.5\n9.5\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorldFile([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWorldFileBounds(t *testing.T) {
	wf, err := ParseWorldFile([]byte("10\n0\n0\n-10\n2600005\n1199995\n"))
	if err != nil {
		t.Fatal(err)
	}
	got := wf.Bounds(100, 50)
	want := mapservice.NewBoundingBox(2_600_000, 1_199_500, 2_601_000, 1_200_000)
	if got != want {
		t.Errorf("Bounds = %v, want %v", got, want)
	}
	if wf.Corner() != mapservice.MinXMaxY {
		t.Errorf("Corner = %v, want MinXMaxY", wf.Corner())
	}
	if x, y := wf.Resolution(); x != 10 || y != 10 {
		t.Errorf("Resolution = %v, %v", x, y)
	}

	wf.PixelSizeY = 10
	if wf.Corner() != mapservice.MinXMinY {
		t.Errorf("south-up Corner = %v, want MinXMinY", wf.Corner())
	}
}

func TestFindWorldFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("1\n0\n0\n-1\n0.5\n0.5\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		image   string
		sidecar string
	}{
		{"a.png", "a.pgw"},
		{"b.tif", "b.tfw"},
		{"c.jpg", "c.JGW"},
		{"d.webp", "d.webpw"},
		{"e.png", "e.wld"},
	}
	for _, tt := range tests {
		t.Run(tt.image, func(t *testing.T) {
			want := write(tt.sidecar)
			if got := FindWorldFile(filepath.Join(dir, tt.image)); got != want {
				t.Errorf("FindWorldFile = %q, want %q", got, want)
			}
		})
	}

	if got := FindWorldFile(filepath.Join(dir, "none.png")); got != "" {
		t.Errorf("FindWorldFile without sidecar = %q", got)
	}
}

// halves returns a 100x100 image whose left half is red and right half blue.
func halves() *image.NRGBA {
	img := imaging.New(100, 100, red)
	return imaging.Paste(img, imaging.New(50, 100, blue), image.Pt(50, 0))
}

// stripes returns a 100x100 image whose top half is green and bottom half
// black.
func stripes() *image.NRGBA {
	img := imaging.New(100, 100, green)
	return imaging.Paste(img, imaging.New(100, 50, black), image.Pt(0, 50))
}

func decodeNRGBA(t *testing.T, data []byte) *image.NRGBA {
	t.Helper()
	img, err := encode.Decode(data)
	if err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return imaging.Clone(img)
}

func assertColor(t *testing.T, img *image.NRGBA, x, y int, want color.NRGBA) {
	t.Helper()
	if got := img.NRGBAAt(x, y); got != want {
		t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
	}
}

func TestStaticFullExtent(t *testing.T) {
	box := mapservice.NewBoundingBox(0, 0, 100, 100)
	s, err := NewStatic(halves(), box, mapservice.MinXMaxY)
	if err != nil {
		t.Fatal(err)
	}
	data, err := s.GetImage(context.Background(), box, mapservice.Size{Width: 50, Height: 50})
	if err != nil {
		t.Fatal(err)
	}
	img := decodeNRGBA(t, data)
	if img.Rect.Dx() != 50 || img.Rect.Dy() != 50 {
		t.Fatalf("size = %v, want 50x50", img.Rect)
	}
	assertColor(t, img, 5, 25, red)
	assertColor(t, img, 45, 25, blue)
}

func TestStaticPartialOverlap(t *testing.T) {
	s, err := NewStatic(halves(), mapservice.NewBoundingBox(0, 0, 100, 100), mapservice.MinXMaxY)
	if err != nil {
		t.Fatal(err)
	}
	img := s.Render(mapservice.NewBoundingBox(50, 0, 150, 100), mapservice.Size{Width: 100, Height: 100})
	if img == nil {
		t.Fatal("no image for overlapping request")
	}
	assertColor(t, img, 25, 50, blue)
	assertColor(t, img, 75, 50, color.NRGBA{})
	assertColor(t, img, 99, 99, color.NRGBA{})
}

func TestStaticOutside(t *testing.T) {
	s, err := NewStatic(halves(), mapservice.NewBoundingBox(0, 0, 100, 100), mapservice.MinXMaxY)
	if err != nil {
		t.Fatal(err)
	}
	data, err := s.GetImage(context.Background(), mapservice.NewBoundingBox(200, 200, 300, 300), mapservice.Size{Width: 10, Height: 10})
	if err != nil || data != nil {
		t.Errorf("GetImage outside = %d bytes, %v; want nil, nil", len(data), err)
	}
}

func TestStaticOrientation(t *testing.T) {
	box := mapservice.NewBoundingBox(0, 0, 100, 100)
	lower := mapservice.NewBoundingBox(0, 0, 100, 50)
	size := mapservice.Size{Width: 20, Height: 10}

	tests := []struct {
		corner mapservice.Corner
		want   color.NRGBA
	}{
		// The first image row lies on MaxY, so the lower half is the
		// bottom of the image.
		{mapservice.MinXMaxY, black},
		{mapservice.MinXMinY, green},
	}
	for _, tt := range tests {
		t.Run(tt.corner.String(), func(t *testing.T) {
			s, err := NewStatic(stripes(), box, tt.corner)
			if err != nil {
				t.Fatal(err)
			}
			img := s.Render(lower, size)
			assertColor(t, img, 10, 5, tt.want)
		})
	}
}

func TestStaticInvalid(t *testing.T) {
	if _, err := NewStatic(halves(), mapservice.NewBoundingBox(0, 0, 0, 10), mapservice.MinXMaxY); err == nil {
		t.Error("degenerate bounds accepted")
	}
	s, _ := NewStatic(halves(), mapservice.NewBoundingBox(0, 0, 10, 10), mapservice.MinXMaxY)
	if _, err := s.GetImage(context.Background(), s.Bounds(), mapservice.Size{}); err == nil {
		t.Error("empty size accepted")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.GetImage(ctx, s.Bounds(), s.Size()); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled context: err = %v", err)
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.png")
	if err := imaging.Save(halves(), path); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFile(path); err == nil {
		t.Error("image without world file accepted")
	}

	wld := "10\n0\n0\n-10\n2600005\n1200995\n"
	if err := os.WriteFile(filepath.Join(dir, "map.pgw"), []byte(wld), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := mapservice.NewBoundingBox(2_600_000, 1_200_000, 2_601_000, 1_201_000)
	if s.Bounds() != want {
		t.Errorf("Bounds = %v, want %v", s.Bounds(), want)
	}
	if s.Size() != (mapservice.Size{Width: 100, Height: 100}) {
		t.Errorf("Size = %v", s.Size())
	}
}

// serve starts an in-memory fasthttp server and returns a client dialing it.
func serve(t *testing.T, h fasthttp.RequestHandler) *fasthttp.Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { _ = srv.Shutdown() })
	return &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}
}

func TestHTTPURL(t *testing.T) {
	h, err := NewHTTP(HTTPConfig{
		URLTemplate: "http://maps/wms?BBOX={bbox}&W={width}&H={height}&X={minx}&Y={maxy}",
	})
	if err != nil {
		t.Fatal(err)
	}
	got := h.URL(mapservice.NewBoundingBox(2600000, 1199999.5, 2601000, 1200000), mapservice.Size{Width: 256, Height: 128})
	want := "http://maps/wms?BBOX=2600000,1199999.5,2601000,1200000&W=256&H=128&X=2600000&Y=1200000"
	if got != want {
		t.Errorf("URL = %q\nwant  %q", got, want)
	}
}

func TestNewHTTPValidation(t *testing.T) {
	for _, tmpl := range []string{"", "http://maps/wms?WIDTH={width}"} {
		if _, err := NewHTTP(HTTPConfig{URLTemplate: tmpl}); err == nil {
			t.Errorf("template %q accepted", tmpl)
		}
	}
}

func TestHTTPGetImage(t *testing.T) {
	png, err := (&encode.PNGEncoder{}).Encode(halves())
	if err != nil {
		t.Fatal(err)
	}
	var hits atomic.Int32
	client := serve(t, func(ctx *fasthttp.RequestCtx) {
		hits.Add(1)
		switch string(ctx.Path()) {
		case "/ok":
			if !strings.Contains(string(ctx.QueryArgs().Peek("bbox")), ",") {
				ctx.SetStatusCode(fasthttp.StatusBadRequest)
				return
			}
			ctx.SetContentType("image/png")
			ctx.SetBody(png)
		case "/empty":
			ctx.SetStatusCode(fasthttp.StatusNoContent)
		case "/xml":
			ctx.SetContentType("application/vnd.ogc.se_xml")
			ctx.SetBodyString("<ServiceExceptionReport>invalid layer</ServiceExceptionReport>")
		case "/broken":
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	})

	box := mapservice.NewBoundingBox(0, 0, 100, 100)
	size := mapservice.Size{Width: 100, Height: 100}
	get := func(path string) ([]byte, error) {
		h, err := NewHTTP(HTTPConfig{URLTemplate: "http://maps" + path + "?bbox={bbox}&w={width}&h={height}", Client: client})
		if err != nil {
			t.Fatal(err)
		}
		return h.GetImage(context.Background(), box, size)
	}

	data, err := get("/ok")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(png) {
		t.Errorf("body differs from served image")
	}

	for _, path := range []string{"/empty", "/missing"} {
		if data, err := get(path); err != nil || data != nil {
			t.Errorf("%s: got %d bytes, %v; want nil, nil", path, len(data), err)
		}
	}
	if _, err := get("/xml"); !errors.Is(err, ErrServiceException) {
		t.Errorf("/xml: err = %v, want ErrServiceException", err)
	}
	if _, err := get("/broken"); err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("/broken: err = %v", err)
	}
	if hits.Load() != 5 {
		t.Errorf("server saw %d requests, want 5", hits.Load())
	}
}

func TestHTTPCanceledContext(t *testing.T) {
	h, err := NewHTTP(HTTPConfig{URLTemplate: "http://maps/?bbox={bbox}"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.GetImage(ctx, mapservice.NewBoundingBox(0, 0, 1, 1), mapservice.Size{Width: 1, Height: 1}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
