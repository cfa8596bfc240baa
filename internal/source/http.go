package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/sync/singleflight"

	"github.com/pspoerri/mapreproject/internal/mapservice"
)

// URL template placeholders understood by HTTP.
const (
	PlaceholderMinX   = "{minx}"
	PlaceholderMinY   = "{miny}"
	PlaceholderMaxX   = "{maxx}"
	PlaceholderMaxY   = "{maxy}"
	PlaceholderBBox   = "{bbox}"
	PlaceholderWidth  = "{width}"
	PlaceholderHeight = "{height}"
)

// ErrServiceException is returned when a map server answers with a text or
// XML document instead of an image.
var ErrServiceException = errors.New("map server returned an error document")

// HTTPConfig configures an HTTP source.
type HTTPConfig struct {
	// URLTemplate is a GetMap-style URL with placeholders, e.g.
	// "https://host/wms?BBOX={bbox}&WIDTH={width}&HEIGHT={height}".
	URLTemplate string
	// Timeout bounds a request when the context carries no deadline.
	Timeout time.Duration
	// UserAgent is sent with every request.
	UserAgent string
	// Client overrides the default fasthttp client.
	Client *fasthttp.Client
}

// DefaultHTTPConfig returns the defaults used for zero HTTPConfig fields.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:   30 * time.Second,
		UserAgent: "mapreproject",
	}
}

// HTTP fetches images from a remote map server. Concurrent requests for
// the same URL share one round trip.
type HTTP struct {
	cfg    HTTPConfig
	client *fasthttp.Client
	group  singleflight.Group
}

var _ mapservice.ImageSource = (*HTTP)(nil)

// NewHTTP creates an HTTP source.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.URLTemplate == "" {
		return nil, fmt.Errorf("http source: empty URL template")
	}
	if !strings.Contains(cfg.URLTemplate, PlaceholderBBox) && !strings.Contains(cfg.URLTemplate, PlaceholderMinX) {
		return nil, fmt.Errorf("http source: URL template %q has no bounding box placeholder", cfg.URLTemplate)
	}
	def := DefaultHTTPConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	client := cfg.Client
	if client == nil {
		client = &fasthttp.Client{
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		}
	}
	return &HTTP{cfg: cfg, client: client}, nil
}

// URL expands the template for a request.
func (h *HTTP) URL(bbox mapservice.BoundingBox, size mapservice.Size) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	r := strings.NewReplacer(
		PlaceholderMinX, f(bbox.MinX),
		PlaceholderMinY, f(bbox.MinY),
		PlaceholderMaxX, f(bbox.MaxX),
		PlaceholderMaxY, f(bbox.MaxY),
		PlaceholderBBox, f(bbox.MinX)+","+f(bbox.MinY)+","+f(bbox.MaxX)+","+f(bbox.MaxY),
		PlaceholderWidth, strconv.Itoa(size.Width),
		PlaceholderHeight, strconv.Itoa(size.Height),
	)
	return r.Replace(h.cfg.URLTemplate)
}

// GetImage requests bbox at size. A 204 or 404 response means there is no
// image and yields nil.
func (h *HTTP) GetImage(ctx context.Context, bbox mapservice.BoundingBox, size mapservice.Size) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	url := h.URL(bbox, size)
	v, err, _ := h.group.Do(url, func() (any, error) {
		return h.fetch(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (h *HTTP) fetch(ctx context.Context, url string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent(h.cfg.UserAgent)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(h.cfg.Timeout)
	}
	if err := h.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	switch status := resp.StatusCode(); status {
	case fasthttp.StatusOK:
	case fasthttp.StatusNoContent, fasthttp.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, status)
	}

	ct := string(resp.Header.ContentType())
	if strings.HasPrefix(ct, "text/") || strings.Contains(ct, "xml") {
		return nil, fmt.Errorf("GET %s: %w: %s", url, ErrServiceException, snippet(resp.Body()))
	}
	// The response body is reused once resp is released.
	return append([]byte(nil), resp.Body()...), nil
}

func snippet(b []byte) string {
	const n = 200
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = s[:n] + "..."
	}
	return s
}
