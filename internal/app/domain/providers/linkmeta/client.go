// Package linkmeta fetches title, description and preview image for a social link.
package linkmeta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/models"
)

var (
	// ErrNoContent means the page was reachable but exposed no usable metadata.
	ErrNoContent = errors.New("linkmeta: no content")
	// ErrFetchFailed means the page or the metadata API could not be fetched.
	ErrFetchFailed = errors.New("linkmeta: fetch failed")
)

const (
	defaultTimeout = 15 * time.Second
	maxPageBytes   = 4 << 20
	userAgent      = "Mozilla/5.0 (compatible; RadarBot/1.0; +https://radar.app)"
)

type Config struct {
	MicrolinkURL string // empty disables the API and goes straight to the page
	Timeout      time.Duration
	// AllowPrivateHosts lets the page fallback dial loopback and private addresses.
	AllowPrivateHosts bool
}

// Client tries the Microlink API first and falls back to reading og: tags from the page.
type Client struct {
	cfg        Config
	httpClient *http.Client
	pageClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	if !cfg.AllowPrivateHosts {
		dialer.Control = publicAddressOnly
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		pageClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		logger:     logger,
	}
}

// publicAddressOnly runs after DNS resolution, so redirects and rebinding are covered too.
func publicAddressOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublicIP(ip) {
		return fmt.Errorf("refusing to dial non-public address %s", host)
	}
	return nil
}

func isPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast())
}

type microlinkResponse struct {
	Status string `json:"status"`
	Data   struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Image       *struct {
			URL string `json:"url"`
		} `json:"image"`
	} `json:"data"`
}

// Fetch returns metadata for rawURL.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*models.LinkMetadata, error) {
	ctx, span := otel.Tracer("LinkMeta").Start(ctx, "Fetch", trace.WithAttributes(
		attribute.String("link.url", rawURL),
	))
	defer span.End()

	l := c.logger.With(zap.String("method", "Fetch"), zap.String("url", rawURL))

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		span.SetStatus(codes.Error, "invalid url")
		return nil, fmt.Errorf("%w: invalid url %q", ErrFetchFailed, rawURL)
	}

	if c.cfg.MicrolinkURL != "" {
		meta, err := c.fetchMicrolink(ctx, rawURL)
		if err == nil {
			span.SetAttributes(attribute.String("link.source", "microlink"))
			span.SetStatus(codes.Ok, "metadata fetched")
			return meta, nil
		}
		l.Debug("Microlink lookup failed, reading page directly", zap.Error(err))
	}

	meta, err := c.fetchPage(ctx, rawURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "metadata fetch failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("link.source", "page"))
	span.SetStatus(codes.Ok, "metadata fetched")
	return meta, nil
}

func (c *Client) fetchMicrolink(ctx context.Context, target string) (*models.LinkMetadata, error) {
	endpoint := strings.TrimRight(c.cfg.MicrolinkURL, "/") + "/?" + url.Values{"url": {target}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: microlink status %d", ErrFetchFailed, resp.StatusCode)
	}

	var body microlinkResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPageBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode microlink: %v", ErrFetchFailed, err)
	}
	if body.Status != "success" {
		return nil, fmt.Errorf("%w: microlink status %q", ErrFetchFailed, body.Status)
	}

	meta := &models.LinkMetadata{
		URL:         target,
		Title:       strings.TrimSpace(body.Data.Title),
		Description: strings.TrimSpace(body.Data.Description),
	}
	if body.Data.Image != nil {
		meta.ImageURL = body.Data.Image.URL
	}
	if meta.Title == "" && meta.Description == "" {
		return nil, ErrNoContent
	}
	return meta, nil
}

func (c *Client) fetchPage(ctx context.Context, target string) (*models.LinkMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.pageClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", ErrFetchFailed, err)
	}

	meta := ParseDocument(doc)
	meta.URL = target
	if meta.Title == "" && meta.Description == "" {
		return nil, ErrNoContent
	}
	return meta, nil
}

// ParseDocument reads Open Graph tags, falling back to the standard title and description.
func ParseDocument(doc *goquery.Document) *models.LinkMetadata {
	first := func(selectors ...string) string {
		for _, sel := range selectors {
			if v := strings.TrimSpace(doc.Find(sel).First().AttrOr("content", "")); v != "" {
				return v
			}
		}
		return ""
	}

	meta := &models.LinkMetadata{
		Title:       first(`meta[property="og:title"]`, `meta[name="twitter:title"]`),
		Description: first(`meta[property="og:description"]`, `meta[name="twitter:description"]`, `meta[name="description"]`),
		ImageURL:    first(`meta[property="og:image"]`, `meta[name="twitter:image"]`),
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return meta
}
