package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/geocoder89/visionhub/internal/breaker"
	"github.com/geocoder89/visionhub/internal/observability"
	"github.com/geocoder89/visionhub/internal/utils"
)

const maxServiceBody = 1 << 20

var (
	ErrInvalidURL = errors.New("url must be an absolute http or https url")
	ErrUpstream   = errors.New("metadata service failure")
)

type Page struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Favicon     string `json:"favicon"`
}

type Config struct {
	ServiceURL string
	APIKey     string
	FaviconURL string
	CacheTTL   time.Duration
	Timeout    time.Duration
}

type Fetcher struct {
	cfg     Config
	client  *http.Client
	cache   Cache
	breaker *breaker.Breaker
	log     *slog.Logger
	prom    *observability.Prom
}

// NewFetcher builds a fetcher. cache may be nil, which disables caching, as
// does a zero CacheTTL.
func NewFetcher(cfg Config, client *http.Client, cache Cache, log *slog.Logger, prom *observability.Prom) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &Fetcher{
		cfg:     cfg,
		client:  client,
		cache:   cache,
		breaker: breaker.New(breaker.Config{FailureThreshold: 5, Cooldown: 30 * time.Second}),
		log:     log,
		prom:    prom,
	}
}

// NormalizeURL accepts only absolute http(s) urls with a host. The fragment
// is dropped so equivalent links share a cache entry.
func NormalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, ErrInvalidURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	return u, nil
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return Page{}, err
	}
	normalized := target.String()
	key := utils.BuildMetadataCacheKey(normalized)

	if f.cachingEnabled() {
		p, err := f.cache.Get(ctx, key)
		switch {
		case err == nil:
			f.prom.CountMetadataCache("hit")
			return p, nil
		case errors.Is(err, ErrCacheMiss):
			f.prom.CountMetadataCache("miss")
		default:
			f.prom.CountMetadataCache("error")
			f.log.WarnContext(ctx, "metadata cache read failed", "err", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	page, err := f.fetchMetadata(ctx, normalized)
	if err != nil {
		f.log.ErrorContext(ctx, "metadata fetch failed", "url", normalized, "err", err)
		return Page{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	favicon, err := f.fetchFavicon(ctx, target.Hostname())
	if err != nil {
		f.log.WarnContext(ctx, "favicon fetch failed", "host", target.Hostname(), "err", err)
	}
	page.Favicon = favicon

	if f.cachingEnabled() {
		if err := f.cache.Set(ctx, key, page, f.cfg.CacheTTL); err != nil {
			f.log.WarnContext(ctx, "metadata cache write failed", "err", err)
		}
	}

	return page, nil
}

func (f *Fetcher) cachingEnabled() bool {
	return f.cache != nil && f.cfg.CacheTTL > 0
}

type serviceResponse struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Images      []string `json:"images"`
}

func (f *Fetcher) fetchMetadata(ctx context.Context, target string) (Page, error) {
	q := url.Values{}
	q.Set("url", target)
	if f.cfg.APIKey != "" {
		q.Set("api_key", f.cfg.APIKey)
	}

	var (
		sr       serviceResponse
		rejected error
	)
	err := f.breaker.Do(ctx, func(ctx context.Context) error {
		err := f.prom.ObserveUpstream("metadata", func() error {
			return f.getJSON(ctx, f.cfg.ServiceURL+"?"+q.Encode(), &sr)
		})
		// the service answered; the page was the problem
		if isRejection(err) {
			rejected = err
			return nil
		}
		return err
	})
	if err == nil {
		err = rejected
	}
	if err != nil {
		return Page{}, err
	}

	image := sr.Image
	if image == "" && len(sr.Images) > 0 {
		image = sr.Images[0]
	}

	return Page{
		URL:         target,
		Title:       strings.TrimSpace(sr.Title),
		Description: strings.TrimSpace(sr.Description),
		Image:       image,
	}, nil
}

type faviconResponse struct {
	Icons []struct {
		Src   string `json:"src"`
		Sizes string `json:"sizes"`
	} `json:"icons"`
}

func (f *Fetcher) fetchFavicon(ctx context.Context, host string) (string, error) {
	if f.cfg.FaviconURL == "" || host == "" {
		return "", nil
	}

	var fr faviconResponse
	err := f.prom.ObserveUpstream("favicon", func() error {
		return f.getJSON(ctx, f.cfg.FaviconURL+"/"+url.PathEscape(host), &fr)
	})
	if err != nil {
		return "", err
	}

	for _, icon := range fr.Icons {
		if icon.Src != "" {
			return icon.Src, nil
		}
	}
	return "", nil
}

func (f *Fetcher) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{Code: resp.StatusCode}
	}

	return json.NewDecoder(io.LimitReader(resp.Body, maxServiceBody)).Decode(v)
}

type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.Code)
}

// isRejection reports a 4xx about the requested page. 429 is throttling and
// still counts against the service.
func isRejection(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
}
