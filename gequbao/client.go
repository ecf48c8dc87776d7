package gequbao

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Default client settings. The upstream rejects requests without a
// browser-looking user agent.
const (
	DefaultBaseURL   = "https://www.gequbao.com"
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36"
	DefaultTimeout   = 10 * time.Second

	DefaultResolveConcurrency = 4
	DefaultMaxResults         = 10
)

// Config holds the client's site and transport settings. The zero value is
// usable; empty fields fall back to the defaults above.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// ResolveConcurrency bounds the number of detail pages fetched in
	// parallel during SearchMusic.
	ResolveConcurrency int

	// MaxResults caps how many search candidates are resolved per query.
	MaxResults int
}

func (cfg Config) withDefaults() Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ResolveConcurrency <= 0 {
		cfg.ResolveConcurrency = DefaultResolveConcurrency
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	return cfg
}

// Client talks to the music site. It is safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	cache  *RequestCache // nil disables caching
	logger *zap.Logger
}

// NewClient creates a client. cache may be nil to disable response caching;
// logger may be nil for a no-op logger.
func NewClient(cfg Config, cache *RequestCache, logger *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		cache:  cache,
		logger: logger,
	}
}

// Search queries the site for a keyword and returns candidates in the
// upstream's order. An empty (after trimming) keyword fails with
// ErrInvalidInput before any request is made. Zero matches is an empty
// slice, not an error.
func (c *Client) Search(ctx context.Context, keyword string) ([]Candidate, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: empty search keyword", ErrInvalidInput)
	}

	body, err := c.get(ctx, "/s/"+url.PathEscape(keyword))
	if err != nil {
		return nil, err
	}

	candidates, err := extractCandidates(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(candidates) > c.cfg.MaxResults {
		candidates = candidates[:c.cfg.MaxResults]
	}

	c.logger.Debug("search completed",
		zap.String("keyword", keyword),
		zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// Resolve turns a candidate into a playable Track. It fetches the detail
// page for the candidate's id, then asks the play-url endpoint for the
// actual media URL. A candidate without a resolvable URL yields
// ErrTrackUnavailable.
func (c *Client) Resolve(ctx context.Context, cand Candidate) (*Track, error) {
	body, err := c.get(ctx, "/music/"+cand.ID)
	if err != nil {
		return nil, err
	}

	detail, err := extractDetail(bytes.NewReader(body))
	if err != nil {
		if errors.Is(err, errAppDataNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTrackUnavailable, cand.ID)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if detail.PlayID == "" {
		return nil, fmt.Errorf("%w: %s", ErrTrackUnavailable, cand.ID)
	}

	playURL, err := c.fetchPlayURL(ctx, detail.PlayID)
	if err != nil {
		return nil, err
	}
	if playURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrTrackUnavailable, cand.ID)
	}

	track := &Track{
		URL:        playURL,
		Title:      detail.Title,
		Artist:     detail.Artist,
		ArtworkURL: detail.Cover,
		LyricsURL:  detail.LyricsURL,
		Lyrics:     detail.Lyrics,
	}
	// The detail page occasionally omits metadata the search page had.
	if track.Title == "" {
		track.Title = cand.Title
	}
	if track.Artist == "" {
		track.Artist = cand.Artist
	}
	return track, nil
}

// fetchPlayURL exchanges a detail page's play id for the media URL.
func (c *Client) fetchPlayURL(ctx context.Context, playID string) (string, error) {
	form := url.Values{}
	form.Set("id", playID)

	body, err := c.postForm(ctx, "/api/play-url", form)
	if err != nil {
		return "", err
	}

	var resp struct {
		Code int `json:"code"`
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: play-url json parse error: %v", ErrUpstream, err)
	}
	return resp.Data.URL, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, "")
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, form.Encode())
}

// do issues one HTTP request against the site, consulting the response
// cache first. A stale cache entry is served only when the live request
// fails.
func (c *Client) do(ctx context.Context, method, path, reqBody string) ([]byte, error) {
	fullURL := c.cfg.BaseURL + path

	var staleBody []byte
	if c.cache != nil {
		if data, stale, ok := c.cache.Get(method, fullURL, reqBody); ok {
			if !stale {
				c.logger.Debug("cache hit", zap.String("url", fullURL))
				return data, nil
			}
			staleBody = data
		}
	}

	var bodyReader io.Reader
	if reqBody != "" {
		bodyReader = strings.NewReader(reqBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	c.setHeaders(req)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if staleBody != nil {
			c.logger.Warn("request failed, serving stale cache",
				zap.String("url", fullURL), zap.Error(err))
			return staleBody, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if staleBody != nil {
			c.logger.Warn("upstream error, serving stale cache",
				zap.String("url", fullURL), zap.Int("status", resp.StatusCode))
			return staleBody, nil
		}
		return nil, fmt.Errorf("%w: status %d from %s", ErrUpstream, resp.StatusCode, fullURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if c.cache != nil {
		if err := c.cache.Set(method, fullURL, reqBody, data); err != nil {
			c.logger.Warn("failed to cache response", zap.String("url", fullURL), zap.Error(err))
		}
	}
	return data, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Referer", c.cfg.BaseURL+"/")
}
