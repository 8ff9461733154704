// Package registry fetches crate version listings from a sparse registry
// index such as the one crates.io serves.
package registry

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/adrg/xdg"
)

// Client configuration defaults.
const (
	DefaultIndexURL = "https://index.crates.io"

	DefaultMaxIdleConns        = 50
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultRequestTimeout      = 15 * time.Second
)

var (
	// ErrCrateNotFound indicates the index has no entry for the crate.
	ErrCrateNotFound = errors.New("crate not found in registry")

	// ErrOffline indicates the crate is not in the local cache and the
	// client is not allowed to reach the network.
	ErrOffline = errors.New("crate not cached and network use is disabled")
)

// Source lists the published versions of a crate, ascending. Yanked
// releases are excluded.
type Source interface {
	Versions(ctx context.Context, name string) ([]*semver.Version, error)
}

// Client fetches crate listings from a sparse index over HTTP, with an
// in-process cache and a persistent disk cache that serves offline runs.
type Client struct {
	baseURL  string
	client   *http.Client
	cacheDir string
	offline  bool
	logger   *slog.Logger

	versionCache sync.Map // map[string][]*semver.Version keyed by crate name
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets a custom HTTP request timeout.
// Zero or negative values fall back to the default timeout (15 seconds).
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		} else {
			c.client.Timeout = DefaultRequestTimeout
		}
	}
}

// WithOffline restricts the client to its disk cache.
func WithOffline(offline bool) ClientOption {
	return func(c *Client) {
		c.offline = offline
	}
}

// WithCacheDir overrides the disk cache location. An empty dir disables the
// disk cache.
func WithCacheDir(dir string) ClientOption {
	return func(c *Client) {
		c.cacheDir = dir
	}
}

// WithLogger sets the client's logger. A nil logger keeps the client silent.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the given index URL. An empty URL selects
// the crates.io sparse index.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultIndexURL
	}
	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		DisableCompression:  false,
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   DefaultRequestTimeout,
			Transport: transport,
		},
		cacheDir: filepath.Join(xdg.CacheHome, "cargo-edit", "index"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the index base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Versions returns the crate's published versions, ascending and without
// yanked releases. Results are cached by crate name for the lifetime of the
// client and mirrored to the disk cache for offline runs.
func (c *Client) Versions(ctx context.Context, name string) ([]*semver.Version, error) {
	if cached, ok := c.versionCache.Load(name); ok {
		return cached.([]*semver.Version), nil
	}

	data, err := c.indexEntry(ctx, name)
	if err != nil {
		return nil, err
	}
	versions, err := parseIndexEntry(name, data)
	if err != nil {
		return nil, err
	}

	c.versionCache.Store(name, versions)
	return versions, nil
}

// ClearCache removes all in-process cached listings.
func (c *Client) ClearCache() {
	c.versionCache = sync.Map{}
}

func (c *Client) indexEntry(ctx context.Context, name string) ([]byte, error) {
	rel := indexPath(name)
	if c.offline {
		data, err := c.readCache(rel)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrOffline, name)
		}
		return data, nil
	}

	data, err := c.fetch(ctx, c.baseURL+"/"+rel)
	if err != nil {
		// A stale cached listing beats no listing at all.
		if cached, cerr := c.readCache(rel); cerr == nil {
			if c.logger != nil {
				c.logger.Warn("registry unreachable, using cached index entry",
					"crate", name, "error", err)
			}
			return cached, nil
		}
		return nil, err
	}
	c.writeCache(rel, data)
	return data, nil
}

// fetch performs an HTTP GET and returns the response body.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("%w: %s", ErrCrateNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, url)
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) readCache(rel string) ([]byte, error) {
	if c.cacheDir == "" {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(filepath.Join(c.cacheDir, filepath.FromSlash(rel)))
}

func (c *Client) writeCache(rel string, data []byte) {
	if c.cacheDir == "" {
		return
	}
	path := filepath.Join(c.cacheDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil && c.logger != nil {
		c.logger.Warn("failed to write index cache", "path", path, "error", err)
	}
}

// indexPath returns the sharded index path for a crate name: one directory
// for one-character names, another for two, "3/<first letter>" for three,
// and two-character shards for everything longer.
func indexPath(name string) string {
	name = strings.ToLower(name)
	switch len(name) {
	case 0:
		return name
	case 1:
		return "1/" + name
	case 2:
		return "2/" + name
	case 3:
		return "3/" + name[:1] + "/" + name
	default:
		return name[:2] + "/" + name[2:4] + "/" + name
	}
}

type indexRelease struct {
	Vers   string `json:"vers"`
	Yanked bool   `json:"yanked"`
}

// parseIndexEntry decodes the JSON-lines index file for one crate.
func parseIndexEntry(name string, data []byte) ([]*semver.Version, error) {
	var versions semver.Collection
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rel indexRelease
		if err := json.Unmarshal(line, &rel); err != nil {
			return nil, fmt.Errorf("failed to parse index entry for %s: %w", name, err)
		}
		if rel.Yanked {
			continue
		}
		v, err := semver.StrictNewVersion(rel.Vers)
		if err != nil {
			return nil, fmt.Errorf("invalid version %q for %s: %w", rel.Vers, name, err)
		}
		versions = append(versions, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s has no unyanked versions", ErrCrateNotFound, name)
	}
	sort.Sort(versions)
	return versions, nil
}
