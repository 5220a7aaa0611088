// Package catalog talks to the remote plugin catalog: the SVN-hosted
// listing and changelog, and the JSON metadata API. All raw responses go
// through the cache store; retry/backoff is handled by the HTTP client.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/assetgrabber/assetgrabber/internal/cache"
	"github.com/assetgrabber/assetgrabber/internal/common"
	"github.com/assetgrabber/assetgrabber/internal/logging"
)

// Cache keys for whole-catalog snapshots. Per-entry metadata lives under
// metaKeyPrefix.
const (
	listingKey    = "raw-svn-plugin-list"
	slugListKey   = "raw-plugin-list"
	changeLogKey  = "raw-changelog"
	metaKeyPrefix = "plugin-raw-data/"
)

var listingItemRe = regexp.MustCompile(`<li><a href="([^/]+)/">[^/]+/</a></li>`)

// Client implements the catalog-source contract: full listing, per-entry
// metadata, and the incremental changelog.
type Client struct {
	http      *retryablehttp.Client
	cache     cache.Store
	log       logging.Logger
	apiBase   string
	svnURL    string
	ttl       time.Duration
	userAgent string

	run runner
}

// Options configures a Client.
type Options struct {
	APIBaseURL string
	SVNURL     string
	TTL        time.Duration
	// UserAgents are candidate User-Agent strings; one is picked at random
	// per client.
	UserAgents []string
}

// NewClient builds a catalog client over the given raw store.
func NewClient(opts Options, store cache.Store, log logging.Logger) *Client {
	hc := retryablehttp.NewClient()
	hc.Logger = nil
	hc.RetryMax = 3

	ua := ""
	if len(opts.UserAgents) > 0 {
		ua = opts.UserAgents[rand.Intn(len(opts.UserAgents))]
	}

	return &Client{
		http:      hc,
		cache:     store,
		log:       log,
		apiBase:   strings.TrimSuffix(opts.APIBaseURL, "/"),
		svnURL:    strings.TrimSuffix(opts.SVNURL, "/"),
		ttl:       opts.TTL,
		userAgent: ua,
		run:       defaultRunner,
	}
}

func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request %s: %v", common.ErrRemoteQuery, url, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: get %s: %v", common.ErrRemoteQuery, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read %s: %v", common.ErrRemoteQuery, url, err)
	}
	return body, resp.StatusCode, nil
}

// FullListing returns every slug in the catalog, via the cached SVN index
// when it is fresh. It also writes the plain newline-separated slug list
// next to the cached HTML.
func (c *Client) FullListing(ctx context.Context) ([]string, error) {
	var body []byte

	cached, mtime, err := c.cache.Get(listingKey)
	if err == nil && cache.Fresh(mtime, c.ttl) {
		body = cached
	} else {
		body, _, err = c.get(ctx, c.svnURL+"/")
		if err != nil {
			return nil, err
		}
		if err := c.cache.Put(listingKey, body); err != nil {
			return nil, fmt.Errorf("cache listing: %w", err)
		}
	}

	matches := listingItemRe.FindAllStringSubmatch(string(body), -1)
	slugs := make([]string, 0, len(matches))
	for _, m := range matches {
		slugs = append(slugs, m[1])
	}

	if err := c.cache.Put(slugListKey, []byte(strings.Join(slugs, "\n"))); err != nil {
		return nil, fmt.Errorf("cache slug list: %w", err)
	}

	return slugs, nil
}

// EntryMetadata fetches one entry's raw metadata, serving a cached copy
// when it is younger than the TTL. A remote 404 is a valid closed signal:
// its body is cached and parsed like any other response.
func (c *Client) EntryMetadata(ctx context.Context, slug string) (map[string]any, error) {
	key := metaKeyPrefix + slug + ".json"

	if cached, mtime, err := c.cache.Get(key); err == nil && cache.Fresh(mtime, c.ttl) {
		return decodeMetadata(cached)
	}

	body, status, err := c.get(ctx, c.apiBase+"/"+slug+".json")
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		meta, err := decodeMetadata(body)
		if err != nil {
			return nil, err
		}
		pretty, err := json.MarshalIndent(meta, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("encode metadata %s: %w", slug, err)
		}
		if err := c.cache.Put(key, pretty); err != nil {
			return nil, fmt.Errorf("cache metadata %s: %w", slug, err)
		}
		return meta, nil
	case http.StatusNotFound:
		// The API answers 404 with a JSON error body for closed entries.
		if err := c.cache.Put(key, body); err != nil {
			return nil, fmt.Errorf("cache metadata %s: %w", slug, err)
		}
		return decodeMetadata(body)
	default:
		return nil, fmt.Errorf("%w: get metadata %s: status %d", common.ErrRemoteQuery, slug, status)
	}
}

func decodeMetadata(data []byte) (map[string]any, error) {
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %v", common.ErrValidation, err)
	}
	return meta, nil
}

// VersionsFor extracts the version -> download URL pairs from raw metadata.
// Falls back to the singleton (version, download_link) pair when no map is
// present. The trunk pseudo-version is never included.
func VersionsFor(meta map[string]any) map[string]string {
	out := map[string]string{}

	if versions, ok := meta["versions"].(map[string]any); ok {
		for version, url := range versions {
			u, ok := url.(string)
			if !ok {
				continue
			}
			out[version] = u
		}
	} else if version, ok := meta["version"].(string); ok {
		if link, ok := meta["download_link"].(string); ok {
			out[version] = link
		}
	}

	delete(out, "trunk")
	return out
}
