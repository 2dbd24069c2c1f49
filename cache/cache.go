package cache

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CarliMargareta/storyagent/models"
	"github.com/CarliMargareta/storyagent/repo"
	"github.com/jinzhu/gorm"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("CACH")

// ErrNotCached is returned when a lookup misses the cache.
var ErrNotCached = errors.New("asset not cached")

// Config holds the options needed to construct an AssetCache.
type Config struct {
	DB            repo.Database
	Version       string
	Origin        string
	CDNHosts      map[string]bool
	CDNMaxEntries int
	CDNMaxAge     time.Duration
	FetchTimeout  time.Duration
}

// Result is the outcome of a Fetch: either a live network response or
// a cached one.
type Result struct {
	Status    int
	Header    http.Header
	Body      []byte
	FromCache bool
}

// AssetCache stores HTTP responses for offline fallback. GET requests
// for same-origin assets are served network-first, opportunistically
// refreshing the cache; allow-listed CDN assets are served cache-first
// bounded by a max entry count and age; everything else passes through
// untouched. On total network failure a navigation request falls back
// to the cached shell entry point and any other request gets a
// synthetic offline response.
type AssetCache struct {
	db            repo.Database
	client        *http.Client
	cacheName     string
	origin        string
	cdnHosts      map[string]bool
	cdnMaxEntries int
	cdnMaxAge     time.Duration
}

// NewAssetCache returns a cache using the given version token as its
// cache name.
func NewAssetCache(cfg *Config) *AssetCache {
	return &AssetCache{
		db:            cfg.DB,
		client:        &http.Client{Timeout: cfg.FetchTimeout},
		cacheName:     "storyapp-cache-" + cfg.Version,
		origin:        strings.TrimSuffix(cfg.Origin, "/"),
		cdnHosts:      cfg.CDNHosts,
		cdnMaxEntries: cfg.CDNMaxEntries,
		cdnMaxAge:     cfg.CDNMaxAge,
	}
}

// SetHTTPClient swaps the underlying http client. Used by tests to
// install a mocked transport.
func (a *AssetCache) SetHTTPClient(client *http.Client) {
	a.client = client
}

// CacheName returns the versioned cache name.
func (a *AssetCache) CacheName() string {
	return a.cacheName
}

// RotateVersions deletes every entry written under a different cache
// name, bounding storage growth across deployments. It returns the
// number of entries removed.
func (a *AssetCache) RotateVersions() (int, error) {
	var removed int
	err := a.db.Update(func(tx *gorm.DB) error {
		q := tx.Where("cache_name <> ?", a.cacheName).Delete(&models.CachedAsset{})
		removed = int(q.RowsAffected)
		return q.Error
	})
	if removed > 0 {
		log.Infof("Rotated asset cache: removed %d stale entries", removed)
	}
	return removed, err
}

// Precache fetches and stores each shell asset. Failures are skipped so
// one bad asset does not abort caching of the rest. It returns the
// number of assets cached.
func (a *AssetCache) Precache(urls []string) int {
	cached := 0
	for _, u := range urls {
		resolved := a.resolve(u)
		resp, err := a.client.Get(resolved)
		if err != nil {
			log.Warningf("Skip asset %s: %s", u, err)
			continue
		}
		body, err := ioutil.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
			log.Warningf("Skip asset %s: status %d", u, resp.StatusCode)
			continue
		}
		if err := a.put(resolved, models.AssetClassShell, resp.StatusCode, resp.Header, body); err != nil {
			log.Warningf("Skip asset %s: %s", u, err)
			continue
		}
		cached++
	}
	log.Infof("Precached %d of %d shell assets", cached, len(urls))
	return cached
}

// Fetch serves one request through the cache policy. Non-GET requests
// always pass through to the network unmodified and are never cached.
func (a *AssetCache) Fetch(method, rawurl string, navigation bool) (*Result, error) {
	resolved := a.resolve(rawurl)

	if method != http.MethodGet {
		return a.passthrough(method, resolved)
	}

	if u, err := url.Parse(resolved); err == nil && a.cdnHosts[u.Host] {
		return a.fetchCDN(resolved)
	}
	return a.fetchNetworkFirst(resolved, navigation)
}

func (a *AssetCache) passthrough(method, rawurl string) (*Result, error) {
	req, err := http.NewRequest(method, rawurl, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Result{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (a *AssetCache) fetchNetworkFirst(rawurl string, navigation bool) (*Result, error) {
	resp, err := a.client.Get(rawurl)
	if err == nil {
		defer resp.Body.Close()
		body, rerr := ioutil.ReadAll(resp.Body)
		if rerr == nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 && strings.HasPrefix(rawurl, a.origin) {
				if perr := a.put(rawurl, models.AssetClassSameOrigin, resp.StatusCode, resp.Header, body); perr != nil {
					log.Warningf("Error caching %s: %s", rawurl, perr)
				}
			}
			return &Result{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
		}
		err = rerr
	}

	cached, cerr := a.get(rawurl)
	if cerr == nil {
		return cached, nil
	}
	if navigation {
		if shell, serr := a.get(a.resolve("/index.html")); serr == nil {
			return shell, nil
		}
		if shell, serr := a.get(a.resolve("/")); serr == nil {
			return shell, nil
		}
	}
	log.Debugf("Offline with no cache hit for %s: %s", rawurl, err)
	return offlineResult(), nil
}

// fetchCDN is cache-first bounded by entry count and age: a fresh
// cached copy is served without touching the network, anything else is
// refetched, and a stale copy is still better than nothing when the
// network is down.
func (a *AssetCache) fetchCDN(rawurl string) (*Result, error) {
	cached, entry, err := a.getEntry(rawurl)
	if err == nil && time.Since(entry.FetchedAt) < a.cdnMaxAge {
		return cached, nil
	}

	resp, ferr := a.client.Get(rawurl)
	if ferr == nil {
		defer resp.Body.Close()
		body, rerr := ioutil.ReadAll(resp.Body)
		if rerr == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if perr := a.put(rawurl, models.AssetClassCDN, resp.StatusCode, resp.Header, body); perr != nil {
				log.Warningf("Error caching %s: %s", rawurl, perr)
			}
			a.enforceCDNLimit()
			return &Result{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
		}
	}

	if err == nil {
		return cached, nil
	}
	return offlineResult(), nil
}

// enforceCDNLimit evicts the oldest CDN entries past the max count.
func (a *AssetCache) enforceCDNLimit() {
	err := a.db.Update(func(tx *gorm.DB) error {
		var entries []models.CachedAsset
		if err := tx.Where("class = ?", models.AssetClassCDN).Order("fetched_at desc").Find(&entries).Error; err != nil {
			return err
		}
		for i := a.cdnMaxEntries; i < len(entries); i++ {
			if err := tx.Where("url = ?", entries[i].URL).Delete(&models.CachedAsset{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Errorf("Error evicting CDN cache entries: %s", err)
	}
}

func (a *AssetCache) put(rawurl, class string, status int, header http.Header, body []byte) error {
	rawHeader, err := json.Marshal(header)
	if err != nil {
		return err
	}
	entry := &models.CachedAsset{
		URL:       rawurl,
		CacheName: a.cacheName,
		Class:     class,
		Status:    status,
		Header:    rawHeader,
		Body:      body,
		FetchedAt: time.Now(),
	}
	return a.db.Update(func(tx *gorm.DB) error {
		if err := tx.Where("url = ?", rawurl).Delete(&models.CachedAsset{}).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
}

func (a *AssetCache) get(rawurl string) (*Result, error) {
	result, _, err := a.getEntry(rawurl)
	return result, err
}

func (a *AssetCache) getEntry(rawurl string) (*Result, *models.CachedAsset, error) {
	var entry models.CachedAsset
	err := a.db.View(func(tx *gorm.DB) error {
		return tx.Where("url = ?", rawurl).First(&entry).Error
	})
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil, ErrNotCached
	}
	if err != nil {
		return nil, nil, err
	}

	header := http.Header{}
	if len(entry.Header) > 0 {
		if err := json.Unmarshal(entry.Header, &header); err != nil {
			log.Warningf("Corrupt cached header for %s: %s", rawurl, err)
			header = http.Header{}
		}
	}
	return &Result{
		Status:    entry.Status,
		Header:    header,
		Body:      entry.Body,
		FromCache: true,
	}, &entry, nil
}

func (a *AssetCache) resolve(rawurl string) string {
	if strings.HasPrefix(rawurl, "/") {
		return a.origin + rawurl
	}
	return rawurl
}

func offlineResult() *Result {
	return &Result{
		Status:    http.StatusServiceUnavailable,
		Header:    http.Header{"Content-Type": []string{"text/plain"}},
		Body:      []byte("Offline"),
		FromCache: true,
	}
}
