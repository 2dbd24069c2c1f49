package cache

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/CarliMargareta/storyagent/models"
	"github.com/CarliMargareta/storyagent/repo"
	"github.com/jarcoal/httpmock"
	"github.com/jinzhu/gorm"
)

const testOrigin = "https://storyapp.example.com"

func newTestCache(t *testing.T) (*AssetCache, repo.Database, func()) {
	db, err := repo.MockDB()
	if err != nil {
		t.Fatal(err)
	}

	mockedHTTPClient := &http.Client{}
	httpmock.ActivateNonDefault(mockedHTTPClient)

	a := NewAssetCache(&Config{
		DB:            db,
		Version:       "v2",
		Origin:        testOrigin,
		CDNHosts:      map[string]bool{"unpkg.com": true},
		CDNMaxEntries: 2,
		CDNMaxAge:     time.Hour,
		FetchTimeout:  time.Second * 8,
	})
	a.SetHTTPClient(mockedHTTPClient)

	return a, db, func() {
		httpmock.DeactivateAndReset()
		db.Close()
	}
}

func TestAssetCache_PrecacheSkipsFailures(t *testing.T) {
	a, _, teardown := newTestCache(t)
	defer teardown()

	httpmock.RegisterResponder(http.MethodGet, testOrigin+"/app.css",
		httpmock.NewStringResponder(http.StatusOK, "body{}"))
	httpmock.RegisterResponder(http.MethodGet, testOrigin+"/missing.js",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	cached := a.Precache([]string{"/app.css", "/missing.js"})
	if cached != 1 {
		t.Errorf("Expected 1 cached asset, got %d", cached)
	}

	result, err := a.get(testOrigin + "/app.css")
	if err != nil {
		t.Fatal(err)
	}
	if string(result.Body) != "body{}" {
		t.Errorf("Returned incorrect body: %s", result.Body)
	}
}

func TestAssetCache_NetworkFirstFallsBackToCache(t *testing.T) {
	a, _, teardown := newTestCache(t)
	defer teardown()

	httpmock.RegisterResponder(http.MethodGet, testOrigin+"/data.json",
		httpmock.NewStringResponder(http.StatusOK, "fresh"))

	result, err := a.Fetch(http.MethodGet, "/data.json", false)
	if err != nil {
		t.Fatal(err)
	}
	if result.FromCache {
		t.Error("Live response should not be marked as cached")
	}
	if string(result.Body) != "fresh" {
		t.Errorf("Returned incorrect body: %s", result.Body)
	}

	// Take the network down. The cached copy should be served.
	httpmock.RegisterResponder(http.MethodGet, testOrigin+"/data.json",
		httpmock.NewErrorResponder(errors.New("network down")))

	result, err = a.Fetch(http.MethodGet, "/data.json", false)
	if err != nil {
		t.Fatal(err)
	}
	if !result.FromCache {
		t.Error("Expected cached response")
	}
	if string(result.Body) != "fresh" {
		t.Errorf("Returned incorrect body: %s", result.Body)
	}
}

func TestAssetCache_NavigationFallsBackToShell(t *testing.T) {
	a, _, teardown := newTestCache(t)
	defer teardown()

	httpmock.RegisterResponder(http.MethodGet, testOrigin+"/index.html",
		httpmock.NewStringResponder(http.StatusOK, "<html>shell</html>"))
	a.Precache([]string{"/index.html"})

	httpmock.RegisterResponder(http.MethodGet, testOrigin+"/page/about",
		httpmock.NewErrorResponder(errors.New("network down")))

	result, err := a.Fetch(http.MethodGet, "/page/about", true)
	if err != nil {
		t.Fatal(err)
	}
	if !result.FromCache {
		t.Error("Expected cached response")
	}
	if string(result.Body) != "<html>shell</html>" {
		t.Errorf("Returned incorrect body: %s", result.Body)
	}
}

func TestAssetCache_OfflineResponse(t *testing.T) {
	a, _, teardown := newTestCache(t)
	defer teardown()

	httpmock.RegisterResponder(http.MethodGet, testOrigin+"/uncached.png",
		httpmock.NewErrorResponder(errors.New("network down")))

	result, err := a.Fetch(http.MethodGet, "/uncached.png", false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != http.StatusServiceUnavailable {
		t.Errorf("Returned incorrect status: %d", result.Status)
	}
	if string(result.Body) != "Offline" {
		t.Errorf("Returned incorrect body: %s", result.Body)
	}
}

func TestAssetCache_CDNCacheFirst(t *testing.T) {
	a, _, teardown := newTestCache(t)
	defer teardown()

	tileURL := "https://unpkg.com/leaflet/dist/leaflet.css"
	httpmock.RegisterResponder(http.MethodGet, tileURL,
		httpmock.NewStringResponder(http.StatusOK, ".leaflet{}"))

	result, err := a.Fetch(http.MethodGet, tileURL, false)
	if err != nil {
		t.Fatal(err)
	}
	if result.FromCache {
		t.Error("First fetch should hit the network")
	}

	result, err = a.Fetch(http.MethodGet, tileURL, false)
	if err != nil {
		t.Fatal(err)
	}
	if !result.FromCache {
		t.Error("Second fetch should be served from cache")
	}
	if httpmock.GetTotalCallCount() != 1 {
		t.Errorf("Expected 1 network call, got %d", httpmock.GetTotalCallCount())
	}
}

func TestAssetCache_CDNEviction(t *testing.T) {
	a, db, teardown := newTestCache(t)
	defer teardown()

	urls := []string{
		"https://unpkg.com/a.js",
		"https://unpkg.com/b.js",
		"https://unpkg.com/c.js",
	}
	for _, u := range urls {
		httpmock.RegisterResponder(http.MethodGet, u,
			httpmock.NewStringResponder(http.StatusOK, "js"))
		if _, err := a.Fetch(http.MethodGet, u, false); err != nil {
			t.Fatal(err)
		}
		// Space out fetched_at so eviction order is deterministic.
		time.Sleep(time.Millisecond * 5)
	}

	var count int
	err := db.View(func(tx *gorm.DB) error {
		return tx.Model(&models.CachedAsset{}).Where("class = ?", models.AssetClassCDN).Count(&count).Error
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("Expected 2 CDN entries after eviction, got %d", count)
	}

	// The oldest entry is the evicted one.
	if _, err := a.get(urls[0]); err != ErrNotCached {
		t.Errorf("Expected oldest entry to be evicted, got %s", err)
	}
	if _, err := a.get(urls[2]); err != nil {
		t.Errorf("Newest entry should remain cached: %s", err)
	}
}

func TestAssetCache_RotateVersions(t *testing.T) {
	a, db, teardown := newTestCache(t)
	defer teardown()

	stale := &models.CachedAsset{
		URL:       testOrigin + "/old.css",
		CacheName: "storyapp-cache-v1",
		Class:     models.AssetClassShell,
		Status:    http.StatusOK,
		Body:      []byte("old"),
		FetchedAt: time.Now(),
	}
	err := db.Update(func(tx *gorm.DB) error {
		return tx.Create(stale).Error
	})
	if err != nil {
		t.Fatal(err)
	}

	httpmock.RegisterResponder(http.MethodGet, testOrigin+"/app.css",
		httpmock.NewStringResponder(http.StatusOK, "body{}"))
	a.Precache([]string{"/app.css"})

	removed, err := a.RotateVersions()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed entry, got %d", removed)
	}
	if _, err := a.get(testOrigin + "/old.css"); err != ErrNotCached {
		t.Error("Stale entry should have been removed")
	}
	if _, err := a.get(testOrigin + "/app.css"); err != nil {
		t.Errorf("Current entry should remain cached: %s", err)
	}
}
