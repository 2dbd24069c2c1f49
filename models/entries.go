package models

import (
	"encoding/json"
	"time"
)

// StoreEntry is a single row of the namespaced key-value record store.
// Each namespace is a flat key to JSON-value mapping.
type StoreEntry struct {
	Namespace string          `gorm:"primary_key"`
	Key       string          `gorm:"primary_key;column:key"`
	Value     json.RawMessage `gorm:"column:value"`
}

// CachedAsset is an HTTP response stored for offline fallback, keyed
// by request URL. CacheName carries the version token used to rotate
// stale caches on startup.
type CachedAsset struct {
	URL       string `gorm:"primary_key"`
	CacheName string
	Class     string
	Status    int
	Header    json.RawMessage
	Body      []byte
	FetchedAt time.Time
}

// Asset cache resource classes.
const (
	AssetClassShell      = "shell"
	AssetClassSameOrigin = "same-origin"
	AssetClassCDN        = "cdn"
)
