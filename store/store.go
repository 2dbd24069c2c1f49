package store

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/CarliMargareta/storyagent/models"
	"github.com/CarliMargareta/storyagent/repo"
	"github.com/jinzhu/gorm"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("STOR")

// Store namespaces. Each namespace is a flat key to JSON-value mapping
// owned exclusively by the agent; windows reach it only through the
// client bridge.
const (
	NamespaceNotifications = "notifications"
	NamespaceData          = "data"
	NamespaceSettings      = "settings"
)

// Well known keys.
const (
	KeyLastSeen  = "lastId"
	KeyAuthToken = "authData"
	KeyDummyMode = "dummyNotifications"
)

// ErrNotFound is returned when a key is absent from its namespace.
var ErrNotFound = errors.New("store: key not found")

// authData is the stored shape of the cached auth token.
type authData struct {
	Token string `json:"token"`
}

// dummySettings is the stored shape of the dummy mode flag.
type dummySettings struct {
	Enabled bool `json:"enabled"`
}

// RecordStore is durable namespaced key-value persistence shared by all
// agent handlers. Writes are committed before the call returns; writes
// to different keys never corrupt each other; concurrent writes to the
// same key are last-write-wins.
type RecordStore struct {
	db repo.Database
}

// NewRecordStore returns a RecordStore backed by the given database.
func NewRecordStore(db repo.Database) *RecordStore {
	return &RecordStore{db: db}
}

// Put marshals value as JSON and saves it under (namespace, key),
// overwriting any previous value.
func (s *RecordStore) Put(namespace, key string, value interface{}) error {
	out, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *gorm.DB) error {
		entry := models.StoreEntry{Namespace: namespace, Key: key, Value: out}
		if err := tx.Where("namespace = ? AND key = ?", namespace, key).Delete(&models.StoreEntry{}).Error; err != nil {
			return err
		}
		return tx.Create(&entry).Error
	})
}

// Get unmarshals the value stored under (namespace, key) into out.
// Returns ErrNotFound if the key is absent.
func (s *RecordStore) Get(namespace, key string, out interface{}) error {
	var entry models.StoreEntry
	err := s.db.View(func(tx *gorm.DB) error {
		return tx.Where("namespace = ? AND key = ?", namespace, key).First(&entry).Error
	})
	if gorm.IsRecordNotFoundError(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(entry.Value, out)
}

// Delete removes the value stored under (namespace, key). Deleting an
// absent key is not an error.
func (s *RecordStore) Delete(namespace, key string) error {
	return s.db.Update(func(tx *gorm.DB) error {
		return tx.Where("namespace = ? AND key = ?", namespace, key).Delete(&models.StoreEntry{}).Error
	})
}

// Keys returns every key in the given namespace.
func (s *RecordStore) Keys(namespace string) ([]string, error) {
	var entries []models.StoreEntry
	err := s.db.View(func(tx *gorm.DB) error {
		return tx.Where("namespace = ?", namespace).Find(&entries).Error
	})
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, entry.Key)
	}
	return keys, nil
}

// PutNotification persists a notification record keyed by its id.
func (s *RecordStore) PutNotification(rec *models.NotificationRecord) error {
	return s.Put(NamespaceNotifications, rec.ID, rec)
}

// Notification returns the record with the given id or ErrNotFound.
func (s *RecordStore) Notification(id string) (*models.NotificationRecord, error) {
	var rec models.NotificationRecord
	if err := s.Get(NamespaceNotifications, id, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Notifications returns every stored record sorted by timestamp
// descending. Records that fail to deserialize are skipped.
func (s *RecordStore) Notifications() ([]*models.NotificationRecord, error) {
	var entries []models.StoreEntry
	err := s.db.View(func(tx *gorm.DB) error {
		return tx.Where("namespace = ?", NamespaceNotifications).Find(&entries).Error
	})
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, err
	}

	records := make([]*models.NotificationRecord, 0, len(entries))
	for _, entry := range entries {
		var rec models.NotificationRecord
		if err := json.Unmarshal(entry.Value, &rec); err != nil {
			log.Warningf("Skipping malformed notification record %s: %s", entry.Key, err)
			continue
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
	return records, nil
}

// MarkRead sets the read flag on the record with the given id. Marking
// an absent id is a no-op and returns false.
func (s *RecordStore) MarkRead(id string) (bool, error) {
	rec, err := s.Notification(id)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	rec.Read = true
	return true, s.PutNotification(rec)
}

// MarkAllRead sets the read flag on every stored record. Each record is
// updated independently so the operation is idempotent and safely
// retryable.
func (s *RecordStore) MarkAllRead() error {
	records, err := s.Notifications()
	if err != nil {
		return err
	}
	for _, rec := range records {
		rec.Read = true
		if err := s.PutNotification(rec); err != nil {
			return err
		}
	}
	return nil
}

// DeleteNotification removes the record with the given id.
func (s *RecordStore) DeleteNotification(id string) error {
	return s.Delete(NamespaceNotifications, id)
}

// ClearNotifications removes every stored record.
func (s *RecordStore) ClearNotifications() error {
	return s.db.Update(func(tx *gorm.DB) error {
		return tx.Where("namespace = ?", NamespaceNotifications).Delete(&models.StoreEntry{}).Error
	})
}

// SetAuthToken caches the bearer token provided by a window.
func (s *RecordStore) SetAuthToken(token string) error {
	return s.Put(NamespaceData, KeyAuthToken, &authData{Token: token})
}

// AuthToken returns the cached bearer token, or an empty string if no
// window has provided one.
func (s *RecordStore) AuthToken() (string, error) {
	var data authData
	err := s.Get(NamespaceData, KeyAuthToken, &data)
	if err == ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return data.Token, nil
}

// ClearAuthToken removes the cached bearer token.
func (s *RecordStore) ClearAuthToken() error {
	return s.Delete(NamespaceData, KeyAuthToken)
}

// SetLastSeen overwrites the last seen story id marker.
func (s *RecordStore) SetLastSeen(storyID string) error {
	return s.Put(NamespaceData, KeyLastSeen, storyID)
}

// LastSeen returns the last seen story id marker, or an empty string if
// no poll has completed yet.
func (s *RecordStore) LastSeen() (string, error) {
	var id string
	err := s.Get(NamespaceData, KeyLastSeen, &id)
	if err == ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// SetDummyMode persists the dummy notification flag.
func (s *RecordStore) SetDummyMode(enabled bool) error {
	return s.Put(NamespaceSettings, KeyDummyMode, &dummySettings{Enabled: enabled})
}

// DummyMode returns the persisted dummy notification flag, defaulting
// to false.
func (s *RecordStore) DummyMode() (bool, error) {
	var settings dummySettings
	err := s.Get(NamespaceSettings, KeyDummyMode, &settings)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return settings.Enabled, nil
}
