package store

import (
	"testing"

	"github.com/CarliMargareta/storyagent/models"
	"github.com/CarliMargareta/storyagent/repo"
)

func mockStore(t *testing.T) *RecordStore {
	db, err := repo.MockDB()
	if err != nil {
		t.Fatal(err)
	}
	return NewRecordStore(db)
}

func TestRecordStore_PutGetDelete(t *testing.T) {
	s := mockStore(t)

	if err := s.Put(NamespaceData, "greeting", "halo"); err != nil {
		t.Fatal(err)
	}

	var out string
	if err := s.Get(NamespaceData, "greeting", &out); err != nil {
		t.Fatal(err)
	}
	if out != "halo" {
		t.Errorf("Returned incorrect value. Expected %s, got %s", "halo", out)
	}

	// Overwrite is last-write-wins.
	if err := s.Put(NamespaceData, "greeting", "hai"); err != nil {
		t.Fatal(err)
	}
	if err := s.Get(NamespaceData, "greeting", &out); err != nil {
		t.Fatal(err)
	}
	if out != "hai" {
		t.Errorf("Returned incorrect value. Expected %s, got %s", "hai", out)
	}

	if err := s.Delete(NamespaceData, "greeting"); err != nil {
		t.Fatal(err)
	}
	if err := s.Get(NamespaceData, "greeting", &out); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	// Deleting an absent key is not an error.
	if err := s.Delete(NamespaceData, "greeting"); err != nil {
		t.Error(err)
	}
}

func TestRecordStore_NamespaceIsolation(t *testing.T) {
	s := mockStore(t)

	if err := s.Put(NamespaceData, "k", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(NamespaceSettings, "k", 2); err != nil {
		t.Fatal(err)
	}

	var a, b int
	if err := s.Get(NamespaceData, "k", &a); err != nil {
		t.Fatal(err)
	}
	if err := s.Get(NamespaceSettings, "k", &b); err != nil {
		t.Fatal(err)
	}
	if a != 1 || b != 2 {
		t.Errorf("Namespaces not isolated: got %d and %d", a, b)
	}

	keys, err := s.Keys(NamespaceData)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "k" {
		t.Errorf("Returned incorrect keys: %v", keys)
	}
}

func TestRecordStore_NotificationRoundTrip(t *testing.T) {
	s := mockStore(t)

	rec := &models.NotificationRecord{
		ID:        "story-abc-1000",
		Title:     "Story baru dari Ana",
		Options:   models.NotificationOptions{Body: "Halo", Icon: "/favicon.png"},
		Timestamp: 1000,
		StoryID:   "abc",
		Kind:      models.KindStory,
	}
	if err := s.PutNotification(rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.Notification("story-abc-1000")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != rec.ID || got.Title != rec.Title || got.Options.Body != rec.Options.Body ||
		got.Timestamp != rec.Timestamp || got.Read != rec.Read {
		t.Errorf("Record did not round trip: %+v", got)
	}
}

func TestRecordStore_NotificationsSortedDescending(t *testing.T) {
	s := mockStore(t)

	for _, rec := range []*models.NotificationRecord{
		{ID: "a", Timestamp: 100},
		{ID: "c", Timestamp: 300},
		{ID: "b", Timestamp: 200},
	} {
		if err := s.PutNotification(rec); err != nil {
			t.Fatal(err)
		}
	}

	records, err := s.Notifications()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	for i, expected := range []string{"c", "b", "a"} {
		if records[i].ID != expected {
			t.Errorf("Record %d has id %s, expected %s", i, records[i].ID, expected)
		}
	}
}

func TestRecordStore_MarkRead(t *testing.T) {
	s := mockStore(t)

	if err := s.PutNotification(&models.NotificationRecord{ID: "n1", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}

	found, err := s.MarkRead("n1")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Error("Expected record to be found")
	}

	rec, err := s.Notification("n1")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Read {
		t.Error("Record was not marked read")
	}

	// Marking a non-existent id is a no-op.
	found, err = s.MarkRead("does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("Expected record to not be found")
	}
}

func TestRecordStore_MarkAllReadIdempotent(t *testing.T) {
	s := mockStore(t)

	for _, id := range []string{"n1", "n2", "n3"} {
		if err := s.PutNotification(&models.NotificationRecord{ID: id, Timestamp: 1}); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.MarkAllRead(); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkAllRead(); err != nil {
		t.Fatal(err)
	}

	records, err := s.Notifications()
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range records {
		if !rec.Read {
			t.Errorf("Record %s was not marked read", rec.ID)
		}
	}
}

func TestRecordStore_ClearNotifications(t *testing.T) {
	s := mockStore(t)

	for _, id := range []string{"n1", "n2"} {
		if err := s.PutNotification(&models.NotificationRecord{ID: id, Timestamp: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SetLastSeen("abc"); err != nil {
		t.Fatal(err)
	}

	if err := s.ClearNotifications(); err != nil {
		t.Fatal(err)
	}

	records, err := s.Notifications()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("Expected 0 records, got %d", len(records))
	}

	// Other namespaces are untouched.
	lastSeen, err := s.LastSeen()
	if err != nil {
		t.Fatal(err)
	}
	if lastSeen != "abc" {
		t.Errorf("LastSeen marker was clobbered: %s", lastSeen)
	}
}

func TestRecordStore_AuthTokenAndMarkers(t *testing.T) {
	s := mockStore(t)

	token, err := s.AuthToken()
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		t.Errorf("Expected empty token, got %s", token)
	}

	if err := s.SetAuthToken("bearer-token"); err != nil {
		t.Fatal(err)
	}
	token, err = s.AuthToken()
	if err != nil {
		t.Fatal(err)
	}
	if token != "bearer-token" {
		t.Errorf("Returned incorrect token: %s", token)
	}

	if err := s.ClearAuthToken(); err != nil {
		t.Fatal(err)
	}
	token, err = s.AuthToken()
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		t.Errorf("Expected empty token after clear, got %s", token)
	}

	enabled, err := s.DummyMode()
	if err != nil {
		t.Fatal(err)
	}
	if enabled {
		t.Error("Dummy mode should default to false")
	}
	if err := s.SetDummyMode(true); err != nil {
		t.Fatal(err)
	}
	enabled, err = s.DummyMode()
	if err != nil {
		t.Fatal(err)
	}
	if !enabled {
		t.Error("Dummy mode flag was not persisted")
	}
}
