package agent

import (
	"testing"

	"github.com/CarliMargareta/storyagent/models"
)

func TestAgent_HandlePush(t *testing.T) {
	a, teardown := newTestAgent(t)
	defer teardown()

	a.HandlePush([]byte(`{"title": "Story baru dari Ana", "options": {"body": "Halo"}}`))
	waitForRecords(t, a, 1)

	records, err := a.store.Notifications()
	if err != nil {
		t.Fatal(err)
	}
	rec := records[0]
	if rec.Title != "Story baru dari Ana" {
		t.Errorf("Returned incorrect title: %s", rec.Title)
	}
	if rec.Options.Body != "Halo" {
		t.Errorf("Returned incorrect body: %s", rec.Options.Body)
	}
	if rec.Read {
		t.Error("New record should be unread")
	}
	if rec.Kind != models.KindPush {
		t.Errorf("Returned incorrect kind: %s", rec.Kind)
	}
}

func TestAgent_HandlePushEmptyPayload(t *testing.T) {
	a, teardown := newTestAgent(t)
	defer teardown()

	a.HandlePush(nil)
	waitForRecords(t, a, 1)

	records, err := a.store.Notifications()
	if err != nil {
		t.Fatal(err)
	}
	rec := records[0]
	if rec.Title != defaultPushTitle {
		t.Errorf("Returned incorrect title: %s", rec.Title)
	}
	if rec.Options.Body != defaultPushBody {
		t.Errorf("Returned incorrect body: %s", rec.Options.Body)
	}
	if rec.Options.Icon != defaultPushIcon {
		t.Errorf("Returned incorrect icon: %s", rec.Options.Icon)
	}
}

func TestAgent_HandlePushMalformedPayload(t *testing.T) {
	a, teardown := newTestAgent(t)
	defer teardown()

	a.HandlePush([]byte(`{{{not json`))
	waitForRecords(t, a, 1)

	records, err := a.store.Notifications()
	if err != nil {
		t.Fatal(err)
	}
	if records[0].Title != defaultPushTitle {
		t.Errorf("Malformed payload should fall back to the default title, got %s", records[0].Title)
	}
}
