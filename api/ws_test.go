package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestWebsocket(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/agent/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func TestWebsocket_RequestReply(t *testing.T) {
	g, a, teardown := newTestGateway(t)
	defer teardown()

	ts := httptest.NewServer(g.handler)
	defer ts.Close()

	conn := dialTestWebsocket(t, ts)
	defer conn.Close()

	a.HandlePush([]byte(`{"title": "Story baru dari Ana"}`))
	waitForRecordCount(t, a, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`"FLUSH_NOTIFICATIONS"`)); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second * 10))
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		var resp pendingNotificationsMessage
		if err := json.Unmarshal(message, &resp); err != nil {
			t.Fatal(err)
		}
		// Skip any NEW_NOTIFICATION broadcast racing the reply.
		if resp.Type != "PENDING_NOTIFICATIONS" {
			continue
		}
		if len(resp.Notifications) != 1 {
			t.Fatalf("Expected 1 notification, got %d", len(resp.Notifications))
		}
		if resp.Notifications[0].Title != "Story baru dari Ana" {
			t.Errorf("Returned incorrect title: %s", resp.Notifications[0].Title)
		}
		return
	}
}

func TestWebsocket_NewNotificationBroadcast(t *testing.T) {
	g, a, teardown := newTestGateway(t)
	defer teardown()

	ts := httptest.NewServer(g.handler)
	defer ts.Close()

	conn1 := dialTestWebsocket(t, ts)
	defer conn1.Close()
	conn2 := dialTestWebsocket(t, ts)
	defer conn2.Close()

	// Give the hub a moment to register both connections.
	time.Sleep(time.Millisecond * 50)

	a.HandlePush([]byte(`{"title": "Story baru dari Budi"}`))

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(time.Second * 10))
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		var resp struct {
			Type         string `json:"type"`
			Notification struct {
				Title string `json:"title"`
			} `json:"notification"`
		}
		if err := json.Unmarshal(message, &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Type != "NEW_NOTIFICATION" {
			t.Errorf("Returned incorrect type: %s", resp.Type)
		}
		if resp.Notification.Title != "Story baru dari Budi" {
			t.Errorf("Returned incorrect title: %s", resp.Notification.Title)
		}
	}
}

func TestWebsocket_DummyStatusBroadcast(t *testing.T) {
	g, a, teardown := newTestGateway(t)
	defer teardown()

	ts := httptest.NewServer(g.handler)
	defer ts.Close()

	conn := dialTestWebsocket(t, ts)
	defer conn.Close()

	time.Sleep(time.Millisecond * 50)

	if err := a.SetDummyMode(true); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second * 10))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var resp dummyStatusMessage
	if err := json.Unmarshal(message, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Type != "DUMMY_NOTIFICATIONS_STATUS" {
		t.Errorf("Returned incorrect type: %s", resp.Type)
	}
	if !resp.Enabled {
		t.Error("Expected enabled status")
	}
}
