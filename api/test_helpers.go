package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/CarliMargareta/storyagent/agent"
	"github.com/CarliMargareta/storyagent/events"
	"github.com/CarliMargareta/storyagent/repo"
	"github.com/CarliMargareta/storyagent/storyapi"
	"github.com/jarcoal/httpmock"
)

// newTestGateway returns a gateway wired to a running agent backed by
// an in-memory repo and a mocked http client.
func newTestGateway(t *testing.T) (*Gateway, *agent.Agent, func()) {
	r, err := repo.MockRepo()
	if err != nil {
		t.Fatal(err)
	}

	mockedHTTPClient := &http.Client{}
	httpmock.ActivateNonDefault(mockedHTTPClient)

	apiClient := storyapi.NewClient("https://story-api.dicoding.dev/v1", time.Second*10)
	apiClient.SetHTTPClient(mockedHTTPClient)

	bus := events.NewBus()

	var g *Gateway
	a := agent.NewAgent(&agent.Config{
		Repo:             r,
		Bus:              bus,
		APIClient:        apiClient,
		PushEndpoint:     "https://push.example.com/endpoint",
		ReminderInterval: time.Hour,
		DummyInterval:    time.Hour,
		NotifyFunc: func(i interface{}) error {
			if g == nil {
				return nil
			}
			return g.NotifyConnected(i)
		},
	})

	sub, err := bus.Subscribe(&events.NotifierStarted{})
	if err != nil {
		t.Fatal(err)
	}
	a.Start()
	select {
	case <-sub.Out():
	case <-time.After(time.Second * 10):
		t.Fatal("Timed out waiting for notifier to start")
	}
	sub.Close()

	g, err = NewGateway(a, nil, &GatewayConfig{})
	if err != nil {
		t.Fatal(err)
	}

	return g, a, func() {
		a.Stop()
		httpmock.DeactivateAndReset()
	}
}

// waitForRecordCount blocks until the agent's store holds exactly n
// records or the deadline passes.
func waitForRecordCount(t *testing.T, a *agent.Agent, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second * 5)
	for time.Now().Before(deadline) {
		records, err := a.FlushNotifications()
		if err != nil {
			t.Fatal(err)
		}
		if len(records) == n {
			return
		}
		time.Sleep(time.Millisecond * 10)
	}
	records, _ := a.FlushNotifications()
	t.Fatalf("Timed out waiting for %d records, have %d", n, len(records))
}
