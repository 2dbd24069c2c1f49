package api

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"

	"github.com/CarliMargareta/storyagent/models"
	"github.com/CarliMargareta/storyagent/version"
	"github.com/gorilla/mux"
)

// handlePOSTPush is the webhook push providers deliver to. The body is
// the raw push payload; a missing or malformed body still raises the
// default notification.
func (g *Gateway) handlePOSTPush(w http.ResponseWriter, r *http.Request) {
	payload, err := ioutil.ReadAll(r.Body)
	if err != nil {
		http.Error(w, wrapError(err), http.StatusBadRequest)
		return
	}
	g.agent.HandlePush(payload)
	sanitizedJSONResponse(w, struct{}{})
}

func (g *Gateway) handleGETNotifications(w http.ResponseWriter, r *http.Request) {
	records, err := g.agent.FlushNotifications()
	if err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*models.NotificationRecord{}
	}
	sanitizedJSONResponse(w, records)
}

func (g *Gateway) handleDELETENotifications(w http.ResponseWriter, r *http.Request) {
	if err := g.agent.ClearAll(); err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	sanitizedJSONResponse(w, struct{}{})
}

func (g *Gateway) handleDELETENotification(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["notificationID"]
	if err := g.agent.DeleteNotification(id); err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	sanitizedJSONResponse(w, struct{}{})
}

func (g *Gateway) handlePOSTMarkAsRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["notificationID"]
	if err := g.agent.MarkRead(id); err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	sanitizedJSONResponse(w, struct{}{})
}

func (g *Gateway) handlePOSTMarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	if err := g.agent.MarkAllRead(); err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	sanitizedJSONResponse(w, struct{}{})
}

func (g *Gateway) handlePOSTToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, wrapError(err), http.StatusBadRequest)
		return
	}
	if body.Token == "" {
		http.Error(w, wrapError(errors.New("token must not be empty")), http.StatusBadRequest)
		return
	}
	if err := g.agent.SetAuthToken(body.Token); err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	sanitizedJSONResponse(w, struct{}{})
}

func (g *Gateway) handlePOSTCheckStories(w http.ResponseWriter, r *http.Request) {
	if err := g.agent.CheckForNewStories(); err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	sanitizedJSONResponse(w, typeOnlyMessage{Type: "STORIES_CHECK_COMPLETE"})
}

func (g *Gateway) handlePOSTDummyMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, wrapError(err), http.StatusBadRequest)
		return
	}
	if err := g.agent.SetDummyMode(body.Enabled); err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	sanitizedJSONResponse(w, struct{}{})
}

func (g *Gateway) handleGETDummyMode(w http.ResponseWriter, r *http.Request) {
	enabled, err := g.agent.DummyMode()
	if err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	sanitizedJSONResponse(w, dummyStatusMessage{Type: "DUMMY_NOTIFICATIONS_STATUS", Enabled: enabled})
}

func (g *Gateway) handlePOSTSubscription(w http.ResponseWriter, r *http.Request) {
	status := g.agent.Subscriptions().Subscribe()
	sanitizedJSONResponse(w, struct {
		Status string `json:"status"`
	}{Status: string(status)})
}

func (g *Gateway) handleDELETESubscription(w http.ResponseWriter, r *http.Request) {
	if err := g.agent.Subscriptions().Unsubscribe(); err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	sanitizedJSONResponse(w, struct{}{})
}

type agentStatus struct {
	UserAgent  string `json:"userAgent"`
	DummyMode  bool   `json:"dummyMode"`
	Unread     int    `json:"unread"`
	Total      int    `json:"total"`
	HasToken   bool   `json:"hasToken"`
	Subscribed bool   `json:"subscribed"`
}

func (g *Gateway) handleGETStatus(w http.ResponseWriter, r *http.Request) {
	records, err := g.agent.FlushNotifications()
	if err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	unread := 0
	for _, rec := range records {
		if !rec.Read {
			unread++
		}
	}
	token, err := g.agent.AuthToken()
	if err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	enabled, err := g.agent.DummyMode()
	if err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	sanitizedJSONResponse(w, agentStatus{
		UserAgent:  version.UserAgent(),
		DummyMode:  enabled,
		Unread:     unread,
		Total:      len(records),
		HasToken:   token != "",
		Subscribed: g.agent.Subscriptions().Current() != nil,
	})
}
