package api

import (
	"encoding/json"

	"github.com/CarliMargareta/storyagent/models"
)

// bridgeMessage is the inbound frame shape sent by windows. Frames are
// either a bare JSON string (for the argument-less requests) or an
// object carrying a type tag, or for the dummy toggle a command tag.
type bridgeMessage struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Token   string `json:"token"`
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

type tokenResponseMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type pendingNotificationsMessage struct {
	Type          string                       `json:"type"`
	Notifications []*models.NotificationRecord `json:"notifications"`
}

type notificationIDMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type typeOnlyMessage struct {
	Type string `json:"type"`
}

type dummyStatusMessage struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

type pushPermissionMessage struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// dispatchBridgeMessage routes one inbound websocket frame to the agent
// and returns the reply to send back to the originating window, or nil
// when the message warrants no direct reply. Unknown tags are logged
// and dropped so a newer window can talk to an older agent.
func (g *Gateway) dispatchBridgeMessage(raw []byte) []byte {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return g.dispatchStringMessage(str)
	}

	var msg bridgeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warningf("Dropping unparseable bridge message: %s", err)
		return nil
	}

	if msg.Command == "SET_DUMMY_NOTIFICATIONS" {
		if err := g.agent.SetDummyMode(msg.Enabled); err != nil {
			log.Errorf("Error setting dummy mode: %s", err)
		}
		return nil
	}

	switch msg.Type {
	// The argument-less requests are normally sent as bare strings but
	// some windows wrap them in a typed object. Accept both.
	case "FLUSH_NOTIFICATIONS", "GET_DUMMY_NOTIFICATIONS_STATUS":
		return g.dispatchStringMessage(msg.Type)

	case "AUTH_TOKEN", "TOKEN_RESPONSE":
		if msg.Token == "" {
			return nil
		}
		if err := g.agent.SetAuthToken(msg.Token); err != nil {
			log.Errorf("Error storing auth token: %s", err)
		}
		return nil

	case "GET_AUTH_TOKEN":
		token, err := g.agent.AuthToken()
		if err != nil {
			log.Errorf("Error reading auth token: %s", err)
			return nil
		}
		return g.bridgeReply(tokenResponseMessage{Type: "TOKEN_RESPONSE", Token: token})

	case "MANUAL_CHECK_NEW_STORIES":
		if err := g.agent.CheckForNewStories(); err != nil {
			log.Errorf("Error checking for new stories: %s", err)
		}
		return g.bridgeReply(typeOnlyMessage{Type: "STORIES_CHECK_COMPLETE"})

	case "DELETE_NOTIFICATION":
		if msg.ID == "" {
			return nil
		}
		if err := g.agent.DeleteNotification(msg.ID); err != nil {
			log.Errorf("Error deleting notification: %s", err)
			return nil
		}
		return g.bridgeReply(notificationIDMessage{Type: "NOTIFICATION_DELETED", ID: msg.ID})

	case "MARK_AS_READ":
		if msg.ID == "" {
			return nil
		}
		if err := g.agent.MarkRead(msg.ID); err != nil {
			log.Errorf("Error marking notification as read: %s", err)
			return nil
		}
		return g.bridgeReply(notificationIDMessage{Type: "NOTIFICATION_MARKED_READ", ID: msg.ID})

	case "MARK_ALL_AS_READ":
		if err := g.agent.MarkAllRead(); err != nil {
			log.Errorf("Error marking notifications as read: %s", err)
			return nil
		}
		return g.bridgeReply(typeOnlyMessage{Type: "NOTIFICATIONS_MARKED_READ"})

	case "CLEAR_ALL_NOTIFICATIONS":
		if err := g.agent.ClearAll(); err != nil {
			log.Errorf("Error clearing notifications: %s", err)
			return nil
		}
		return g.bridgeReply(typeOnlyMessage{Type: "NOTIFICATIONS_CLEARED"})
	}

	log.Debugf("Dropping bridge message with unknown tag %q", msg.Type)
	return nil
}

func (g *Gateway) dispatchStringMessage(str string) []byte {
	switch str {
	case "FLUSH_NOTIFICATIONS":
		records, err := g.agent.FlushNotifications()
		if err != nil {
			log.Errorf("Error flushing notifications: %s", err)
			return nil
		}
		if records == nil {
			records = []*models.NotificationRecord{}
		}
		return g.bridgeReply(pendingNotificationsMessage{Type: "PENDING_NOTIFICATIONS", Notifications: records})

	case "GET_DUMMY_NOTIFICATIONS_STATUS":
		enabled, err := g.agent.DummyMode()
		if err != nil {
			log.Errorf("Error reading dummy mode: %s", err)
			return nil
		}
		return g.bridgeReply(dummyStatusMessage{Type: "DUMMY_NOTIFICATIONS_STATUS", Enabled: enabled})
	}

	log.Debugf("Dropping bridge message with unknown tag %q", str)
	return nil
}

func (g *Gateway) bridgeReply(i interface{}) []byte {
	out, err := marshalAndSanitizeJSON(i)
	if err != nil {
		log.Errorf("Error marshaling bridge reply: %s", err)
		return nil
	}
	return out
}
