package agent

import (
	"encoding/json"

	"github.com/CarliMargareta/storyagent/events"
	"github.com/CarliMargareta/storyagent/models"
)

// Defaults used when a push payload is missing or malformed. Display
// should never be skipped just because the payload failed to parse.
const (
	defaultPushTitle = "Notifikasi Baru"
	defaultPushBody  = "Notifikasi dari StoryApp"
	defaultPushIcon  = "/favicon.png"
)

type pushPayload struct {
	Title   string                      `json:"title"`
	Options *models.NotificationOptions `json:"options"`
}

// HandlePush processes an inbound push message. The payload is an
// optional JSON object {title, options}; anything unparseable falls
// back to the fixed default notification. The resulting record is
// handed to the notifier, which persists, displays, and broadcasts it.
func (a *Agent) HandlePush(payload []byte) {
	a.track(func() {
		var data pushPayload
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &data); err != nil {
				log.Warningf("Could not parse push data: %s", err)
				data = pushPayload{}
			}
		}

		title := data.Title
		if title == "" {
			title = defaultPushTitle
		}
		options := models.NotificationOptions{
			Body: defaultPushBody,
			Icon: defaultPushIcon,
		}
		if data.Options != nil {
			options = *data.Options
		}

		rec := models.NewPushRecord(title, options)
		a.bus.Emit(&events.Notification{Record: rec})
	})
}
