package events

import (
	"github.com/CarliMargareta/storyagent/models"
)

// Notification is emitted whenever any agent component creates a new
// notification. The notifier subscribes to this event and handles
// persisting, displaying, and broadcasting the record.
type Notification struct {
	Record *models.NotificationRecord
}

// DummyModeChanged is emitted when the recurring dummy notification
// timer is enabled or disabled.
type DummyModeChanged struct {
	Enabled bool
}

// PollCompleted is emitted after a fetch-new-stories run finishes,
// whether or not any new stories were found.
type PollCompleted struct {
	NewStories int
}

// PushPermission is emitted when the push subscription status changes.
// Status is one of "granted", "denied", or "error".
type PushPermission struct {
	Status string
}

// NotificationsSwept is emitted after a retention sweep completes.
type NotificationsSwept struct {
	Removed int
}

// NotifierStarted is emitted once the notifier is subscribed and
// processing. Used to sequence startup and tests.
type NotifierStarted struct{}
