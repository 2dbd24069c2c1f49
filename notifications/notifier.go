package notifications

import (
	"github.com/CarliMargareta/storyagent/events"
	"github.com/CarliMargareta/storyagent/models"
	"github.com/CarliMargareta/storyagent/store"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("NOTF")

// newNotificationWrapper is the wire shape broadcast to every connected
// window when a notification is created.
type newNotificationWrapper struct {
	Type         string                     `json:"type"`
	Notification *models.NotificationRecord `json:"notification"`
}

// DisplayFunc invokes the platform's notification display primitive.
type DisplayFunc func(title string, options models.NotificationOptions) error

// NotifyFunc sends a payload to all connected windows.
type NotifyFunc func(interface{}) error

// Notifier handles newly created notifications. For each one it
// persists the record, displays it, and broadcasts it to connected
// windows. The three steps are independent: a failure in any one is
// logged and does not block the others.
type Notifier struct {
	bus         events.Bus
	store       *store.RecordStore
	displayFunc DisplayFunc
	notifyFunc  NotifyFunc
	shutdown    chan struct{}
}

// NewNotifier returns a new notifier.
func NewNotifier(bus events.Bus, rs *store.RecordStore, displayFunc DisplayFunc, notifyFunc NotifyFunc) *Notifier {
	return &Notifier{
		bus:         bus,
		store:       rs,
		displayFunc: displayFunc,
		notifyFunc:  notifyFunc,
		shutdown:    make(chan struct{}),
	}
}

// Start will start up the notifier. This should use its own goroutine.
func (n *Notifier) Start() {
	sub, err := n.bus.Subscribe(&events.Notification{})
	if err != nil {
		log.Errorf("Error subscribing to events: %s", err)
	}

	n.bus.Emit(&events.NotifierStarted{})

	for {
		select {
		case event := <-sub.Out():
			notif, ok := event.(*events.Notification)
			if !ok || notif.Record == nil {
				log.Error("Notifier received invalid event")
				continue
			}
			n.handle(notif.Record)
		case <-n.shutdown:
			sub.Close()
			return
		}
	}
}

// Stop shuts down the notifier.
func (n *Notifier) Stop() {
	close(n.shutdown)
}

func (n *Notifier) handle(rec *models.NotificationRecord) {
	if err := n.store.PutNotification(rec); err != nil {
		log.Errorf("Error saving notification to the database: %s", err)
	}

	if n.displayFunc != nil {
		if err := n.displayFunc(rec.Title, rec.Options); err != nil {
			log.Errorf("Error displaying notification: %s", err)
		}
	}

	if n.notifyFunc != nil {
		if err := n.notifyFunc(newNotificationWrapper{Type: "NEW_NOTIFICATION", Notification: rec}); err != nil {
			log.Errorf("Error sending notification: %s", err)
		}
	}
}
