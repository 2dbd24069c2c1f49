package agent

import (
	"sync"
	"time"

	"github.com/CarliMargareta/storyagent/events"
	"github.com/CarliMargareta/storyagent/models"
	"github.com/CarliMargareta/storyagent/notifications"
	"github.com/CarliMargareta/storyagent/repo"
	"github.com/CarliMargareta/storyagent/store"
	"github.com/CarliMargareta/storyagent/storyapi"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("AGNT")

// Config holds the options needed to construct an Agent.
type Config struct {
	Repo             *repo.Repo
	Bus              events.Bus
	APIClient        *storyapi.Client
	DisplayFunc      notifications.DisplayFunc
	NotifyFunc       notifications.NotifyFunc
	PushEndpoint     string
	PollInterval     time.Duration
	ReminderInterval time.Duration
	DummyInterval    time.Duration
	SweepInterval    time.Duration
}

// Agent is the long lived background process handling push, polling,
// and offline sync. It owns the record store; windows mutate state only
// through its methods, never by direct storage access.
type Agent struct {
	repo     *repo.Repo
	bus      events.Bus
	store    *store.RecordStore
	api      *storyapi.Client
	notifier *notifications.Notifier
	subs     *SubscriptionManager

	reminder *RecurringTask
	dummy    *RecurringTask

	pollInterval  time.Duration
	sweepInterval time.Duration

	// wg tracks in-flight handlers so shutdown waits for storage and
	// network operations to settle rather than tearing them down
	// mid-operation.
	wg       sync.WaitGroup
	shutdown chan struct{}
}

// NewAgent constructs an Agent from the given config. Call Start to
// begin processing.
func NewAgent(cfg *Config) *Agent {
	rs := store.NewRecordStore(cfg.Repo.DB())

	a := &Agent{
		repo:          cfg.Repo,
		bus:           cfg.Bus,
		store:         rs,
		api:           cfg.APIClient,
		pollInterval:  cfg.PollInterval,
		sweepInterval: cfg.SweepInterval,
		shutdown:      make(chan struct{}),
	}

	a.notifier = notifications.NewNotifier(cfg.Bus, rs, cfg.DisplayFunc, cfg.NotifyFunc)
	a.subs = NewSubscriptionManager(cfg.APIClient, rs, cfg.Bus, cfg.PushEndpoint)

	a.reminder = NewRecurringTask("periodic-reminder", cfg.ReminderInterval, cfg.Bus, func() *models.NotificationRecord {
		return models.NewPeriodicRecord()
	})
	a.dummy = NewRecurringTask("dummy-notifications", cfg.DummyInterval, cfg.Bus, func() *models.NotificationRecord {
		return models.NewDummyRecord()
	})

	return a
}

// Store returns the agent's record store.
func (a *Agent) Store() *store.RecordStore {
	return a.store
}

// Bus returns the agent's event bus.
func (a *Agent) Bus() events.Bus {
	return a.bus
}

// Subscriptions returns the push subscription manager.
func (a *Agent) Subscriptions() *SubscriptionManager {
	return a.subs
}

// Start spins up the notifier, the story poller, the hourly reminder,
// and the retention sweep. The dummy notification timer is restored
// from its persisted setting.
func (a *Agent) Start() {
	go a.notifier.Start()
	a.reminder.Start()

	enabled, err := a.store.DummyMode()
	if err != nil {
		log.Errorf("Error reading dummy mode setting: %s", err)
	}
	if enabled {
		a.dummy.Start()
	}

	if a.pollInterval > 0 {
		go a.pollLoop()
	}
	if a.sweepInterval > 0 {
		go a.sweepLoop()
	}
}

// Stop shuts down the agent, waiting for any in-flight handlers to
// settle.
func (a *Agent) Stop() {
	close(a.shutdown)
	a.reminder.Stop()
	a.dummy.Stop()
	a.wg.Wait()
	a.notifier.Stop()
}

// SetAuthToken caches the bearer token pushed by a window.
func (a *Agent) SetAuthToken(token string) error {
	return a.store.SetAuthToken(token)
}

// AuthToken returns the cached bearer token, or an empty string.
func (a *Agent) AuthToken() (string, error) {
	return a.store.AuthToken()
}

// FlushNotifications returns every stored record sorted by timestamp
// descending.
func (a *Agent) FlushNotifications() ([]*models.NotificationRecord, error) {
	return a.store.Notifications()
}

// MarkRead sets the read flag on the record with the given id. A
// missing id is a no-op.
func (a *Agent) MarkRead(id string) error {
	_, err := a.store.MarkRead(id)
	return err
}

// MarkAllRead sets the read flag on every stored record.
func (a *Agent) MarkAllRead() error {
	return a.store.MarkAllRead()
}

// DeleteNotification removes the record with the given id.
func (a *Agent) DeleteNotification(id string) error {
	return a.store.DeleteNotification(id)
}

// ClearAll removes every stored record.
func (a *Agent) ClearAll() error {
	return a.store.ClearNotifications()
}

// SetDummyMode starts or stops the recurring dummy notification timer
// and persists the flag. The change is announced on the bus so the
// bridge can broadcast the new status to every window.
func (a *Agent) SetDummyMode(enabled bool) error {
	current, err := a.store.DummyMode()
	if err != nil {
		log.Errorf("Error reading dummy mode setting: %s", err)
	}
	if enabled == current && enabled == a.dummy.Running() {
		return nil
	}

	if enabled {
		a.dummy.Start()
	} else {
		a.dummy.Stop()
	}
	if err := a.store.SetDummyMode(enabled); err != nil {
		return err
	}
	a.bus.Emit(&events.DummyModeChanged{Enabled: enabled})
	return nil
}

// DummyMode returns whether the dummy notification timer is enabled.
func (a *Agent) DummyMode() (bool, error) {
	return a.store.DummyMode()
}

// track runs fn while holding the agent's in-flight handler count, the
// analog of extending an event's lifetime until the work settles.
func (a *Agent) track(fn func()) {
	a.wg.Add(1)
	defer a.wg.Done()
	fn()
}
