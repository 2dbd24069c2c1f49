package agent

import (
	"sync"
	"time"

	"github.com/CarliMargareta/storyagent/events"
	"github.com/CarliMargareta/storyagent/models"
)

// RecurringTask emits a generated notification onto the bus at a fixed
// interval. It can be started and stopped repeatedly and is safe for
// concurrent use. Both the hourly reminder and the dummy notification
// debug feature are instances of this.
type RecurringTask struct {
	name     string
	interval time.Duration
	bus      events.Bus
	generate func() *models.NotificationRecord

	mtx     sync.Mutex
	stop    chan struct{}
	running bool
}

// NewRecurringTask returns a task which is not yet running.
func NewRecurringTask(name string, interval time.Duration, bus events.Bus, generate func() *models.NotificationRecord) *RecurringTask {
	return &RecurringTask{
		name:     name,
		interval: interval,
		bus:      bus,
		generate: generate,
	}
}

// Start begins the recurring timer. Starting a running task is a no-op.
func (t *RecurringTask) Start() {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if t.running {
		return
	}
	t.running = true
	t.stop = make(chan struct{})

	go t.run(t.stop)
	log.Debugf("Recurring task %s started with interval %s", t.name, t.interval)
}

// Stop halts the recurring timer. Stopping a stopped task is a no-op.
func (t *RecurringTask) Stop() {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if !t.running {
		return
	}
	t.running = false
	close(t.stop)
	log.Debugf("Recurring task %s stopped", t.name)
}

// Running returns whether the task is currently scheduled.
func (t *RecurringTask) Running() bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.running
}

func (t *RecurringTask) run(stop chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rec := t.generate()
			if rec == nil {
				continue
			}
			t.bus.Emit(&events.Notification{Record: rec})
		case <-stop:
			return
		}
	}
}
