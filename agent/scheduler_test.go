package agent

import (
	"testing"
	"time"

	"github.com/CarliMargareta/storyagent/events"
	"github.com/CarliMargareta/storyagent/models"
)

func TestRecurringTask(t *testing.T) {
	bus := events.NewBus()
	sub, err := bus.Subscribe(&events.Notification{})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	task := NewRecurringTask("test-task", time.Millisecond*10, bus, func() *models.NotificationRecord {
		return models.NewDummyRecord()
	})
	if task.Running() {
		t.Error("Task should not start running")
	}

	task.Start()
	if !task.Running() {
		t.Error("Task is not running after Start")
	}
	// Starting again is a no-op.
	task.Start()

	select {
	case event := <-sub.Out():
		notif := event.(*events.Notification)
		if !notif.Record.IsDummy {
			t.Error("Expected a dummy record")
		}
	case <-time.After(time.Second * 10):
		t.Fatal("Timed out waiting on channel")
	}

	task.Stop()
	if task.Running() {
		t.Error("Task is still running after Stop")
	}
	// Stopping again is a no-op.
	task.Stop()

	// The task must be restartable.
	task.Start()
	if !task.Running() {
		t.Error("Task did not restart")
	}
	select {
	case <-sub.Out():
	case <-time.After(time.Second * 10):
		t.Fatal("Timed out waiting on channel after restart")
	}
	task.Stop()
}
