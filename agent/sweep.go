package agent

import (
	"time"

	"github.com/CarliMargareta/storyagent/events"
)

const (
	// DummyRetention is how long synthetic notifications are kept.
	DummyRetention = time.Hour

	// RecordRetention is how long all other notifications are kept.
	RecordRetention = 7 * 24 * time.Hour
)

// sweepLoop runs the retention sweep on the configured interval until
// shutdown.
func (a *Agent) sweepLoop() {
	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.track(func() {
				if _, err := a.SweepNotifications(time.Now()); err != nil {
					log.Errorf("Error cleaning up old notifications: %s", err)
				}
			})
		case <-a.shutdown:
			return
		}
	}
}

// SweepNotifications removes expired records: dummy notifications past
// DummyRetention and everything else past RecordRetention. Each delete
// is independent; a failure on one record does not abort the sweep.
func (a *Agent) SweepNotifications(now time.Time) (int, error) {
	records, err := a.store.Notifications()
	if err != nil {
		return 0, err
	}

	nowMillis := now.UnixNano() / int64(time.Millisecond)
	dummyCutoff := nowMillis - DummyRetention.Milliseconds()
	regularCutoff := nowMillis - RecordRetention.Milliseconds()

	removed := 0
	for _, rec := range records {
		expired := (rec.IsDummy && rec.Timestamp < dummyCutoff) ||
			(!rec.IsDummy && rec.Timestamp < regularCutoff)
		if !expired {
			continue
		}
		if err := a.store.DeleteNotification(rec.ID); err != nil {
			log.Errorf("Error deleting expired notification %s: %s", rec.ID, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		a.bus.Emit(&events.NotificationsSwept{Removed: removed})
	}
	return removed, nil
}
