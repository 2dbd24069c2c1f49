package agent

import (
	"time"

	"github.com/CarliMargareta/storyagent/events"
	"github.com/CarliMargareta/storyagent/models"
)

const (
	// pollPage and pollSize are the page of stories requested on each
	// poll. Only the first page is examined; anything older than it
	// was either seen on a previous poll or predates the marker.
	pollPage = 1
	pollSize = 10
)

// pollLoop runs CheckForNewStories on the configured interval until
// shutdown.
func (a *Agent) pollLoop() {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.track(func() {
				if err := a.CheckForNewStories(); err != nil {
					log.Errorf("Error checking for new stories: %s", err)
				}
			})
		case <-a.shutdown:
			return
		}
	}
}

// CheckForNewStories polls the remote API for stories newer than the
// last seen marker and raises a notification for each one. If the agent
// has no cached auth token the poll is skipped silently. Network and
// API failures leave all state untouched; the next scheduled tick will
// try again.
//
// On the very first successful poll the marker is absent, so nothing
// compares equal to it: every story on the first page notifies once and
// the marker is then set to the newest id. This bounds the first-run
// notification flood to a single page by design.
func (a *Agent) CheckForNewStories() error {
	token, err := a.store.AuthToken()
	if err != nil {
		return err
	}
	if token == "" {
		log.Debug("No auth token available for fetching stories")
		return nil
	}

	stories, err := a.api.Stories(token, pollPage, pollSize)
	if err != nil {
		return err
	}
	if len(stories) == 0 {
		a.bus.Emit(&events.PollCompleted{NewStories: 0})
		return nil
	}

	lastSeen, err := a.store.LastSeen()
	if err != nil {
		return err
	}

	newStories := 0
	for i := range stories {
		// Stories arrive newest first; everything at and beyond the
		// marker was already seen.
		if stories[i].ID == lastSeen {
			break
		}
		rec := models.NewStoryRecord(&stories[i])
		a.bus.Emit(&events.Notification{Record: rec})
		newStories++
	}

	if err := a.store.SetLastSeen(stories[0].ID); err != nil {
		log.Errorf("Error updating last seen marker: %s", err)
	}

	a.bus.Emit(&events.PollCompleted{NewStories: newStories})
	return nil
}
