package models

import (
	"fmt"
	"strconv"
	"time"
)

// Notification kinds. Stored alongside the record so the retention
// sweep and the UI can distinguish synthetic notifications from real
// ones.
const (
	KindPush     = "push"
	KindStory    = "story"
	KindPeriodic = "periodic"
	KindDummy    = "dummy"
)

// NotificationData carries the app-specific payload attached to a
// notification, such as a follow-up URL to open on click.
type NotificationData struct {
	URL string `json:"url,omitempty"`
}

// NotificationOptions is the display payload passed to the platform
// notification primitive. The field set mirrors the web Notification
// options object so records round-trip unchanged to window clients.
type NotificationOptions struct {
	Body      string            `json:"body"`
	Icon      string            `json:"icon,omitempty"`
	Image     string            `json:"image,omitempty"`
	Tag       string            `json:"tag,omitempty"`
	Timestamp int64             `json:"timestamp,omitempty"`
	Data      *NotificationData `json:"data,omitempty"`
}

// NotificationRecord encapsulates one of many notifications with additional
// metadata. Records are serialized as JSON into the notifications namespace
// of the record store and are sent over the websocket API in this format.
type NotificationRecord struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Options   NotificationOptions `json:"options"`
	Timestamp int64               `json:"timestamp"`
	Read      bool                `json:"read"`
	StoryID   string              `json:"storyId,omitempty"`
	Kind      string              `json:"kind,omitempty"`
	IsDummy   bool                `json:"isDummy,omitempty"`
}

// NewPushRecord returns an unread record for an incoming push message.
// The id is the creation timestamp in milliseconds.
func NewPushRecord(title string, options NotificationOptions) *NotificationRecord {
	ts := nowMillis()
	return &NotificationRecord{
		ID:        strconv.FormatInt(ts, 10),
		Title:     title,
		Options:   options,
		Timestamp: ts,
		Kind:      KindPush,
	}
}

// NewStoryRecord returns an unread record announcing a newly seen story.
func NewStoryRecord(story *Story) *NotificationRecord {
	ts := nowMillis()
	return &NotificationRecord{
		ID:    fmt.Sprintf("story-%s-%d", story.ID, ts),
		Title: fmt.Sprintf("Story baru dari %s", story.Name),
		Options: NotificationOptions{
			Body:      story.Description,
			Icon:      "/favicon.png",
			Image:     story.PhotoURL,
			Timestamp: ts,
			Data:      &NotificationData{URL: story.PhotoURL},
		},
		Timestamp: ts,
		StoryID:   story.ID,
		Kind:      KindStory,
	}
}

// NewPeriodicRecord returns the hourly reminder record.
func NewPeriodicRecord() *NotificationRecord {
	ts := nowMillis()
	return &NotificationRecord{
		ID:    fmt.Sprintf("periodic-%d", ts),
		Title: "Kembali ke StoryApp",
		Options: NotificationOptions{
			Body:      "Jangan lewatkan story baru dari teman-teman! Cek StoryApp sekarang.",
			Icon:      "/favicon.png",
			Tag:       "periodic-reminder",
			Timestamp: ts,
		},
		Timestamp: ts,
		Kind:      KindPeriodic,
	}
}

// NewDummyRecord returns a synthetic debug notification record.
func NewDummyRecord() *NotificationRecord {
	ts := nowMillis()
	return &NotificationRecord{
		ID:    fmt.Sprintf("dummy-%d", ts),
		Title: "Notifikasi Dummy",
		Options: NotificationOptions{
			Body:      fmt.Sprintf("Ini adalah dummy notification pada %s", time.Now().Format("02/01/2006 15.04.05")),
			Icon:      "/favicon.png",
			Tag:       "dummy-notification",
			Timestamp: ts,
		},
		Timestamp: ts,
		Kind:      KindDummy,
		IsDummy:   true,
	}
}

func nowMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
