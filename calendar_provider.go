package main

import (
	"context"
	"time"
)

type CalendarProvider interface {
	GetCalendar(ctx context.Context, calendarID string) error
	AddEvent(ctx context.Context, calendarID string, event *Event) (string, error)
	DeleteEvent(ctx context.Context, calendarID string, eventID string) error
	ListEvents(ctx context.Context, calendarID string, query EventQuery) ([]*Event, error)
}

type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Status      string
}

// EventQuery selects single occurrences ordered by start time. A zero
// TimeMax leaves the range open-ended; a zero MaxResults means no cap.
type EventQuery struct {
	TimeMin    time.Time
	TimeMax    time.Time
	MaxResults int
}
