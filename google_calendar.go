package main

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type GoogleCalendarProvider struct {
	service *calendar.Service
}

func NewGoogleCalendarProvider(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*GoogleCalendarProvider, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create calendar service")
	}
	return &GoogleCalendarProvider{service: service}, nil
}

// GetCalendar reads the calendar list entry, which fails unless the
// credentials can reach calendarID.
func (g *GoogleCalendarProvider) GetCalendar(ctx context.Context, calendarID string) error {
	_, err := g.service.CalendarList.Get(calendarID).Context(ctx).Do()
	if err != nil {
		return errors.Wrap(err, "failed to get calendar")
	}
	return nil
}

func (g *GoogleCalendarProvider) AddEvent(ctx context.Context, calendarID string, event *Event) (string, error) {
	googleEvent := &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.Format(time.RFC3339),
			TimeZone: event.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: event.End.Format(time.RFC3339),
			TimeZone: event.TimeZone,
		},
	}

	createdEvent, err := g.service.Events.Insert(calendarID, googleEvent).Context(ctx).Do()
	if err != nil {
		return "", errors.Wrap(err, "failed to create event")
	}

	return createdEvent.Id, nil
}

func (g *GoogleCalendarProvider) DeleteEvent(ctx context.Context, calendarID string, eventID string) error {
	err := g.service.Events.Delete(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return errors.Wrap(err, "failed to delete event")
	}
	return nil
}

func (g *GoogleCalendarProvider) ListEvents(ctx context.Context, calendarID string, query EventQuery) ([]*Event, error) {
	call := g.service.Events.List(calendarID).
		TimeMin(query.TimeMin.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	if !query.TimeMax.IsZero() {
		call = call.TimeMax(query.TimeMax.Format(time.RFC3339))
	}
	if query.MaxResults > 0 {
		call = call.MaxResults(int64(query.MaxResults))
	}

	events, err := call.Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}

	result := make([]*Event, 0, len(events.Items))
	for _, item := range events.Items {
		result = append(result, &Event{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Start:       parseEventDateTime(item.Start),
			End:         parseEventDateTime(item.End),
			TimeZone:    googleTimeZone(item.Start),
			Status:      item.Status,
		})
	}

	return result, nil
}

// parseEventDateTime handles both timed and all-day entries. Unparseable
// values come back as the zero time; nothing downstream depends on them.
func parseEventDateTime(edt *calendar.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if edt.DateTime != "" {
		t, _ := time.Parse(time.RFC3339, edt.DateTime)
		return t
	}
	t, _ := time.Parse(time.DateOnly, edt.Date)
	return t
}

func googleTimeZone(edt *calendar.EventDateTime) string {
	if edt == nil {
		return ""
	}
	return edt.TimeZone
}
