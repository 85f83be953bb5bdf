package main

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
)

const caldavProductID = "-//jiracal//jiracal//EN"

type CalDAVProvider struct {
	client    *caldav.Client
	serverURL string
}

// NewCalDAVProvider connects to serverURL and probes it once so bad
// credentials surface before any sync work starts.
func NewCalDAVProvider(ctx context.Context, serverURL, username, password string) (*CalDAVProvider, error) {
	baseURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid CalDAV server URL")
	}

	var httpClient webdav.HTTPClient = http.DefaultClient
	if username != "" && password != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpClient, username, password)
	}

	c, err := caldav.NewClient(httpClient, baseURL.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CalDAV client")
	}

	if _, err := c.FindCalendars(ctx, ""); err != nil {
		return nil, errors.Wrap(err, "failed to connect to CalDAV server")
	}

	return &CalDAVProvider{
		client:    c,
		serverURL: serverURL,
	}, nil
}

// GetCalendar looks calendarID up among the calendars of its parent
// collection.
func (c *CalDAVProvider) GetCalendar(ctx context.Context, calendarID string) error {
	calURL, err := url.Parse(calendarID)
	if err != nil {
		return errors.Wrap(err, "invalid calendar URL")
	}

	target := strings.TrimRight(calURL.Path, "/")
	homeSetPath := "/"
	if i := strings.LastIndex(target, "/"); i > 0 {
		homeSetPath = target[:i] + "/"
	}

	calendars, err := c.client.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return errors.Wrap(err, "failed to find calendars")
	}
	for _, cal := range calendars {
		if strings.TrimRight(cal.Path, "/") == target {
			return nil
		}
	}
	return errors.Newf("calendar %s not found in %s", calendarID, homeSetPath)
}

func (c *CalDAVProvider) AddEvent(ctx context.Context, calendarID string, event *Event) (string, error) {
	calURL, err := url.Parse(calendarID)
	if err != nil {
		return "", errors.Wrap(err, "invalid calendar URL")
	}

	eventUID := "jiracal-" + uuid.NewString()

	icalEvent := ical.NewEvent()
	icalEvent.Props.SetText(ical.PropUID, eventUID)
	icalEvent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	icalEvent.Props.SetText(ical.PropSummary, event.Summary)
	icalEvent.Props.SetText(ical.PropDescription, event.Description)
	icalEvent.Props.SetDateTime(ical.PropDateTimeStart, event.Start.UTC())
	icalEvent.Props.SetDateTime(ical.PropDateTimeEnd, event.End.UTC())
	icalEvent.Props.SetText(ical.PropStatus, "CONFIRMED")

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, caldavProductID)
	cal.Children = append(cal.Children, icalEvent.Component)

	path := strings.TrimRight(calURL.Path, "/") + "/" + eventUID + ".ics"
	if _, err := c.client.PutCalendarObject(ctx, path, cal); err != nil {
		return "", errors.Wrap(err, "failed to create event")
	}

	return eventUID, nil
}

func (c *CalDAVProvider) DeleteEvent(ctx context.Context, calendarID string, eventID string) error {
	calURL, err := url.Parse(calendarID)
	if err != nil {
		return errors.Wrap(err, "invalid calendar URL")
	}

	path := strings.TrimRight(calURL.Path, "/") + "/" + eventID + ".ics"
	if err := c.client.Client.RemoveAll(ctx, path); err != nil {
		return errors.Wrap(err, "failed to delete event")
	}
	return nil
}

// ListEvents queries VEVENTs overlapping the range. CalDAV time-range
// filters need both bounds, so an open TimeMax becomes one year out.
// Results are sorted by start and capped to match the Google provider.
func (c *CalDAVProvider) ListEvents(ctx context.Context, calendarID string, query EventQuery) ([]*Event, error) {
	calURL, err := url.Parse(calendarID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid calendar URL")
	}

	timeMax := query.TimeMax
	if timeMax.IsZero() {
		timeMax = query.TimeMin.AddDate(1, 0, 0)
	}

	calQuery := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: query.TimeMin,
				End:   timeMax,
			}},
		},
	}

	objects, err := c.client.QueryCalendar(ctx, calURL.Path, calQuery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}

	var result []*Event
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, comp := range obj.Data.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			result = append(result, eventFromComponent(comp))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Start.Before(result[j].Start)
	})
	if query.MaxResults > 0 && len(result) > query.MaxResults {
		result = result[:query.MaxResults]
	}
	return result, nil
}

func eventFromComponent(comp *ical.Component) *Event {
	status := strings.ToLower(getTextProp(comp.Props, ical.PropStatus))
	if status == "" {
		status = "confirmed"
	}

	start, _ := comp.Props.DateTime(ical.PropDateTimeStart, time.UTC)
	end, _ := comp.Props.DateTime(ical.PropDateTimeEnd, time.UTC)

	return &Event{
		ID:          getTextProp(comp.Props, ical.PropUID),
		Summary:     getTextProp(comp.Props, ical.PropSummary),
		Description: getTextProp(comp.Props, ical.PropDescription),
		Start:       start,
		End:         end,
		TimeZone:    "UTC",
		Status:      status,
	}
}

func getTextProp(props ical.Props, name string) string {
	prop := props.Get(name)
	if prop == nil {
		return ""
	}
	return prop.Value
}
