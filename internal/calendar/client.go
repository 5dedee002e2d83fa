package calendar

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/novadental/chairside/internal/scheduling"
	"github.com/novadental/chairside/pkg/logging"
)

// Client mirrors appointments into per-doctor Google Calendars. Each doctor
// carries their own service-account credential, so a calendar service is
// built per call rather than held on the client.
type Client struct {
	logger *logging.Logger
}

func NewClient(logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{logger: logger.Component("calendar")}
}

var _ scheduling.CalendarSync = (*Client)(nil)

// CreateEvent inserts the appointment into the doctor's calendar and returns
// the provider event ID.
func (c *Client) CreateEvent(ctx context.Context, credJSON, calendarID string, ev scheduling.CalendarEvent) (string, error) {
	svc, err := c.service(ctx, credJSON)
	if err != nil {
		return "", err
	}

	end := ev.StartsAt.Add(time.Duration(ev.DurationMin) * time.Minute)
	event := &gcal.Event{
		Summary:     fmt.Sprintf("%s - %s", ev.Service, ev.PatientName),
		Description: ev.Notes,
		Start: &gcal.EventDateTime{
			DateTime: ev.StartsAt.Format(time.RFC3339),
			TimeZone: ev.Timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: ev.Timezone,
		},
	}

	created, err := svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	c.logger.Info("calendar event created", "event_id", created.Id, "calendar_id", calendarID)
	return created.Id, nil
}

// DeleteEvent removes a previously mirrored event. A 404 or 410 from the API
// means the event is already gone and is not an error.
func (c *Client) DeleteEvent(ctx context.Context, credJSON, calendarID, eventID string) error {
	svc, err := c.service(ctx, credJSON)
	if err != nil {
		return err
	}

	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		if gone(err) {
			return nil
		}
		return fmt.Errorf("calendar: delete event: %w", err)
	}
	return nil
}

// ListCalendars returns the calendar IDs visible to the doctor's credential,
// used at doctor onboarding to pick the target calendar.
func (c *Client) ListCalendars(ctx context.Context, credJSON string) ([]string, error) {
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsJSON([]byte(credJSON)),
		option.WithScopes(gcal.CalendarReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: build service: %w", err)
	}

	list, err := svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: list calendars: %w", err)
	}
	ids := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		ids = append(ids, item.Id)
	}
	return ids, nil
}

func (c *Client) service(ctx context.Context, credJSON string) (*gcal.Service, error) {
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsJSON([]byte(credJSON)),
		option.WithScopes(gcal.CalendarEventsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: build service: %w", err)
	}
	return svc, nil
}

func gone(err error) bool {
	if apiErr, ok := err.(*googleapi.Error); ok {
		return apiErr.Code == 404 || apiErr.Code == 410
	}
	return false
}
