package clients

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EventLogTO is the payload accepted by the central event-log sink.
type EventLogTO struct {
	EventID       string            `json:"eventId"`
	Source        string            `json:"source"`
	Actor         string            `json:"actor"`
	Action        string            `json:"action"`
	EntityType    string            `json:"entityType"`
	EntityID      string            `json:"entityId"`
	Description   string            `json:"description"`
	ChangedFields map[string]string `json:"changedFields"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

type EventLogClient interface {
	SendEvent(event EventLogTO) error
}

type eventLogClient struct {
	client      *resty.Client
	eventLogURL string
	source      string
}

func NewEventLogClient(client *resty.Client, eventLogURL, source string) EventLogClient {
	return &eventLogClient{
		client:      client,
		eventLogURL: eventLogURL,
		source:      source,
	}
}

func (c *eventLogClient) SendEvent(event EventLogTO) error {
	event.Source = c.source
	response, err := c.client.R().
		SetBody(event).
		Post(c.eventLogURL + "/v1/events")
	if err != nil {
		log.Error().Err(err).Str("eventID", event.EventID).Msg("Failed to send event to the event-log sink")
		return err
	}
	if !response.IsSuccess() {
		err = errors.Errorf("event-log sink returned status %s", response.Status())
		log.Error().Err(err).Str("eventID", event.EventID).Msg("Failed to send event to the event-log sink")
		return err
	}
	return nil
}

// noopEventLogClient is used when no sink URL is configured.
type noopEventLogClient struct{}

func NewNoopEventLogClient() EventLogClient {
	return &noopEventLogClient{}
}

func (c *noopEventLogClient) SendEvent(_ EventLogTO) error {
	return nil
}
