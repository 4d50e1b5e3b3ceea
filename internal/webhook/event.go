package webhook

import (
	"fmt"
	"strings"

	"flowchat-gateway/internal/models"
)

// EventType tags a canonical webhook event.
type EventType string

const (
	EventInboundMessage EventType = "inbound_message"
	EventStatusUpdate   EventType = "status_update"
	EventUnrecognized   EventType = "unrecognized"
)

// InboundMessage is a new message received from a contact.
type InboundMessage struct {
	From              string
	Body              string
	MediaURLs         []string
	ProviderMessageID string
	MessageType       models.MessageType
}

// StatusUpdate is a delivery-status callback for a previously sent message.
type StatusUpdate struct {
	ProviderMessageID string
	ProviderStatus    string
}

// Event is the canonical form of one provider webhook notification. Exactly
// one of Inbound and Status is set unless the event is unrecognized.
type Event struct {
	Type    EventType
	Inbound *InboundMessage
	Status  *StatusUpdate
}

// ParseError reports a structurally malformed webhook payload. It is distinct
// from an unrecognized-but-well-formed payload, which parses to an
// EventUnrecognized event instead.
type ParseError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook: %s payload: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("webhook: %s payload: %s", e.Provider, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// providerStatusMap translates provider status vocabulary into the canonical
// one. Unlisted strings map to the unknown sentinel, which is recorded in
// status history but never asserted as a message's current status.
var providerStatusMap = map[string]models.Status{
	"queued":      models.StatusPending,
	"accepted":    models.StatusPending,
	"sending":     models.StatusPending,
	"sent":        models.StatusSent,
	"delivered":   models.StatusDelivered,
	"received":    models.StatusDelivered,
	"read":        models.StatusRead,
	"failed":      models.StatusFailed,
	"undelivered": models.StatusFailed,
}

// MapProviderStatus maps a raw provider status string onto the canonical
// vocabulary.
func MapProviderStatus(raw string) models.Status {
	if mapped, ok := providerStatusMap[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return mapped
	}
	return models.StatusUnknown
}
