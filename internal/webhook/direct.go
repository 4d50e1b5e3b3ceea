package webhook

import (
	"encoding/json"

	"flowchat-gateway/internal/models"
)

// directPayload mirrors the Cloud API webhook envelope. Only the fields the
// gateway consumes are declared; the rest of the payload is preserved in
// message metadata as the raw body.
type directPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string      `json:"field"`
			Value directValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type directValue struct {
	MessagingProduct string `json:"messaging_product"`
	Messages         []struct {
		From      string `json:"from"`
		ID        string `json:"id"`
		Timestamp string `json:"timestamp"`
		Type      string `json:"type"`
		Text      *struct {
			Body string `json:"body"`
		} `json:"text,omitempty"`
		Image    *directMedia `json:"image,omitempty"`
		Audio    *directMedia `json:"audio,omitempty"`
		Video    *directMedia `json:"video,omitempty"`
		Document *directMedia `json:"document,omitempty"`
	} `json:"messages,omitempty"`
	Statuses []struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		Timestamp   string `json:"timestamp"`
		RecipientID string `json:"recipient_id"`
	} `json:"statuses,omitempty"`
}

type directMedia struct {
	ID       string `json:"id"`
	Link     string `json:"link,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// ParseDirectPayload converts a Cloud API webhook body into canonical
// events. One POST may carry several messages and statuses; each becomes its
// own event. A well-formed body with neither yields a single unrecognized
// event. Malformed JSON is a ParseError.
func ParseDirectPayload(body []byte) ([]Event, error) {
	var payload directPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ParseError{Provider: "direct", Reason: "malformed JSON", Err: err}
	}

	var events []Event
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value

			for _, msg := range value.Messages {
				inbound := InboundMessage{
					From:              msg.From,
					ProviderMessageID: msg.ID,
					MessageType:       models.TypeText,
				}

				switch msg.Type {
				case "text":
					if msg.Text != nil {
						inbound.Body = msg.Text.Body
					}
				case "image":
					applyMedia(&inbound, msg.Image, "[image]")
				case "audio":
					applyMedia(&inbound, msg.Audio, "[audio]")
				case "video":
					applyMedia(&inbound, msg.Video, "[video]")
				case "document":
					applyMedia(&inbound, msg.Document, "[document]")
				default:
					inbound.Body = "[" + msg.Type + "]"
				}

				events = append(events, Event{Type: EventInboundMessage, Inbound: &inbound})
			}

			for _, status := range value.Statuses {
				events = append(events, Event{
					Type: EventStatusUpdate,
					Status: &StatusUpdate{
						ProviderMessageID: status.ID,
						ProviderStatus:    status.Status,
					},
				})
			}
		}
	}

	if len(events) == 0 {
		events = append(events, Event{Type: EventUnrecognized})
	}
	return events, nil
}

func applyMedia(inbound *InboundMessage, media *directMedia, placeholder string) {
	inbound.MessageType = models.TypeMedia
	inbound.Body = placeholder
	if media == nil {
		return
	}
	if media.Caption != "" {
		inbound.Body = media.Caption
	}
	ref := media.Link
	if ref == "" {
		ref = media.ID
	}
	if ref != "" {
		inbound.MediaURLs = append(inbound.MediaURLs, ref)
	}
}

func messageTypeFor(mediaCount int) models.MessageType {
	if mediaCount > 0 {
		return models.TypeMedia
	}
	return models.TypeText
}
