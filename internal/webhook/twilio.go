package webhook

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseTwilioForm converts a Twilio form-encoded webhook into a canonical
// event. A MessageStatus field marks a status callback; a MessageSid with a
// body or media marks an inbound message; anything else is unrecognized and
// must still be acknowledged.
func ParseTwilioForm(form url.Values) Event {
	messageSid := form.Get("MessageSid")

	if status := form.Get("MessageStatus"); status != "" && messageSid != "" {
		return Event{
			Type: EventStatusUpdate,
			Status: &StatusUpdate{
				ProviderMessageID: messageSid,
				ProviderStatus:    status,
			},
		}
	}

	numMedia, _ := strconv.Atoi(form.Get("NumMedia"))
	body := form.Get("Body")

	if messageSid != "" && (body != "" || numMedia > 0) {
		mediaURLs := make([]string, 0, numMedia)
		for i := 0; i < numMedia; i++ {
			if mediaURL := form.Get(fmt.Sprintf("MediaUrl%d", i)); mediaURL != "" {
				mediaURLs = append(mediaURLs, mediaURL)
			}
		}
		return Event{
			Type: EventInboundMessage,
			Inbound: &InboundMessage{
				From:              strings.TrimPrefix(form.Get("From"), "whatsapp:"),
				Body:              body,
				MediaURLs:         mediaURLs,
				ProviderMessageID: messageSid,
				MessageType:       messageTypeFor(len(mediaURLs)),
			},
		}
	}

	return Event{Type: EventUnrecognized}
}
