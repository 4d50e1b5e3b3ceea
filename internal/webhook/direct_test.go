package webhook

import (
	"testing"

	"flowchat-gateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirectPayloadInboundText(t *testing.T) {
	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "ENTRY",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"messages": [{
						"from": "15551234567",
						"id": "wamid.abc",
						"timestamp": "1700000000",
						"type": "text",
						"text": {"body": "hello"}
					}]
				}
			}]
		}]
	}`)

	events, err := ParseDirectPayload(body)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	require.Equal(t, EventInboundMessage, event.Type)
	require.NotNil(t, event.Inbound)
	assert.Equal(t, "15551234567", event.Inbound.From)
	assert.Equal(t, "hello", event.Inbound.Body)
	assert.Equal(t, "wamid.abc", event.Inbound.ProviderMessageID)
	assert.Equal(t, models.TypeText, event.Inbound.MessageType)
}

func TestParseDirectPayloadMediaSubtypes(t *testing.T) {
	cases := []struct {
		name     string
		fragment string
		wantBody string
		wantRef  string
	}{
		{
			"image with caption and link",
			`"type": "image", "image": {"id": "MEDIA1", "link": "https://cdn/img.jpg", "caption": "look"}`,
			"look",
			"https://cdn/img.jpg",
		},
		{
			"document without link falls back to media id",
			`"type": "document", "document": {"id": "MEDIA2", "filename": "invoice.pdf"}`,
			"[document]",
			"MEDIA2",
		},
		{
			"audio placeholder body",
			`"type": "audio", "audio": {"id": "MEDIA3"}`,
			"[audio]",
			"MEDIA3",
		},
		{
			"video placeholder body",
			`"type": "video", "video": {"id": "MEDIA4"}`,
			"[video]",
			"MEDIA4",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := []byte(`{
				"entry": [{
					"changes": [{
						"value": {
							"messages": [{"from": "1555", "id": "wamid.m", ` + tc.fragment + `}]
						}
					}]
				}]
			}`)

			events, err := ParseDirectPayload(body)
			require.NoError(t, err)
			require.Len(t, events, 1)

			inbound := events[0].Inbound
			require.NotNil(t, inbound)
			assert.Equal(t, models.TypeMedia, inbound.MessageType)
			assert.Equal(t, tc.wantBody, inbound.Body)
			assert.Equal(t, []string{tc.wantRef}, inbound.MediaURLs)
		})
	}
}

func TestParseDirectPayloadStatusUpdates(t *testing.T) {
	body := []byte(`{
		"entry": [{
			"changes": [{
				"value": {
					"statuses": [
						{"id": "wamid.a", "status": "sent", "recipient_id": "1555"},
						{"id": "wamid.b", "status": "read", "recipient_id": "1555"}
					]
				}
			}]
		}]
	}`)

	events, err := ParseDirectPayload(body)
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.Equal(t, EventStatusUpdate, events[0].Type)
	assert.Equal(t, "wamid.a", events[0].Status.ProviderMessageID)
	assert.Equal(t, "sent", events[0].Status.ProviderStatus)
	assert.Equal(t, "wamid.b", events[1].Status.ProviderMessageID)
	assert.Equal(t, "read", events[1].Status.ProviderStatus)
}

func TestParseDirectPayloadMixedBatch(t *testing.T) {
	body := []byte(`{
		"entry": [{
			"changes": [{
				"value": {
					"messages": [{"from": "1555", "id": "wamid.in", "type": "text", "text": {"body": "hey"}}],
					"statuses": [{"id": "wamid.out", "status": "delivered"}]
				}
			}]
		}]
	}`)

	events, err := ParseDirectPayload(body)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventInboundMessage, events[0].Type)
	assert.Equal(t, EventStatusUpdate, events[1].Type)
}

func TestParseDirectPayloadUnknownMessageType(t *testing.T) {
	body := []byte(`{
		"entry": [{
			"changes": [{
				"value": {
					"messages": [{"from": "1555", "id": "wamid.x", "type": "sticker"}]
				}
			}]
		}]
	}`)

	events, err := ParseDirectPayload(body)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "[sticker]", events[0].Inbound.Body)
}

func TestParseDirectPayloadEmptyEnvelope(t *testing.T) {
	events, err := ParseDirectPayload([]byte(`{"object": "whatsapp_business_account", "entry": []}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventUnrecognized, events[0].Type)
}

func TestParseDirectPayloadMalformedJSON(t *testing.T) {
	_, err := ParseDirectPayload([]byte(`{"entry": [`))
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "direct", parseErr.Provider)
}

func TestMapProviderStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want models.Status
	}{
		{"queued", models.StatusPending},
		{"accepted", models.StatusPending},
		{"sending", models.StatusPending},
		{"sent", models.StatusSent},
		{"delivered", models.StatusDelivered},
		{"received", models.StatusDelivered},
		{"read", models.StatusRead},
		{"failed", models.StatusFailed},
		{"undelivered", models.StatusFailed},
		{" Delivered ", models.StatusDelivered},
		{"warbling", models.StatusUnknown},
		{"", models.StatusUnknown},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, MapProviderStatus(tc.raw), "raw %q", tc.raw)
	}
}
