package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesGatewayCounters(t *testing.T) {
	m := New()
	m.MessagesSent.WithLabelValues("twilio", "sent").Inc()
	m.WebhookEvents.WithLabelValues("twilio", "status_update").Inc()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	m.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `gateway_messages_sent_total{provider="twilio",result="sent"} 1`)
	assert.Contains(t, body, `gateway_webhook_events_total{event="status_update",provider="twilio"} 1`)
}
