package api

import (
	"io"
	"net/http"

	"flowchat-gateway/internal/config"
	"flowchat-gateway/internal/gateway"

	"github.com/gin-gonic/gin"
)

// WebhookHandler adapts provider callbacks onto the gateway facade.
type WebhookHandler struct {
	Config *config.Config
	Facade *gateway.Facade
}

func NewWebhookHandler(cfg *config.Config, facade *gateway.Facade) *WebhookHandler {
	return &WebhookHandler{Config: cfg, Facade: facade}
}

// Verify answers the provider's webhook verification probe. Twilio only
// expects a 200; the Cloud API sends a hub.challenge that is echoed back
// when the verify token matches.
func (h *WebhookHandler) Verify(c *gin.Context) {
	if h.Config.Provider == config.ProviderTwilio {
		c.Status(http.StatusOK)
		return
	}

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.Config.VerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	c.Status(http.StatusForbidden)
}

// Receive accepts a provider callback and hands it to the facade. Only a
// failed signature check produces a non-200 answer; everything else is
// acknowledged so the provider stops retrying.
func (h *WebhookHandler) Receive(c *gin.Context) {
	req := gateway.WebhookRequest{Provider: h.Config.Provider}

	if h.Config.Provider == config.ProviderTwilio {
		if err := c.Request.ParseForm(); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		req.Form = c.Request.PostForm
		req.Signature = c.GetHeader("X-Twilio-Signature")
		req.RequestURL = requestURL(c.Request)
	} else {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		req.Body = body
	}

	result := h.Facade.ReceiveWebhook(c.Request.Context(), req)
	if result.Rejected {
		c.Status(http.StatusForbidden)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// requestURL reconstructs the public URL the provider signed, honoring the
// forwarding headers set by the usual reverse proxies.
func requestURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + r.URL.RequestURI()
}
