package gateway

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"flowchat-gateway/internal/contacts"
	"flowchat-gateway/internal/ledger"
	"flowchat-gateway/internal/models"
	"flowchat-gateway/internal/provider"
	"flowchat-gateway/internal/webhook"
	"flowchat-gateway/pkg/metrics"
)

// Notifier receives gateway events for fan-out to dashboard clients.
type Notifier interface {
	Publish(event string, data interface{})
}

// Facade is the single entry point the rest of the system uses to send
// messages and process provider webhooks. The transport is selected once at
// startup and injected; it is never chosen per call.
type Facade struct {
	transport provider.Transport
	resolver  *contacts.Resolver
	ledger    *ledger.Ledger
	validator *webhook.SignatureValidator
	metrics   *metrics.Metrics
	notifier  Notifier
	logger    *slog.Logger

	timeout       time.Duration
	skipSignature bool
}

// Options carries the optional facade collaborators.
type Options struct {
	Notifier      Notifier
	Timeout       time.Duration
	SkipSignature bool
}

func New(
	transport provider.Transport,
	resolver *contacts.Resolver,
	ldg *ledger.Ledger,
	validator *webhook.SignatureValidator,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts Options,
) *Facade {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Facade{
		transport:     transport,
		resolver:      resolver,
		ledger:        ldg,
		validator:     validator,
		metrics:       m,
		notifier:      opts.Notifier,
		logger:        logger.With("component", "gateway"),
		timeout:       timeout,
		skipSignature: opts.SkipSignature,
	}
}

// SendParams describes an outbound free-text or media message.
type SendParams struct {
	To        string
	Content   string
	Type      models.MessageType
	MediaURLs []string
	MediaType string
	SenderID  string
	Metadata  map[string]interface{}
}

// TemplateParams describes an outbound template message.
type TemplateParams struct {
	To           string
	TemplateName string
	LanguageCode string
	Parameters   map[string]string
	SenderID     string
}

// SendResult is the tagged outcome of a send. A failed dispatch still
// carries the message id of the pending-then-failed record.
type SendResult struct {
	MessageID         string `json:"message_id"`
	Success           bool   `json:"success"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Send resolves the recipient, records a pending message, dispatches through
// the configured transport, and settles the message status from the outcome.
// The message row exists and reflects the outcome even when the provider
// call faults: transport errors become a failed status, never an escaped
// panic or a message stuck pending.
func (f *Facade) Send(ctx context.Context, p SendParams) (SendResult, error) {
	msgType := p.Type
	if msgType == "" {
		if len(p.MediaURLs) > 0 {
			msgType = models.TypeMedia
		} else {
			msgType = models.TypeText
		}
	}

	contact, err := f.resolver.Resolve(ctx, p.To)
	if err != nil {
		return SendResult{}, err
	}

	metadata := map[string]interface{}{"provider": f.transport.Name()}
	for k, v := range p.Metadata {
		metadata[k] = v
	}
	if len(p.MediaURLs) > 0 {
		metadata["media_urls"] = p.MediaURLs
	}

	msg, err := f.ledger.Create(ctx, ledger.CreateParams{
		Direction: models.DirectionOutbound,
		Content:   p.Content,
		Type:      msgType,
		ContactID: contact.ID,
		SenderID:  p.SenderID,
		Status:    models.StatusPending,
		Metadata:  metadata,
	})
	if err != nil {
		return SendResult{}, err
	}

	result := f.dispatch(ctx, msg.ID, func(dispatchCtx context.Context) (provider.Result, error) {
		return f.transport.Send(dispatchCtx, provider.SendRequest{
			To:        contact.Phone,
			Body:      p.Content,
			MediaURLs: p.MediaURLs,
			MediaType: p.MediaType,
		})
	})
	return result, nil
}

// SendTemplate dispatches a pre-approved template through the configured
// transport. Template parameters live in message metadata since the content
// is rendered provider-side.
func (f *Facade) SendTemplate(ctx context.Context, p TemplateParams) (SendResult, error) {
	contact, err := f.resolver.Resolve(ctx, p.To)
	if err != nil {
		return SendResult{}, err
	}

	metadata := map[string]interface{}{
		"provider":      f.transport.Name(),
		"template_name": p.TemplateName,
	}
	if len(p.Parameters) > 0 {
		metadata["template_parameters"] = p.Parameters
	}

	msg, err := f.ledger.Create(ctx, ledger.CreateParams{
		Direction: models.DirectionOutbound,
		Type:      models.TypeTemplate,
		ContactID: contact.ID,
		SenderID:  p.SenderID,
		Status:    models.StatusPending,
		Metadata:  metadata,
	})
	if err != nil {
		return SendResult{}, err
	}

	result := f.dispatch(ctx, msg.ID, func(dispatchCtx context.Context) (provider.Result, error) {
		return f.transport.SendTemplate(dispatchCtx, provider.TemplateRequest{
			To:           contact.Phone,
			TemplateName: p.TemplateName,
			LanguageCode: p.LanguageCode,
			Parameters:   p.Parameters,
		})
	})
	return result, nil
}

// dispatch runs one provider call under the configured timeout and settles
// the message row from its outcome.
func (f *Facade) dispatch(ctx context.Context, messageID string, call func(context.Context) (provider.Result, error)) SendResult {
	dispatchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	result, err := call(dispatchCtx)
	if err != nil {
		// Transport fault: mark failed, surface a failure value.
		f.logger.Error("provider dispatch failed",
			"message_id", messageID, "provider", f.transport.Name(), "error", err)
		f.metrics.MessagesSent.WithLabelValues(f.transport.Name(), "fault").Inc()
		if _, updErr := f.ledger.UpdateStatus(ctx, messageID, models.StatusFailed, map[string]interface{}{
			"error": err.Error(),
		}); updErr != nil {
			f.logger.Error("failed to record dispatch fault", "message_id", messageID, "error", updErr)
		}
		return SendResult{MessageID: messageID, Success: false, Error: err.Error()}
	}

	if !result.Success {
		f.metrics.MessagesSent.WithLabelValues(f.transport.Name(), "rejected").Inc()
		if _, updErr := f.ledger.UpdateStatus(ctx, messageID, models.StatusFailed, map[string]interface{}{
			"error_code": result.ErrorCode,
			"error":      result.ErrorMessage,
		}); updErr != nil {
			f.logger.Error("failed to record provider rejection", "message_id", messageID, "error", updErr)
		}
		return SendResult{MessageID: messageID, Success: false, Error: result.ErrorMessage}
	}

	f.metrics.MessagesSent.WithLabelValues(f.transport.Name(), "sent").Inc()
	if err := f.ledger.SetProviderMessageID(ctx, messageID, result.ProviderMessageID); err != nil {
		f.logger.Error("failed to attach provider message id", "message_id", messageID, "error", err)
	}
	if _, err := f.ledger.UpdateStatus(ctx, messageID, models.StatusSent, map[string]interface{}{
		"provider_status": result.ProviderStatus,
	}); err != nil {
		f.logger.Error("failed to record sent status", "message_id", messageID, "error", err)
	}

	return SendResult{
		MessageID:         messageID,
		Success:           true,
		ProviderMessageID: result.ProviderMessageID,
	}
}

// WebhookRequest is one inbound provider callback, pre-decoded at the HTTP
// layer but not yet interpreted.
type WebhookRequest struct {
	Provider   string
	RequestURL string
	Signature  string
	Form       url.Values
	Body       []byte
}

// WebhookResult tells the HTTP layer how to answer. Rejected means the
// request failed authentication and must get a 403 with no state touched;
// everything else is acknowledged with a 200 so providers stop retrying.
type WebhookResult struct {
	Rejected bool
	// Events counts the events actually routed; unrecognized or malformed
	// payloads acknowledge with zero.
	Events int
}

// ReceiveWebhook authenticates, normalizes, and routes one provider
// callback. Internal processing errors are logged and suppressed; the
// callback is still acknowledged.
func (f *Facade) ReceiveWebhook(ctx context.Context, req WebhookRequest) WebhookResult {
	switch req.Provider {
	case "twilio":
		return f.receiveTwilio(ctx, req)
	default:
		return f.receiveDirect(ctx, req)
	}
}

func (f *Facade) receiveTwilio(ctx context.Context, req WebhookRequest) WebhookResult {
	if !f.skipSignature {
		if !f.validator.IsValid(req.RequestURL, req.Signature, req.Form) {
			f.logger.Warn("rejected webhook with invalid signature", "provider", "twilio")
			f.metrics.WebhookEvents.WithLabelValues("twilio", "rejected").Inc()
			return WebhookResult{Rejected: true}
		}
	}

	event := webhook.ParseTwilioForm(req.Form)
	routed := 0
	if f.handleEvent(ctx, "twilio", event, req.Form.Encode()) {
		routed = 1
	}
	return WebhookResult{Events: routed}
}

func (f *Facade) receiveDirect(ctx context.Context, req WebhookRequest) WebhookResult {
	events, err := webhook.ParseDirectPayload(req.Body)
	if err != nil {
		// Malformed payload: acknowledge anyway, a 4xx would only
		// trigger provider retries of the same bad body.
		f.logger.Warn("unparseable webhook payload", "provider", "direct", "error", err)
		f.metrics.WebhookEvents.WithLabelValues("direct", "malformed").Inc()
		return WebhookResult{}
	}

	routed := 0
	for _, event := range events {
		if f.handleEvent(ctx, "direct", event, string(req.Body)) {
			routed++
		}
	}
	return WebhookResult{Events: routed}
}

// handleEvent routes one canonical event and reports whether it was routed;
// unrecognized events are counted and dropped.
func (f *Facade) handleEvent(ctx context.Context, providerName string, event webhook.Event, rawPayload string) bool {
	switch event.Type {
	case webhook.EventInboundMessage:
		f.metrics.WebhookEvents.WithLabelValues(providerName, "inbound_message").Inc()
		f.handleInbound(ctx, providerName, event.Inbound, rawPayload)
		return true
	case webhook.EventStatusUpdate:
		f.metrics.WebhookEvents.WithLabelValues(providerName, "status_update").Inc()
		f.handleStatusUpdate(ctx, event.Status)
		return true
	default:
		f.metrics.WebhookEvents.WithLabelValues(providerName, "unrecognized").Inc()
		f.logger.Warn("unrecognized webhook event dropped", "provider", providerName)
		return false
	}
}

func (f *Facade) handleInbound(ctx context.Context, providerName string, inbound *webhook.InboundMessage, rawPayload string) {
	contact, err := f.resolver.Resolve(ctx, inbound.From)
	if err != nil {
		f.logger.Error("failed to resolve contact for inbound message",
			"from", inbound.From, "error", err)
		return
	}

	metadata := map[string]interface{}{
		"provider":    providerName,
		"raw_payload": rawPayload,
	}
	if len(inbound.MediaURLs) > 0 {
		metadata["media_urls"] = inbound.MediaURLs
	}

	msg, err := f.ledger.Create(ctx, ledger.CreateParams{
		Direction:         models.DirectionInbound,
		Content:           inbound.Body,
		Type:              inbound.MessageType,
		ContactID:         contact.ID,
		Status:            models.StatusDelivered,
		ProviderMessageID: inbound.ProviderMessageID,
		Metadata:          metadata,
	})
	if err != nil {
		f.logger.Error("failed to store inbound message",
			"provider_message_id", inbound.ProviderMessageID, "error", err)
		return
	}

	f.logger.Info("inbound message stored",
		"message_id", msg.ID, "contact_id", contact.ID, "provider", providerName)
	f.publish("message.inbound", msg)
}

func (f *Facade) handleStatusUpdate(ctx context.Context, status *webhook.StatusUpdate) {
	msg, found, err := f.ledger.FindByProviderMessageID(ctx, status.ProviderMessageID)
	if err != nil {
		f.logger.Error("status callback lookup failed",
			"provider_message_id", status.ProviderMessageID, "error", err)
		return
	}
	if !found {
		// Acknowledge anyway: erroring here would only cause the
		// provider to retry a callback we can never match.
		f.logger.Warn("status callback for unknown message",
			"provider_message_id", status.ProviderMessageID, "provider_status", status.ProviderStatus)
		return
	}

	mapped := webhook.MapProviderStatus(status.ProviderStatus)
	updated, err := f.ledger.UpdateStatus(ctx, msg.ID, mapped, map[string]interface{}{
		"provider_status": status.ProviderStatus,
	})
	if err != nil {
		f.logger.Error("failed to apply status callback",
			"message_id", msg.ID, "provider_status", status.ProviderStatus, "error", err)
		return
	}

	f.publish("message.status", updated)
}

func (f *Facade) publish(event string, data interface{}) {
	if f.notifier != nil {
		f.notifier.Publish(event, data)
	}
}
