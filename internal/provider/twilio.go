package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const twilioBaseURL = "https://api.twilio.com"

// TwilioTransport sends WhatsApp messages through the Twilio Messages API.
// Addresses are prefixed with the whatsapp: channel scheme on the wire.
type TwilioTransport struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	client     *http.Client
	logger     *slog.Logger
}

func NewTwilioTransport(accountSID, authToken, fromNumber string, timeout time.Duration, logger *slog.Logger) *TwilioTransport {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &TwilioTransport{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    twilioBaseURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With("component", "twilio_transport"),
	}
}

func (t *TwilioTransport) Name() string {
	return "twilio"
}

type twilioMessageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type twilioErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (t *TwilioTransport) Send(ctx context.Context, req SendRequest) (Result, error) {
	form := url.Values{}
	form.Set("From", "whatsapp:"+t.fromNumber)
	form.Set("To", "whatsapp:"+req.To)
	form.Set("Body", req.Body)
	for _, mediaURL := range req.MediaURLs {
		form.Add("MediaUrl", mediaURL)
	}
	return t.createMessage(ctx, form)
}

func (t *TwilioTransport) SendTemplate(ctx context.Context, req TemplateRequest) (Result, error) {
	form := url.Values{}
	form.Set("From", "whatsapp:"+t.fromNumber)
	form.Set("To", "whatsapp:"+req.To)
	form.Set("ContentSid", req.TemplateName)
	if len(req.Parameters) > 0 {
		vars, err := json.Marshal(req.Parameters)
		if err != nil {
			return Result{}, fmt.Errorf("twilio: encode template variables: %w", err)
		}
		form.Set("ContentVariables", string(vars))
	}
	return t.createMessage(ctx, form)
}

func (t *TwilioTransport) createMessage(ctx context.Context, form url.Values) (Result, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("twilio: build request: %w", err)
	}
	httpReq.SetBasicAuth(t.accountSID, t.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("twilio: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("twilio: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		// Provider-level rejection carries Twilio's numeric error code.
		var apiErr twilioErrorResponse
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
			return FailureResult(strconv.Itoa(resp.StatusCode), strings.TrimSpace(string(body))), nil
		}
		t.logger.Warn("twilio rejected message", "error_code", apiErr.Code, "error_message", apiErr.Message)
		return FailureResult(strconv.Itoa(apiErr.Code), apiErr.Message), nil
	}

	var msg twilioMessageResponse
	if err := json.Unmarshal(body, &msg); err != nil {
		return Result{}, fmt.Errorf("twilio: decode response: %w", err)
	}
	if msg.ErrorCode != nil {
		return FailureResult(strconv.Itoa(*msg.ErrorCode), msg.ErrorMessage), nil
	}

	t.logger.Debug("twilio message accepted", "sid", msg.SID, "status", msg.Status)
	return SuccessResult(msg.SID, msg.Status), nil
}
