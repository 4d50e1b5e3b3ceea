package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DirectAPITransport sends messages straight to the WhatsApp Cloud API with
// bearer-token auth. The JSON payload shape is tagged by message type.
type DirectAPITransport struct {
	apiURL        string
	token         string
	phoneNumberID string
	client        *http.Client
	logger        *slog.Logger
}

func NewDirectAPITransport(apiURL, token, phoneNumberID string, timeout time.Duration, logger *slog.Logger) *DirectAPITransport {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &DirectAPITransport{
		apiURL:        strings.TrimRight(apiURL, "/"),
		token:         token,
		phoneNumberID: phoneNumberID,
		client:        &http.Client{Timeout: timeout},
		logger:        logger.With("component", "direct_transport"),
	}
}

func (t *DirectAPITransport) Name() string {
	return "direct"
}

// --- Payload shapes ---

type directMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type,omitempty"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textObj     `json:"text,omitempty"`
	Image            *mediaObj    `json:"image,omitempty"`
	Document         *mediaObj    `json:"document,omitempty"`
	Template         *templateObj `json:"template,omitempty"`
}

type textObj struct {
	Body string `json:"body"`
}

type mediaObj struct {
	Link    string `json:"link,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type templateObj struct {
	Name       string         `json:"name"`
	Language   languageObj    `json:"language"`
	Components []componentObj `json:"components,omitempty"`
}

type languageObj struct {
	Code string `json:"code"`
}

type componentObj struct {
	Type       string         `json:"type"`
	Parameters []parameterObj `json:"parameters"`
}

type parameterObj struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type directResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (t *DirectAPITransport) Send(ctx context.Context, req SendRequest) (Result, error) {
	msg := directMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               req.To,
	}

	if len(req.MediaURLs) > 0 {
		media := &mediaObj{Link: req.MediaURLs[0], Caption: req.Body}
		if req.MediaType == "document" {
			msg.Type = "document"
			msg.Document = media
		} else {
			msg.Type = "image"
			msg.Image = media
		}
	} else {
		msg.Type = "text"
		msg.Text = &textObj{Body: req.Body}
	}

	return t.postMessage(ctx, msg)
}

func (t *DirectAPITransport) SendTemplate(ctx context.Context, req TemplateRequest) (Result, error) {
	lang := req.LanguageCode
	if lang == "" {
		lang = "en"
	}

	tpl := &templateObj{
		Name:     req.TemplateName,
		Language: languageObj{Code: lang},
	}
	if len(req.Parameters) > 0 {
		component := componentObj{Type: "body"}
		for _, value := range sortedValues(req.Parameters) {
			component.Parameters = append(component.Parameters, parameterObj{Type: "text", Text: value})
		}
		tpl.Components = []componentObj{component}
	}

	msg := directMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               req.To,
		Type:             "template",
		Template:         tpl,
	}
	return t.postMessage(ctx, msg)
}

func (t *DirectAPITransport) postMessage(ctx context.Context, msg directMessage) (Result, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return Result{}, fmt.Errorf("direct: encode payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", t.apiURL, t.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("direct: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+t.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("direct: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("direct: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.logger.Warn("cloud api rejected message", "http_status", resp.StatusCode)
		return FailureResult(strconv.Itoa(resp.StatusCode), strings.TrimSpace(string(body))), nil
	}

	var parsed directResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("direct: decode response: %w", err)
	}
	if len(parsed.Messages) == 0 {
		return Result{}, fmt.Errorf("direct: response contained no message id")
	}

	t.logger.Debug("cloud api message accepted", "wamid", parsed.Messages[0].ID)
	return SuccessResult(parsed.Messages[0].ID, "sent"), nil
}

// sortedValues returns parameter values in positional key order ("1", "2",
// ...), matching the numbered template variables the API expects.
func sortedValues(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessParam(keys[i], keys[j]) })
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, params[k])
	}
	return values
}

// lessParam orders numerically so "10" sorts after "9".
func lessParam(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
