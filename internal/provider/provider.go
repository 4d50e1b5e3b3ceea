package provider

import (
	"context"
)

// SendRequest is a free-text (optionally media-bearing) outbound message.
type SendRequest struct {
	// To is the recipient phone in E.164 form, without provider prefixes.
	To        string
	Body      string
	MediaURLs []string
	// MediaType selects the payload variant for media sends where the
	// provider distinguishes them ("image" or "document"). Empty means
	// image.
	MediaType string
}

// TemplateRequest is a pre-approved template send. Templates are a separate
// operation because providers require approved template identifiers and
// positional parameter substitution instead of free body text.
type TemplateRequest struct {
	To           string
	TemplateName string
	LanguageCode string
	Parameters   map[string]string
}

// Result is the tagged outcome of one provider dispatch. A provider-level
// rejection (bad recipient, unapproved template) is a failure Result, not an
// error; errors are reserved for transport-level faults such as timeouts and
// unreachable hosts.
type Result struct {
	Success           bool
	ProviderMessageID string
	ProviderStatus    string
	ErrorCode         string
	ErrorMessage      string
}

func SuccessResult(providerMessageID, providerStatus string) Result {
	return Result{
		Success:           true,
		ProviderMessageID: providerMessageID,
		ProviderStatus:    providerStatus,
	}
}

func FailureResult(errorCode, errorMessage string) Result {
	return Result{
		Success:      false,
		ErrorCode:    errorCode,
		ErrorMessage: errorMessage,
	}
}

// Transport is an outbound WhatsApp provider. Implementations hide
// credentials, request shaping, and response parsing.
type Transport interface {
	Name() string
	Send(ctx context.Context, req SendRequest) (Result, error)
	SendTemplate(ctx context.Context, req TemplateRequest) (Result, error)
}
