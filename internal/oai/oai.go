// Package oai holds the go-openai client setup and error mapping shared by
// the OpenAI embedding and completion backends.
package oai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/54b3r/showfinder-go/internal/apperr"
)

// ClientConfig holds the settings for constructing a go-openai client.
type ClientConfig struct {
	// APIKey is the authentication key.
	APIKey string
	// BaseURL overrides the API base. For OpenAI it defaults to
	// "https://api.openai.com/v1"; for Azure it is the resource endpoint
	// (e.g. "https://my-resource.openai.azure.com/").
	BaseURL string
	// Azure enables Azure OpenAI mode (api-key header + api-version param).
	Azure bool
	// APIVersion is the Azure OpenAI API version. Ignored when Azure is false.
	APIVersion string
	// Timeout bounds each request. Zero means no client-side timeout; the
	// caller's context still applies.
	Timeout time.Duration
}

// NewClient builds a go-openai client from cfg.
func NewClient(cfg ClientConfig) *openai.Client {
	var clientCfg openai.ClientConfig
	if cfg.Azure {
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		// Deployment names are used verbatim; the default mapper strips dots.
		clientCfg.AzureModelMapperFunc = func(model string) string { return model }
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return openai.NewClientWithConfig(clientCfg)
}

// Upstream converts a go-openai client error into an *apperr.UpstreamError,
// keeping the HTTP status when the client decoded one. Context cancellation
// is passed through unchanged.
func Upstream(service string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &apperr.UpstreamError{
			Service:    service,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &apperr.UpstreamError{
			Service:    service,
			StatusCode: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}

	return &apperr.UpstreamError{Service: service, Err: err}
}
