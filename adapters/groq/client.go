// Package groq configures an OpenAI-compatible client for Groq's audio API.
package groq

import (
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/mhire/liveavatar/domain"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	ProviderName   = "groq"
)

// NewClient returns a go-openai client pointed at baseURL.
func NewClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

// TranslateError turns go-openai HTTP failures into *domain.RemoteError so
// callers see the remote status and body. For JSON error replies go-openai
// keeps only the decoded error message, so Body holds that message rather
// than the raw response. Transport errors pass through.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.RemoteError{
			Provider:   ProviderName,
			StatusCode: apiErr.HTTPStatusCode,
			Body:       apiErr.Message,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := reqErr.Error()
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &domain.RemoteError{
			Provider:   ProviderName,
			StatusCode: reqErr.HTTPStatusCode,
			Body:       body,
		}
	}

	return err
}
