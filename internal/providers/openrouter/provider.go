package openrouter

import (
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tripwise/tripwise-backend/internal/config"
)

// NewClient builds an OpenAI-compatible client pointed at OpenRouter.
// OpenRouter speaks the chat-completions wire protocol, so the stock client
// works once the base URL and identification headers are set.
func NewClient(cfg config.AIConfig) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenRouter API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &headerTransport{base: http.DefaultTransport},
	}

	return openai.NewClientWithConfig(clientConfig), nil
}

// headerTransport attaches the optional OpenRouter attribution headers to
// every request.
type headerTransport struct {
	base http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.Header.Set("HTTP-Referer", "https://tripwise.example")
	cloned.Header.Set("X-Title", "Tripwise Travel Planner")
	return t.base.RoundTrip(cloned)
}
