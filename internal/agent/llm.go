package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ChatCompleter is the slice of the OpenAI-compatible client the agent
// needs. *openai.Client satisfies it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// complete performs one model call under the bounded retry policy:
// maxRetries attempts, a per-attempt timeout, and 2^attempt seconds of
// backoff between attempts for retryable failures.
func (o *Orchestrator) complete(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: 0.2,
		TopP:        0.95,
		MaxTokens:   1500,
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = "auto"
	}

	var lastErr error
	for attempt := 0; attempt < o.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, time.Duration(1<<(attempt-1))*o.backoffUnit); err != nil {
				return openai.ChatCompletionMessage{}, err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.requestTimeout)
		resp, err := o.client.CreateChatCompletion(attemptCtx, req)
		cancel()

		if err == nil {
			if len(resp.Choices) == 0 {
				lastErr = errors.New("model returned no choices")
				continue
			}
			return resp.Choices[0].Message, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return openai.ChatCompletionMessage{}, err
		}
		o.log.WithError(err).WithField("attempt", attempt+1).Warn("model call failed, retrying")
	}

	return openai.ChatCompletionMessage{}, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable reports whether a model-call failure is worth another attempt:
// rate limits, server-side errors, timeouts and transport faults. Client
// errors such as bad requests or auth failures are terminal.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// sleepContext sleeps for d unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
