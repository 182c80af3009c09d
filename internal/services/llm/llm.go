// Package llm wires the OpenAI chat completion client shared by the
// model-backed classifier and link finder.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/JaimeStill/gather/adapter"
)

// ErrNoChoices is returned when a completion carries no choices.
var ErrNoChoices = errors.New("model returned no choices")

// NewClient creates an OpenAI client from cfg. cfg must be finalized.
func NewClient(cfg *Config) *openai.Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Organization != "" {
		oc.OrgID = cfg.Organization
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.TimeoutDuration()}
	return openai.NewClientWithConfig(oc)
}

// JSON asks the model for a JSON object response to a system prompt and a
// user message, and returns the content of the first choice. Errors are
// adapter failures attributed to op.
func JSON(ctx context.Context, client *openai.Client, op, model, system, user string) (string, error) {
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", failure(op, err)
	}
	if len(resp.Choices) == 0 {
		return "", adapter.Fail(op, adapter.ReasonUpstream, ErrNoChoices)
	}
	return resp.Choices[0].Message.Content, nil
}

func failure(op string, err error) *adapter.Failure {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		reason := adapter.ReasonUpstream
		if apiErr.HTTPStatusCode == http.StatusRequestTimeout || apiErr.HTTPStatusCode == http.StatusGatewayTimeout {
			reason = adapter.ReasonTimeout
		}
		return &adapter.Failure{Op: op, Reason: reason, Status: apiErr.HTTPStatusCode, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &adapter.Failure{Op: op, Reason: adapter.ReasonUpstream, Status: reqErr.HTTPStatusCode, Err: err}
	}

	return adapter.Classify(op, fmt.Errorf("chat completion: %w", err))
}

// Excerpt trims text to at most n bytes without splitting a UTF-8 sequence.
func Excerpt(text string, n int) string {
	text = strings.TrimSpace(text)
	if n <= 0 || len(text) <= n {
		return text
	}
	cut := n
	for cut > 0 && text[cut]&0xC0 == 0x80 {
		cut--
	}
	return text[:cut]
}
