// Package provider implements the generation and summarization collaborators
// on top of any OpenAI-compatible responses endpoint, which is also how a
// locally served model is reached.
package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/theimaginaryfoundation/socratic-counsel/counsel"
)

// Client is the counsel.Generator implementation.
type Client struct {
	api             openai.Client
	model           string
	maxOutputTokens int64
	temperature     float64
	topP            float64
}

var _ counsel.Generator = (*Client)(nil)

// NewClient builds a generation client from the generation config. apiKey may
// be empty when the endpoint does not authenticate (local inference servers).
func NewClient(cfg counsel.GenerationConfig, apiKey string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		api:             openai.NewClient(opts...),
		model:           cfg.Model,
		maxOutputTokens: cfg.MaxOutputTokens,
		temperature:     cfg.Temperature,
		topP:            cfg.TopP,
	}
}

// Generate sends the role-tagged messages and returns the generated text.
func (c *Client) Generate(ctx context.Context, messages []counsel.Message) (string, error) {
	if c.model == "" {
		return "", errors.New("provider: model is empty")
	}

	items := make([]responses.ResponseInputItemUnionParam, 0, len(messages))
	for _, msg := range messages {
		items = append(items, responses.ResponseInputItemParamOfMessage(msg.Content, roleFor(msg.Role)))
	}

	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: items,
		},
	}
	if c.maxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(c.maxOutputTokens)
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}
	if c.topP > 0 {
		params.TopP = openai.Float(c.topP)
	}

	resp, err := callWithRetry(ctx, &c.api, params)
	if err != nil {
		return "", err
	}
	return resp.OutputText(), nil
}

func roleFor(role string) responses.EasyInputMessageRole {
	switch role {
	case counsel.RoleSystem:
		return responses.EasyInputMessageRoleSystem
	case counsel.RoleAssistant:
		return responses.EasyInputMessageRoleAssistant
	default:
		return responses.EasyInputMessageRoleUser
	}
}

func callWithRetry(ctx context.Context, client *openai.Client, params responses.ResponseNewParams) (*responses.Response, error) {
	const maxRetries = 3
	rateLimitWaitTimes := []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}
	serverErrorWaitTimes := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := client.Responses.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				if attempt < maxRetries-1 {
					if serr := sleepCtx(ctx, rateLimitWaitTimes[attempt]); serr != nil {
						return nil, serr
					}
					continue
				}
			} else if isServerError(err) {
				if attempt < maxRetries-1 {
					if serr := sleepCtx(ctx, serverErrorWaitTimes[attempt]); serr != nil {
						return nil, serr
					}
					continue
				}
			}
			return nil, err
		}
		return resp, nil
	}
	return nil, errors.New("provider: retries exhausted")
}

// sleepCtx waits d or until the context is done, so a caller timeout cuts the
// retry loop short instead of being ignored.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}
