// Package openai implements a driver over the OpenAI chat completions API.
package openai

import (
	"context"
	"fmt"
	"os"

	oa "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/dimdasci/agent-primitives/pkg/action"
	"github.com/dimdasci/agent-primitives/pkg/driver"
	"github.com/dimdasci/agent-primitives/pkg/either"
	"github.com/dimdasci/agent-primitives/pkg/errmodel"
	"github.com/dimdasci/agent-primitives/pkg/thread"
)

const defaultModel = "gpt-4o-mini"

type clientWrapper struct {
	client oa.Client
	cfg    driver.Config
}

func (c *clientWrapper) Name() string { return "openai" }

func (c *clientWrapper) NextAction(ctx context.Context, th *thread.Thread) driver.NextActionResult {
	system, user := driver.SystemPrompt(), driver.UserPrompt(th)
	driver.RecordPromptEstimate(ctx, c.cfg.Model, system, user)

	params := oa.ChatCompletionNewParams{
		Model: shared.ChatModel(c.cfg.Model),
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(system),
			oa.UserMessage(user),
		},
		Temperature: oa.Float(c.cfg.Temperature),
		ResponseFormat: oa.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if c.cfg.MaxTokens > 0 {
		params.MaxCompletionTokens = oa.Int(int64(c.cfg.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return left(errmodel.Driver("provider_call",
			"openai: "+err.Error(), map[string]any{"model": c.cfg.Model}))
	}
	if len(resp.Choices) == 0 {
		return left(errmodel.Driver("empty_output",
			"openai returned no choices", map[string]any{"model": c.cfg.Model}))
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return left(errmodel.Driver("refusal",
			"openai refused: "+choice.Message.Refusal, map[string]any{"model": c.cfg.Model}))
	}
	return driver.ParseAction(choice.Message.Content)
}

func left(err *errmodel.Error) driver.NextActionResult {
	return either.Left[*errmodel.Error, action.Action](err)
}

// Factory constructs an OpenAI driver. The API key comes from cfg.APIKey or
// OPENAI_API_KEY.
func Factory(ctx context.Context, cfg driver.Config) (driver.Driver, error) {
	_ = ctx
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: missing API key; set OPENAI_API_KEY or api_key")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &clientWrapper{client: oa.NewClient(opts...), cfg: cfg}, nil
}

func init() {
	_ = driver.Register("openai", Factory)
}
