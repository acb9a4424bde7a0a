// Package anthropic implements a driver over the Anthropic messages API.
package anthropic

import (
	"context"
	"fmt"
	"os"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dimdasci/agent-primitives/pkg/action"
	"github.com/dimdasci/agent-primitives/pkg/driver"
	"github.com/dimdasci/agent-primitives/pkg/either"
	"github.com/dimdasci/agent-primitives/pkg/errmodel"
	"github.com/dimdasci/agent-primitives/pkg/thread"
)

const (
	defaultModel = "claude-haiku-4-5"
	// The messages API requires max_tokens; used when the config leaves it zero.
	defaultMaxTokens = 1024
)

type clientWrapper struct {
	client sdk.Client
	cfg    driver.Config
}

func (c *clientWrapper) Name() string { return "anthropic" }

func (c *clientWrapper) NextAction(ctx context.Context, th *thread.Thread) driver.NextActionResult {
	maxTokens := int64(c.cfg.MaxTokens)
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	system, user := driver.SystemPrompt(), driver.UserPrompt(th)
	driver.RecordPromptEstimate(ctx, c.cfg.Model, system, user)

	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.cfg.Model),
		MaxTokens:   maxTokens,
		Temperature: sdk.Float(c.cfg.Temperature),
		System:      []sdk.TextBlockParam{{Text: system}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(user)),
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return left(errmodel.Driver("provider_call",
			"anthropic: "+err.Error(), map[string]any{"model": c.cfg.Model}))
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return driver.ParseAction(sb.String())
}

func left(err *errmodel.Error) driver.NextActionResult {
	return either.Left[*errmodel.Error, action.Action](err)
}

// Factory constructs an Anthropic driver. The API key comes from cfg.APIKey
// or ANTHROPIC_API_KEY.
func Factory(ctx context.Context, cfg driver.Config) (driver.Driver, error) {
	_ = ctx
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: missing API key; set ANTHROPIC_API_KEY or api_key")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &clientWrapper{client: sdk.NewClient(opts...), cfg: cfg}, nil
}

func init() {
	_ = driver.Register("anthropic", Factory)
}
