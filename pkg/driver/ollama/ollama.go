// Package ollama implements a driver over a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/dimdasci/agent-primitives/pkg/action"
	"github.com/dimdasci/agent-primitives/pkg/driver"
	"github.com/dimdasci/agent-primitives/pkg/either"
	"github.com/dimdasci/agent-primitives/pkg/errmodel"
	"github.com/dimdasci/agent-primitives/pkg/thread"
)

const (
	defaultModel   = "qwen2.5:7b"
	defaultBaseURL = "http://localhost:11434"
)

type clientWrapper struct {
	client *api.Client
	cfg    driver.Config
}

func (c *clientWrapper) Name() string { return "ollama" }

func (c *clientWrapper) NextAction(ctx context.Context, th *thread.Thread) driver.NextActionResult {
	system, user := driver.SystemPrompt(), driver.UserPrompt(th)
	driver.RecordPromptEstimate(ctx, c.cfg.Model, system, user)

	stream := false
	req := &api.ChatRequest{
		Model: c.cfg.Model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: &stream,
		Format: json.RawMessage(`"json"`),
		Options: map[string]any{
			"temperature": c.cfg.Temperature,
		},
	}
	if c.cfg.MaxTokens > 0 {
		req.Options["num_predict"] = c.cfg.MaxTokens
	}

	var response api.ChatResponse
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return left(errmodel.Driver("provider_call",
			"ollama: "+err.Error(), map[string]any{"model": c.cfg.Model}))
	}
	return driver.ParseAction(response.Message.Content)
}

func left(err *errmodel.Error) driver.NextActionResult {
	return either.Left[*errmodel.Error, action.Action](err)
}

// Factory constructs an Ollama driver talking to cfg.BaseURL, defaulting to
// the standard local server address. No credential is required.
func Factory(ctx context.Context, cfg driver.Config) (driver.Driver, error) {
	_ = ctx
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &clientWrapper{client: api.NewClient(parsed, http.DefaultClient), cfg: cfg}, nil
}

func init() {
	_ = driver.Register("ollama", Factory)
}
