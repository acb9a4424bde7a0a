// Package gemini implements a driver over the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"os"

	genai "google.golang.org/genai"

	"github.com/dimdasci/agent-primitives/pkg/action"
	"github.com/dimdasci/agent-primitives/pkg/driver"
	"github.com/dimdasci/agent-primitives/pkg/either"
	"github.com/dimdasci/agent-primitives/pkg/errmodel"
	"github.com/dimdasci/agent-primitives/pkg/thread"
)

const defaultModel = "gemini-2.5-flash-lite"

type clientWrapper struct {
	client *genai.Client
	cfg    driver.Config
}

func (c *clientWrapper) Name() string { return "gemini" }

func (c *clientWrapper) NextAction(ctx context.Context, th *thread.Thread) driver.NextActionResult {
	system, user := driver.SystemPrompt(), driver.UserPrompt(th)
	driver.RecordPromptEstimate(ctx, c.cfg.Model, system, user)

	gcfg := &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(float32(c.cfg.Temperature)),
	}
	if c.cfg.MaxTokens > 0 {
		gcfg.MaxOutputTokens = int32(c.cfg.MaxTokens)
	}
	contents := []*genai.Content{
		genai.NewContentFromText(user, genai.RoleUser),
	}

	res, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, gcfg)
	if err != nil {
		return left(errmodel.Driver("provider_call",
			"gemini: "+err.Error(), map[string]any{"model": c.cfg.Model}))
	}
	return driver.ParseAction(res.Text())
}

func left(err *errmodel.Error) driver.NextActionResult {
	return either.Left[*errmodel.Error, action.Action](err)
}

// Factory constructs a Gemini driver using GOOGLE_API_KEY by default.
func Factory(ctx context.Context, cfg driver.Config) (driver.Driver, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: missing API key; set GOOGLE_API_KEY or api_key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &clientWrapper{client: client, cfg: cfg}, nil
}

func init() {
	_ = driver.Register("gemini", Factory)
}
