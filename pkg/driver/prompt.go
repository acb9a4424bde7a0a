package driver

import (
	"context"
	"fmt"
	"strings"

	tiktoken "github.com/pkoukk/tiktoken-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dimdasci/agent-primitives/pkg/action"
	"github.com/dimdasci/agent-primitives/pkg/either"
	"github.com/dimdasci/agent-primitives/pkg/errmodel"
	"github.com/dimdasci/agent-primitives/pkg/thread"
)

const systemTemplate = `You are a helpful assistant that solves arithmetic tasks.

Break the task into small steps and use the provided operations to perform
every calculation. Never do arithmetic in your head. You do not need to
confirm the plan with the user; proceed once you know how to solve the task.
If a detail is missing, request more information. When asked for anything
other than arithmetic, finish with a message gently refusing the task.

Respond with exactly one JSON object choosing one of these actions:
%s

The object must conform to this schema:
%s

Output only the JSON object, with no surrounding text.`

const userTemplate = `You are working on the following thread initiated by the user:

<thread_history>
%s
</thread_history>

What should the next step be? Respond with one action object.`

// SystemPrompt renders the shared provider-agnostic system prompt: the
// action usage lines plus the JSON schema the output must conform to.
func SystemPrompt() string {
	return fmt.Sprintf(systemTemplate, action.Usage(), action.SchemaJSON())
}

// UserPrompt embeds the serialized thread into the per-call user prompt.
func UserPrompt(th *thread.Thread) string {
	history := th.Serialize()
	if history == "" {
		history = "empty"
	}
	return fmt.Sprintf(userTemplate, history)
}

// EstimateTokens approximates the token count of text for span attributes
// and budget logging. Unknown models fall back to the cl100k_base encoding,
// then to a bytes/4 heuristic.
func EstimateTokens(model, text string) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// RecordPromptEstimate attaches the approximate prompt token count to the
// span in ctx. Drivers call it with the assembled prompts just before the
// provider call, so the fallback span carries the cost of each attempt.
func RecordPromptEstimate(ctx context.Context, model, system, user string) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("prompt.tokens_estimate", EstimateTokens(model, system+user)),
	)
}

// ParseAction parses raw provider output into a validated action. It
// tolerates surrounding whitespace and Markdown code fences; everything
// else is delegated to action.Validate.
func ParseAction(raw string) NextActionResult {
	trimmed := strings.TrimSpace(raw)
	if fenced, ok := strings.CutPrefix(trimmed, "```"); ok {
		fenced = strings.TrimPrefix(fenced, "json")
		if body, ok := strings.CutSuffix(strings.TrimSpace(fenced), "```"); ok {
			trimmed = strings.TrimSpace(body)
		} else {
			trimmed = strings.TrimSpace(fenced)
		}
	}
	if trimmed == "" {
		return either.Left[*errmodel.Error, action.Action](errmodel.Driver(
			"empty_output", "provider returned no content", nil))
	}
	return action.Validate([]byte(trimmed))
}
