// Package driver abstracts "propose the next action" over LLM providers.
//
// A Driver serializes the thread, performs exactly one provider call, parses
// the structured output into a validated action, and reports the result as
// an Either. Drivers never retry internally; retry and fallback policy lives
// one layer up, in Fallback.
package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dimdasci/agent-primitives/pkg/action"
	"github.com/dimdasci/agent-primitives/pkg/either"
	"github.com/dimdasci/agent-primitives/pkg/errmodel"
	"github.com/dimdasci/agent-primitives/pkg/thread"
)

// Config is the immutable snapshot used to construct one Driver instance.
type Config struct {
	// Provider selects the registered factory (openai, anthropic, ollama,
	// gemini).
	Provider string
	// Model is the provider-specific model identifier.
	Model string
	// Temperature is the sampling temperature passed through verbatim.
	Temperature float64
	// MaxTokens bounds the completion length. Zero means provider default.
	MaxTokens int
	// APIKey overrides the provider's environment credential when set.
	APIKey string
	// BaseURL overrides the provider endpoint (used for ollama hosts and
	// OpenAI-compatible gateways).
	BaseURL string
}

// NextActionResult is what a Driver produces: the validated next action or
// the error that prevented one.
type NextActionResult = either.Either[*errmodel.Error, action.Action]

// Driver proposes the single next action for a thread. Implementations must
// be safe for concurrent use after construction.
type Driver interface {
	Name() string
	NextAction(ctx context.Context, th *thread.Thread) NextActionResult
}

// Factory constructs a Driver from a provider config.
type Factory func(ctx context.Context, cfg Config) (Driver, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a Driver factory under a provider name.
func Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("driver: empty provider name")
	}
	if f == nil {
		return fmt.Errorf("driver: nil factory for %q", name)
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("driver: provider %q already registered", name)
	}
	factories[name] = f
	return nil
}

// Resolve gets a registered factory by provider name.
func Resolve(name string) (Factory, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Registered lists the registered provider names in sorted order.
func Registered() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
