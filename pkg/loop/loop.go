// Package loop runs the bounded propose-execute cycle over a thread: ask the
// drivers for the next action, record it, execute it, record the result, and
// repeat until a terminal action, an unrecoverable error, or the iteration
// bound.
package loop

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dimdasci/agent-primitives/pkg/action"
	"github.com/dimdasci/agent-primitives/pkg/driver"
	"github.com/dimdasci/agent-primitives/pkg/either"
	"github.com/dimdasci/agent-primitives/pkg/errmodel"
	"github.com/dimdasci/agent-primitives/pkg/thread"
)

// Status reports how a loop run ended.
type Status string

const (
	// StatusRunning is the in-flight state between iterations; an Outcome
	// never carries it.
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
	StatusAborted Status = "aborted_max_iterations"
)

// DefaultMaxIterations bounds a run when the caller does not choose a limit.
const DefaultMaxIterations = 10

// Outcome is the final state of one loop run. Err is set only for
// StatusError; an aborted run is not an error, the thread simply stopped
// progressing within the bound.
type Outcome struct {
	Thread     *thread.Thread
	Status     Status
	Iterations int
	// FinalIntent is the terminal action that ended a StatusDone run, so
	// callers can tell a completed task from a clarification request.
	FinalIntent action.Intent
	Err         *errmodel.Error
}

// Loop coordinates drivers and action execution over threads. A Loop is
// stateless across runs and safe for concurrent use.
type Loop struct {
	src           driver.Source
	providers     []string
	maxIterations int
}

// New builds a loop over a driver source and an ordered provider fallback
// list. maxIterations <= 0 selects DefaultMaxIterations.
func New(src driver.Source, providers []string, maxIterations int) *Loop {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Loop{src: src, providers: providers, maxIterations: maxIterations}
}

// Run drives th until a terminal action, a driver failure, context
// cancellation, or the iteration bound. The thread is mutated in place and
// also returned in the outcome.
//
// Recoverable failures (an action that fails to execute, like division by
// zero) are appended as error events and the loop continues, letting the
// model react to the failure. Driver failures end the run: with no next
// action there is nothing left to execute.
func (l *Loop) Run(ctx context.Context, th *thread.Thread) Outcome {
	tr := otel.Tracer("loop")
	ctx, span := tr.Start(ctx, "loop.run", trace.WithAttributes(
		attribute.String("thread.id", th.ID),
		attribute.Int("loop.max_iterations", l.maxIterations),
	))
	defer span.End()

	for i := 1; i <= l.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			e := errmodel.System("canceled", "run canceled: "+err.Error(), nil)
			th.Append(errorEvent(e))
			span.RecordError(e)
			return Outcome{Thread: th, Status: StatusError, Iterations: i - 1, Err: e}
		}

		res := driver.Fallback(ctx, l.src, l.providers, th)
		if res.IsLeft() {
			e := res.MustLeft()
			th.Append(errorEvent(e))
			span.RecordError(e)
			return Outcome{Thread: th, Status: StatusError, Iterations: i, Err: e}
		}
		act := res.MustRight()

		if act.Terminal() {
			// The response event keeps the whole terminal action, so the
			// transcript records the reasoning and intent, not just the
			// message shown to the user.
			th.Append(thread.Event{
				Kind:      thread.KindSystemResponse,
				Data:      act,
				Timestamp: time.Now().UTC(),
			})
			span.SetAttributes(
				attribute.String("loop.final_intent", string(act.Intent())),
				attribute.Int("loop.iterations", i),
			)
			return Outcome{Thread: th, Status: StatusDone, Iterations: i, FinalIntent: act.Intent()}
		}

		th.Append(thread.Event{
			Kind:      thread.KindToolCall,
			Data:      act,
			Timestamp: time.Now().UTC(),
		})

		exec := act.Execute()
		th.Append(either.Fold(exec, errorEvent, func(v any) thread.Event {
			return thread.Event{
				Kind:      thread.KindToolResponse,
				Data:      v,
				Timestamp: time.Now().UTC(),
			}
		}))
		if exec.IsLeft() {
			span.RecordError(exec.MustLeft())
			continue
		}
	}

	span.SetAttributes(attribute.Bool("loop.aborted", true))
	return Outcome{Thread: th, Status: StatusAborted, Iterations: l.maxIterations}
}

func errorEvent(e *errmodel.Error) thread.Event {
	return thread.Event{Kind: thread.KindError, Data: e, Timestamp: time.Now().UTC()}
}
