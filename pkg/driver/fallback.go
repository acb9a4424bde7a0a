package driver

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dimdasci/agent-primitives/pkg/action"
	"github.com/dimdasci/agent-primitives/pkg/either"
	"github.com/dimdasci/agent-primitives/pkg/errmodel"
	"github.com/dimdasci/agent-primitives/pkg/thread"
)

// Fallback asks each named provider in order for the next action. The first
// success short-circuits the list. On exhaustion the last error is returned;
// earlier errors are recorded on the span only. No delay is inserted between
// attempts.
func Fallback(ctx context.Context, src Source, providers []string, th *thread.Thread) NextActionResult {
	tr := otel.Tracer("driver/fallback")
	ctx, span := tr.Start(ctx, "driver.fallback", trace.WithAttributes(
		attribute.String("thread.id", th.ID),
		attribute.StringSlice("fallback.providers", providers),
	))
	defer span.End()

	if len(providers) == 0 {
		err := errmodel.Config("no_providers", "fallback provider list is empty", nil)
		span.RecordError(err)
		return either.Left[*errmodel.Error, action.Action](err)
	}

	var last *errmodel.Error
	for _, name := range providers {
		d, err := src.Get(ctx, name)
		if err != nil {
			last = errmodel.From(err)
			span.RecordError(last)
			continue
		}
		res := d.NextAction(ctx, th)
		if res.IsRight() {
			span.SetAttributes(attribute.String("fallback.selected", name))
			return res
		}
		last = res.MustLeft()
		span.RecordError(last)
	}
	span.SetAttributes(attribute.Bool("fallback.exhausted", true))
	return either.Left[*errmodel.Error, action.Action](last)
}
