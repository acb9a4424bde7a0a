package loop

import (
	"context"
	"testing"

	"github.com/dimdasci/agent-primitives/pkg/action"
	"github.com/dimdasci/agent-primitives/pkg/driver"
	"github.com/dimdasci/agent-primitives/pkg/either"
	"github.com/dimdasci/agent-primitives/pkg/errmodel"
	"github.com/dimdasci/agent-primitives/pkg/thread"
)

// scripted replays a fixed sequence of driver results, one per call, and
// repeats the last entry once the script is exhausted.
type scripted struct {
	name   string
	script []driver.NextActionResult
	calls  int
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) NextAction(ctx context.Context, th *thread.Thread) driver.NextActionResult {
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	return s.script[i]
}

func (s *scripted) Get(ctx context.Context, name string) (driver.Driver, error) {
	return s, nil
}

func step(t *testing.T, payload string) driver.NextActionResult {
	t.Helper()
	res := action.Validate([]byte(payload))
	if res.IsLeft() {
		t.Fatalf("bad script payload %s: %v", payload, res.MustLeft())
	}
	return res
}

func driverDown(code string) driver.NextActionResult {
	return either.Left[*errmodel.Error, action.Action](errmodel.Driver(code, code, nil))
}

func kinds(th *thread.Thread) []thread.EventKind {
	out := make([]thread.EventKind, 0, th.Len())
	for _, ev := range th.Events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestRunHappyPath(t *testing.T) {
	src := &scripted{name: "stub", script: []driver.NextActionResult{
		step(t, `{"intent": "multiply", "a": 3, "b": 4}`),
		step(t, `{"reasoning": "computed", "intent": "done_for_now", "message": "3 * 4 = 12"}`),
	}}
	th := thread.New(thread.UserInput("what is 3 times 4?"))

	out := New(src, []string{"stub"}, 0).Run(context.Background(), th)

	if out.Status != StatusDone || out.Err != nil {
		t.Fatalf("status=%s err=%v", out.Status, out.Err)
	}
	if out.Iterations != 2 {
		t.Fatalf("iterations=%d want 2", out.Iterations)
	}
	if out.FinalIntent != action.IntentDoneForNow {
		t.Fatalf("final intent=%s", out.FinalIntent)
	}
	want := []thread.EventKind{
		thread.KindUserInput,
		thread.KindToolCall,
		thread.KindToolResponse,
		thread.KindSystemResponse,
	}
	got := kinds(th)
	if len(got) != len(want) {
		t.Fatalf("events=%v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: %s want %s", i, got[i], want[i])
		}
	}
	if th.Events[2].Data.(float64) != 12 {
		t.Fatalf("tool response=%v want 12", th.Events[2].Data)
	}
	fin, ok := th.Events[3].Data.(action.Action)
	if !ok || fin.Intent() != action.IntentDoneForNow {
		t.Fatalf("final event data=%#v want terminal action", th.Events[3].Data)
	}
	if msg, ok := action.TerminalMessage(th.Events[3].Data); !ok || msg != "3 * 4 = 12" {
		t.Fatalf("final message=%q ok=%v", msg, ok)
	}
}

func TestRunRecoversFromExecutionError(t *testing.T) {
	src := &scripted{name: "stub", script: []driver.NextActionResult{
		step(t, `{"intent": "divide", "a": 3, "b": 0}`),
		step(t, `{"reasoning": "cannot divide by zero", "intent": "done_for_now", "message": "division by zero is undefined"}`),
	}}
	th := thread.New(thread.UserInput("what is 3 / 0?"))

	out := New(src, []string{"stub"}, 5).Run(context.Background(), th)

	if out.Status != StatusDone {
		t.Fatalf("status=%s err=%v", out.Status, out.Err)
	}
	want := []thread.EventKind{
		thread.KindUserInput,
		thread.KindToolCall,
		thread.KindError,
		thread.KindSystemResponse,
	}
	got := kinds(th)
	if len(got) != len(want) {
		t.Fatalf("events=%v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: %s want %s", i, got[i], want[i])
		}
	}
	e := th.Events[2].Data.(*errmodel.Error)
	if e.Code != "division_by_zero" {
		t.Fatalf("error event: %#v", e)
	}
}

func TestRunAbortsAtIterationBound(t *testing.T) {
	src := &scripted{name: "stub", script: []driver.NextActionResult{
		step(t, `{"intent": "add", "a": 1, "b": 1}`),
	}}
	th := thread.New(thread.UserInput("count forever"))

	out := New(src, []string{"stub"}, 3).Run(context.Background(), th)

	if out.Status != StatusAborted {
		t.Fatalf("status=%s want %s", out.Status, StatusAborted)
	}
	if out.Err != nil {
		t.Fatalf("aborted run must not carry an error: %v", out.Err)
	}
	if out.Iterations != 3 {
		t.Fatalf("iterations=%d want 3", out.Iterations)
	}
	calls := 0
	for _, ev := range th.Events {
		if ev.Kind == thread.KindToolCall {
			calls++
		}
	}
	if calls != 3 {
		t.Fatalf("tool calls=%d want 3", calls)
	}
	// No synthetic terminal event is appended.
	last, _ := th.LastEvent()
	if last.Kind != thread.KindToolResponse {
		t.Fatalf("last event=%s want %s", last.Kind, thread.KindToolResponse)
	}
}

func TestRunStopsOnDriverFailure(t *testing.T) {
	src := &scripted{name: "stub", script: []driver.NextActionResult{
		driverDown("provider_call"),
	}}
	th := thread.New(thread.UserInput("anything"))

	out := New(src, []string{"stub"}, 5).Run(context.Background(), th)

	if out.Status != StatusError {
		t.Fatalf("status=%s want %s", out.Status, StatusError)
	}
	if out.Err == nil || out.Err.Code != "provider_call" {
		t.Fatalf("err=%v", out.Err)
	}
	last, _ := th.LastEvent()
	if last.Kind != thread.KindError {
		t.Fatalf("last event=%s want %s", last.Kind, thread.KindError)
	}
}

func TestRunClarificationIsTerminal(t *testing.T) {
	src := &scripted{name: "stub", script: []driver.NextActionResult{
		step(t, `{"reasoning": "missing operand", "intent": "request_more_information", "message": "multiply 3 by what?"}`),
	}}
	th := thread.New(thread.UserInput("multiply 3"))

	out := New(src, []string{"stub"}, 5).Run(context.Background(), th)

	if out.Status != StatusDone {
		t.Fatalf("status=%s err=%v", out.Status, out.Err)
	}
	if out.FinalIntent != action.IntentRequestMoreInformation {
		t.Fatalf("final intent=%s", out.FinalIntent)
	}
	last, _ := th.LastEvent()
	if last.Kind != thread.KindSystemResponse {
		t.Fatalf("last event: %+v", last)
	}
	if msg, ok := action.TerminalMessage(last.Data); !ok || msg != "multiply 3 by what?" {
		t.Fatalf("clarification message=%q ok=%v", msg, ok)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	src := &scripted{name: "stub", script: []driver.NextActionResult{
		step(t, `{"intent": "add", "a": 1, "b": 1}`),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	th := thread.New(thread.UserInput("anything"))
	out := New(src, []string{"stub"}, 5).Run(ctx, th)

	if out.Status != StatusError || out.Err == nil || out.Err.Code != "canceled" {
		t.Fatalf("status=%s err=%v", out.Status, out.Err)
	}
	if out.Iterations != 0 {
		t.Fatalf("iterations=%d want 0", out.Iterations)
	}
	if src.calls != 0 {
		t.Fatalf("driver consulted %d times after cancel", src.calls)
	}
}
