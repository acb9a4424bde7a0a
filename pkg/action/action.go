// Package action defines the closed set of typed operations the agent loop
// can execute: four calculator operations, a clarification request, and task
// completion. Providers propose actions as JSON objects discriminated by an
// "intent" field; Validate turns such a payload into a concrete variant, and
// Execute runs the variant's computation at most once per instance.
package action

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dimdasci/agent-primitives/pkg/either"
	"github.com/dimdasci/agent-primitives/pkg/errmodel"
)

// Intent discriminates the action variants a provider may propose.
type Intent string

const (
	IntentRequestMoreInformation Intent = "request_more_information"
	IntentDoneForNow             Intent = "done_for_now"
	IntentAdd                    Intent = "add"
	IntentSubtract               Intent = "subtract"
	IntentMultiply               Intent = "multiply"
	IntentDivide                 Intent = "divide"
)

// Intents lists every member of the closed set, in prompt order.
func Intents() []Intent {
	return []Intent{
		IntentRequestMoreInformation,
		IntentDoneForNow,
		IntentAdd,
		IntentSubtract,
		IntentMultiply,
		IntentDivide,
	}
}

// Result is what executing an action yields: a float64 for arithmetic
// variants, the message string for terminal ones.
type Result = either.Either[*errmodel.Error, any]

// Action is one typed, validated operation. Implementations are created by
// Validate and are transient: one instance per loop iteration, embedded in
// the thread events it produces.
type Action interface {
	// Intent returns the immutable discriminator tag.
	Intent() Intent
	// Terminal reports whether the action ends the loop run.
	Terminal() bool
	// Execute runs the variant's computation at most once per instance.
	// Subsequent calls return the memoized Result without recomputation.
	Execute() Result
	fmt.Stringer
	json.Marshaler
}

// memo is the execute-once cell owned by each action instance.
type memo struct {
	once sync.Once
	res  Result
}

func (m *memo) run(compute func() Result) Result {
	m.once.Do(func() { m.res = compute() })
	return m.res
}

func success(v any) Result { return either.Right[*errmodel.Error](v) }

func failure(e *errmodel.Error) Result { return either.Left[*errmodel.Error, any](e) }

// Add computes a + b.
type Add struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	memo
}

func (a *Add) Intent() Intent { return IntentAdd }
func (a *Add) Terminal() bool { return false }
func (a *Add) Execute() Result {
	return a.run(func() Result { return success(a.A + a.B) })
}
func (a *Add) String() string { return fmt.Sprintf("add(a=%v, b=%v)", a.A, a.B) }
func (a *Add) MarshalJSON() ([]byte, error) {
	return marshalArithmetic(IntentAdd, a.A, a.B)
}

// Subtract computes a - b.
type Subtract struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	memo
}

func (s *Subtract) Intent() Intent { return IntentSubtract }
func (s *Subtract) Terminal() bool { return false }
func (s *Subtract) Execute() Result {
	return s.run(func() Result { return success(s.A - s.B) })
}
func (s *Subtract) String() string { return fmt.Sprintf("subtract(a=%v, b=%v)", s.A, s.B) }
func (s *Subtract) MarshalJSON() ([]byte, error) {
	return marshalArithmetic(IntentSubtract, s.A, s.B)
}

// Multiply computes a * b.
type Multiply struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	memo
}

func (m *Multiply) Intent() Intent { return IntentMultiply }
func (m *Multiply) Terminal() bool { return false }
func (m *Multiply) Execute() Result {
	return m.run(func() Result { return success(m.A * m.B) })
}
func (m *Multiply) String() string { return fmt.Sprintf("multiply(a=%v, b=%v)", m.A, m.B) }
func (m *Multiply) MarshalJSON() ([]byte, error) {
	return marshalArithmetic(IntentMultiply, m.A, m.B)
}

// Divide computes a / b. A zero divisor yields an execution error value,
// never a runtime fault.
type Divide struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	memo
}

func (d *Divide) Intent() Intent { return IntentDivide }
func (d *Divide) Terminal() bool { return false }
func (d *Divide) Execute() Result {
	return d.run(func() Result {
		if d.B == 0 {
			return failure(errmodel.Execution(
				"division_by_zero",
				fmt.Sprintf("division by zero: %v / %v", d.A, d.B),
				map[string]any{"a": d.A, "b": d.B},
			))
		}
		return success(d.A / d.B)
	})
}
func (d *Divide) String() string { return fmt.Sprintf("divide(a=%v, b=%v)", d.A, d.B) }
func (d *Divide) MarshalJSON() ([]byte, error) {
	return marshalArithmetic(IntentDivide, d.A, d.B)
}

// DoneForNow marks the task complete. Execute is a no-op success returning
// the message unchanged.
type DoneForNow struct {
	Reasoning string `json:"reasoning"`
	Message   string `json:"message"`
	memo
}

func (d *DoneForNow) Intent() Intent { return IntentDoneForNow }
func (d *DoneForNow) Terminal() bool { return true }
func (d *DoneForNow) Execute() Result {
	return d.run(func() Result { return success(d.Message) })
}
func (d *DoneForNow) String() string { return fmt.Sprintf("done_for_now(message=%q)", d.Message) }
func (d *DoneForNow) MarshalJSON() ([]byte, error) {
	return marshalTerminal(IntentDoneForNow, d.Reasoning, d.Message)
}

// RequestMoreInformation asks the human for a clarification. Execute is a
// no-op success returning the message unchanged.
type RequestMoreInformation struct {
	Reasoning string `json:"reasoning"`
	Message   string `json:"message"`
	memo
}

func (r *RequestMoreInformation) Intent() Intent { return IntentRequestMoreInformation }
func (r *RequestMoreInformation) Terminal() bool { return true }
func (r *RequestMoreInformation) Execute() Result {
	return r.run(func() Result { return success(r.Message) })
}
func (r *RequestMoreInformation) String() string {
	return fmt.Sprintf("request_more_information(message=%q)", r.Message)
}
func (r *RequestMoreInformation) MarshalJSON() ([]byte, error) {
	return marshalTerminal(IntentRequestMoreInformation, r.Reasoning, r.Message)
}

// TerminalMessage extracts the user-facing message from a system response
// event's data: a live terminal action, the map a stored transcript decodes
// to, or a bare string.
func TerminalMessage(data any) (string, bool) {
	switch v := data.(type) {
	case *DoneForNow:
		return v.Message, true
	case *RequestMoreInformation:
		return v.Message, true
	case map[string]any:
		s, ok := v["message"].(string)
		return s, ok
	case string:
		return v, true
	default:
		return "", false
	}
}

func marshalArithmetic(intent Intent, a, b float64) ([]byte, error) {
	return json.Marshal(struct {
		Intent Intent  `json:"intent"`
		A      float64 `json:"a"`
		B      float64 `json:"b"`
	}{intent, a, b})
}

func marshalTerminal(intent Intent, reasoning, message string) ([]byte, error) {
	return json.Marshal(struct {
		Reasoning string `json:"reasoning"`
		Intent    Intent `json:"intent"`
		Message   string `json:"message"`
	}{reasoning, intent, message})
}
