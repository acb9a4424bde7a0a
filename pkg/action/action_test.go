package action

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/dimdasci/agent-primitives/pkg/errmodel"
)

func mustValidate(t *testing.T, payload string) Action {
	t.Helper()
	res := Validate([]byte(payload))
	if res.IsLeft() {
		t.Fatalf("Validate(%s) failed: %v", payload, res.MustLeft())
	}
	return res.MustRight()
}

func TestValidateArithmeticVariants(t *testing.T) {
	cases := []struct {
		payload string
		intent  Intent
		want    float64
	}{
		{`{"intent": "add", "a": 1, "b": 2}`, IntentAdd, 3},
		{`{"intent": "subtract", "a": 5, "b": 2}`, IntentSubtract, 3},
		{`{"intent": "multiply", "a": 3, "b": 4}`, IntentMultiply, 12},
		{`{"intent": "divide", "a": 8, "b": 2}`, IntentDivide, 4},
	}
	for _, c := range cases {
		act := mustValidate(t, c.payload)
		if act.Intent() != c.intent {
			t.Fatalf("intent=%s want %s", act.Intent(), c.intent)
		}
		if act.Terminal() {
			t.Fatalf("%s must not be terminal", c.intent)
		}
		res := act.Execute()
		if res.IsLeft() {
			t.Fatalf("%s execute failed: %v", c.intent, res.MustLeft())
		}
		if got := res.MustRight().(float64); got != c.want {
			t.Fatalf("%s result=%v want %v", c.intent, got, c.want)
		}
	}
}

func TestValidateTerminalVariants(t *testing.T) {
	done := mustValidate(t, `{"reasoning": "finished", "intent": "done_for_now", "message": "12"}`)
	if !done.Terminal() || done.Intent() != IntentDoneForNow {
		t.Fatalf("unexpected: %v", done)
	}
	if got := done.Execute().MustRight().(string); got != "12" {
		t.Fatalf("done message=%q want 12", got)
	}

	ask := mustValidate(t, `{"reasoning": "ambiguous", "intent": "request_more_information", "message": "which numbers?"}`)
	if !ask.Terminal() || ask.Intent() != IntentRequestMoreInformation {
		t.Fatalf("unexpected: %v", ask)
	}
	if got := ask.Execute().MustRight().(string); got != "which numbers?" {
		t.Fatalf("ask message=%q", got)
	}
}

func TestValidateUnknownIntent(t *testing.T) {
	res := Validate([]byte(`{"intent": "modulo", "a": 1, "b": 2}`))
	if res.IsRight() {
		t.Fatal("unknown intent must not validate")
	}
	err := res.MustLeft()
	if err.Category != errmodel.CategoryValidation || err.Code != "unknown_intent" {
		t.Fatalf("unexpected error: %#v", err)
	}
}

func TestValidateMissingField(t *testing.T) {
	res := Validate([]byte(`{"intent": "add", "a": 1}`))
	if res.IsRight() {
		t.Fatal("missing operand must not validate")
	}
	err := res.MustLeft()
	if err.Code != "invalid_fields" {
		t.Fatalf("code=%s want invalid_fields", err.Code)
	}
	if !strings.Contains(err.Message, "b") {
		t.Fatalf("error should name the offending field: %s", err.Message)
	}
}

func TestValidateWrongFieldType(t *testing.T) {
	res := Validate([]byte(`{"intent": "multiply", "a": "three", "b": 4}`))
	if res.IsRight() {
		t.Fatal("string operand must not validate")
	}
	if res.MustLeft().Code != "invalid_fields" {
		t.Fatalf("code=%s", res.MustLeft().Code)
	}
}

func TestValidateMalformedPayload(t *testing.T) {
	res := Validate([]byte(`not json`))
	if res.IsRight() {
		t.Fatal("malformed payload must not validate")
	}
	if res.MustLeft().Code != "malformed_payload" {
		t.Fatalf("code=%s", res.MustLeft().Code)
	}
}

func TestDivideByZeroIsExecutionError(t *testing.T) {
	act := mustValidate(t, `{"intent": "divide", "a": 3, "b": 0}`)
	res := act.Execute()
	if res.IsRight() {
		t.Fatalf("divide by zero must fail, got %v", res.MustRight())
	}
	err := res.MustLeft()
	if err.Category != errmodel.CategoryExecution || err.Code != "division_by_zero" {
		t.Fatalf("unexpected error: %#v", err)
	}
}

func TestExecuteRunsOncePerInstance(t *testing.T) {
	act := mustValidate(t, `{"intent": "divide", "a": 10, "b": 4}`)
	first := act.Execute()
	second := act.Execute()
	if first != second {
		t.Fatalf("repeated Execute must return the memoized result: %v vs %v", first, second)
	}
	if first.MustRight().(float64) != 2.5 {
		t.Fatalf("result=%v want 2.5", first.MustRight())
	}

	// The error branch is memoized the same way.
	bad := mustValidate(t, `{"intent": "divide", "a": 1, "b": 0}`)
	if e1, e2 := bad.Execute(), bad.Execute(); e1.MustLeft() != e2.MustLeft() {
		t.Fatal("repeated Execute must return the same error instance")
	}
}

func TestMarshalCarriesIntentDiscriminator(t *testing.T) {
	act := mustValidate(t, `{"intent": "add", "a": 1, "b": 2}`)
	b, err := json.Marshal(act)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["intent"] != "add" || decoded["a"] != 1.0 || decoded["b"] != 2.0 {
		t.Fatalf("marshaled form: %s", b)
	}

	// Marshaled actions round-trip through Validate.
	if res := Validate(b); res.IsLeft() {
		t.Fatalf("round-trip failed: %v", res.MustLeft())
	}
}

func TestTerminalMessage(t *testing.T) {
	done := mustValidate(t, `{"reasoning": "finished", "intent": "done_for_now", "message": "12"}`)
	if msg, ok := TerminalMessage(done); !ok || msg != "12" {
		t.Fatalf("done msg=%q ok=%v", msg, ok)
	}

	ask := mustValidate(t, `{"reasoning": "ambiguous", "intent": "request_more_information", "message": "which numbers?"}`)
	if msg, ok := TerminalMessage(ask); !ok || msg != "which numbers?" {
		t.Fatalf("ask msg=%q ok=%v", msg, ok)
	}

	// A transcript loaded back out of a store decays to a map.
	if msg, ok := TerminalMessage(map[string]any{"intent": "done_for_now", "message": "12"}); !ok || msg != "12" {
		t.Fatalf("map msg=%q ok=%v", msg, ok)
	}
	if msg, ok := TerminalMessage("plain"); !ok || msg != "plain" {
		t.Fatalf("string msg=%q ok=%v", msg, ok)
	}
	if _, ok := TerminalMessage(&Add{A: 1, B: 2}); ok {
		t.Fatal("arithmetic action has no terminal message")
	}
	if _, ok := TerminalMessage(nil); ok {
		t.Fatal("nil has no terminal message")
	}
}

func TestSchemaJSONCoversAllIntents(t *testing.T) {
	s := SchemaJSON()
	for _, in := range Intents() {
		if !strings.Contains(s, string(in)) {
			t.Fatalf("schema union missing %s", in)
		}
	}
}

func TestUsageMentionsEveryIntent(t *testing.T) {
	u := Usage()
	for _, in := range Intents() {
		if !strings.Contains(u, string(in)) {
			t.Fatalf("usage missing %s:\n%s", in, u)
		}
	}
}
