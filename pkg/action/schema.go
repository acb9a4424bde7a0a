package action

import (
	"encoding/json"
	"fmt"
	"strings"

	gjs "github.com/google/jsonschema-go/jsonschema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/dimdasci/agent-primitives/pkg/either"
	"github.com/dimdasci/agent-primitives/pkg/errmodel"
)

// variantSchema pairs the compiled validator for one variant with the raw
// schema document embedded into prompts.
type variantSchema struct {
	compiled *jsonschema.Schema
	doc      map[string]any
}

// arithmeticPayload and terminalPayload mirror the wire fields of the two
// variant families. Schemas are derived from them once at package init, so
// the Go field declarations drive both validation and the schema the
// provider sees.
type arithmeticPayload struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type terminalPayload struct {
	Reasoning string `json:"reasoning"`
	Message   string `json:"message"`
}

var (
	schemaAdd         = mustSchema[arithmeticPayload](IntentAdd, "a", "b")
	schemaSubtract    = mustSchema[arithmeticPayload](IntentSubtract, "a", "b")
	schemaMultiply    = mustSchema[arithmeticPayload](IntentMultiply, "a", "b")
	schemaDivide      = mustSchema[arithmeticPayload](IntentDivide, "a", "b")
	schemaDone        = mustSchema[terminalPayload](IntentDoneForNow, "reasoning", "message")
	schemaRequestInfo = mustSchema[terminalPayload](IntentRequestMoreInformation, "reasoning", "message")
)

// mustSchema derives a JSON schema from the variant struct, injects the
// intent discriminator as a constant, and compiles it for validation.
func mustSchema[T any](intent Intent, required ...string) variantSchema {
	base, err := gjs.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("action: schema derivation for %s: %v", intent, err))
	}
	raw, err := json.Marshal(base)
	if err != nil {
		panic(fmt.Sprintf("action: schema marshal for %s: %v", intent, err))
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		panic(fmt.Sprintf("action: schema decode for %s: %v", intent, err))
	}
	delete(doc, "$schema")
	delete(doc, "$id")
	// Extra fields (e.g. a stray reasoning on an arithmetic payload) are
	// tolerated; only declared fields are decoded.
	delete(doc, "additionalProperties")
	doc["type"] = "object"

	props, _ := doc["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
		doc["properties"] = props
	}
	props["intent"] = map[string]any{"type": "string", "const": string(intent)}

	req := []any{"intent"}
	for _, f := range required {
		req = append(req, f)
	}
	doc["required"] = req

	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("mem://%s.json", intent)
	if err := c.AddResource(url, doc); err != nil {
		panic(fmt.Sprintf("action: schema resource for %s: %v", intent, err))
	}
	compiled, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("action: schema compile for %s: %v", intent, err))
	}
	return variantSchema{compiled: compiled, doc: doc}
}

// Validate constructs a concrete action variant from an untyped provider
// payload. An unknown intent or a schema violation yields a validation
// error naming the offending field.
func Validate(payload []byte) either.Either[*errmodel.Error, Action] {
	var head struct {
		Intent Intent `json:"intent"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return either.Left[*errmodel.Error, Action](errmodel.Validation(
			"malformed_payload", "payload is not a JSON object: "+err.Error(), nil))
	}

	switch head.Intent {
	case IntentAdd:
		return decode[Add](payload, schemaAdd)
	case IntentSubtract:
		return decode[Subtract](payload, schemaSubtract)
	case IntentMultiply:
		return decode[Multiply](payload, schemaMultiply)
	case IntentDivide:
		return decode[Divide](payload, schemaDivide)
	case IntentDoneForNow:
		return decode[DoneForNow](payload, schemaDone)
	case IntentRequestMoreInformation:
		return decode[RequestMoreInformation](payload, schemaRequestInfo)
	default:
		return either.Left[*errmodel.Error, Action](errmodel.Validation(
			"unknown_intent",
			fmt.Sprintf("intent %q is not one of the declared actions", head.Intent),
			map[string]any{"intent": string(head.Intent), "known": Names()}))
	}
}

// decode validates the payload against the variant schema and unmarshals it
// into a fresh instance.
func decode[T any, PT interface {
	*T
	Action
}](payload []byte, vs variantSchema) either.Either[*errmodel.Error, Action] {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return either.Left[*errmodel.Error, Action](errmodel.Validation(
			"malformed_payload", "payload is not valid JSON: "+err.Error(), nil))
	}
	if err := vs.compiled.Validate(doc); err != nil {
		return either.Left[*errmodel.Error, Action](errmodel.Validation(
			"invalid_fields", err.Error(), map[string]any{"payload": string(payload)}))
	}
	v := PT(new(T))
	if err := json.Unmarshal(payload, v); err != nil {
		return either.Left[*errmodel.Error, Action](errmodel.Validation(
			"invalid_fields", err.Error(), map[string]any{"payload": string(payload)}))
	}
	return either.Right[*errmodel.Error, Action](v)
}

// Names returns the comma-separated intent list for prompts and errors.
func Names() string {
	names := make([]string, 0, len(Intents()))
	for _, in := range Intents() {
		names = append(names, string(in))
	}
	return strings.Join(names, ", ")
}

// Usage returns one line per variant describing its JSON contract, for
// prompt assembly.
func Usage() string {
	lines := []string{
		`- {"reasoning": string, "intent": "request_more_information", "message": string}: ask the user for a missing detail.`,
		`- {"reasoning": string, "intent": "done_for_now", "message": string}: finish the task; message carries the final answer.`,
		`- {"intent": "add", "a": number, "b": number}: add two numbers (a + b).`,
		`- {"intent": "subtract", "a": number, "b": number}: subtract two numbers (a - b).`,
		`- {"intent": "multiply", "a": number, "b": number}: multiply two numbers (a * b).`,
		`- {"intent": "divide", "a": number, "b": number}: divide two numbers (a / b).`,
	}
	return strings.Join(lines, "\n")
}

// SchemaJSON renders the anyOf union of all variant schemas, embedded into
// system prompts so providers emit conforming objects.
func SchemaJSON() string {
	union := map[string]any{"anyOf": []any{
		schemaRequestInfo.doc,
		schemaDone.doc,
		schemaAdd.doc,
		schemaSubtract.doc,
		schemaMultiply.doc,
		schemaDivide.doc,
	}}
	b, err := json.Marshal(union)
	if err != nil {
		return ""
	}
	return string(b)
}
