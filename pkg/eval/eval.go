// Package eval runs the agent loop against YAML datasets of scripted tasks
// and scores the transcripts: did the run complete, is the answer right, and
// did the expected operations happen.
package eval

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dimdasci/agent-primitives/pkg/action"
	"github.com/dimdasci/agent-primitives/pkg/loop"
	"github.com/dimdasci/agent-primitives/pkg/store"
	"github.com/dimdasci/agent-primitives/pkg/thread"
)

// Case is one dataset entry. ExpectedSteps lists the tool-call intents the
// transcript should contain. UserInput scripts the answers to clarification
// requests; a run that asks more questions than the script holds fails.
type Case struct {
	ID             string   `yaml:"id"`
	Prompt         string   `yaml:"prompt"`
	ExpectedAnswer string   `yaml:"expected_answer"`
	ExpectedSteps  []string `yaml:"expected_steps"`
	UserInput      inputs   `yaml:"user_input"`
}

// inputs accepts a scalar or a list in YAML; datasets commonly use both.
type inputs []string

func (in *inputs) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*in = inputs{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*in = inputs(list)
		return nil
	default:
		return fmt.Errorf("eval: user_input must be a string or list of strings")
	}
}

// LoadDataset reads a YAML dataset file.
func LoadDataset(path string) ([]Case, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("eval: read %s: %w", path, err)
	}
	return ParseDataset(b)
}

// ParseDataset parses a YAML list of cases.
func ParseDataset(b []byte) ([]Case, error) {
	var cases []Case
	if err := yaml.Unmarshal(b, &cases); err != nil {
		return nil, fmt.Errorf("eval: parse dataset: %w", err)
	}
	for i, c := range cases {
		if c.ID == "" {
			return nil, fmt.Errorf("eval: case %d has no id", i)
		}
		if c.Prompt == "" {
			return nil, fmt.Errorf("eval: case %s has no prompt", c.ID)
		}
	}
	return cases, nil
}

// CaseResult scores one case.
type CaseResult struct {
	CaseID       string   `json:"case_id"`
	ThreadID     string   `json:"thread_id"`
	Completed    bool     `json:"completed"`
	AnswerValid  bool     `json:"answer_valid"`
	StepsMatch   bool     `json:"steps_match"`
	ActionsFound bool     `json:"actions_found"`
	Answer       string   `json:"answer,omitempty"`
	Steps        []string `json:"steps"`
	Error        string   `json:"error,omitempty"`
}

// Passed reports whether every subscore holds.
func (r CaseResult) Passed() bool {
	return r.Completed && r.AnswerValid && r.StepsMatch && r.ActionsFound
}

// Report aggregates a dataset run.
type Report struct {
	Results []CaseResult `json:"results"`
}

// Passed counts cases where every subscore holds.
func (r Report) Passed() int {
	n := 0
	for _, res := range r.Results {
		if res.Passed() {
			n++
		}
	}
	return n
}

// Summary renders a one-case-per-line text summary.
func (r Report) Summary() string {
	var sb strings.Builder
	for _, res := range r.Results {
		status := "FAIL"
		if res.Passed() {
			status = "PASS"
		}
		fmt.Fprintf(&sb, "%-24s %s  completed=%v answer=%v steps=%v actions=%v\n",
			res.CaseID, status, res.Completed, res.AnswerValid, res.StepsMatch, res.ActionsFound)
	}
	fmt.Fprintf(&sb, "passed %d/%d\n", r.Passed(), len(r.Results))
	return sb.String()
}

// Runner executes dataset cases against a loop and persists transcripts.
type Runner struct {
	Store store.ThreadStore
	Loop  *loop.Loop
}

// Run evaluates every case in order.
func (r *Runner) Run(ctx context.Context, cases []Case) (Report, error) {
	report := Report{Results: make([]CaseResult, 0, len(cases))}
	for _, c := range cases {
		res, err := r.RunCase(ctx, c)
		if err != nil {
			return report, err
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

// RunCase runs one case to completion, replaying scripted user input after
// each clarification request until the script runs dry.
func (r *Runner) RunCase(ctx context.Context, c Case) (CaseResult, error) {
	th, err := r.Store.Create(ctx, thread.UserInput(c.Prompt))
	if err != nil {
		return CaseResult{}, err
	}
	result := CaseResult{CaseID: c.ID, ThreadID: th.ID}

	script := append([]string(nil), c.UserInput...)
	out := r.Loop.Run(ctx, th)
	for out.Status == loop.StatusDone &&
		out.FinalIntent == action.IntentRequestMoreInformation &&
		len(script) > 0 {
		th.Append(thread.HumanResponse(script[0]))
		script = script[1:]
		out = r.Loop.Run(ctx, th)
	}
	if err := r.Store.Save(ctx, th); err != nil {
		return CaseResult{}, err
	}

	switch out.Status {
	case loop.StatusDone:
		if out.FinalIntent == action.IntentDoneForNow {
			result.Completed = true
			if last, ok := th.LastEvent(); ok {
				result.Answer, _ = action.TerminalMessage(last.Data)
			}
		} else {
			result.Error = "run ended waiting for more input"
		}
	case loop.StatusError:
		result.Error = out.Err.Error()
	case loop.StatusAborted:
		result.Error = "aborted at iteration bound"
	}

	result.Steps = stepsOf(th)
	result.AnswerValid = compareAnswers(result.Answer, c.ExpectedAnswer)
	result.StepsMatch = len(result.Steps) == len(c.ExpectedSteps)
	result.ActionsFound = containsAll(result.Steps, c.ExpectedSteps)
	return result, nil
}

// stepsOf lists the intents of the tool calls in transcript order.
func stepsOf(th *thread.Thread) []string {
	var steps []string
	for _, ev := range th.Events {
		if ev.Kind != thread.KindToolCall {
			continue
		}
		if intent := intentOf(ev.Data); intent != "" {
			steps = append(steps, intent)
		}
	}
	return steps
}

// intentOf reads the intent from live actions and from transcripts loaded
// back out of a store, where the data has decayed to a map.
func intentOf(data any) string {
	switch v := data.(type) {
	case action.Action:
		return string(v.Intent())
	case map[string]any:
		s, _ := v["intent"].(string)
		return s
	default:
		return ""
	}
}

func containsAll(steps, expected []string) bool {
	for _, want := range expected {
		found := false
		for _, got := range steps {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// compareAnswers matches numerically with a small tolerance, accepting comma
// decimal separators. The expected answer "refusal" matches any non-numeric
// actual answer.
func compareAnswers(actual, expected string) bool {
	if expected == "" {
		return actual == ""
	}
	if expected == "refusal" {
		_, err := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		return err != nil
	}
	a, errA := parseNumber(actual)
	e, errE := parseNumber(expected)
	if errA == nil && errE == nil {
		return math.Abs(a-e) < 1e-3
	}
	return strings.TrimSpace(actual) == strings.TrimSpace(expected)
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}
