package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Step operations.
const (
	OpResolve = "resolve"
	OpAssert  = "assert"
)

// Scenario is one declarative probe scenario.
type Scenario struct {
	// Name uniquely identifies the scenario; it doubles as the golden file
	// name.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description"`

	// Page describes the simulated page before the clock starts.
	Page PageSpec `yaml:"page"`

	// Timeline lists mutations applied at virtual-clock offsets while the
	// steps poll.
	Timeline []TimelineEvent `yaml:"timeline,omitempty"`

	// Steps run sequentially against the page.
	Steps []Step `yaml:"steps"`
}

// PageSpec is the initial page state.
type PageSpec struct {
	Scopes   []ScopeSpec  `yaml:"scopes,omitempty"`
	Elements []ElementDef `yaml:"elements"`
}

// ScopeSpec declares one scope and its initial model state.
type ScopeSpec struct {
	ID string `yaml:"id"`

	// NativeEval gives the scope a host-side expression evaluator; without
	// it readers fall back to dotted-path traversal.
	NativeEval bool `yaml:"native_eval,omitempty"`

	State map[string]any `yaml:"state,omitempty"`
}

// ElementDef declares one element. Elements are referenced from the
// timeline by their index in this list.
type ElementDef struct {
	Attrs   map[string]string `yaml:"attrs"`
	Visible bool              `yaml:"visible,omitempty"`
	Scope   string            `yaml:"scope,omitempty"`
}

// TimelineEvent is one mutation at a virtual-clock offset. Exactly one of
// the action fields must be set.
type TimelineEvent struct {
	AtMS int `yaml:"at_ms"`

	SetModel      *SetModelAction `yaml:"set_model,omitempty"`
	SetAttr       *SetAttrAction  `yaml:"set_attr,omitempty"`
	RemoveAttr    *AttrRef        `yaml:"remove_attr,omitempty"`
	DetachRuntime bool            `yaml:"detach_runtime,omitempty"`
}

// SetModelAction writes a value at a dotted path in a scope.
type SetModelAction struct {
	Scope string `yaml:"scope"`
	Path  string `yaml:"path"`
	Value any    `yaml:"value"`
}

// SetAttrAction sets an attribute on an element by index.
type SetAttrAction struct {
	Element int    `yaml:"element"`
	Name    string `yaml:"name"`
	Value   string `yaml:"value"`
}

// AttrRef names an attribute on an element by index.
type AttrRef struct {
	Element int    `yaml:"element"`
	Name    string `yaml:"name"`
}

// Step is one probe operation.
type Step struct {
	// Op is "resolve" or "assert".
	Op string `yaml:"op"`

	// Model is the model path. Resolve steps require it; assert steps use
	// it to build the locator unless Selector is set.
	Model string `yaml:"model,omitempty"`

	// Selector overrides the locator for assert steps, e.g. a chain like
	// [ng-model="user.role"][checked] that keeps a radio group unambiguous.
	Selector string `yaml:"selector,omitempty"`

	// Equals is the expected model value.
	Equals any `yaml:"equals"`

	TimeoutMS int `yaml:"timeout_ms,omitempty"`
	PollMS    int `yaml:"poll_ms,omitempty"`

	// Expect validates the step outcome. Nil means the step only has to
	// complete without a transport error.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a step. All fields are subset checks;
// nil fields are not validated.
type Expect struct {
	// Matches is the element count behind the resolved locator.
	Matches *int `yaml:"matches,omitempty"`

	// Visible checks locator visibility after a resolve.
	Visible *bool `yaml:"visible,omitempty"`

	// Pass checks the assertion outcome.
	Pass *bool `yaml:"pass,omitempty"`

	// StrictViolation checks that the assertion tripped on cardinality.
	StrictViolation *bool `yaml:"strict_violation,omitempty"`
}

// Load reads, schema-validates and parses a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes scenario YAML.
func Parse(data []byte) (*Scenario, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	// Strict decoding catches field typos the schema cannot see once the
	// value already failed to bind anywhere.
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validate(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// validate checks the cross-field constraints the schema cannot express.
func validate(sc *Scenario) error {
	scopes := make(map[string]bool, len(sc.Page.Scopes))
	for i, s := range sc.Page.Scopes {
		if scopes[s.ID] {
			return fmt.Errorf("page.scopes[%d]: duplicate scope id %q", i, s.ID)
		}
		scopes[s.ID] = true
	}

	for i, el := range sc.Page.Elements {
		if el.Scope != "" && !scopes[el.Scope] {
			return fmt.Errorf("page.elements[%d]: unknown scope %q", i, el.Scope)
		}
	}

	for i, ev := range sc.Timeline {
		actions := 0
		if ev.SetModel != nil {
			actions++
			if !scopes[ev.SetModel.Scope] {
				return fmt.Errorf("timeline[%d].set_model: unknown scope %q", i, ev.SetModel.Scope)
			}
		}
		if ev.SetAttr != nil {
			actions++
			if ev.SetAttr.Element >= len(sc.Page.Elements) {
				return fmt.Errorf("timeline[%d].set_attr: element index %d out of range", i, ev.SetAttr.Element)
			}
		}
		if ev.RemoveAttr != nil {
			actions++
			if ev.RemoveAttr.Element >= len(sc.Page.Elements) {
				return fmt.Errorf("timeline[%d].remove_attr: element index %d out of range", i, ev.RemoveAttr.Element)
			}
		}
		if ev.DetachRuntime {
			actions++
		}
		if actions != 1 {
			return fmt.Errorf("timeline[%d]: exactly one action is required, got %d", i, actions)
		}
	}

	for i, step := range sc.Steps {
		switch step.Op {
		case OpResolve:
			if step.Model == "" {
				return fmt.Errorf("steps[%d]: resolve requires model", i)
			}
			if step.Selector != "" {
				return fmt.Errorf("steps[%d]: resolve does not take a selector", i)
			}
		case OpAssert:
			if step.Model == "" && step.Selector == "" {
				return fmt.Errorf("steps[%d]: assert requires model or selector", i)
			}
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
	}
	return nil
}
