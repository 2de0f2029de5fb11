package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/scopeprobe/internal/simhost"
	"github.com/roach88/scopeprobe/internal/testutil"
	"github.com/roach88/scopeprobe/internal/trace"
	"github.com/roach88/scopeprobe/probe"
)

// runEpoch anchors the virtual clock. Tick timestamps are reported as
// millisecond offsets from it, so the concrete date never shows up in a
// trace.
var runEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Result is the outcome of running a scenario.
type Result struct {
	// Scenario is the scenario name.
	Scenario string

	// Pass is true when every step met its expectations.
	Pass bool

	// Steps holds one entry per executed step.
	Steps []StepResult

	// Ticks is the normalized tick trace across every step, in emission
	// order. Operation ids are rewritten to op-1, op-2, ... so the trace is
	// stable across runs.
	Ticks []TickRecord

	// Errors lists expectation failures. Empty when Pass is true.
	Errors []string
}

// StepResult is the observable outcome of one step.
type StepResult struct {
	Op       string
	Model    string
	Selector string // normalized resolved selector (resolve) or locator (assert)

	// Resolve outcomes.
	Matches int
	Visible bool

	// Assert outcomes.
	Pass            bool
	StrictViolation bool
	Message         string

	// ElapsedMS is the virtual time the step consumed.
	ElapsedMS int64
}

// TickRecord is one tick observation with run-specific identifiers
// normalized away.
type TickRecord struct {
	Op         string
	OpID       string
	ModelPath  string
	Selector   string
	Tick       int
	AtMS       int64
	Candidates int
	Matched    int
	Value      string
	Failure    string
	Outcome    string
}

func newResult(name string) *Result {
	return &Result{
		Scenario: name,
		Pass:     true,
		Steps:    []StepResult{},
		Ticks:    []TickRecord{},
		Errors:   []string{},
	}
}

func (r *Result) addError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// fanOut forwards each observation to every registered observer.
type fanOut []probe.Observer

func (f fanOut) ObserveTick(obs probe.TickObservation) {
	for _, o := range f {
		o.ObserveTick(obs)
	}
}

// Run executes a scenario against a fresh simulated page. Extra observers
// receive the raw (un-normalized) tick stream, e.g. a trace recorder that
// persists it. The returned error covers infrastructure problems only;
// expectation failures land in Result.Errors.
func Run(sc *Scenario, observers ...probe.Observer) (*Result, error) {
	page, err := simhost.NewPage()
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	scopes := make(map[string]*simhost.Scope, len(sc.Page.Scopes))
	for _, spec := range sc.Page.Scopes {
		s, err := page.NewScope(spec.ID, spec.State, spec.NativeEval)
		if err != nil {
			return nil, fmt.Errorf("create scope %q: %w", spec.ID, err)
		}
		scopes[spec.ID] = s
	}

	elements := make([]*simhost.Element, len(sc.Page.Elements))
	for i, def := range sc.Page.Elements {
		elements[i] = page.Append(simhost.ElementSpec{
			Attrs:   def.Attrs,
			Visible: def.Visible,
			Scope:   def.Scope,
		})
	}

	clock := testutil.NewFakeClock(runEpoch)
	recorder := trace.NewRecorder()
	observer := probe.Observer(recorder)
	if len(observers) > 0 {
		observer = fanOut(append([]probe.Observer{recorder}, observers...))
	}
	prober := probe.New(page, probe.WithClock(clock), probe.WithObserver(observer))

	// Timeline events fire while a step's poll loop sleeps past their
	// offset. An event error is latched and surfaced after the run.
	var timelineErr error
	for _, ev := range sc.Timeline {
		ev := ev
		clock.After(time.Duration(ev.AtMS)*time.Millisecond, func() {
			if err := applyEvent(page, scopes, elements, ev); err != nil && timelineErr == nil {
				timelineErr = fmt.Errorf("timeline event at %dms: %w", ev.AtMS, err)
			}
		})
	}

	ctx := context.Background()
	result := newResult(sc.Name)

	for i, step := range sc.Steps {
		sr, err := runStep(ctx, prober, page, clock, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		result.Steps = append(result.Steps, sr)
		checkExpectations(result, i, step, sr)
	}
	if timelineErr != nil {
		return nil, timelineErr
	}

	aliases := map[string]string{}
	for _, obs := range recorder.Ticks() {
		result.Ticks = append(result.Ticks, normalizeTick(obs, aliases))
	}
	for i := range result.Steps {
		result.Steps[i].Selector = normalizeIDs(result.Steps[i].Selector, aliases)
		result.Steps[i].Message = normalizeIDs(result.Steps[i].Message, aliases)
	}
	return result, nil
}

func applyEvent(page *simhost.Page, scopes map[string]*simhost.Scope, elements []*simhost.Element, ev TimelineEvent) error {
	switch {
	case ev.SetModel != nil:
		return scopes[ev.SetModel.Scope].Set(ev.SetModel.Path, ev.SetModel.Value)
	case ev.SetAttr != nil:
		elements[ev.SetAttr.Element].SetAttr(ev.SetAttr.Name, ev.SetAttr.Value)
		return nil
	case ev.RemoveAttr != nil:
		elements[ev.RemoveAttr.Element].RemoveAttr(ev.RemoveAttr.Name)
		return nil
	case ev.DetachRuntime:
		return page.DetachRuntime()
	}
	return fmt.Errorf("event has no action")
}

func runStep(ctx context.Context, prober *probe.Prober, page *simhost.Page, clock *testutil.FakeClock, step Step) (StepResult, error) {
	opts := callOptions(step)
	start := clock.Now()

	switch step.Op {
	case OpResolve:
		res, err := prober.AcquireByModelValue(ctx, step.Model, step.Equals, opts...)
		if err != nil {
			return StepResult{}, err
		}
		n, err := res.Locator().Count(ctx)
		if err != nil {
			return StepResult{}, err
		}
		visible := false
		if n > 0 {
			visible, err = res.Locator().Visible(ctx)
			if err != nil {
				return StepResult{}, err
			}
		}
		return StepResult{
			Op:        step.Op,
			Model:     step.Model,
			Selector:  res.Locator().Selector(),
			Matches:   n,
			Visible:   visible,
			ElapsedMS: clock.Now().Sub(start).Milliseconds(),
		}, nil

	case OpAssert:
		loc := prober.LocateByModel(step.Model)
		if step.Selector != "" {
			loc = page.CompoundLocator([]string{step.Selector})
		}
		out, err := prober.AssertModelValue(ctx, loc, step.Equals, opts...)
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{
			Op:              step.Op,
			Model:           step.Model,
			Selector:        loc.Selector(),
			Matches:         out.Count,
			Pass:            out.Pass,
			StrictViolation: out.StrictViolation,
			Message:         out.Message,
			ElapsedMS:       clock.Now().Sub(start).Milliseconds(),
		}, nil
	}
	return StepResult{}, fmt.Errorf("unknown op %q", step.Op)
}

func callOptions(step Step) []probe.CallOption {
	var opts []probe.CallOption
	if step.TimeoutMS > 0 {
		opts = append(opts, probe.WithTimeout(time.Duration(step.TimeoutMS)*time.Millisecond))
	}
	if step.PollMS > 0 {
		opts = append(opts, probe.WithPollInterval(time.Duration(step.PollMS)*time.Millisecond))
	}
	return opts
}

func checkExpectations(result *Result, i int, step Step, sr StepResult) {
	if step.Expect == nil {
		return
	}
	e := step.Expect
	if e.Matches != nil && sr.Matches != *e.Matches {
		result.addError(fmt.Sprintf("steps[%d]: expected %d matches, got %d", i, *e.Matches, sr.Matches))
	}
	if e.Visible != nil && sr.Visible != *e.Visible {
		result.addError(fmt.Sprintf("steps[%d]: expected visible=%t, got %t", i, *e.Visible, sr.Visible))
	}
	if e.Pass != nil && sr.Pass != *e.Pass {
		result.addError(fmt.Sprintf("steps[%d]: expected pass=%t, got %t: %s", i, *e.Pass, sr.Pass, sr.Message))
	}
	if e.StrictViolation != nil && sr.StrictViolation != *e.StrictViolation {
		result.addError(fmt.Sprintf("steps[%d]: expected strict_violation=%t, got %t", i, *e.StrictViolation, sr.StrictViolation))
	}
}

// normalizeTick rewrites run-specific identifiers so two runs of the same
// scenario produce identical traces. Operation ids become op-1, op-2, ...
// in first-seen order, and any occurrence inside selectors (synthesized
// markers embed the operation id) is rewritten the same way.
func normalizeTick(obs probe.TickObservation, aliases map[string]string) TickRecord {
	alias, ok := aliases[obs.OpID]
	if !ok {
		alias = fmt.Sprintf("op-%d", len(aliases)+1)
		aliases[obs.OpID] = alias
	}
	return TickRecord{
		Op:         string(obs.Op),
		OpID:       alias,
		ModelPath:  obs.ModelPath,
		Selector:   normalizeIDs(obs.Selector, aliases),
		Tick:       obs.Tick,
		AtMS:       obs.At.Sub(runEpoch).Milliseconds(),
		Candidates: obs.Candidates,
		Matched:    obs.Matched,
		Value:      obs.Value,
		Failure:    obs.Failure,
		Outcome:    obs.Outcome,
	}
}

func normalizeIDs(s string, aliases map[string]string) string {
	for id, alias := range aliases {
		s = strings.ReplaceAll(s, id, alias)
	}
	return s
}
