package scenario

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/scopeprobe/scopeval"
)

// toCanonicalMap flattens a Result for canonical JSON serialization. Empty
// optional fields are omitted so golden files stay readable.
func (r *Result) toCanonicalMap() map[string]any {
	steps := make([]any, len(r.Steps))
	for i, s := range r.Steps {
		m := map[string]any{
			"op":         s.Op,
			"elapsed_ms": s.ElapsedMS,
		}
		if s.Model != "" {
			m["model"] = s.Model
		}
		if s.Selector != "" {
			m["selector"] = s.Selector
		}
		switch s.Op {
		case OpResolve:
			m["matches"] = s.Matches
			m["visible"] = s.Visible
		case OpAssert:
			m["pass"] = s.Pass
			if s.StrictViolation {
				m["strict_violation"] = true
			}
			if s.Message != "" {
				m["message"] = s.Message
			}
		}
		steps[i] = m
	}

	ticks := make([]any, len(r.Ticks))
	for i, tk := range r.Ticks {
		m := map[string]any{
			"op":    tk.Op,
			"op_id": tk.OpID,
			"tick":  tk.Tick,
			"at_ms": tk.AtMS,
		}
		if tk.ModelPath != "" {
			m["model_path"] = tk.ModelPath
		}
		if tk.Selector != "" {
			m["selector"] = tk.Selector
		}
		if tk.Candidates != 0 {
			m["candidates"] = tk.Candidates
		}
		if tk.Matched != 0 {
			m["matched"] = tk.Matched
		}
		if tk.Value != "" {
			m["value"] = tk.Value
		}
		if tk.Failure != "" {
			m["failure"] = tk.Failure
		}
		if tk.Outcome != "" {
			m["outcome"] = tk.Outcome
		}
		ticks[i] = m
	}

	out := map[string]any{
		"scenario": r.Scenario,
		"pass":     r.Pass,
		"steps":    steps,
		"ticks":    ticks,
	}
	if len(r.Errors) > 0 {
		errs := make([]any, len(r.Errors))
		for i, e := range r.Errors {
			errs[i] = e
		}
		out["errors"] = errs
	}
	return out
}

// RunWithGolden executes a scenario and compares its normalized trace
// against testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/scenario -update
func RunWithGolden(t *testing.T, sc *Scenario) error {
	t.Helper()

	result, err := Run(sc)
	if err != nil {
		return err
	}

	data, err := scopeval.MarshalCanonical(result.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, data)
	return nil
}
