package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/scopeprobe/host"
	"github.com/roach88/scopeprobe/scopeval"
)

// Outcome is the result of one strict assertion.
type Outcome struct {
	// Pass is true when the evaluated value matched the expectation.
	Pass bool

	// Expected is the value the caller asserted on.
	Expected any

	// Actual is the last value successfully read. Only meaningful when
	// Observed is true.
	Actual scopeval.Value

	// Observed reports whether any read succeeded before the loop ended.
	Observed bool

	// Failure is the last read failure, when the final tick (or every tick)
	// failed to produce a value.
	Failure *EvalFailure

	// StrictViolation is true when the locator matched more than one
	// element. This is terminal: the loop does not wait out the remaining
	// budget, because ambiguity cannot be resolved by waiting.
	StrictViolation bool

	// Count is the element count observed on the final tick.
	Count int

	// Message is empty on pass and carries the diagnostic on failure.
	Message string
}

// AssertModelValue re-checks loc's cardinality and evaluated model value
// against expected until they match, the deadline passes, or the locator
// turns ambiguous.
//
// Per tick: count the matching elements; more than one is an immediate
// strict-mode violation. Zero or one delegates to the scope reader (zero
// fails the read for lack of a candidate) and the result is compared
// structurally. Mismatches and read failures are recorded as the latest
// observation and retried until the deadline, after which the outcome
// carries the best available diagnostic.
//
// The cardinality check runs every tick, not just the first: the matching
// set itself can change while polling (a radio group flips which input is
// checked, so which element the selector matches moves between ticks).
//
// The returned error is non-nil only when ctx ends the invocation early;
// assertion failures are reported through the Outcome.
func (p *Prober) AssertModelValue(ctx context.Context, loc host.Locator, expected any, opts ...CallOption) (Outcome, error) {
	co := newCallOptions(DefaultAssertPollInterval, opts)
	opID := uuid.Must(uuid.NewV7()).String()
	deadline := p.clock.Now().Add(co.timeout)

	var (
		lastVal  scopeval.Value
		observed bool
		lastFail *EvalFailure
		lastN    int
	)

	for tick := 1; ; tick++ {
		n, v, fail, err := p.assertTick(ctx, loc)
		if err == nil {
			lastN = n
		}

		switch {
		case err != nil:
			// Transport hiccup counting elements; retry like a failed read.
			lastFail = newFailure(FailureEvaluationThrew, err.Error())
			p.emitAssertTick(opID, loc, tick, lastN, lastFail, "", "")
		case n > 1:
			p.emitAssertTick(opID, loc, tick, n, nil, "", TickStrictViolation)
			return strictViolationOutcome(loc, expected, n), nil
		case fail != nil:
			lastFail = fail
			p.emitAssertTick(opID, loc, tick, n, fail, "", "")
		case v.Equals(expected):
			p.emitAssertTick(opID, loc, tick, n, nil, v.String(), TickPass)
			return Outcome{
				Pass:     true,
				Expected: expected,
				Actual:   v,
				Observed: true,
				Count:    n,
			}, nil
		default:
			lastVal, observed, lastFail = v, true, nil
			p.emitAssertTick(opID, loc, tick, n, nil, v.String(), "")
		}

		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		if !p.clock.Now().Before(deadline) {
			break
		}
		if err := p.clock.Sleep(ctx, co.pollInterval); err != nil {
			return Outcome{}, err
		}
	}

	finalVal := ""
	if observed {
		finalVal = lastVal.String()
	}
	p.emitAssertTick(opID, loc, 0, lastN, lastFail, finalVal, TickFail)
	return mismatchOutcome(expected, lastVal, observed, lastFail, lastN), nil
}

// assertTick performs one cardinality check plus at most one read.
// err reports a failed count; fail reports a failed read.
func (p *Prober) assertTick(ctx context.Context, loc host.Locator) (n int, v scopeval.Value, fail *EvalFailure, err error) {
	n, err = loc.Count(ctx)
	if err != nil {
		return 0, scopeval.Value{}, nil, err
	}
	if n > 1 {
		return n, scopeval.Value{}, nil, nil
	}

	var el host.Element
	if n == 1 {
		el, err = loc.Nth(ctx, 0)
		if err != nil {
			// The element vanished between count and fetch.
			return n, scopeval.Value{}, newFailure(FailureEvaluationThrew, err.Error()), nil
		}
	}

	v, rerr := p.reader.Read(ctx, el)
	if rerr != nil {
		ef, ok := AsEvalFailure(rerr)
		if !ok {
			ef = newFailure(FailureEvaluationThrew, rerr.Error())
		}
		return n, scopeval.Value{}, ef, nil
	}
	return n, v, nil, nil
}

func (p *Prober) emitAssertTick(opID string, loc host.Locator, tick, n int, fail *EvalFailure, value, outcome string) {
	obs := TickObservation{
		Op:         OpAssert,
		OpID:       opID,
		Selector:   loc.Selector(),
		Tick:       tick,
		At:         p.clock.Now(),
		Candidates: n,
		Value:      value,
		Outcome:    outcome,
	}
	if fail != nil {
		obs.Failure = string(fail.Code)
	}
	p.emit(obs)
}

func strictViolationOutcome(loc host.Locator, expected any, n int) Outcome {
	return Outcome{
		Expected:        expected,
		StrictViolation: true,
		Count:           n,
		Message: fmt.Sprintf("strict mode violation: locator %q resolved to %d elements",
			loc.Selector(), n),
	}
}

func mismatchOutcome(expected any, lastVal scopeval.Value, observed bool, lastFail *EvalFailure, n int) Outcome {
	var b strings.Builder
	b.WriteString("Assertion failed: model value mismatch\n")
	fmt.Fprintf(&b, "  Expected: %s\n", renderExpected(expected))
	switch {
	case observed:
		fmt.Fprintf(&b, "  Actual: %s\n", lastVal.String())
	case lastFail != nil:
		fmt.Fprintf(&b, "  Actual: no value read (%s)\n", lastFail.Error())
	default:
		b.WriteString("  Actual: no value read\n")
	}

	return Outcome{
		Expected: expected,
		Actual:   lastVal,
		Observed: observed,
		Failure:  lastFail,
		Count:    n,
		Message:  b.String(),
	}
}

func renderExpected(expected any) string {
	b, err := scopeval.MarshalCanonical(expected)
	if err != nil {
		return fmt.Sprintf("%v", expected)
	}
	return string(b)
}
