package probe

import (
	"context"

	"github.com/roach88/scopeprobe/host"
	"github.com/roach88/scopeprobe/scopeval"
)

// readProbeJS is the function shipped to the host's evaluation primitive.
// It runs inside the application's execution environment with the live
// element and the model expression as arguments, and reports its result as a
// tagged object so the Go side can tell "no runtime" and "no scope" apart
// from an evaluated value.
//
// When the scope exposes a native $eval entry point the expression is handed
// to it verbatim (so it may be a general expression, not just property
// access). Otherwise the expression is walked as dot-separated property
// accesses, short-circuiting to undefined at the first absent segment.
//
// JSON cannot carry undefined, so an undefined result is encoded by omitting
// the value key entirely. The function never writes to the scope.
const readProbeJS = `(function(el, expr) {
	var w = (typeof window !== "undefined") ? window : this;
	if (!w.angular || typeof w.angular.element !== "function") {
		return {status: "runtime-absent"};
	}
	var scope = w.angular.element(el).scope();
	if (scope === null || scope === undefined) {
		return {status: "scope-unavailable"};
	}
	var value;
	if (typeof scope.$eval === "function") {
		value = scope.$eval(expr);
	} else {
		value = scope;
		var parts = expr.split(".");
		for (var i = 0; i < parts.length; i++) {
			if (value === null || value === undefined) {
				value = undefined;
				break;
			}
			value = value[parts[i]];
		}
	}
	if (value === undefined) {
		return {status: "ok"};
	}
	return {status: "ok", value: value};
})`

// Reader reads the evaluated model value off one candidate element.
// It is stateless; both poll loops share one instance.
type Reader struct {
	attr string
}

// NewReader creates a reader for the given model attribute name.
func NewReader(attr string) *Reader {
	return &Reader{attr: attr}
}

// Read returns the current evaluated value of el's model expression, or an
// *EvalFailure. A nil element fails with FailureNoAttribute, which is how
// "zero candidates" surfaces to callers that delegate the empty case here.
//
// Every failure mode is mapped onto the EvalFailure taxonomy; Read never
// lets an evaluation error escape as anything else.
func (r *Reader) Read(ctx context.Context, el host.Element) (scopeval.Value, error) {
	if el == nil {
		return scopeval.Undefined(), newFailure(FailureNoAttribute, "no candidate element")
	}

	expr, ok, err := el.Attribute(ctx, r.attr)
	if err != nil {
		return scopeval.Undefined(), newFailure(FailureEvaluationThrew, err.Error())
	}
	if !ok || expr == "" {
		return scopeval.Undefined(), newFailure(FailureNoAttribute, "element has no "+r.attr+" attribute")
	}

	raw, err := el.Evaluate(ctx, readProbeJS, expr)
	if err != nil {
		return scopeval.Undefined(), newFailure(FailureEvaluationThrew, err.Error())
	}

	return decodeProbeResponse(raw)
}

func decodeProbeResponse(raw any) (scopeval.Value, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return scopeval.Undefined(), newFailure(FailureEvaluationThrew, "malformed probe response")
	}

	status, _ := m["status"].(string)
	switch status {
	case "ok":
		v, present := m["value"]
		if !present {
			return scopeval.Undefined(), nil
		}
		return scopeval.DefinedValue(v), nil
	case string(FailureRuntimeAbsent):
		return scopeval.Undefined(), newFailure(FailureRuntimeAbsent, "reactive runtime not reachable from page")
	case string(FailureScopeUnavailable):
		return scopeval.Undefined(), newFailure(FailureScopeUnavailable, "no scope owns this element")
	default:
		return scopeval.Undefined(), newFailure(FailureEvaluationThrew, "unrecognized probe status "+status)
	}
}
