// Package probe locates and asserts on form-control values that live inside
// a reactive application's scope tree rather than in the DOM attributes an
// automation tool normally sees.
//
// The package reconciles two independently mutating systems, the host's
// element query engine and the application's scope evaluation, into
// deadline-bounded poll loops:
//
//   - Prober.AcquireByModelValue polls for elements whose evaluated model
//     value equals a target and pins the matches behind stable selectors.
//   - Prober.AssertModelValue re-checks a fixed locator's cardinality and
//     evaluated value until it matches, times out, or hits an unresolvable
//     ambiguity.
//
// A Prober wraps a host.Page; nothing here mutates shared state in the
// automation layer. The only side effect is the throwaway marker attribute a
// resolution may write onto matched elements, which Resolved.Release removes.
package probe
