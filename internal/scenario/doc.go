// Package scenario runs declarative probe scenarios against a simulated
// page. A scenario YAML file describes the page (scopes, elements), a
// timeline of mutations applied at virtual-clock offsets, and a list of
// resolve/assert steps with expected outcomes.
//
// Scenarios are validated twice: a CUE schema rejects structural mistakes
// with positions, and Go-side checks catch cross-field problems the schema
// cannot express (step targets, timeline element indexes). Execution is
// fully deterministic: a fake clock drives the poll loops, so the recorded
// tick trace is stable and suitable for golden-file comparison.
package scenario
