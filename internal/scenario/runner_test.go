package scenario

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, y string) *Scenario {
	t.Helper()
	sc, err := Parse([]byte(y))
	require.NoError(t, err)
	return sc
}

func TestRun_RadioGroupTransition(t *testing.T) {
	sc := mustParse(t, `
name: radio-transition
description: The checked radio moves while a strict assertion polls.
page:
  scopes:
    - id: main
      native_eval: true
      state:
        user:
          role: guest
  elements:
    - attrs: {ng-model: user.role, value: guest, checked: checked}
      visible: true
      scope: main
    - attrs: {ng-model: user.role, value: admin}
      visible: true
      scope: main
timeline:
  - at_ms: 120
    remove_attr: {element: 0, name: checked}
  - at_ms: 120
    set_attr: {element: 1, name: checked, value: checked}
  - at_ms: 120
    set_model: {scope: main, path: user.role, value: admin}
steps:
  - op: assert
    selector: '[ng-model="user.role"][checked]'
    equals: admin
    poll_ms: 50
    expect:
      pass: true
      strict_violation: false
`)

	result, err := Run(sc)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Steps, 1)
	assert.True(t, result.Steps[0].Pass)
	assert.GreaterOrEqual(t, result.Steps[0].ElapsedMS, int64(120))
}

func TestRun_TimeoutProducesSentinel(t *testing.T) {
	sc := mustParse(t, `
name: never-appears
description: A value that never shows up times out to a zero-match locator.
page:
  scopes:
    - id: main
      native_eval: true
      state:
        user:
          email: old@example.com
  elements:
    - attrs: {ng-model: user.email, id: email}
      visible: true
      scope: main
steps:
  - op: resolve
    model: user.email
    equals: new@example.com
    timeout_ms: 300
    poll_ms: 100
    expect:
      matches: 0
`)

	result, err := Run(sc)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, int64(300), result.Steps[0].ElapsedMS)

	require.NotEmpty(t, result.Ticks)
	assert.Equal(t, "timeout", result.Ticks[len(result.Ticks)-1].Outcome)
}

func TestRun_ExpectationFailureMarksResult(t *testing.T) {
	sc := mustParse(t, `
name: wrong-expectation
description: A wrong match count surfaces as an expectation error.
page:
  scopes:
    - id: main
      native_eval: true
      state:
        user:
          email: test@example.com
  elements:
    - attrs: {ng-model: user.email, id: email}
      visible: true
      scope: main
steps:
  - op: resolve
    model: user.email
    equals: test@example.com
    expect:
      matches: 2
`)

	result, err := Run(sc)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected 2 matches, got 1")
}

func TestRun_NormalizesSynthesizedMarkers(t *testing.T) {
	sc := mustParse(t, `
name: marker-normalization
description: Elements without ids get markers that normalize to stable aliases.
page:
  scopes:
    - id: main
      native_eval: true
      state:
        user:
          email: test@example.com
  elements:
    - attrs: {ng-model: user.email}
      visible: true
      scope: main
steps:
  - op: resolve
    model: user.email
    equals: test@example.com
    expect:
      matches: 1
`)

	result, err := Run(sc)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	want := fmt.Sprintf(`[data-probe-ref="op-1-%d-0"]`, runEpoch.UnixNano())
	assert.Equal(t, want, result.Steps[0].Selector,
		"marker selectors normalize to the aliased operation id")
}
