package probe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scopeprobe/internal/simhost"
	"github.com/roach88/scopeprobe/internal/testutil"
)

var fixtureEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type tickCollector struct {
	mu    sync.Mutex
	ticks []TickObservation
}

func (c *tickCollector) ObserveTick(obs TickObservation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = append(c.ticks, obs)
}

func (c *tickCollector) all() []TickObservation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TickObservation(nil), c.ticks...)
}

type proberFixture struct {
	page  *simhost.Page
	clock *testutil.FakeClock
	obs   *tickCollector
	p     *Prober
}

func newProberFixture(t *testing.T) *proberFixture {
	t.Helper()
	page, err := simhost.NewPage()
	require.NoError(t, err)

	f := &proberFixture{
		page:  page,
		clock: testutil.NewFakeClock(fixtureEpoch),
		obs:   &tickCollector{},
	}
	f.p = New(page, WithClock(f.clock), WithObserver(f.obs))
	return f
}

func TestResolve_ImmediateMatchUsesExistingID(t *testing.T) {
	f := newProberFixture(t)
	ctx := context.Background()

	_, err := f.page.NewScope("main", map[string]any{
		"user": map[string]any{"email": "test@example.com"},
	}, true)
	require.NoError(t, err)
	f.page.Append(simhost.ElementSpec{
		Attrs:   map[string]string{"ng-model": "user.email", "id": "email-input"},
		Visible: true,
		Scope:   "main",
	})

	res, err := f.p.AcquireByModelValue(ctx, "user.email", "test@example.com")
	require.NoError(t, err)

	assert.Equal(t, `[id="email-input"]`, res.Locator().Selector())
	n, err := res.Locator().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, fixtureEpoch, f.clock.Now(), "first-tick match must not sleep")
}

func TestResolve_SynthesizesMarkerWithoutID(t *testing.T) {
	f := newProberFixture(t)
	ctx := context.Background()

	_, err := f.page.NewScope("main", map[string]any{
		"user": map[string]any{"email": "test@example.com"},
	}, true)
	require.NoError(t, err)
	el := f.page.Append(simhost.ElementSpec{
		Attrs:   map[string]string{"ng-model": "user.email"},
		Visible: true,
		Scope:   "main",
	})

	res, err := f.p.AcquireByModelValue(ctx, "user.email", "test@example.com")
	require.NoError(t, err)

	marker, ok := el.Attr("data-probe-ref")
	require.True(t, ok, "matched element must carry the synthesized marker")
	assert.NotEmpty(t, marker)

	n, err := res.Locator().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Release removes the marker again.
	require.NoError(t, res.Release(ctx))
	_, ok = el.Attr("data-probe-ref")
	assert.False(t, ok)
}

func TestResolve_FiltersByEvaluatedValue(t *testing.T) {
	f := newProberFixture(t)
	ctx := context.Background()

	_, err := f.page.NewScope("a", map[string]any{"user": map[string]any{"role": "guest"}}, true)
	require.NoError(t, err)
	_, err = f.page.NewScope("b", map[string]any{"user": map[string]any{"role": "admin"}}, true)
	require.NoError(t, err)

	f.page.Append(simhost.ElementSpec{
		Attrs: map[string]string{"ng-model": "user.role", "id": "guest-input"}, Visible: true, Scope: "a",
	})
	f.page.Append(simhost.ElementSpec{
		Attrs: map[string]string{"ng-model": "user.role", "id": "admin-input"}, Visible: true, Scope: "b",
	})

	res, err := f.p.AcquireByModelValue(ctx, "user.role", "admin")
	require.NoError(t, err)
	assert.Equal(t, `[id="admin-input"]`, res.Locator().Selector())
}

func TestResolve_BrokenCandidateDoesNotBlockOthers(t *testing.T) {
	f := newProberFixture(t)
	ctx := context.Background()

	_, err := f.page.NewScope("main", map[string]any{
		"user": map[string]any{"email": "test@example.com"},
	}, true)
	require.NoError(t, err)

	// First candidate has no owning scope: its read fails every tick.
	f.page.Append(simhost.ElementSpec{
		Attrs: map[string]string{"ng-model": "user.email"}, Visible: true,
	})
	f.page.Append(simhost.ElementSpec{
		Attrs: map[string]string{"ng-model": "user.email", "id": "good"}, Visible: true, Scope: "main",
	})

	res, err := f.p.AcquireByModelValue(ctx, "user.email", "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, `[id="good"]`, res.Locator().Selector())
	assert.Equal(t, fixtureEpoch, f.clock.Now(), "broken candidate must not force another tick")
}

func TestResolve_ValueAppearsWithinTimeout(t *testing.T) {
	f := newProberFixture(t)
	ctx := context.Background()

	scope, err := f.page.NewScope("main", map[string]any{
		"user": map[string]any{"email": "old@example.com"},
	}, true)
	require.NoError(t, err)
	f.page.Append(simhost.ElementSpec{
		Attrs: map[string]string{"ng-model": "user.email", "id": "email"}, Visible: true, Scope: "main",
	})

	// An external actor sets the value 250ms in.
	f.clock.After(250*time.Millisecond, func() {
		require.NoError(t, scope.Set("user.email", "test@example.com"))
	})

	res, err := f.p.AcquireByModelValue(ctx, "user.email", "test@example.com", WithTimeout(5*time.Second))
	require.NoError(t, err)

	n, err := res.Locator().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	visible, err := res.Locator().Visible(ctx)
	require.NoError(t, err)
	assert.True(t, visible)

	elapsed := f.clock.Now().Sub(fixtureEpoch)
	assert.GreaterOrEqual(t, elapsed, 250*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond, "should match within a poll interval of the change")
}

func TestResolve_StaleValueYieldsEmptyLocator(t *testing.T) {
	f := newProberFixture(t)
	ctx := context.Background()

	_, err := f.page.NewScope("main", map[string]any{
		"user": map[string]any{"email": "test@example.com"},
	}, true)
	require.NoError(t, err)
	f.page.Append(simhost.ElementSpec{
		Attrs: map[string]string{"ng-model": "user.email", "id": "email"}, Visible: true, Scope: "main",
	})

	res, err := f.p.AcquireByModelValue(ctx, "user.email", "old@example.com",
		WithTimeout(300*time.Millisecond))
	require.NoError(t, err, "timed-out resolution still succeeds structurally")

	n, err := res.Locator().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResolve_TimeoutWindow(t *testing.T) {
	f := newProberFixture(t)
	ctx := context.Background()

	f.page.Append(simhost.ElementSpec{
		Attrs: map[string]string{"ng-model": "user.email"}, Visible: true,
	})

	const (
		timeout  = 500 * time.Millisecond
		interval = 100 * time.Millisecond
	)
	res, err := f.p.AcquireByModelValue(ctx, "user.email", "never",
		WithTimeout(timeout), WithPollInterval(interval))
	require.NoError(t, err)

	n, err := res.Locator().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	elapsed := f.clock.Now().Sub(fixtureEpoch)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.LessOrEqual(t, elapsed, timeout+interval)
}

func TestResolve_ElapsedDeadlineStillTicksOnce(t *testing.T) {
	f := newProberFixture(t)
	ctx := context.Background()

	_, err := f.page.NewScope("main", map[string]any{
		"user": map[string]any{"email": "test@example.com"},
	}, true)
	require.NoError(t, err)
	f.page.Append(simhost.ElementSpec{
		Attrs: map[string]string{"ng-model": "user.email", "id": "email"}, Visible: true, Scope: "main",
	})

	res, err := f.p.AcquireByModelValue(ctx, "user.email", "test@example.com", WithTimeout(0))
	require.NoError(t, err)

	n, err := res.Locator().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "zero timeout still performs one evaluation attempt")
}

func TestResolve_Idempotence(t *testing.T) {
	f := newProberFixture(t)
	ctx := context.Background()

	_, err := f.page.NewScope("main", map[string]any{
		"user": map[string]any{"email": "test@example.com"},
	}, true)
	require.NoError(t, err)
	el := f.page.Append(simhost.ElementSpec{
		Attrs: map[string]string{"ng-model": "user.email"}, Visible: true, Scope: "main",
	})

	first, err := f.p.AcquireByModelValue(ctx, "user.email", "test@example.com")
	require.NoError(t, err)
	a, err := first.Locator().Nth(ctx, 0)
	require.NoError(t, err)
	assert.Same(t, el, a.(*simhost.Element))
	require.NoError(t, first.Release(ctx))

	// Releasing and resolving again re-identifies the same logical element
	// under a fresh marker.
	second, err := f.p.AcquireByModelValue(ctx, "user.email", "test@example.com")
	require.NoError(t, err)
	b, err := second.Locator().Nth(ctx, 0)
	require.NoError(t, err)
	assert.Same(t, el, b.(*simhost.Element))
}

func TestResolve_MultipleMatchesUnionLocator(t *testing.T) {
	f := newProberFixture(t)
	ctx := context.Background()

	_, err := f.page.NewScope("main", map[string]any{
		"tags": map[string]any{"active": true},
	}, true)
	require.NoError(t, err)
	f.page.Append(simhost.ElementSpec{
		Attrs: map[string]string{"ng-model": "tags.active"}, Visible: true, Scope: "main",
	})
	f.page.Append(simhost.ElementSpec{
		Attrs: map[string]string{"ng-model": "tags.active"}, Visible: true, Scope: "main",
	})

	res, err := f.p.AcquireByModelValue(ctx, "tags.active", true)
	require.NoError(t, err)

	n, err := res.Locator().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "all matches from the winning tick are unioned")
}

func TestResolve_EmitsTickObservations(t *testing.T) {
	f := newProberFixture(t)
	ctx := context.Background()

	_, err := f.p.AcquireByModelValue(ctx, "user.email", "never",
		WithTimeout(200*time.Millisecond), WithPollInterval(100*time.Millisecond))
	require.NoError(t, err)

	ticks := f.obs.all()
	require.NotEmpty(t, ticks)
	last := ticks[len(ticks)-1]
	assert.Equal(t, OpResolve, last.Op)
	assert.Equal(t, TickTimeout, last.Outcome)
	for _, obs := range ticks {
		assert.Equal(t, ticks[0].OpID, obs.OpID, "one operation id across the loop")
	}
}
