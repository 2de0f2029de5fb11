package probe

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/scopeprobe/host"
)

const (
	setAttributeJS    = `(function(el, name, value) { el.setAttribute(name, value); })`
	removeAttributeJS = `(function(el, name) { el.removeAttribute(name); })`
)

// Resolved is the outcome of a value-filtered resolution: a compound locator
// over every element that matched on the winning tick, plus the markers that
// resolution synthesized to pin them. Callers that care about leaving the
// page clean call Release when done with the locator.
type Resolved struct {
	locator host.Locator
	page    host.Page
	markers []string
}

// Locator returns the compound locator. After a timed-out resolution this is
// a structurally valid locator that matches zero elements.
func (r *Resolved) Locator() host.Locator {
	return r.locator
}

// Release removes every marker attribute this resolution wrote. Elements
// that disappeared in the meantime are skipped; the first transport error is
// returned after attempting the rest.
func (r *Resolved) Release(ctx context.Context) error {
	var firstErr error
	for _, marker := range r.markers {
		els, err := r.page.QueryByAttribute(ctx, markerAttribute, marker)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, el := range els {
			if _, err := el.Evaluate(ctx, removeAttributeJS, markerAttribute); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	r.markers = nil
	return firstErr
}

// AcquireByModelValue polls for elements whose evaluated model value equals
// target and pins each match behind a stable selector: the element's own id
// when it has one, a synthesized marker attribute otherwise.
//
// The first tick with at least one match wins and resolution returns
// immediately; later ticks with a different match set are never considered.
// When the deadline passes with zero matches in every tick the resolution
// still succeeds structurally, returning a locator built from a sentinel
// selector that matches nothing. Composing with a visibility assertion is
// how callers distinguish "found" from "never appeared".
//
// A failed read on one candidate never aborts the tick; the candidate is
// treated as a non-match and the rest are still considered.
func (p *Prober) AcquireByModelValue(ctx context.Context, path string, target any, opts ...CallOption) (*Resolved, error) {
	co := newCallOptions(DefaultResolvePollInterval, opts)
	opID := uuid.Must(uuid.NewV7()).String()
	deadline := p.clock.Now().Add(co.timeout)

	for tick := 1; ; tick++ {
		selectors, markers := p.resolveTick(ctx, opID, path, target, tick)
		if len(selectors) > 0 {
			return &Resolved{
				locator: p.page.CompoundLocator(selectors),
				page:    p.page,
				markers: markers,
			}, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !p.clock.Now().Before(deadline) {
			break
		}
		if err := p.clock.Sleep(ctx, co.pollInterval); err != nil {
			return nil, err
		}
	}

	p.logger.Debug("value-filtered locate timed out",
		"path", path, "op_id", opID, "timeout", co.timeout)
	p.emit(TickObservation{
		Op: OpResolve, OpID: opID, ModelPath: path,
		At: p.clock.Now(), Outcome: TickTimeout,
	})
	return &Resolved{
		locator: p.page.CompoundLocator([]string{host.PresenceSelector(noMatchAttribute)}),
		page:    p.page,
	}, nil
}

// LocateByModelValue is AcquireByModelValue without the release handle.
// Synthesized markers stay on the page; callers that need them gone use
// AcquireByModelValue and Release.
func (p *Prober) LocateByModelValue(ctx context.Context, path string, target any, opts ...CallOption) (host.Locator, error) {
	res, err := p.AcquireByModelValue(ctx, path, target, opts...)
	if err != nil {
		return nil, err
	}
	return res.Locator(), nil
}

// resolveTick runs one observation: fresh attribute query, one read per
// candidate, a stable reference for every candidate whose value matched.
func (p *Prober) resolveTick(ctx context.Context, opID, path string, target any, tick int) (selectors, markers []string) {
	els, err := p.page.QueryByAttribute(ctx, p.attr, path)
	if err != nil {
		// Absorbed: the next tick re-queries.
		p.logger.Debug("attribute query failed", "path", path, "err", err)
		p.emit(TickObservation{
			Op: OpResolve, OpID: opID, ModelPath: path, Tick: tick,
			At: p.clock.Now(), Failure: string(FailureEvaluationThrew),
		})
		return nil, nil
	}

	stamp := p.clock.Now().UnixNano()
	matched := 0
	for i, el := range els {
		v, err := p.reader.Read(ctx, el)
		if err != nil {
			p.logger.Debug("candidate read failed", "path", path, "index", i, "err", err)
			continue
		}
		if !v.Equals(target) {
			continue
		}
		matched++
		sel, marker, err := p.stableReference(ctx, el, opID, stamp, i)
		if err != nil {
			// The element went away between read and pin; drop it.
			p.logger.Debug("pinning candidate failed", "path", path, "index", i, "err", err)
			continue
		}
		selectors = append(selectors, sel)
		if marker != "" {
			markers = append(markers, marker)
		}
	}

	outcome := ""
	if len(selectors) > 0 {
		outcome = TickMatched
	}
	p.emit(TickObservation{
		Op: OpResolve, OpID: opID, ModelPath: path, Tick: tick,
		At: p.clock.Now(), Candidates: len(els), Matched: matched,
		Outcome: outcome,
	})
	return selectors, markers
}

// stableReference re-identifies el independent of the tick that found it.
// The marker value is unique per (operation, tick stamp, position) so two
// overlapping resolutions never collide on the same element.
func (p *Prober) stableReference(ctx context.Context, el host.Element, opID string, stamp int64, pos int) (selector, marker string, err error) {
	id, ok, err := el.Attribute(ctx, "id")
	if err == nil && ok && id != "" {
		return host.AttributeSelector("id", id), "", nil
	}

	marker = fmt.Sprintf("%s-%d-%d", opID, stamp, pos)
	if _, err := el.Evaluate(ctx, setAttributeJS, markerAttribute, marker); err != nil {
		return "", "", err
	}
	return host.AttributeSelector(markerAttribute, marker), marker, nil
}
