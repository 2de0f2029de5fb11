package probe

import (
	"io"
	"log/slog"

	"github.com/roach88/scopeprobe/host"
)

// DefaultModelAttribute is the attribute that mirrors a model path onto its
// controlling element.
const DefaultModelAttribute = "ng-model"

// Attributes the prober writes or reserves on the observed page. Callers
// must treat both as implementation details, not stable identifiers.
const (
	// markerAttribute is the throwaway marker a resolution writes onto
	// matched elements that carry no id of their own.
	markerAttribute = "data-probe-ref"

	// noMatchAttribute is the sentinel used to build a selector guaranteed
	// to match nothing. No real element ever carries it.
	noMatchAttribute = "data-probe-no-match"
)

// Prober owns the capability set {attribute locate, value-filtered locate,
// strict assert} over one host page. It holds no mutable state of its own;
// concurrent invocations run independent poll loops.
type Prober struct {
	page     host.Page
	attr     string
	clock    Clock
	logger   *slog.Logger
	observer Observer
	reader   *Reader
}

// New wraps a host page. This is deliberate composition rather than
// extension of the host's own locator type: the host layer stays untouched
// and two probers with different configurations can coexist on one page.
func New(page host.Page, opts ...Option) *Prober {
	p := &Prober{
		page:   page,
		attr:   DefaultModelAttribute,
		clock:  SystemClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.reader = NewReader(p.attr)
	return p
}

// LocateByModel returns the plain attribute locator for a model path. No
// polling, no scope evaluation: just the attribute-equality selector handed
// to the host.
func (p *Prober) LocateByModel(path string) host.Locator {
	return p.page.CompoundLocator([]string{host.AttributeSelector(p.attr, path)})
}

// ModelAttribute returns the attribute name this prober matches on.
func (p *Prober) ModelAttribute() string {
	return p.attr
}

func (p *Prober) emit(obs TickObservation) {
	if p.observer != nil {
		p.observer.ObserveTick(obs)
	}
}
