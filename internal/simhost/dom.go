package simhost

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/scopeprobe/host"
)

// Page is one simulated page: a flat element list and a script runtime.
// It implements host.Page.
//
// A single mutex guards both the DOM and the runtime; the runtime is not
// safe for concurrent use on its own.
type Page struct {
	mu       sync.Mutex
	rt       *runtime
	elements []*Element
	scopes   map[string]*Scope
}

// ElementSpec describes an element to add to a page.
type ElementSpec struct {
	// Attrs are the element's attributes. An "id" attribute doubles as the
	// element's pre-existing unique identifier.
	Attrs map[string]string

	// Visible defaults to false; most fixtures want true.
	Visible bool

	// Scope names the owning scope, created beforehand with NewScope.
	// Empty means no scope owns the element.
	Scope string
}

// NewPage creates an empty page with a live reactive runtime.
func NewPage() (*Page, error) {
	p := &Page{scopes: map[string]*Scope{}}
	rt, err := newRuntime(p)
	if err != nil {
		return nil, err
	}
	p.rt = rt
	return p, nil
}

// NewScope creates a named scope with the given initial state. When
// nativeEval is true the scope exposes a $eval expression evaluator;
// otherwise readers must fall back to dotted-path traversal.
func (p *Page) NewScope(id string, state map[string]any, nativeEval bool) (*Scope, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.scopes[id]; exists {
		return nil, errors.New("scope already exists: " + id)
	}
	s, err := p.rt.newScope(id, state, nativeEval)
	if err != nil {
		return nil, err
	}
	p.scopes[id] = s
	return s, nil
}

// Scope returns a previously created scope.
func (p *Page) Scope(id string) (*Scope, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.scopes[id]
	return s, ok
}

// Append adds an element to the page and returns its handle.
func (p *Page) Append(spec ElementSpec) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()

	attrs := make(map[string]string, len(spec.Attrs))
	for k, v := range spec.Attrs {
		attrs[k] = v
	}
	el := &Element{
		page:    p,
		attrs:   attrs,
		visible: spec.Visible,
	}
	if spec.Scope != "" {
		el.scope = p.scopes[spec.Scope]
	}
	p.elements = append(p.elements, el)
	return el
}

// AttachScope binds el to a previously created scope, as when the app
// finishes bootstrapping after the element is already in the DOM.
func (p *Page) AttachScope(el *Element, scope string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.scopes[scope]
	if !ok {
		return errors.New("no such scope: " + scope)
	}
	el.scope = s
	return nil
}

// DetachRuntime removes the reactive runtime from the page's global
// context, so subsequent reads fail with a runtime-absent status.
func (p *Page) DetachRuntime() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rt.detach()
}

// QueryByAttribute implements host.Page.
func (p *Page) QueryByAttribute(ctx context.Context, name, value string) ([]host.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []host.Element
	for _, el := range p.elements {
		if el.removed {
			continue
		}
		if v, ok := el.attrs[name]; ok && v == value {
			out = append(out, el)
		}
	}
	return out, nil
}

// CompoundLocator implements host.Page.
func (p *Page) CompoundLocator(selectors []string) host.Locator {
	return &Locator{page: p, selectors: append([]string(nil), selectors...)}
}

// Element is one simulated DOM node. It implements host.Element and also
// exposes mutators used by fixtures to change the page between poll ticks.
type Element struct {
	page    *Page
	attrs   map[string]string
	visible bool
	scope   *Scope
	removed bool
}

var errDetached = errors.New("element is detached from the page")

// Attribute implements host.Element.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if e.removed {
		return "", false, errDetached
	}
	v, ok := e.attrs[name]
	return v, ok, nil
}

// Evaluate implements host.Element. fnSource runs inside the page's script
// runtime with a live wrapper for this element as its first argument.
func (e *Element) Evaluate(ctx context.Context, fnSource string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if e.removed {
		return nil, errDetached
	}
	return e.page.rt.evaluate(e, fnSource, args)
}

// SetAttr sets an attribute from the fixture side (e.g. flipping "checked"
// across a radio group).
func (e *Element) SetAttr(name, value string) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.attrs[name] = value
}

// RemoveAttr removes an attribute from the fixture side.
func (e *Element) RemoveAttr(name string) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	delete(e.attrs, name)
}

// Attr reads an attribute without a context, for fixture assertions.
func (e *Element) Attr(name string) (string, bool) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	v, ok := e.attrs[name]
	return v, ok
}

// SetVisible toggles the element's visibility.
func (e *Element) SetVisible(v bool) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.visible = v
}

// Remove detaches the element: queries stop returning it and held handles
// error on use.
func (e *Element) Remove() {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.removed = true
}

// locked accessors for use inside the runtime, which already holds the page
// mutex when probe functions call back into the element.

func (e *Element) attrLocked(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

func (e *Element) setAttrLocked(name, value string) {
	e.attrs[name] = value
}

func (e *Element) removeAttrLocked(name string) {
	delete(e.attrs, name)
}
