package simhost

import (
	"fmt"

	"github.com/dop251/goja"
)

// bootstrapJS sets up the simulated page's global context: a window object,
// the reactive runtime handle (window.angular) that maps elements to their
// owning scopes, and the helpers the Go side uses to build scopes and walk
// dotted paths.
//
// Scopes with a native evaluator get $eval as a non-enumerable property so
// it never leaks into exported scope state. $eval resolves plain dotted
// paths safely (absent segments yield undefined, as the real runtime's
// parser does) and falls back to full expression evaluation for anything
// else.
const bootstrapJS = `
var window = this;
window.__scopes__ = {};
window.angular = {
	element: function(el) {
		return {
			scope: function() {
				if (!el || !el.__scopeId__) { return null; }
				return window.__scopes__[el.__scopeId__] || null;
			}
		};
	}
};
window.__newScope__ = function(id, nativeEval) {
	var scope = {};
	if (nativeEval) {
		Object.defineProperty(scope, "$eval", {
			enumerable: false,
			value: function(expr) {
				if (/^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$/.test(expr)) {
					var cur = scope;
					var parts = expr.split(".");
					for (var i = 0; i < parts.length; i++) {
						if (cur === null || cur === undefined) { return undefined; }
						cur = cur[parts[i]];
					}
					return cur;
				}
				return (new Function("s", "with (s) { return (" + expr + "); }"))(scope);
			}
		});
	}
	window.__scopes__[id] = scope;
	return scope;
};
window.__setPath__ = function(scope, path, value) {
	var parts = path.split(".");
	var cur = scope;
	for (var i = 0; i < parts.length - 1; i++) {
		if (typeof cur[parts[i]] !== "object" || cur[parts[i]] === null) {
			cur[parts[i]] = {};
		}
		cur = cur[parts[i]];
	}
	cur[parts[parts.length - 1]] = value;
};
window.__getPath__ = function(scope, path) {
	var parts = path.split(".");
	var cur = scope;
	for (var i = 0; i < parts.length; i++) {
		if (cur === null || cur === undefined) { return {found: false}; }
		if (!(parts[i] in Object(cur))) { return {found: false}; }
		cur = cur[parts[i]];
	}
	return {found: true, value: cur};
};
window.__detach__ = function() { delete window.angular; };
`

// runtime wraps the goja VM. All entry points assume the page mutex is held.
type runtime struct {
	vm   *goja.Runtime
	page *Page
}

func newRuntime(p *Page) (*runtime, error) {
	vm := goja.New()
	if _, err := vm.RunString(bootstrapJS); err != nil {
		return nil, fmt.Errorf("bootstrap page runtime: %w", err)
	}
	return &runtime{vm: vm, page: p}, nil
}

func (r *runtime) detach() error {
	_, err := r.vm.RunString("window.__detach__();")
	return err
}

// newScope builds a scope object inside the VM and seeds its state.
func (r *runtime) newScope(id string, state map[string]any, nativeEval bool) (*Scope, error) {
	newScopeFn, err := r.callable("__newScope__")
	if err != nil {
		return nil, err
	}
	v, err := newScopeFn(goja.Undefined(), r.vm.ToValue(id), r.vm.ToValue(nativeEval))
	if err != nil {
		return nil, fmt.Errorf("create scope %q: %w", id, err)
	}
	obj := v.ToObject(r.vm)

	for k, val := range state {
		if err := obj.Set(k, r.vm.ToValue(val)); err != nil {
			return nil, fmt.Errorf("seed scope %q key %q: %w", id, k, err)
		}
	}
	return &Scope{page: r.page, id: id, obj: obj}, nil
}

// evaluate compiles fnSource as a function literal and calls it with the
// element wrapper followed by args. A thrown exception comes back as an
// error, matching the host contract.
func (r *runtime) evaluate(el *Element, fnSource string, args []any) (any, error) {
	v, err := r.vm.RunString("(" + fnSource + ")")
	if err != nil {
		return nil, fmt.Errorf("compile evaluation function: %w", err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("evaluation source is not a function")
	}

	callArgs := make([]goja.Value, 0, len(args)+1)
	callArgs = append(callArgs, r.elementObject(el))
	for _, a := range args {
		callArgs = append(callArgs, r.vm.ToValue(a))
	}

	res, err := fn(goja.Undefined(), callArgs...)
	if err != nil {
		return nil, err
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return nil, nil
	}
	return res.Export(), nil
}

// elementObject builds the live wrapper a probe function sees: the standard
// attribute methods plus the scope binding the runtime handle resolves.
func (r *runtime) elementObject(el *Element) goja.Value {
	if el == nil {
		return goja.Null()
	}
	obj := r.vm.NewObject()
	_ = obj.Set("hasAttribute", func(name string) bool {
		_, ok := el.attrLocked(name)
		return ok
	})
	_ = obj.Set("getAttribute", func(name string) goja.Value {
		v, ok := el.attrLocked(name)
		if !ok {
			return goja.Null()
		}
		return r.vm.ToValue(v)
	})
	_ = obj.Set("setAttribute", func(name, value string) {
		el.setAttrLocked(name, value)
	})
	_ = obj.Set("removeAttribute", func(name string) {
		el.removeAttrLocked(name)
	})
	if el.scope != nil {
		_ = obj.Set("__scopeId__", el.scope.id)
	}
	return obj
}

func (r *runtime) callable(name string) (goja.Callable, error) {
	v := r.vm.GlobalObject().Get(name)
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("runtime helper %q missing", name)
	}
	return fn, nil
}

// Scope is a live scope object inside the page runtime. Mutators model the
// application changing its own state while a probe polls.
type Scope struct {
	page *Page
	id   string
	obj  *goja.Object
}

// ID returns the scope's name.
func (s *Scope) ID() string {
	return s.id
}

// Set writes value at a dotted path, creating intermediate objects.
func (s *Scope) Set(path string, value any) error {
	s.page.mu.Lock()
	defer s.page.mu.Unlock()
	setFn, err := s.page.rt.callable("__setPath__")
	if err != nil {
		return err
	}
	vm := s.page.rt.vm
	_, err = setFn(goja.Undefined(), s.obj, vm.ToValue(path), vm.ToValue(value))
	return err
}

// Get reads the value at a dotted path. The second return is false when any
// segment is absent.
func (s *Scope) Get(path string) (any, bool, error) {
	s.page.mu.Lock()
	defer s.page.mu.Unlock()
	getFn, err := s.page.rt.callable("__getPath__")
	if err != nil {
		return nil, false, err
	}
	vm := s.page.rt.vm
	v, err := getFn(goja.Undefined(), s.obj, vm.ToValue(path))
	if err != nil {
		return nil, false, err
	}
	m, ok := v.Export().(map[string]any)
	if !ok {
		return nil, false, fmt.Errorf("malformed path lookup result")
	}
	found, _ := m["found"].(bool)
	if !found {
		return nil, false, nil
	}
	return m["value"], true, nil
}
