// Package host defines the boundary between scopeprobe and the UI-automation
// layer that actually drives a browser (or a simulation of one).
//
// scopeprobe never talks to a DOM directly. It queries elements by attribute,
// reads attributes, and ships small JavaScript function sources to the host's
// evaluation primitive. Any automation backend that can do those three things
// can sit behind these interfaces.
package host

import "context"

// Page is the root a probe operates against. It may be a whole page or a
// previously obtained element subtree, as long as both operations observe the
// same live element set.
type Page interface {
	// QueryByAttribute returns all elements currently carrying the attribute
	// name with exactly the given value, in document order. The returned
	// handles are only valid for the observation that produced them: the
	// same logical element may yield a fresh handle on the next query.
	QueryByAttribute(ctx context.Context, name, value string) ([]Element, error)

	// CompoundLocator builds a single locator matching the union of the
	// given selectors, scoped to this page.
	CompoundLocator(selectors []string) Locator
}

// Element is one live element handle.
type Element interface {
	// Attribute returns the value of the named attribute. The second return
	// is false when the element does not carry the attribute at all.
	Attribute(ctx context.Context, name string) (string, bool, error)

	// Evaluate runs fnSource, a JavaScript function literal, against this
	// element inside the application's execution environment. The function
	// receives the live element followed by args (marshalled as JSON) and
	// its return value is marshalled back into Go as decoded JSON (nil,
	// bool, int64/float64, string, []any, map[string]any).
	//
	// An exception thrown inside fnSource is returned as an error, never
	// propagated as a panic.
	Evaluate(ctx context.Context, fnSource string, args ...any) (any, error)
}

// Locator re-selects a set of elements by selector on every call. Unlike
// Element handles, a Locator stays valid across observation ticks.
type Locator interface {
	// Selector returns the selector list this locator was built from.
	Selector() string

	// Count returns the number of elements the locator currently matches.
	Count(ctx context.Context) (int, error)

	// Nth returns the i-th currently matching element (0-based, document
	// order). Returns an error when fewer than i+1 elements match.
	Nth(ctx context.Context, i int) (Element, error)

	// Visible reports whether the locator currently matches at least one
	// visible element.
	Visible(ctx context.Context) (bool, error)
}
