package simhost

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/scopeprobe/host"
)

// Locator re-selects elements on every call, like a real automation
// locator. It implements host.Locator over the selector forms the prober
// emits: chains of attribute conditions, e.g. [ng-model="user.role"][checked].
type Locator struct {
	page      *Page
	selectors []string
}

// Selector implements host.Locator.
func (l *Locator) Selector() string {
	return strings.Join(l.selectors, ", ")
}

// Count implements host.Locator.
func (l *Locator) Count(ctx context.Context) (int, error) {
	els, err := l.matching(ctx)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// Nth implements host.Locator.
func (l *Locator) Nth(ctx context.Context, i int) (host.Element, error) {
	els, err := l.matching(ctx)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(els) {
		return nil, fmt.Errorf("locator %q matches %d elements, want index %d", l.Selector(), len(els), i)
	}
	return els[i], nil
}

// Visible implements host.Locator.
func (l *Locator) Visible(ctx context.Context) (bool, error) {
	els, err := l.matching(ctx)
	if err != nil {
		return false, err
	}
	for _, el := range els {
		if el.visibleNow() {
			return true, nil
		}
	}
	return false, nil
}

func (l *Locator) matching(ctx context.Context) ([]*Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conds := make([][]attrCond, 0, len(l.selectors))
	for _, sel := range l.selectors {
		c, err := parseSelector(sel)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}

	l.page.mu.Lock()
	defer l.page.mu.Unlock()

	var out []*Element
	for _, el := range l.page.elements {
		if el.removed {
			continue
		}
		for _, c := range conds {
			if matchesConds(el, c) {
				out = append(out, el)
				break
			}
		}
	}
	return out, nil
}

func (e *Element) visibleNow() bool {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.visible && !e.removed
}

// attrCond is one [name] or [name="value"] condition. A nil value means
// presence only.
type attrCond struct {
	name  string
	value *string
}

func matchesConds(el *Element, conds []attrCond) bool {
	for _, c := range conds {
		v, ok := el.attrs[c.name]
		if !ok {
			return false
		}
		if c.value != nil && v != *c.value {
			return false
		}
	}
	return true
}

// parseSelector parses a chain of attribute conditions. Anything outside
// that grammar is rejected; simhost supports exactly what the prober emits.
func parseSelector(sel string) ([]attrCond, error) {
	var conds []attrCond
	rest := sel
	for len(rest) > 0 {
		if rest[0] != '[' {
			return nil, fmt.Errorf("unsupported selector %q", sel)
		}
		rest = rest[1:]

		nameEnd := strings.IndexAny(rest, "=]")
		if nameEnd < 0 {
			return nil, fmt.Errorf("unterminated selector %q", sel)
		}
		name := rest[:nameEnd]
		if name == "" {
			return nil, fmt.Errorf("empty attribute name in selector %q", sel)
		}

		if rest[nameEnd] == ']' {
			conds = append(conds, attrCond{name: name})
			rest = rest[nameEnd+1:]
			continue
		}

		// [name="value"]
		rest = rest[nameEnd+1:]
		if len(rest) == 0 || rest[0] != '"' {
			return nil, fmt.Errorf("unquoted attribute value in selector %q", sel)
		}
		rest = rest[1:]
		end := -1
		escaped := false
		for i := 0; i < len(rest); i++ {
			if escaped {
				escaped = false
				continue
			}
			switch rest[i] {
			case '\\':
				escaped = true
			case '"':
				end = i
			}
			if end >= 0 {
				break
			}
		}
		if end < 0 || end+1 >= len(rest) || rest[end+1] != ']' {
			return nil, fmt.Errorf("unterminated attribute value in selector %q", sel)
		}
		value := host.UnescapeAttributeValue(rest[:end])
		conds = append(conds, attrCond{name: name, value: &value})
		rest = rest[end+2:]
	}
	if len(conds) == 0 {
		return nil, fmt.Errorf("empty selector")
	}
	return conds, nil
}
