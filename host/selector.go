package host

import "strings"

// AttributeSelector builds an attribute-equality selector, e.g.
// [ng-model="user.email"]. The value is quoted with backslash escaping so
// arbitrary model paths and synthesized marker values are safe to embed.
func AttributeSelector(name, value string) string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(escapeAttributeValue(value))
	b.WriteString(`"]`)
	return b.String()
}

// PresenceSelector builds a bare attribute-presence selector, e.g.
// [data-probe-no-match].
func PresenceSelector(name string) string {
	return "[" + name + "]"
}

func escapeAttributeValue(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UnescapeAttributeValue reverses the escaping applied by AttributeSelector.
// Host implementations that parse selectors (rather than handing them to a
// real browser) use it to recover the literal attribute value.
func UnescapeAttributeValue(v string) string {
	var b strings.Builder
	escaped := false
	for _, r := range v {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
