package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributeSelector(t *testing.T) {
	tests := []struct {
		name  string
		attr  string
		value string
		want  string
	}{
		{"plain path", "ng-model", "user.email", `[ng-model="user.email"]`},
		{"embedded quote", "ng-model", `a"b`, `[ng-model="a\"b"]`},
		{"embedded backslash", "ng-model", `a\b`, `[ng-model="a\\b"]`},
		{"empty value", "data-probe-ref", "", `[data-probe-ref=""]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AttributeSelector(tt.attr, tt.value))
		})
	}
}

func TestPresenceSelector(t *testing.T) {
	assert.Equal(t, "[data-probe-no-match]", PresenceSelector("data-probe-no-match"))
}

func TestUnescapeAttributeValue_RoundTrip(t *testing.T) {
	values := []string{
		"user.email",
		`quoted "value"`,
		`back\slash`,
		`both \" mixed`,
		"",
	}

	for _, v := range values {
		assert.Equal(t, v, UnescapeAttributeValue(escapeAttributeValue(v)), "round trip of %q", v)
	}
}
