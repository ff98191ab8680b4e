package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicPatternMatch(t *testing.T) {
	testcases := []struct {
		pattern string
		topic   string
		matches bool
	}{
		{pattern: "orders.created", topic: "orders.created", matches: true},
		{pattern: "orders.created", topic: "orders.shipped", matches: false},
		{pattern: "orders.*", topic: "orders.created", matches: true},
		{pattern: "orders.*", topic: "orders.shipped", matches: true},
		{pattern: "orders.*", topic: "orders.created.v2", matches: false},
		{pattern: "orders.*", topic: "users.created", matches: false},
		{pattern: "orders.*", topic: "orders", matches: false},
		{pattern: "*.created", topic: "orders.created", matches: true},
		{pattern: "*.created", topic: "users.created", matches: true},
		{pattern: "orders.**", topic: "orders.created", matches: true},
		{pattern: "orders.**", topic: "orders.created.v2", matches: true},
		{pattern: "orders.**", topic: "orders", matches: false},
		{pattern: "orders.**", topic: "users.created", matches: false},
		{pattern: "orders.created", topic: "", matches: false},
	}

	for _, tc := range testcases {
		t.Run(tc.pattern+"/"+tc.topic, func(t *testing.T) {
			pattern, err := parseTopicPattern(tc.pattern)
			require.NoError(t, err)

			assert.Equal(t, tc.matches, pattern.match(tc.topic))
		})
	}
}

func TestTopicPatternParseFailures(t *testing.T) {
	for _, pattern := range []string{
		"",
		"orders..created",
		"orders.**.created",
		"orders.cre*ted",
	} {
		t.Run(pattern, func(t *testing.T) {
			_, err := parseTopicPattern(pattern)
			assert.Error(t, err)
		})
	}
}
