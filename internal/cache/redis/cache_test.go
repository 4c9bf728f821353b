package redis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "How Do I Restart Redis", "how do i restart redis"},
		{"strips punctuation", "what's the time?!", "whats the time"},
		{"collapses whitespace", "  what   time \t is it  ", "what time is it"},
		{"keeps digits", "error 503 on port 8080", "error 503 on port 8080"},
		{"empty input", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQuery(tt.in))
		})
	}
}

func TestKeyStability(t *testing.T) {
	c := &Cache{salt: sourceSalt([]string{"llm", "knowledge_base"})}

	// Phrasing variants that normalize identically share a key.
	assert.Equal(t, c.Key("How do I restart redis?"), c.Key("how do i restart REDIS"))
	assert.NotEqual(t, c.Key("restart redis"), c.Key("restart postgres"))
	assert.True(t, strings.HasPrefix(c.Key("anything"), "answer:"))
}

func TestKeySaltedBySourceSet(t *testing.T) {
	full := &Cache{salt: sourceSalt([]string{"knowledge_base", "llm", "docs", "web"})}
	reduced := &Cache{salt: sourceSalt([]string{"knowledge_base", "llm"})}

	// Changing the active source set must miss old entries.
	assert.NotEqual(t, full.Key("restart redis"), reduced.Key("restart redis"))
}

func TestSourceSaltOrderIndependent(t *testing.T) {
	assert.Equal(t,
		sourceSalt([]string{"web", "llm", "docs"}),
		sourceSalt([]string{"docs", "web", "llm"}),
	)
}
