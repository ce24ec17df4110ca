package httpcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJarSetAndLines(t *testing.T) {
	j := NewJar()
	j.Set("session", "abc123", 3600)
	j.Set("theme", "dark", 0)

	lines := j.Lines()
	assert.Equal(t, []string{
		"session=abc123; Max-Age=3600; Path=/",
		"theme=dark; Path=/",
	}, lines)
}

func TestJarSetReplacesExisting(t *testing.T) {
	j := NewJar()
	j.Set("a", "1", 0)
	j.Set("a", "2", 0)
	lines := j.Lines()
	assert.Equal(t, []string{"a=2; Path=/"}, lines)
}

func TestParseCookieHeader(t *testing.T) {
	got := ParseCookieHeader("a=1; b=2; c=")
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": ""}, got)
}

func TestParseCookieHeaderEmpty(t *testing.T) {
	got := ParseCookieHeader("")
	assert.Empty(t, got)
}

func TestParseCookieHeaderSkipsMalformedPieces(t *testing.T) {
	got := ParseCookieHeader("a=1; garbage; b=2")
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
}
