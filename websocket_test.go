package httpcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWebSocketUpgradeRequiresKey(t *testing.T) {
	h := NewHeaderCollection(TitleCase)
	_, err := ValidateWebSocketUpgrade(h)
	assert.Error(t, err)
}

func TestValidateWebSocketUpgradeAcceptsVersion13(t *testing.T) {
	h := NewHeaderCollection(TitleCase)
	require.NoError(t, h.Add("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ=="))
	require.NoError(t, h.Add("Sec-WebSocket-Version", "13"))
	key, err := ValidateWebSocketUpgrade(h)
	require.NoError(t, err)
	assert.Equal(t, "dGhlIHNhbXBsZSBub25jZQ==", key)
}

func TestValidateWebSocketUpgradeRejectsWrongVersion(t *testing.T) {
	h := NewHeaderCollection(TitleCase)
	require.NoError(t, h.Add("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ=="))
	require.NoError(t, h.Add("Sec-WebSocket-Version", "8"))
	_, err := ValidateWebSocketUpgrade(h)
	assert.Error(t, err)
}

func TestValidateWebSocketUpgradeToleratesMissingVersion(t *testing.T) {
	h := NewHeaderCollection(TitleCase)
	require.NoError(t, h.Add("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ=="))
	_, err := ValidateWebSocketUpgrade(h)
	assert.NoError(t, err)
}

func TestIsWebSocketUpgradeRequest(t *testing.T) {
	h := NewHeaderCollection(TitleCase)
	require.NoError(t, h.Add("Upgrade", "websocket"))
	require.NoError(t, h.Add("Connection", "Upgrade"))
	assert.True(t, IsWebSocketUpgradeRequest(h))
}

func TestIsWebSocketUpgradeRequestFalseWithoutBoth(t *testing.T) {
	h := NewHeaderCollection(TitleCase)
	require.NoError(t, h.Add("Upgrade", "websocket"))
	assert.False(t, IsWebSocketUpgradeRequest(h))
}
