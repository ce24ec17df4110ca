package httpcore

import "strings"

// ValidateWebSocketUpgrade checks the incoming headers spec §4.9 requires
// before a handler is allowed to call Response.WebSocketUpgrade: a
// Sec-WebSocket-Key must be present, and if Sec-WebSocket-Version is
// present it must be "13" (BPUtil-derived supplement; absent is tolerated
// since spec.md does not require the header).
func ValidateWebSocketUpgrade(headers *HeaderCollection) (key string, err error) {
	key, ok := headers.Get("Sec-WebSocket-Key")
	if !ok || key == "" {
		return "", errNoWebSocketKey
	}
	if version, ok := headers.Get("Sec-WebSocket-Version"); ok && version != "13" {
		return "", errBadWebSocketVer
	}
	return key, nil
}

// IsWebSocketUpgradeRequest reports whether req carries the Upgrade:
// websocket + Connection: upgrade pair that signals a handshake attempt.
func IsWebSocketUpgradeRequest(headers *HeaderCollection) bool {
	upgrade, _ := headers.Get("Upgrade")
	conn, _ := headers.Get("Connection")
	return containsTokenFold(upgrade, "websocket") && containsTokenFold(conn, "upgrade")
}

func containsTokenFold(header, token string) bool {
	for _, t := range splitTrimmed(header, ",") {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}
