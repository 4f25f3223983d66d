package completion

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// fingerprintPayload is the canonical encoding hashed into a cache key.
// Field order is fixed by the struct, message order is preserved, and a
// nil temperature encodes as JSON null so "absent" never collides with 0.
type fingerprintPayload struct {
	Messages    []Message `json:"messages"`
	Temperature *float32  `json:"temperature"`
}

// Fingerprint derives the cache key for a conversation. It is a pure
// function of (messages, temperature): model, endpoint, credentials and
// the streaming flag deliberately do not participate, so the same prompt
// sent through a different provider reuses the same entry.
func Fingerprint(messages []Message, temperature *float32) string {
	data, err := json.Marshal(fingerprintPayload{
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		// Messages and float pointers always marshal; keep the function total.
		return ""
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}
