package attendance

import (
	"encoding/json"
	"time"
)

// ScanPayload is the structured text a session's QR artifact encodes. It
// embeds the session's own id, so scanning it is sufficient to resolve the
// session.
type ScanPayload struct {
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
}

// EncodeScanPayload renders the payload for a session at issue time.
func EncodeScanPayload(sessionID string, issuedAt time.Time) string {
	b, _ := json.Marshal(ScanPayload{SessionID: sessionID, Timestamp: issuedAt.UnixMilli()})
	return string(b)
}

// DecodeScanPayload parses raw scanned text into a session id. Malformed
// payloads come back as ErrInvalidScanPayload, never as a parse panic.
func DecodeScanPayload(raw string) (string, error) {
	var p ScanPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return "", ErrInvalidScanPayload
	}
	if p.SessionID == "" {
		return "", ErrInvalidScanPayload
	}
	return p.SessionID, nil
}
