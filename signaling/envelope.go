// Package signaling implements the two independent WebSocket listeners
// of spec.md §4.1: a small JSON envelope carrying either an SDP
// description or a trickled ICE candidate, one per text frame.
package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Envelope is the wire message of spec.md §4.1 and §6. Reusing
// webrtc.SessionDescription and webrtc.ICECandidateInit directly
// mirrors the teacher's own sfuMessage struct in webrtc/sfu.go, which
// embeds the same two pion types by pointer for the same two shapes.
type Envelope struct {
	Description *webrtc.SessionDescription `json:"description,omitempty"`
	Candidate   *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// Parse decodes one text frame. Malformed JSON or a message matching
// neither wire shape is reported as an error so the caller can log a
// warning and drop the frame, per spec.md §4.1 ("Any other shape is
// logged and dropped") and §7 ("Protocol errors ... log a warning,
// drop the message, leave the connection open").
func Parse(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("signaling: malformed JSON: %w", err)
	}
	if env.Description == nil && env.Candidate == nil {
		return Envelope{}, fmt.Errorf("signaling: envelope has neither description nor candidate")
	}
	return env, nil
}

// Encode serializes an outbound envelope. Each adapter send is exactly
// one JSON object per text frame, per spec.md §4.1.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// DescriptionEnvelope wraps a local/remote session description for
// sending, per spec.md §4.2 items 1 and 2.
func DescriptionEnvelope(desc webrtc.SessionDescription) Envelope {
	return Envelope{Description: &desc}
}

// CandidateEnvelope wraps a locally produced ICE candidate for
// sending, per spec.md §4.2 item 4.
func CandidateEnvelope(c webrtc.ICECandidateInit) Envelope {
	return Envelope{Candidate: &c}
}
