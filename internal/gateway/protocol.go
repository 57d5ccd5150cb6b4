package gateway

import (
	"errors"

	"github.com/presidence-ga/iasted/internal/voicesession"
)

// clientEvent is a JSON control event from the browser. Binary WebSocket
// messages carry Opus audio instead and never use this shape. Unknown Type
// values are ignored, so older servers tolerate newer clients.
type clientEvent struct {
	Type string `json:"type"`

	// session.start
	Transport  string `json:"transport,omitempty"` // "realtime" or "turn-based"
	Continuous bool   `json:"continuous,omitempty"`
	PushToTalk bool   `json:"push_to_talk,omitempty"`
	Role       string `json:"role,omitempty"`

	// settings
	VoiceID  string `json:"voice_id,omitempty"`
	Language string `json:"language,omitempty"`
}

// serverEvent is a JSON event to the browser. Synthesized audio travels as
// binary Opus messages alongside these.
type serverEvent struct {
	Type string `json:"type"`

	// state
	State string `json:"state,omitempty"`

	// transcript
	Role  string `json:"role,omitempty"`
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`

	// level
	Level int `json:"level,omitempty"`

	// intent
	Action string `json:"action,omitempty"`
	Target string `json:"target,omitempty"`
	Reply  string `json:"reply,omitempty"`

	// error
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// errorKind maps a surfaced session error onto the wire kind the dashboard
// branches its messaging on.
func errorKind(err error) string {
	var (
		perm      *voicesession.PermissionDeniedError
		transport *voicesession.TransportSetupError
		remote    *voicesession.RemoteServiceError
		playback  *voicesession.PlaybackFailedError
	)
	switch {
	case errors.As(err, &perm):
		return "permission_denied"
	case errors.As(err, &transport):
		return "transport_setup_failed"
	case errors.As(err, &remote):
		switch remote.Kind {
		case voicesession.RemoteRateLimited:
			return "rate_limited"
		case voicesession.RemoteQuotaExceeded:
			return "quota_exceeded"
		default:
			return "remote_error"
		}
	case errors.As(err, &playback):
		return "playback_error"
	default:
		return "error"
	}
}

// splitFrames cuts buf into complete frames of frameBytes each and returns
// the remainder that is still too short to encode.
func splitFrames(buf []byte, frameBytes int) ([][]byte, []byte) {
	var frames [][]byte
	for len(buf) >= frameBytes {
		frames = append(frames, buf[:frameBytes])
		buf = buf[frameBytes:]
	}
	return frames, buf
}
