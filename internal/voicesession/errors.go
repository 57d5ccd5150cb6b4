package voicesession

import (
	"errors"
	"fmt"

	"github.com/presidence-ga/iasted/pkg/provider/chat"
)

// ErrSessionActive is returned by Start when the session is not idle.
var ErrSessionActive = errors.New("voicesession: session already active")

// PermissionDeniedError reports that microphone capture could not be
// acquired. The attempt is over; the session stays idle and the user must
// grant access and start again.
type PermissionDeniedError struct {
	Cause error
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("voicesession: microphone permission denied: %v", e.Cause)
}

func (e *PermissionDeniedError) Unwrap() error { return e.Cause }

// TransportSetupError reports that the remote channel could not be
// established, including ephemeral-credential fetch failure. The attempt is
// over; retry is manual.
type TransportSetupError struct {
	Cause error
}

func (e *TransportSetupError) Error() string {
	return fmt.Sprintf("voicesession: transport setup failed: %v", e.Cause)
}

func (e *TransportSetupError) Unwrap() error { return e.Cause }

// RemoteErrorKind distinguishes remote-service failures so the surface can
// show a specific message instead of a generic one.
type RemoteErrorKind string

const (
	RemoteRateLimited   RemoteErrorKind = "rate_limited"
	RemoteQuotaExceeded RemoteErrorKind = "quota_exceeded"
	RemoteGeneric       RemoteErrorKind = "generic"
)

// RemoteServiceError reports a failed transcribe, completion, or synthesis
// call. Fatal for the current turn; the session returns to idle and nothing
// is retried automatically.
type RemoteServiceError struct {
	Kind  RemoteErrorKind
	Cause error
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("voicesession: remote service error (%s): %v", e.Kind, e.Cause)
}

func (e *RemoteServiceError) Unwrap() error { return e.Cause }

// PlaybackFailedError reports that rendering synthesized speech failed. For
// the state machine it counts as playback end, but it carries a distinct
// signal so the surface can tell silent failure from natural completion.
type PlaybackFailedError struct {
	Cause error
}

func (e *PlaybackFailedError) Error() string {
	return fmt.Sprintf("voicesession: playback failed: %v", e.Cause)
}

func (e *PlaybackFailedError) Unwrap() error { return e.Cause }

// remoteError wraps err as a RemoteServiceError, mapping the classified
// rate-limit and quota sentinels onto the matching kind.
func remoteError(err error) *RemoteServiceError {
	kind := RemoteGeneric
	switch {
	case errors.Is(err, chat.ErrQuotaExceeded):
		kind = RemoteQuotaExceeded
	case errors.Is(err, chat.ErrRateLimited):
		kind = RemoteRateLimited
	}
	return &RemoteServiceError{Kind: kind, Cause: err}
}
