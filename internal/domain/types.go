package domain

// SessionState models the recording lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateStarting  SessionState = "starting"
	SessionStateRecording SessionState = "recording"
	SessionStateStopping  SessionState = "stopping"
)

// RecordingMode describes how an active session interprets key input.
// Push-to-talk records while the key is held; hands-free records until an
// explicit stop.
type RecordingMode string

const (
	ModeIdle       RecordingMode = "idle"
	ModePushToTalk RecordingMode = "push_to_talk"
	ModeHandsFree  RecordingMode = "hands_free"
)

// TerminationCode records why a session left the Recording state. It is set
// exactly once per session, when the stop is requested, and read exactly once,
// when the final audio block arrives.
type TerminationCode string

const (
	TerminationNone         TerminationCode = "none"
	TerminationDismissed    TerminationCode = "dismissed"
	TerminationQuickRelease TerminationCode = "quick_release"
	TerminationNoAudio      TerminationCode = "no_audio"
	TerminationError        TerminationCode = "error"
)

// IsCancel reports whether the code discards the session without producing
// a recording or transcript.
func (c TerminationCode) IsCancel() bool {
	switch c {
	case TerminationQuickRelease, TerminationNoAudio, TerminationError:
		return true
	default:
		return false
	}
}

// NotificationType identifies widget notifications.
type NotificationType string

const (
	NoticeReposition      NotificationType = "reposition"
	NoticeEmptyTranscript NotificationType = "empty_transcript"
	NoticePasteFailed     NotificationType = "paste_failed"
	NoticePasteNoAccess   NotificationType = "paste_no_access"
	// NoticeStartupFailed is emitted by the facade, not the session.
	NoticeStartupFailed NotificationType = "startup_failed"
)

// Status summarizes the current session for the UI.
type Status struct {
	State     SessionState  `json:"state"`
	Mode      RecordingMode `json:"mode"`
	SessionID string        `json:"sessionId,omitempty"`
	Active    bool          `json:"active"`
	Message   string        `json:"message,omitempty"`
}
