package libsession

import (
	"encoding/json"
)

// EventKind tags every inbound frame after decoding. Wire names are mapped to kinds by
// a Vocabulary, so the same kind may arrive under several names.
type EventKind uint8

const (
	KindUnknown EventKind = iota
	KindNewMessage
	KindMessageEdited
	KindMessageDeleted
	KindMemberJoined
	KindMemberLeft
	KindTypingStarted
	KindTypingStopped
	KindSessionJoined
	KindSessionLeft
	KindTutorMessageStart
	KindTutorMessageChunk
	KindTutorMessageComplete
	KindTutorThinking
	KindTutorError
	KindTutorAudioReady
	KindProgressUpdate
	KindError
	// KindReconnectFailed is generated locally when reconnect attempts run out.
	KindReconnectFailed
)

var eventKindNames = map[EventKind]string{
	KindUnknown:              "unknown",
	KindNewMessage:           "new_message",
	KindMessageEdited:        "message_edited",
	KindMessageDeleted:       "message_deleted",
	KindMemberJoined:         "member_joined",
	KindMemberLeft:           "member_left",
	KindTypingStarted:        "typing_started",
	KindTypingStopped:        "typing_stopped",
	KindSessionJoined:        "joined",
	KindSessionLeft:          "left",
	KindTutorMessageStart:    "tutor_message_start",
	KindTutorMessageChunk:    "tutor_message_chunk",
	KindTutorMessageComplete: "tutor_message_complete",
	KindTutorThinking:        "tutor_thinking",
	KindTutorError:           "tutor_error",
	KindTutorAudioReady:      "tutor_audio_ready",
	KindProgressUpdate:       "progress_update",
	KindError:                "error",
	KindReconnectFailed:      "reconnect_failed",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one decoded inbound frame. Concrete types are listed below; use a type
// switch or Handle to get at them.
type Event interface {
	Kind() EventKind
}

// Listener receives events of the kind it was registered for.
type Listener func(Event)

// Handle adapts a typed callback into a Listener. Events of another type are ignored.
func Handle[T Event](fn func(T)) Listener {
	return func(e Event) {
		if typed, ok := e.(T); ok {
			fn(typed)
		}
	}
}

type ChatUser struct {
	ID       MessageID `json:"id"`
	Name     string    `json:"name,omitempty"`
	Username string    `json:"username,omitempty"`
	Avatar   string    `json:"avatar,omitempty"`
}

type Attachment struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// ChatMessageEvent carries new_message, message_edited and message_deleted.
type ChatMessageEvent struct {
	kind        EventKind
	ID          MessageID    `json:"id"`
	GroupID     SessionKey   `json:"group_id"`
	UserID      MessageID    `json:"user_id"`
	User        *ChatUser    `json:"user,omitempty"`
	Content     string       `json:"content"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

func (e ChatMessageEvent) Kind() EventKind { return e.kind }

// MemberEvent carries member_joined/member_left (user_joined/user_left on some servers).
type MemberEvent struct {
	kind     EventKind
	GroupID  SessionKey `json:"group_id"`
	UserID   MessageID  `json:"user_id"`
	Username string     `json:"username,omitempty"`
	User     *ChatUser  `json:"user,omitempty"`
}

func (e MemberEvent) Kind() EventKind { return e.kind }

type TypingEvent struct {
	kind     EventKind
	GroupID  SessionKey `json:"group_id"`
	UserID   MessageID  `json:"user_id"`
	Username string     `json:"username,omitempty"`
}

func (e TypingEvent) Kind() EventKind { return e.kind }

func (e TypingEvent) IsTyping() bool { return e.kind == KindTypingStarted }

// SessionAckEvent is the server confirming a join or leave.
type SessionAckEvent struct {
	kind    EventKind
	Session SessionKey `json:"-"`
	raw     json.RawMessage
}

func (e SessionAckEvent) Kind() EventKind { return e.kind }

func (e SessionAckEvent) Raw() json.RawMessage { return e.raw }

type TutorStartEvent struct {
	ID MessageID `json:"id"`
}

func (TutorStartEvent) Kind() EventKind { return KindTutorMessageStart }

// TutorChunkEvent is one fragment of a streamed tutor reply, delivered in arrival order.
type TutorChunkEvent struct {
	ID      MessageID `json:"id"`
	Content string    `json:"content"`
	// Index is the zero-based position of this fragment within its message.
	Index int `json:"-"`
}

func (TutorChunkEvent) Kind() EventKind { return KindTutorMessageChunk }

// TutorCompleteEvent is the assembled reply: the concatenation of its chunks.
type TutorCompleteEvent struct {
	ID        MessageID
	Content   string
	Fragments int
}

func (TutorCompleteEvent) Kind() EventKind { return KindTutorMessageComplete }

type TutorThinkingEvent struct {
	SessionID SessionKey `json:"sessionId"`
}

func (TutorThinkingEvent) Kind() EventKind { return KindTutorThinking }

type AudioReadyEvent struct {
	MessageID MessageID `json:"message_id"`
	AudioURL  string    `json:"audio_url"`
}

func (AudioReadyEvent) Kind() EventKind { return KindTutorAudioReady }

// ProgressEvent is passed through undecoded; its shape is owned by the UI.
type ProgressEvent struct {
	Data json.RawMessage
}

func (ProgressEvent) Kind() EventKind { return KindProgressUpdate }

// ErrorEvent surfaces errors to subscribers: server rejections (*ProtocolError) under
// KindError or KindTutorError, and local auth/transport failures under KindError.
type ErrorEvent struct {
	kind EventKind
	Err  error
}

func (e ErrorEvent) Kind() EventKind { return e.kind }

func (e ErrorEvent) Error() string { return e.Err.Error() }

// ReconnectFailedEvent is the user-facing notice that the manager gave up.
type ReconnectFailedEvent struct {
	Attempts int
	Message  string
	Err      *ExhaustionError
}

func (ReconnectFailedEvent) Kind() EventKind { return KindReconnectFailed }

const reconnectFailedNotice = "Unable to connect to the realtime service. Please refresh the page to try again."
