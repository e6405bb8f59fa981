package libsession

import (
	"context"
)

type (
	// Client is the realtime session contract used by UI code. Manager implements it.
	Client interface {
		// Connect authenticates, dials and joins key
		Connect(ctx context.Context, key SessionKey) error
		// Disconnect tears the connection down and returns to StatusIdle
		Disconnect()
		// JoinSession moves the connection to another session
		JoinSession(key SessionKey) error
		// LeaveSession leaves the current session
		LeaveSession()
		// SendMessage sends content to the joined session
		SendMessage(content string, attachments ...Attachment) bool
		// SendTyping sends a typing indicator to the joined session
		SendTyping(isTyping bool) bool
		// On subscribes to inbound events of kind
		On(kind EventKind, listener Listener) *Subscription
		// Off cancels an event subscription
		Off(sub *Subscription)
		// OnStatusChange subscribes to status changes, starting with the current status
		OnStatusChange(fn func(Status)) *Subscription
		// OffStatusChange cancels a status subscription
		OffStatusChange(sub *Subscription)
		// Status returns the current status
		Status() Status
	}
)

var _ Client = (*Manager)(nil)

// NewChatManager builds a Manager for study-group chat: {"type","payload"} frames over
// the default WebSocket dialer.
func NewChatManager(cfg Config, tokens TokenProvider, opts ...Option) *Manager {
	base := []Option{
		WithVocabulary(ChatVocabulary()),
		WithCodec(TypePayloadCodec{}),
	}
	return NewManager(cfg, tokens, append(base, opts...)...)
}

// NewTutorManager builds a Manager for the AI tutor: {"event","data"} frames over the
// gorilla dialer.
func NewTutorManager(cfg Config, tokens TokenProvider, opts ...Option) *Manager {
	base := []Option{
		WithVocabulary(TutorVocabulary()),
		WithCodec(NamedEventCodec{}),
		WithDialer(GorillaDialer(nil)),
	}
	return NewManager(cfg, tokens, append(base, opts...)...)
}
