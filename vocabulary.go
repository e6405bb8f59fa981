package libsession

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Vocabulary is the event-name table of one realtime use case: the outbound names the
// manager emits and the inbound names it recognises.
type Vocabulary struct {
	Name string
	// SessionField is the payload member carrying the session key.
	SessionField string

	Join         string
	Leave        string
	SendMessage  string
	TypingStart  string
	TypingStop   string
	VoiceMessage string

	Inbound map[string]EventKind
}

func baseInbound() map[string]EventKind {
	return map[string]EventKind{
		"new_message":            KindNewMessage,
		"message_edited":         KindMessageEdited,
		"message_deleted":        KindMessageDeleted,
		"member_joined":          KindMemberJoined,
		"member_left":            KindMemberLeft,
		"user_joined":            KindMemberJoined,
		"user_left":              KindMemberLeft,
		"typing_started":         KindTypingStarted,
		"typing_stopped":         KindTypingStopped,
		"joined":                 KindSessionJoined,
		"left":                   KindSessionLeft,
		"tutor_message_start":    KindTutorMessageStart,
		"tutor_message_chunk":    KindTutorMessageChunk,
		"tutor_message_complete": KindTutorMessageComplete,
		"tutor_thinking":         KindTutorThinking,
		"tutor_error":            KindTutorError,
		"error":                  KindError,
	}
}

// ChatVocabulary is the study-group chat protocol.
func ChatVocabulary() Vocabulary {
	return Vocabulary{
		Name:         "chat",
		SessionField: "group_id",
		Join:         "join",
		Leave:        "leave",
		SendMessage:  "send_message",
		TypingStart:  "typing_start",
		TypingStop:   "typing_stop",
		Inbound:      baseInbound(),
	}
}

// TutorVocabulary is the AI tutor streaming protocol.
func TutorVocabulary() Vocabulary {
	inbound := baseInbound()
	inbound["tutor_audio_ready"] = KindTutorAudioReady
	inbound["progress_update"] = KindProgressUpdate

	return Vocabulary{
		Name:         "tutor",
		SessionField: "sessionId",
		Join:         "join",
		Leave:        "leave",
		SendMessage:  "message",
		TypingStart:  "typing_start",
		TypingStop:   "typing_stop",
		VoiceMessage: "voice_message",
		Inbound:      inbound,
	}
}

func (v Vocabulary) Lookup(name string) (EventKind, bool) {
	kind, ok := v.Inbound[name]
	return kind, ok
}

func (v Vocabulary) sessionPayload(key SessionKey) map[string]any {
	return map[string]any{v.SessionField: key}
}

func (v Vocabulary) joinFrame(key SessionKey) (Frame, error) {
	return newFrame(v.Join, v.sessionPayload(key))
}

func (v Vocabulary) leaveFrame(key SessionKey) (Frame, error) {
	return newFrame(v.Leave, v.sessionPayload(key))
}

func (v Vocabulary) messageFrame(key SessionKey, content string, attachments []Attachment, clientID string) (Frame, error) {
	payload := v.sessionPayload(key)
	payload["content"] = content
	if len(attachments) > 0 {
		payload["attachments"] = attachments
	}
	if clientID != "" {
		payload["client_id"] = clientID
	}
	return newFrame(v.SendMessage, payload)
}

func (v Vocabulary) typingFrame(key SessionKey, isTyping bool) (Frame, error) {
	name := v.TypingStop
	if isTyping {
		name = v.TypingStart
	}
	return newFrame(name, v.sessionPayload(key))
}

func (v Vocabulary) voiceFrame(key SessionKey, transcript string) (Frame, error) {
	if v.VoiceMessage == "" {
		return Frame{}, errors.Wrapf(ErrUnsupported, "%s has no voice messages", v.Name)
	}
	payload := v.sessionPayload(key)
	payload["transcript"] = transcript
	return newFrame(v.VoiceMessage, payload)
}

// decodeEvent turns a frame into its typed event. Stream frames come back unassembled;
// the manager runs them through its StreamAssembler.
func (v Vocabulary) decodeEvent(f Frame) (Event, error) {
	kind, ok := v.Lookup(f.Name)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidFrame, "unknown event %q", f.Name)
	}

	switch kind {
	case KindNewMessage, KindMessageEdited, KindMessageDeleted:
		e := ChatMessageEvent{}
		err := unmarshalPayload(f, &e)
		e.kind = kind
		return e, err
	case KindMemberJoined, KindMemberLeft:
		e := MemberEvent{}
		err := unmarshalPayload(f, &e)
		e.kind = kind
		return e, err
	case KindTypingStarted, KindTypingStopped:
		e := TypingEvent{}
		err := unmarshalPayload(f, &e)
		e.kind = kind
		return e, err
	case KindSessionJoined, KindSessionLeft:
		return v.decodeAck(kind, f)
	case KindTutorMessageStart:
		e := TutorStartEvent{}
		err := unmarshalPayload(f, &e)
		return e, err
	case KindTutorMessageChunk:
		e := TutorChunkEvent{}
		err := unmarshalPayload(f, &e)
		return e, err
	case KindTutorMessageComplete:
		var ref struct {
			ID MessageID `json:"id"`
		}
		err := unmarshalPayload(f, &ref)
		return TutorCompleteEvent{ID: ref.ID}, err
	case KindTutorThinking:
		e := TutorThinkingEvent{}
		err := unmarshalPayload(f, &e)
		return e, err
	case KindTutorAudioReady:
		e := AudioReadyEvent{}
		err := unmarshalPayload(f, &e)
		return e, err
	case KindProgressUpdate:
		return ProgressEvent{Data: f.Payload}, nil
	case KindError, KindTutorError:
		return ErrorEvent{kind: kind, Err: decodeProtocolError(f.Payload)}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidFrame, "unhandled event %q", f.Name)
	}
}

func (v Vocabulary) decodeAck(kind EventKind, f Frame) (Event, error) {
	e := SessionAckEvent{kind: kind, raw: f.Payload}
	if isEmptyPayload(f.Payload) {
		return e, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(f.Payload, &fields); err != nil {
		return e, errors.Wrapf(err, "decode %s", f.Name)
	}
	if raw, ok := fields[v.SessionField]; ok {
		if err := json.Unmarshal(raw, &e.Session); err != nil {
			return e, errors.Wrapf(err, "decode %s", f.Name)
		}
	}
	return e, nil
}

func decodeProtocolError(payload json.RawMessage) *ProtocolError {
	if isEmptyPayload(payload) {
		return &ProtocolError{Message: "unknown error"}
	}

	var text string
	if err := json.Unmarshal(payload, &text); err == nil {
		return &ProtocolError{Message: text}
	}

	var body struct {
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Code    json.RawMessage `json:"code"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return &ProtocolError{Message: string(payload)}
	}

	pe := &ProtocolError{Message: body.Message}
	if pe.Message == "" {
		pe.Message = body.Error
	}
	if len(body.Code) > 0 {
		var code string
		if err := json.Unmarshal(body.Code, &code); err != nil {
			code = string(body.Code)
		}
		pe.Code = code
	}
	return pe
}

func unmarshalPayload(f Frame, dst any) error {
	if isEmptyPayload(f.Payload) {
		return nil
	}
	if err := json.Unmarshal(f.Payload, dst); err != nil {
		return errors.Wrapf(err, "decode %s", f.Name)
	}
	return nil
}

func isEmptyPayload(p json.RawMessage) bool {
	p = bytes.TrimSpace(p)
	return len(p) == 0 || bytes.Equal(p, []byte("null"))
}
