package libsession

import "strings"

type streamingMessage struct {
	fragments []string
}

// StreamAssembler collects the fragments of streamed replies, keyed by message id.
// Fragments are kept in arrival order. It is not safe for concurrent use.
type StreamAssembler struct {
	streams map[MessageID]*streamingMessage
}

func NewStreamAssembler() *StreamAssembler {
	return &StreamAssembler{
		streams: make(map[MessageID]*streamingMessage),
	}
}

// Start opens a stream for id. It is optional; Append opens streams on demand.
func (a *StreamAssembler) Start(id MessageID) {
	a.stream(id)
}

// Append records fragment and returns its zero-based index within the message.
func (a *StreamAssembler) Append(id MessageID, fragment string) int {
	s := a.stream(id)
	s.fragments = append(s.fragments, fragment)
	return len(s.fragments) - 1
}

// Complete finalizes id and returns the assembled message. Completing an id that never
// received chunks yields an empty message. An empty id completes the only stream in
// flight, when there is exactly one.
func (a *StreamAssembler) Complete(id MessageID) TutorCompleteEvent {
	if id == "" && len(a.streams) == 1 {
		for only := range a.streams {
			id = only
		}
	}

	s, ok := a.streams[id]
	if !ok {
		return TutorCompleteEvent{ID: id}
	}
	delete(a.streams, id)

	var sb strings.Builder
	for _, f := range s.fragments {
		sb.WriteString(f)
	}
	return TutorCompleteEvent{ID: id, Content: sb.String(), Fragments: len(s.fragments)}
}

// Discard drops every in-flight stream and returns how many were dropped.
func (a *StreamAssembler) Discard() int {
	n := len(a.streams)
	if n > 0 {
		a.streams = make(map[MessageID]*streamingMessage)
	}
	return n
}

func (a *StreamAssembler) InFlight() int {
	return len(a.streams)
}

func (a *StreamAssembler) stream(id MessageID) *streamingMessage {
	s, ok := a.streams[id]
	if !ok {
		s = &streamingMessage{}
		a.streams[id] = s
	}
	return s
}
