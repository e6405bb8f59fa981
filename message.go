package libsession

import "fmt"

// MessageType mirrors the WebSocket opcodes the connection writer understands.
type MessageType byte

const (
	DataMessage   MessageType = 1
	BinaryMessage MessageType = 2
	CloseMessage  MessageType = 8
	PingMessage   MessageType = 9
	PongMessage   MessageType = 10
)

func (t MessageType) IsData() bool {
	return t == DataMessage || t == BinaryMessage
}

func (t MessageType) IsControl() bool {
	return t == PingMessage || t == PongMessage || t == CloseMessage
}

func (t MessageType) String() string {
	switch t {
	case DataMessage:
		return "DATA"
	case BinaryMessage:
		return "BIN"
	case CloseMessage:
		return "CLOSE"
	case PingMessage:
		return "PING"
	case PongMessage:
		return "PONG"
	default:
		return fmt.Sprintf("OP(%d)", byte(t))
	}
}

// Message is one queued write on a connection.
type Message struct {
	Type MessageType
	Data []byte
}

func (m Message) String() string {
	return fmt.Sprintf("Message{type=%s,data=%s}", m.Type, m.Data)
}

func NewDataMessage(data []byte) Message {
	return Message{Type: DataMessage, Data: data}
}

func NewPingMessage(data []byte) Message {
	return Message{Type: PingMessage, Data: data}
}

func NewPongMessage(data []byte) Message {
	return Message{Type: PongMessage, Data: data}
}

// normalClosePayload is close code 1000 with no reason.
var normalClosePayload = []byte{0x03, 0xe8}
