package libsession

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// SessionKey names the room/session a connection is joined to. Servers use either
// numeric group ids or string session ids, and the key keeps whichever form it was
// built with so it goes back on the wire unchanged. The zero value means "no session".
type SessionKey struct {
	value   string
	numeric bool
}

// NoSession is the zero SessionKey.
var NoSession = SessionKey{}

func StringSessionKey(s string) SessionKey {
	return SessionKey{value: s}
}

func NumericSessionKey(n int64) SessionKey {
	return SessionKey{value: strconv.FormatInt(n, 10), numeric: true}
}

// ParseSessionKey builds a numeric key when s is a canonical integer and a string key
// otherwise, so "007" or "+7" go back on the wire exactly as given.
func ParseSessionKey(s string) SessionKey {
	if s == "" {
		return NoSession
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return NumericSessionKey(n)
	}
	return StringSessionKey(s)
}

func (k SessionKey) IsZero() bool {
	return k.value == ""
}

func (k SessionKey) IsNumeric() bool {
	return k.numeric
}

func (k SessionKey) String() string {
	return k.value
}

func (k SessionKey) MarshalJSON() ([]byte, error) {
	if k.IsZero() {
		return []byte("null"), nil
	}
	if k.numeric {
		return []byte(k.value), nil
	}
	return json.Marshal(k.value)
}

func (k *SessionKey) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*k = NoSession
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "session key")
		}
		*k = StringSessionKey(s)
		return nil
	default:
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return errors.Wrapf(err, "session key %s", data)
		}
		*k = NumericSessionKey(n)
		return nil
	}
}

// MessageID identifies a chat or streamed message. It accepts both JSON numbers and
// strings on decode.
type MessageID string

func (id *MessageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "message id")
		}
		*id = MessageID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrapf(err, "message id %s", data)
	}
	*id = MessageID(n.String())
	return nil
}
