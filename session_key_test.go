package libsession

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSessionKey(t *testing.T) {
	assert.Equal(t, NoSession, ParseSessionKey(""))
	assert.True(t, ParseSessionKey("42").IsNumeric())
	assert.False(t, ParseSessionKey("room-1").IsNumeric())
	assert.Equal(t, "room-1", ParseSessionKey("room-1").String())
	assert.Equal(t, NumericSessionKey(-3), ParseSessionKey("-3"))
}

func TestParseSessionKeyKeepsNonCanonicalNumbers(t *testing.T) {
	for _, raw := range []string{"007", "+7", "-0"} {
		key := ParseSessionKey(raw)
		assert.False(t, key.IsNumeric(), raw)

		bts, err := json.Marshal(key)
		require.NoError(t, err)
		assert.JSONEq(t, strconv.Quote(raw), string(bts), raw)
	}
}

func TestSessionKeyJSON(t *testing.T) {
	payload := map[string]SessionKey{
		"numeric": NumericSessionKey(42),
		"string":  StringSessionKey("room-1"),
		"none":    NoSession,
	}
	bts, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"numeric":42,"string":"room-1","none":null}`, string(bts))

	var decoded map[string]SessionKey
	require.NoError(t, json.Unmarshal(bts, &decoded))
	assert.Equal(t, payload, decoded)

	var bad SessionKey
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}

func TestMessageIDAcceptsNumbers(t *testing.T) {
	var ids []MessageID
	require.NoError(t, json.Unmarshal([]byte(`[17, "m-2", null]`), &ids))
	assert.Equal(t, []MessageID{"17", "m-2", ""}, ids)
}
