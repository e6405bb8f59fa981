package libsession

import (
	"context"
	"io"
	"net/url"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigParamsGetter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://api.example.com/v1/"
	cfg.Path = "ws"

	params, err := ConfigParamsGetter(cfg, "group_id")(context.Background(), "tok", NumericSessionKey(42))
	require.NoError(t, err)

	assert.Equal(t, "wss", params.URL.Scheme)
	assert.Equal(t, "api.example.com", params.URL.Host)
	assert.Equal(t, "/v1/ws", params.URL.Path)
	assert.Equal(t, "tok", params.URL.Query().Get("token"))
	assert.Equal(t, "42", params.URL.Query().Get("group_id"))
	assert.Empty(t, params.Header.Get("Authorization"))
}

func TestConfigParamsGetter_HeaderAuth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AuthMode = AuthModeHeader

	params, err := ConfigParamsGetter(cfg, "sessionId")(context.Background(), "tok", NoSession)
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:5000/ws", params.URL.String())
	assert.Equal(t, "Bearer tok", params.Header.Get("Authorization"))
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base, path, want string
		wantErr          bool
	}{
		{base: "http://localhost:5000", path: "/ws", want: "ws://localhost:5000/ws"},
		{base: "https://api.example.com", path: "/realtime", want: "wss://api.example.com/realtime"},
		{base: "wss://rt.example.com", path: "", want: "wss://rt.example.com"},
		{base: "ftp://files.example.com", path: "/ws", wantErr: true},
		{base: "http://", path: "/ws", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			u, err := websocketURL(tt.base, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestOpenConnectionParamsRepo_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	repo := NewOpenConnectionParamsRepo(newTestLogger(io.Discard), func(context.Context, string, SessionKey) (OpenConnectionParams, error) {
		return OpenConnectionParams{}, boom
	})

	_, err := repo.Get(context.Background(), "tok", NoSession)
	assert.ErrorIs(t, err, boom)
}

func TestTransportErrorRedactsToken(t *testing.T) {
	u, err := url.Parse("wss://api.example.com/ws?token=secret&group_id=1")
	require.NoError(t, err)

	msg := NewTransportError(ErrCannotConnect, *u).Error()
	assert.NotContains(t, msg, "secret")
	assert.Contains(t, msg, "REDACTED")
	assert.Contains(t, msg, "group_id=1")
}
