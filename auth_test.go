package libsession

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString(testSigningKey)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		target error
	}{
		{name: "valid", token: signedToken(t, now.Add(time.Minute))},
		{name: "no exp claim", token: noExp},
		{name: "surrounding whitespace", token: "  " + signedToken(t, now.Add(time.Minute)) + "\n"},
		{name: "empty", token: "", target: ErrNoToken},
		{name: "blank", token: "   ", target: ErrNoToken},
		{name: "garbage", token: "abc.def", target: ErrTokenMalformed},
		{name: "expired", token: signedToken(t, now.Add(-time.Second)), target: ErrTokenExpired},
		{name: "expires now", token: signedToken(t, now), target: ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToken(tt.token, now)
			if tt.target == nil {
				assert.NoError(t, err)
				return
			}

			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestFetchToken(t *testing.T) {
	now := time.Now()
	accept := func(string, time.Time) error { return nil }

	token, err := fetchToken(context.Background(), StaticToken("abc"), accept, now)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = fetchToken(context.Background(), nil, accept, now)
	assert.ErrorIs(t, err, ErrNoToken)

	providerErr := errors.New("storage unavailable")
	_, err = fetchToken(context.Background(), TokenProviderFunc(func(context.Context) (string, error) {
		return "", providerErr
	}), accept, now)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, providerErr)

	reject := func(string, time.Time) error { return errors.New("nope") }
	_, err = fetchToken(context.Background(), StaticToken("abc"), reject, now)
	assert.ErrorAs(t, err, &authErr)
}

func TestFetchTokenAsksEveryTime(t *testing.T) {
	calls := 0
	provider := TokenProviderFunc(func(context.Context) (string, error) {
		calls++
		return signedToken(t, time.Now().Add(time.Hour)), nil
	})

	for i := 0; i < 3; i++ {
		_, err := fetchToken(context.Background(), provider, ValidateToken, time.Now())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}
