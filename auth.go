package libsession

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// TokenProvider supplies the bearer token for the current user. It is asked on every
// connect attempt so refreshed tokens are picked up; an empty token or ErrNoToken means
// the user is not authenticated.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type TokenProviderFunc func(ctx context.Context) (string, error)

func (f TokenProviderFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticToken always returns the same token.
func StaticToken(token string) TokenProvider {
	return TokenProviderFunc(func(context.Context) (string, error) {
		return token, nil
	})
}

// TokenValidator checks a token before any network activity.
type TokenValidator func(token string, now time.Time) error

var tokenParser = jwt.NewParser()

// ValidateToken checks that token is a well-formed JWT whose exp claim, when present,
// lies after now. The signature is not verified; that is the server's job.
func ValidateToken(token string, now time.Time) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return NewAuthError(ErrNoToken)
	}

	claims := jwt.MapClaims{}
	if _, _, err := tokenParser.ParseUnverified(token, claims); err != nil {
		return NewAuthError(errors.Wrap(ErrTokenMalformed, err.Error()))
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return NewAuthError(errors.Wrap(ErrTokenMalformed, err.Error()))
	}
	if exp != nil && !now.Before(exp.Time) {
		return NewAuthError(errors.Wrapf(ErrTokenExpired, "expired at %s", exp.Time.UTC().Format(time.RFC3339)))
	}

	return nil
}

// fetchToken asks provider for a fresh token and runs it through validate.
func fetchToken(ctx context.Context, provider TokenProvider, validate TokenValidator, now time.Time) (string, error) {
	if provider == nil {
		return "", NewAuthError(ErrNoToken)
	}

	token, err := provider.Token(ctx)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return "", err
		}
		return "", NewAuthError(err)
	}

	if err := validate(token, now); err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return "", err
		}
		return "", NewAuthError(err)
	}

	return token, nil
}
