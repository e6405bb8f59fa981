package libsession

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const tokenQueryParam = "token"

type (
	OpenConnectionParams struct {
		URL    url.URL
		Header http.Header
	}

	// OpenConnectionParamsGetter builds dial parameters for one attempt from a freshly
	// fetched token and the session being connected to.
	OpenConnectionParamsGetter func(ctx context.Context, token string, key SessionKey) (OpenConnectionParams, error)

	OpenConnectionParamsRepo struct {
		logger logger
		getter OpenConnectionParamsGetter
	}
)

func (r OpenConnectionParamsRepo) Get(
	ctx context.Context,
	token string,
	key SessionKey,
) (params OpenConnectionParams, err error) {
	params, err = r.getter(ctx, token, key)
	if err != nil {
		r.logger.Errorf("cannot fetch open connection params: %s", err)
	}
	return
}

func NewOpenConnectionParamsRepo(
	logger logger,
	getter OpenConnectionParamsGetter,
) OpenConnectionParamsRepo {
	return OpenConnectionParamsRepo{getter: getter, logger: logger}
}

// ConfigParamsGetter derives the WebSocket endpoint from cfg. The token travels in the
// query string or the Authorization header depending on cfg.AuthMode; the session key,
// when set, is passed as the sessionField query parameter.
func ConfigParamsGetter(cfg Config, sessionField string) OpenConnectionParamsGetter {
	return func(_ context.Context, token string, key SessionKey) (OpenConnectionParams, error) {
		u, err := websocketURL(cfg.BaseURL, cfg.Path)
		if err != nil {
			return OpenConnectionParams{}, err
		}

		header := make(http.Header)
		q := u.Query()
		switch cfg.AuthMode {
		case AuthModeHeader:
			header.Set("Authorization", "Bearer "+token)
		default:
			q.Set(tokenQueryParam, token)
		}
		if !key.IsZero() && sessionField != "" {
			q.Set(sessionField, key.String())
		}
		u.RawQuery = q.Encode()

		return OpenConnectionParams{URL: *u, Header: header}, nil
	}
}

// websocketURL maps an http(s) base URL to ws(s) and appends path.
func websocketURL(base, path string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrapf(err, "parse base url %q", base)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws", "":
		u.Scheme = "ws"
	default:
		return nil, errors.Errorf("unsupported scheme %q in %q", u.Scheme, base)
	}
	if u.Host == "" {
		return nil, errors.Errorf("missing host in %q", base)
	}

	if path != "" {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	return u, nil
}
