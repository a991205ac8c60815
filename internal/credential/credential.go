// Package credential resolves the provider API key held by the server. Exactly
// one Source is active per deployment; callers of the relay never see it.
package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

var ErrNoCredential = errors.New("provider credential is not configured")

type Source interface {
	Token(ctx context.Context) (string, error)
}

// EnvSource serves a key read from the environment at startup.
type EnvSource struct {
	Key string
}

func (e EnvSource) Token(context.Context) (string, error) {
	if strings.TrimSpace(e.Key) == "" {
		return "", ErrNoCredential
	}
	return e.Key, nil
}

// TokenSource adapts src for oauth2.Transport. Keys are looked up on every
// request so file and database rotations take effect without a restart.
func TokenSource(ctx context.Context, src Source) oauth2.TokenSource {
	return tokenSource{ctx: ctx, src: src}
}

type tokenSource struct {
	ctx context.Context
	src Source
}

func (t tokenSource) Token() (*oauth2.Token, error) {
	key, err := t.src.Token(t.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: key, TokenType: "Bearer"}, nil
}

// HTTPClient returns a client whose requests carry "Authorization: Bearer <key>".
func HTTPClient(ctx context.Context, src Source, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: TokenSource(ctx, src), Base: base},
	}
}

// Redact replaces any occurrence of the current key in s.
func Redact(ctx context.Context, src Source, s string) string {
	if src == nil {
		return s
	}
	key, err := src.Token(ctx)
	if err != nil || strings.TrimSpace(key) == "" {
		return s
	}
	return strings.ReplaceAll(s, key, "[redacted]")
}

// Describe names a source for logs without revealing the key.
func Describe(src Source) string {
	switch s := src.(type) {
	case EnvSource:
		return "env"
	case *FileSource:
		return fmt.Sprintf("file:%s", s.path)
	case *DatabaseSource:
		return fmt.Sprintf("database:%s", s.service)
	default:
		return fmt.Sprintf("%T", src)
	}
}
