package auth

import (
	"context"
	"errors"
	"time"
)

var ErrNoCredential = errors.New("auth: no credential available")

// CredentialSource supplies the bearer token for the coach transport. A nil
// or empty token is a hard failure for the calling turn.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// StaticSource returns a fixed token, e.g. a service API key from config.
type StaticSource string

func (s StaticSource) Credential(ctx context.Context) (string, error) {
	_ = ctx
	if s == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}

// MintingSource signs a short-lived JWT per request, refreshing transparently
// the way the identity provider would.
type MintingSource struct {
	Secret  string
	Subject uint64
	TTL     time.Duration
}

func (m *MintingSource) Credential(ctx context.Context) (string, error) {
	_ = ctx
	if m.Secret == "" {
		return "", ErrNoCredential
	}
	ttl := m.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return SignJWT(m.Subject, m.Secret, ttl)
}
