// Package session resolves the identity behind a connection request.
//
// The credential is the value of the session cookie set by the HTTP layer
// (express-session format, "s:<session-id>.<signature>", possibly URL encoded).
// The session-store key is the text between the first ':' and the last '.'.
// This extraction rule is a fixed part of the handshake contract.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/errors"
	"net/url"
	"regexp"
)

const DefaultCookieName = "connect.sid"

var credentialPattern = regexp.MustCompile(`:(.*)\.`)

// ExtractKey returns the session-store key carried by a cookie value.
func ExtractKey(credential string) (string, error) {
	if credential == "" {
		return "", errors.ErrMissingCredential
	}
	if decoded, err := url.QueryUnescape(credential); err == nil {
		credential = decoded
	}
	match := credentialPattern.FindStringSubmatch(credential)
	if match == nil || match[1] == "" {
		return "", fmt.Errorf("%w: %q", errors.ErrMalformedCookie, credential)
	}
	return match[1], nil
}

type Resolver struct {
	log   *slog.Logger
	store contract.SessionStore
}

func NewResolver(log *slog.Logger, store contract.SessionStore) *Resolver {
	return &Resolver{log: log, store: store}
}

// Resolve never reports why a credential was refused to its caller.
// Reasons are only logged at debug level.
func (r *Resolver) Resolve(ctx context.Context, credential string) (domain.UserID, bool) {
	key, err := ExtractKey(credential)
	if err != nil {
		r.log.Debug("Session credential rejected", "error", err)
		return "", false
	}
	user, err := r.store.Get(ctx, key)
	if err != nil {
		r.log.Debug("Session lookup failed", "error", err)
		return "", false
	}
	if user == "" {
		r.log.Debug("Session has no associated user")
		return "", false
	}
	return user, true
}
