package attendance

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// tokenSeparator splits the session id from the issue timestamp on the
// wire. Session ids are UUIDs, whose alphabet is disjoint from it.
const tokenSeparator = ":"

var ErrMalformedToken = errors.New("malformed attendance token")

// Token is an ephemeral credential proving that its bearer was looking
// at the live display of a session at approximately its issue time.
// Tokens are never persisted; each one is superseded by the next
// rotation tick and goes stale on its own.
type Token struct {
	SessionID string
	IssuedAt  int64 // Unix milliseconds
}

// NewToken mints the token for a session at the given instant.
func NewToken(sessionID string, now time.Time) Token {
	return Token{SessionID: sessionID, IssuedAt: now.UnixNano() / int64(time.Millisecond)}
}

// String serializes the token to its wire form "<sessionID>:<epochMillis>".
func (t Token) String() string {
	return t.SessionID + tokenSeparator + strconv.FormatInt(t.IssuedAt, 10)
}

// Age returns how old the token is at `now`.
func (t Token) Age(now time.Time) time.Duration {
	nowMs := now.UnixNano() / int64(time.Millisecond)
	return time.Duration(nowMs-t.IssuedAt) * time.Millisecond
}

// ParseToken parses a scanned wire payload. It fails with
// ErrMalformedToken unless the payload splits into a valid UUID and a
// numeric millisecond timestamp.
func ParseToken(payload string) (Token, error) {
	parts := strings.Split(payload, tokenSeparator)
	if len(parts) != 2 {
		return Token{}, ErrMalformedToken
	}
	if _, err := uuid.Parse(parts[0]); err != nil {
		return Token{}, ErrMalformedToken
	}
	ms, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || ms < 0 {
		return Token{}, ErrMalformedToken
	}
	return Token{SessionID: parts[0], IssuedAt: ms}, nil
}
