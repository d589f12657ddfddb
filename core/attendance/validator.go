package attendance

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	ErrTokenExpired    = errors.New("attendance token has expired, scan again from the live display")
	ErrInvalidTokenSet = errors.New("invalid attendance tokens detected")
	ErrSessionMismatch = errors.New("scanned tokens belong to different sessions")
	ErrTokenStale      = errors.New("scanned tokens are too old, scan again")
	ErrTokenReplayed   = errors.New("scanned tokens do not advance, scan the live display rather than a still image")
)

// Validator checks scanned token payloads for freshness, session
// consistency and advancement. It is a pure function of its inputs;
// callers pass the verification instant explicitly.
type Validator struct {
	freshnessWindow time.Duration
	sequenceWindow  time.Duration
	rotationPeriod  time.Duration
}

func NewValidator(conf core.AttendanceConfig) *Validator {
	return &Validator{
		freshnessWindow: conf.TokenFreshnessWindow,
		sequenceWindow:  conf.SequenceWindow,
		rotationPeriod:  conf.TokenRotationPeriod,
	}
}

// ValidateSingle checks one scanned payload against the freshness
// window and returns the session it belongs to.
func (v *Validator) ValidateSingle(payload string, now time.Time) (sessionID string, err error) {
	tok, err := ParseToken(payload)
	if err != nil {
		return "", err
	}
	if tok.Age(now) > v.freshnessWindow {
		return "", ErrTokenExpired
	}
	return tok.SessionID, nil
}

// ValidateSequence checks a full scan window of payloads, oldest to
// newest, and returns the common session id. All payloads must parse,
// agree on the session, fall within the sequence window, and carry
// strictly increasing timestamps. The last check is what defeats a
// frozen frame: a still image replayed to the camera yields identical
// timestamps, which pass a spread-only check trivially (spread 0) but
// can never advance.
func (v *Validator) ValidateSequence(payloads []string, now time.Time) (sessionID string, err error) {
	if len(payloads) == 0 {
		return "", ErrInvalidTokenSet
	}

	tokens := make([]Token, len(payloads))
	for i, p := range payloads {
		tok, err := ParseToken(p)
		if err != nil {
			return "", ErrInvalidTokenSet
		}
		tokens[i] = tok
	}

	sessionID = tokens[0].SessionID
	for _, tok := range tokens[1:] {
		if tok.SessionID != sessionID {
			return "", ErrSessionMismatch
		}
	}

	min, max := tokens[0].IssuedAt, tokens[0].IssuedAt
	for _, tok := range tokens[1:] {
		if tok.IssuedAt < min {
			min = tok.IssuedAt
		}
		if tok.IssuedAt > max {
			max = tok.IssuedAt
		}
	}
	if time.Duration(max-min)*time.Millisecond > v.sequenceWindow {
		return "", ErrTokenStale
	}

	for i := 1; i < len(tokens); i++ {
		if tokens[i].IssuedAt <= tokens[i-1].IssuedAt {
			return "", ErrTokenReplayed
		}
	}

	// a well-spread, advancing sequence can still be a recording
	// replayed later; the newest token must itself be fresh
	if tokens[len(tokens)-1].Age(now) > v.freshnessWindow {
		return "", ErrTokenExpired
	}

	return sessionID, nil
}

// Retryable reports whether a validation failure can be remedied by
// scanning again without other intervention.
func Retryable(err error) bool {
	switch errors.Cause(err) {
	case ErrTokenExpired, ErrTokenStale, ErrTokenReplayed, ErrSessionMismatch, ErrMalformedToken, ErrInvalidTokenSet:
		return true
	}
	return false
}
