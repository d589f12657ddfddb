package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/trezcool/darasa/core"
)

// Frame is one rendering of the rotating token, ready to display.
type Frame struct {
	Token Token
	PNG   []byte
}

// Issuer mints a fresh attendance token for one session on a fixed
// rotation cadence and renders it as a scannable QR code. The short
// rotation plus the embedded timestamp make a statically captured
// image verifiably stale by the time it could be replayed.
//
// An Issuer is bound to the lifetime of the view displaying it: Run
// blocks until its context is cancelled, at which point the rotation
// ticker is released and all subscriber channels are closed.
type Issuer struct {
	sessionID string
	period    time.Duration
	qrSize    int
	nowFunc   func() time.Time // mockable

	mu     sync.Mutex
	subs   map[chan Frame]struct{}
	closed bool
}

func NewIssuer(sessionID string, conf core.AttendanceConfig) *Issuer {
	return &Issuer{
		sessionID: sessionID,
		period:    conf.TokenRotationPeriod,
		qrSize:    conf.QRSize,
		nowFunc:   time.Now,
		subs:      make(map[chan Frame]struct{}),
	}
}

// CurrentToken returns the token for this instant. It is a pure
// function of the session id and the clock; no state is kept between
// rotations.
func (i *Issuer) CurrentToken() Token {
	return NewToken(i.sessionID, i.nowFunc())
}

// Subscribe registers a listener for rendered frames. The returned
// cancel func must be called when the listener goes away; it is safe
// to call after the Issuer has stopped.
func (i *Issuer) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, 1)

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		close(ch)
		return ch, func() {}
	}
	i.subs[ch] = struct{}{}

	return ch, func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		if _, ok := i.subs[ch]; ok {
			delete(i.subs, ch)
			close(ch)
		}
	}
}

// Run rotates the token every period until ctx is cancelled, rendering
// and publishing one frame per tick. Frames are published strictly in
// mint order; a superseded token is never rendered after its successor.
func (i *Issuer) Run(ctx context.Context) error {
	// first frame right away; scanners should not wait a full period
	if err := i.publish(); err != nil {
		i.stop()
		return err
	}

	ticker := time.NewTicker(i.period)
	defer ticker.Stop()
	defer i.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := i.publish(); err != nil {
				return err
			}
		}
	}
}

func (i *Issuer) publish() error {
	tok := i.CurrentToken()
	png, err := qrcode.Encode(tok.String(), qrcode.Medium, i.qrSize)
	if err != nil {
		return errors.Wrap(err, "rendering QR code")
	}
	frame := Frame{Token: tok, PNG: png}

	i.mu.Lock()
	defer i.mu.Unlock()
	for ch := range i.subs {
		select {
		case ch <- frame:
		default:
			// slow subscriber: drop the stale frame it never read
			select {
			case <-ch:
			default:
			}
			ch <- frame
		}
	}
	return nil
}

func (i *Issuer) stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	i.closed = true
	for ch := range i.subs {
		delete(i.subs, ch)
		close(ch)
	}
}
