package echoapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/trezcool/darasa/core/attendance"
)

var upgrader = websocket.Upgrader{
	// cross-origin is enforced at the edge; tokens expire in seconds anyway
	CheckOrigin: func(r *http.Request) bool { return true },
}

type attendanceApi struct {
	deps *Deps
	hub  *issuerHub
}

// registerAttendanceAPI takes the session detail group; its jwt and
// session-loading middlewares already apply.
func registerAttendanceAPI(sg *echo.Group, deps *Deps) {
	api := attendanceApi{
		deps: deps,
		hub:  newIssuerHub(deps),
	}

	sg.GET("/qr", api.currentQR)
	sg.GET("/qr/ws", api.streamQR)
	sg.GET("/scan/ws", api.scan, studentMiddleware())
	sg.POST("/check-in", api.checkIn, studentMiddleware())
	sg.GET("/attendance", api.records)
	sg.GET("/attendance/count", api.attendeeCount)
}

// Handlers

// currentQR renders the token of this instant as a PNG. It is the
// single-shot fallback for clients that cannot hold a websocket open;
// such clients can only ever pass single-token verification.
func (api *attendanceApi) currentQR(ctx echo.Context) error {
	sess, crs, err := contextSession(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseStaff(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}

	tok := attendance.NewToken(sess.ID, time.Now())
	png, err := qrcode.Encode(tok.String(), qrcode.Medium, api.deps.Conf.Attendance.QRSize)
	if err != nil {
		return errors.Wrap(err, "rendering QR code")
	}
	return ctx.Blob(http.StatusOK, "image/png", png)
}

// streamQR pushes rotating QR frames over a websocket until the client
// goes away. Frames carry the raw token alongside the rendered PNG so
// thin displays can render their own code.
func (api *attendanceApi) streamQR(ctx echo.Context) error {
	sess, crs, err := contextSession(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseStaff(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading to websocket")
	}
	defer conn.Close()

	issuer, release := api.hub.acquire(sess.ID)
	defer release()

	frames, unsubscribe := issuer.Subscribe()
	defer unsubscribe()

	// read pump: detect disconnects; the client sends nothing of note
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			msg := qrFrameMessage{
				SessionID: frame.Token.SessionID,
				Token:     frame.Token.String(),
				PNG:       frame.PNG,
			}
			if err := conn.WriteJSON(msg); err != nil {
				return nil // client gone
			}
		}
	}
}

// scan drives one student scan session over a websocket. The client
// sends decode events as its camera spots codes; the server owns the
// state machine and runs verification when the window fills.
func (api *attendanceApi) scan(ctx echo.Context) error {
	sess, crs, err := contextSession(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err := api.requireEnrolled(ctx, crs.ID, claims.Subject); err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading to websocket")
	}
	defer conn.Close()

	scanner := attendance.NewScanner(api.deps.Conf.Attendance.ScanWindowSize)
	rctx := ctx.Request().Context()

	apply := func(ev attendance.Event) bool {
		effects := scanner.Apply(ev)
		for _, eff := range effects {
			switch eff := eff.(type) {
			case attendance.EffectVerify:
				rec, vErr := api.deps.AttendanceSvc.CheckIn(rctx, sess, claims.Subject, eff.Payloads, eff.Frame)
				if vErr != nil {
					return applyNested(scanner, attendance.EventRejected{Err: vErr}, conn)
				}
				return applyNested(scanner, attendance.EventVerified{Record: rec}, conn)
			case attendance.EffectReleaseCamera:
				// the client owns the capture device; just relay the ask
			}
		}
		return writeScanState(conn, scanner, effects)
	}

	for {
		var ev scanEventMessage
		if err := conn.ReadJSON(&ev); err != nil {
			scanner.Apply(attendance.EventCancel{})
			return nil
		}
		switch ev.Type {
		case "start":
			if !apply(attendance.EventStart{}) {
				return nil
			}
		case "decode":
			if !apply(attendance.EventDecode{Payload: ev.Payload, Frame: ev.Frame}) {
				return nil
			}
		case "cancel":
			if !apply(attendance.EventCancel{}) {
				return nil
			}
		}
	}
}

// applyNested feeds a verification outcome back into the machine and
// reports the resulting state.
func applyNested(scanner *attendance.Scanner, ev attendance.Event, conn *websocket.Conn) bool {
	effects := scanner.Apply(ev)
	return writeScanState(conn, scanner, effects)
}

func writeScanState(conn *websocket.Conn, scanner *attendance.Scanner, effects []attendance.Effect) bool {
	have, want := scanner.Progress()
	msg := scanStateMessage{
		State:    scanner.State().String(),
		Captured: have,
		Needed:   want,
	}
	if err := scanner.Err(); err != nil {
		msg.Error = err.Error()
		msg.Retryable = attendance.Retryable(err)
	}
	if scanner.State() == attendance.StateRecorded {
		rec := scanner.Record()
		msg.Record = &rec
	}
	for _, eff := range effects {
		if _, ok := eff.(attendance.EffectReleaseCamera); ok {
			msg.ReleaseCamera = true
		}
	}
	return conn.WriteJSON(msg) == nil
}

// checkIn is the single-shot HTTP fallback for clients without
// websocket support. It accepts the captured payload sequence directly.
func (api *attendanceApi) checkIn(ctx echo.Context) error {
	sess, crs, err := contextSession(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err := api.requireEnrolled(ctx, crs.ID, claims.Subject); err != nil {
		return err
	}

	var data CheckInRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckInRequest")
	}
	if len(data.Payloads) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no scanned payloads supplied")
	}

	rec, err := api.deps.AttendanceSvc.CheckIn(ctx.Request().Context(), sess, claims.Subject, data.Payloads, data.Frame)
	if err != nil {
		switch {
		case errors.Cause(err) == attendance.ErrAlreadyCheckedIn:
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case attendance.IsClassifierUnavailable(err), attendance.IsRecordingFailure(err):
			return echo.NewHTTPError(http.StatusServiceUnavailable, errors.Cause(err).Error())
		default:
			// token validation, inactive session, screenshot verdict
			return echo.NewHTTPError(http.StatusBadRequest, errors.Cause(err).Error())
		}
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *attendanceApi) records(ctx echo.Context) error {
	sess, crs, err := contextSession(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseStaff(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}

	records, err := api.deps.AttendanceSvc.RecordsBySession(ctx.Request().Context(), sess.ID)
	if err != nil {
		return errors.Wrap(err, "querying attendance records")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) attendeeCount(ctx echo.Context) error {
	sess, crs, err := contextSession(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseStaff(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}

	count, err := api.deps.AttendanceSvc.AttendeeCount(ctx.Request().Context(), sess.ID)
	if err != nil {
		return errors.Wrap(err, "counting attendees")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"count": count})
}

func (api *attendanceApi) requireEnrolled(ctx echo.Context, courseID, studentID string) error {
	enrolled, err := api.deps.CourseSvc.IsEnrolled(ctx.Request().Context(), courseID, studentID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return errHttpForbidden
	}
	return nil
}

// issuerHub shares one running Issuer per session across all display
// websockets, so every projector rotates the same token.
type issuerHub struct {
	deps *Deps

	mu      sync.Mutex
	entries map[string]*issuerEntry
}

type issuerEntry struct {
	issuer *attendance.Issuer
	cancel context.CancelFunc
	refs   int
}

func newIssuerHub(deps *Deps) *issuerHub {
	return &issuerHub{
		deps:    deps,
		entries: make(map[string]*issuerEntry),
	}
}

// acquire returns the session's running issuer, starting one on first
// use. The release func must be called when the caller is done; the
// last release stops the rotation.
func (h *issuerHub) acquire(sessionID string) (*attendance.Issuer, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.entries[sessionID]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		entry = &issuerEntry{
			issuer: attendance.NewIssuer(sessionID, h.deps.Conf.Attendance),
			cancel: cancel,
		}
		h.entries[sessionID] = entry
		go func() {
			if err := entry.issuer.Run(ctx); err != nil && errors.Cause(err) != context.Canceled {
				h.deps.Logger.Error("token issuer stopped", err)
			}
		}()
	}
	entry.refs++

	var once sync.Once
	release := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			entry.refs--
			if entry.refs == 0 {
				entry.cancel()
				delete(h.entries, sessionID)
			}
		})
	}
	return entry.issuer, release
}

type (
	qrFrameMessage struct {
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
		PNG       []byte `json:"png"` // base64 in transit
	}

	scanEventMessage struct {
		Type    string `json:"type"` // start | decode | cancel
		Payload string `json:"payload,omitempty"`
		Frame   string `json:"frame,omitempty"` // base64 still for liveness vetting
	}

	scanStateMessage struct {
		State         string             `json:"state"`
		Captured      int                `json:"captured"`
		Needed        int                `json:"needed"`
		Error         string             `json:"error,omitempty"`
		Retryable     bool               `json:"retryable,omitempty"`
		ReleaseCamera bool               `json:"release_camera,omitempty"`
		Record        *attendance.Record `json:"record,omitempty"`
	}

	CheckInRequest struct {
		Payloads []string `json:"payloads"`
		Frame    string   `json:"frame,omitempty"`
	}
)
