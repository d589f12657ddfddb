package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/session"
)

var (
	// ErrAlreadyCheckedIn is the idempotent terminal outcome of a second
	// check-in attempt. It is informational, not a failure to retry.
	ErrAlreadyCheckedIn = errors.New("already checked in to this session")

	ErrSessionNotActive   = errors.New("session is not currently active")
	ErrScreenshotDetected = errors.New("possible screenshot detected, scan from the actual display")
	ErrRecordingFailed    = errors.New("failed to record attendance, try again")
)

// Record is the durable proof that a student checked in to a session.
// It is written exactly once and never updated.
type Record struct {
	SessionID   string    `json:"session_id" db:"session_id"`
	StudentID   string    `json:"student_id" db:"student_id"`
	CheckedInAt time.Time `json:"checked_in_at" db:"checked_in_at"` // UTC
	// VerificationToken keeps the raw scanned payloads for audit.
	VerificationToken string `json:"verification_token" db:"verification_token"`
}

type (
	Repository interface {
		// CreateRecord inserts the record, relying on the storage-layer
		// uniqueness constraint over (session, student) as the sole
		// arbiter of exactly-once; a violation surfaces as
		// ErrAlreadyCheckedIn. No in-memory lock can replace the
		// constraint: concurrent devices may race on the same pair.
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		QueryRecordsBySession(ctx context.Context, sessionID string) ([]Record, error)
		CountRecordsBySession(ctx context.Context, sessionID string) (int, error)
	}

	Service interface {
		// CheckIn runs one verification attempt end to end: token
		// validation, optional liveness classification of the supplied
		// frame, then the at-most-once write. Each step's failure
		// short-circuits the rest. Identity and session are explicit
		// parameters; nothing is read ambiently.
		CheckIn(ctx context.Context, sess session.Session, studentID string, payloads []string, frame string) (Record, error)
		RecordsBySession(ctx context.Context, sessionID string) ([]Record, error)
		AttendeeCount(ctx context.Context, sessionID string) (int, error)
	}

	service struct {
		repo       Repository
		validator  *Validator
		classifier Classifier // nil disables liveness vetting
		nowFunc    func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, validator *Validator, classifier Classifier) Service {
	return &service{
		repo:       repo,
		validator:  validator,
		classifier: classifier,
		nowFunc:    time.Now,
	}
}

func (svc *service) CheckIn(ctx context.Context, sess session.Session, studentID string, payloads []string, frame string) (Record, error) {
	now := svc.nowFunc()

	if !sess.IsActive(now) {
		return Record{}, ErrSessionNotActive
	}

	var sessionID string
	var err error
	if len(payloads) == 1 {
		sessionID, err = svc.validator.ValidateSingle(payloads[0], now)
	} else {
		sessionID, err = svc.validator.ValidateSequence(payloads, now)
	}
	if err != nil {
		return Record{}, err
	}
	if sessionID != sess.ID {
		return Record{}, ErrSessionMismatch
	}

	if frame != "" && svc.classifier != nil {
		res, err := svc.classifier.Classify(ctx, frame)
		if err != nil {
			if IsClassifierUnavailable(err) {
				return Record{}, err
			}
			return Record{}, errors.Wrap(ErrClassifierUnavailable, err.Error())
		}
		if !res.IsPhysical() {
			return Record{}, ErrScreenshotDetected
		}
	}

	rec := Record{
		SessionID:         sess.ID,
		StudentID:         studentID,
		CheckedInAt:       now.UTC(),
		VerificationToken: strings.Join(payloads, ","),
	}
	rec, err = svc.repo.CreateRecord(ctx, rec)
	if err != nil {
		if errors.Cause(err) == ErrAlreadyCheckedIn {
			return Record{}, ErrAlreadyCheckedIn
		}
		return Record{}, errors.Wrap(ErrRecordingFailed, err.Error())
	}
	return rec, nil
}

func (svc *service) RecordsBySession(ctx context.Context, sessionID string) ([]Record, error) {
	return svc.repo.QueryRecordsBySession(ctx, sessionID)
}

func (svc *service) AttendeeCount(ctx context.Context, sessionID string) (int, error) {
	return svc.repo.CountRecordsBySession(ctx, sessionID)
}

// IsRecordingFailure reports whether err is a retryable storage fault
// of the recorder, as opposed to the idempotent ErrAlreadyCheckedIn.
func IsRecordingFailure(err error) bool {
	return errors.Cause(err) == ErrRecordingFailed
}
