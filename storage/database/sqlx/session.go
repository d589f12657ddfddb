package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/session"
)

type sessionRow struct {
	ID              string         `db:"id"`
	CourseID        string         `db:"course_id"`
	Title           string         `db:"title"`
	Recurring       bool           `db:"recurring"`
	ScheduledAt     sql.NullTime   `db:"scheduled_at"`
	RecurrenceDay   sql.NullInt64  `db:"recurrence_day"`
	RecurrenceTime  sql.NullString `db:"recurrence_time"`
	DurationMinutes int            `db:"duration_minutes"`
	CreatedBy       string         `db:"created_by"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (r sessionRow) session() (session.Session, error) {
	sess := session.Session{
		ID:        r.ID,
		CourseID:  r.CourseID,
		Title:     r.Title,
		Duration:  time.Duration(r.DurationMinutes) * time.Minute,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
	}
	if !r.Recurring {
		if !r.ScheduledAt.Valid {
			return session.Session{}, errors.Errorf("session %s: one-off without scheduled_at", r.ID)
		}
		sess.Schedule = session.OneOff{StartAt: r.ScheduledAt.Time}
		return sess, nil
	}

	if !r.RecurrenceDay.Valid || !r.RecurrenceTime.Valid {
		return session.Session{}, errors.Errorf("session %s: recurring without day/time", r.ID)
	}
	tod, err := session.ParseTimeOfDay(r.RecurrenceTime.String)
	if err != nil {
		return session.Session{}, errors.Wrapf(err, "session %s", r.ID)
	}
	sess.Schedule = session.Weekly{
		Day:       time.Weekday(r.RecurrenceDay.Int64),
		TimeOfDay: tod,
	}
	return sess, nil
}

func newSessionRow(sess session.Session) sessionRow {
	r := sessionRow{
		ID:              sess.ID,
		CourseID:        sess.CourseID,
		Title:           sess.Title,
		DurationMinutes: int(sess.Duration / time.Minute),
		CreatedBy:       sess.CreatedBy,
		CreatedAt:       sess.CreatedAt.UTC(),
	}
	switch sched := sess.Schedule.(type) {
	case session.OneOff:
		r.ScheduledAt = sql.NullTime{Time: sched.StartAt.UTC(), Valid: true}
	case session.Weekly:
		r.Recurring = true
		r.RecurrenceDay = sql.NullInt64{Int64: int64(sched.Day), Valid: true}
		r.RecurrenceTime = sql.NullString{String: sched.TimeOfDay.String(), Valid: true}
	}
	return r
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	r := newSessionRow(sess)
	query := `
		INSERT INTO session (id, course_id, title, recurring, scheduled_at, recurrence_day, recurrence_time, duration_minutes, created_by, created_at)
		VALUES (:id, :course_id, :title, :recurring, :scheduled_at, :recurrence_day, :recurrence_time, :duration_minutes, :created_by, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, r); err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return sess, nil
}

func (repo sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	var r sessionRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM session WHERE id = $1`, id); err != nil {
		return session.Session{}, trapNoRows(err, session.ErrNotFound, "getting session")
	}
	return r.session()
}

func (repo sessionRepository) QuerySessionsByCourse(ctx context.Context, courseID string) ([]session.Session, error) {
	var rows []sessionRow
	query := `SELECT * FROM session WHERE course_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, errors.Wrap(err, "querying sessions by course")
	}
	sessions := make([]session.Session, 0, len(rows))
	for _, r := range rows {
		sess, err := r.session()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (repo sessionRepository) DeleteSession(ctx context.Context, id string) error {
	// attendance records cascade
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM session WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return nil
}
