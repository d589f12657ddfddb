package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/attendance"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

// CreateRecord inserts one check-in. The (session, student) primary
// key is the sole arbiter of exactly-once: no read-before-write.
func (repo attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	query := `
		INSERT INTO attendance_record (session_id, student_id, checked_in_at, verification_token)
		VALUES (:session_id, :student_id, :checked_in_at, :verification_token)`
	if _, err := repo.db.NamedExecContext(ctx, query, rec); err != nil {
		if isUniqueViolation(err, "attendance_record_pkey") {
			return attendance.Record{}, attendance.ErrAlreadyCheckedIn
		}
		return attendance.Record{}, errors.Wrap(err, "inserting attendance record")
	}
	return rec, nil
}

func (repo attendanceRepository) QueryRecordsBySession(ctx context.Context, sessionID string) ([]attendance.Record, error) {
	var records []attendance.Record
	query := `SELECT * FROM attendance_record WHERE session_id = $1 ORDER BY checked_in_at`
	if err := repo.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	return records, nil
}

func (repo attendanceRepository) CountRecordsBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM attendance_record WHERE session_id = $1`
	if err := repo.db.GetContext(ctx, &count, query, sessionID); err != nil {
		return 0, errors.Wrap(err, "counting attendance records")
	}
	return count, nil
}
