package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	k := key(rec.SessionID, rec.StudentID)
	if _, exists := repo.db.records[k]; exists {
		return attendance.Record{}, attendance.ErrAlreadyCheckedIn
	}
	repo.db.records[k] = rec
	return rec, nil
}

func (repo attendanceRepository) QueryRecordsBySession(ctx context.Context, sessionID string) ([]attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var records []attendance.Record
	for _, rec := range repo.db.records {
		if rec.SessionID == sessionID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CheckedInAt.Before(records[j].CheckedInAt) })
	return records, nil
}

func (repo attendanceRepository) CountRecordsBySession(ctx context.Context, sessionID string) (int, error) {
	records, err := repo.QueryRecordsBySession(ctx, sessionID)
	return len(records), err
}
