package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/session"
)

type sessionRepository struct {
	db *DB
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.sessions[sess.ID] = sess
	return sess, nil
}

func (repo sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if sess, ok := repo.db.sessions[id]; ok {
		return sess, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo sessionRepository) QuerySessionsByCourse(ctx context.Context, courseID string) ([]session.Session, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var sessions []session.Session
	for _, sess := range repo.db.sessions {
		if sess.CourseID == courseID {
			sessions = append(sessions, sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.After(sessions[j].CreatedAt) })
	return sessions, nil
}

func (repo sessionRepository) DeleteSession(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.sessions, id)
	for k, rec := range repo.db.records {
		if rec.SessionID == id {
			delete(repo.db.records, k)
		}
	}
	return nil
}
