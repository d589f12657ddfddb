package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("session not found")

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		QuerySessionsByCourse(ctx context.Context, courseID string) ([]Session, error)
		// DeleteSession removes the session; attendance records cascade at
		// the storage layer.
		DeleteSession(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, courseID, createdBy string, ns NewSession) (Session, error)
		GetByID(ctx context.Context, id string) (Session, error)
		QueryByCourse(ctx context.Context, courseID string) ([]Session, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, courseID, createdBy string, ns NewSession) (Session, error) {
	sched, err := ns.schedule()
	if err != nil {
		return Session{}, errors.Wrap(err, "building schedule")
	}
	sess := Session{
		ID:        uuid.New().String(),
		CourseID:  courseID,
		Title:     ns.Title,
		Schedule:  sched,
		Duration:  time.Duration(ns.DurationMinutes) * time.Minute,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateSession(ctx, sess)
}

func (svc *service) GetByID(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSessionByID(ctx, id)
}

func (svc *service) QueryByCourse(ctx context.Context, courseID string) ([]Session, error) {
	return svc.repo.QuerySessionsByCourse(ctx, courseID)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteSession(ctx, id)
}
