package course

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound        = errors.New("course not found")
	ErrCodeExists      = errors.New("a course with this code already exists")
	ErrAlreadyEnrolled = errors.New("student is already enrolled in this course")
	ErrNotEnrolled     = errors.New("student is not enrolled in this course")
)

type (
	Repository interface {
		CheckCodeUniqueness(ctx context.Context, code string) error
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		QueryCoursesByTeacher(ctx context.Context, teacherID string) ([]Course, error)
		// QueryCoursesByMember returns courses in which the student holds
		// a membership with the given role.
		QueryCoursesByMember(ctx context.Context, studentID, role string) ([]Course, error)
		CreateMembership(ctx context.Context, m Membership) error
		DeleteMembership(ctx context.Context, courseID, studentID, role string) error
		HasMembership(ctx context.Context, courseID, studentID, role string) (bool, error)
		QueryMembers(ctx context.Context, courseID, role string) ([]Member, error)
	}

	Service interface {
		CheckCodeUniqueness(code string) error
		Create(ctx context.Context, teacherID string, nc NewCourse) (Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		QueryTaught(ctx context.Context, teacherID string) ([]Course, error)
		QueryEnrolled(ctx context.Context, studentID string) ([]Course, error)
		QueryAssisted(ctx context.Context, studentID string) ([]Course, error)
		Enroll(ctx context.Context, courseID, studentID string) error
		// ToggleTA grants the TA role to an enrolled student, or revokes
		// it if already granted. Returns whether the student is a TA
		// after the call.
		ToggleTA(ctx context.Context, courseID, studentID string) (bool, error)
		IsTA(ctx context.Context, courseID, studentID string) (bool, error)
		IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
		Members(ctx context.Context, courseID, role string) ([]Member, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CheckCodeUniqueness(code string) error {
	if err := svc.repo.CheckCodeUniqueness(context.Background(), code); err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, teacherID string, nc NewCourse) (Course, error) {
	crs := Course{
		ID:          uuid.New().String(),
		Code:        nc.Code,
		Title:       nc.Title,
		Description: nc.Description,
		TeacherID:   teacherID,
		CreatedAt:   time.Now().UTC(),
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *service) QueryTaught(ctx context.Context, teacherID string) ([]Course, error) {
	return svc.repo.QueryCoursesByTeacher(ctx, teacherID)
}

func (svc *service) QueryEnrolled(ctx context.Context, studentID string) ([]Course, error) {
	return svc.repo.QueryCoursesByMember(ctx, studentID, MemberStudent)
}

func (svc *service) QueryAssisted(ctx context.Context, studentID string) ([]Course, error) {
	return svc.repo.QueryCoursesByMember(ctx, studentID, MemberTA)
}

func (svc *service) Enroll(ctx context.Context, courseID, studentID string) error {
	m := Membership{
		CourseID:  courseID,
		StudentID: studentID,
		Role:      MemberStudent,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateMembership(ctx, m)
}

func (svc *service) ToggleTA(ctx context.Context, courseID, studentID string) (bool, error) {
	enrolled, err := svc.IsEnrolled(ctx, courseID, studentID)
	if err != nil {
		return false, err
	}
	if !enrolled {
		return false, ErrNotEnrolled
	}

	isTA, err := svc.repo.HasMembership(ctx, courseID, studentID, MemberTA)
	if err != nil {
		return false, err
	}
	if isTA {
		if err = svc.repo.DeleteMembership(ctx, courseID, studentID, MemberTA); err != nil {
			return true, err
		}
		return false, nil
	}

	m := Membership{
		CourseID:  courseID,
		StudentID: studentID,
		Role:      MemberTA,
		CreatedAt: time.Now().UTC(),
	}
	if err = svc.repo.CreateMembership(ctx, m); err != nil {
		return false, err
	}
	return true, nil
}

func (svc *service) IsTA(ctx context.Context, courseID, studentID string) (bool, error) {
	return svc.repo.HasMembership(ctx, courseID, studentID, MemberTA)
}

func (svc *service) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	return svc.repo.HasMembership(ctx, courseID, studentID, MemberStudent)
}

func (svc *service) Members(ctx context.Context, courseID, role string) ([]Member, error) {
	return svc.repo.QueryMembers(ctx, courseID, role)
}
