package course

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
)

type fakeRepo struct {
	courses     map[string]Course
	memberships map[string]Membership
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		courses:     make(map[string]Course),
		memberships: make(map[string]Membership),
	}
}

func memberKey(courseID, studentID, role string) string {
	return strings.Join([]string{courseID, studentID, role}, "|")
}

func (r *fakeRepo) CheckCodeUniqueness(_ context.Context, code string) error {
	for _, crs := range r.courses {
		if crs.Code == code {
			return ErrCodeExists
		}
	}
	return nil
}

func (r *fakeRepo) CreateCourse(_ context.Context, crs Course) (Course, error) {
	for _, existing := range r.courses {
		if existing.Code == crs.Code {
			return Course{}, ErrCodeExists
		}
	}
	r.courses[crs.ID] = crs
	return crs, nil
}

func (r *fakeRepo) GetCourseByID(_ context.Context, id string) (Course, error) {
	crs, ok := r.courses[id]
	if !ok {
		return Course{}, ErrNotFound
	}
	return crs, nil
}

func (r *fakeRepo) QueryCoursesByTeacher(_ context.Context, teacherID string) ([]Course, error) {
	var courses []Course
	for _, crs := range r.courses {
		if crs.TeacherID == teacherID {
			courses = append(courses, crs)
		}
	}
	return courses, nil
}

func (r *fakeRepo) QueryCoursesByMember(_ context.Context, studentID, role string) ([]Course, error) {
	var courses []Course
	for _, m := range r.memberships {
		if m.StudentID == studentID && m.Role == role {
			courses = append(courses, r.courses[m.CourseID])
		}
	}
	return courses, nil
}

func (r *fakeRepo) CreateMembership(_ context.Context, m Membership) error {
	k := memberKey(m.CourseID, m.StudentID, m.Role)
	if _, ok := r.memberships[k]; ok {
		return ErrAlreadyEnrolled
	}
	r.memberships[k] = m
	return nil
}

func (r *fakeRepo) DeleteMembership(_ context.Context, courseID, studentID, role string) error {
	delete(r.memberships, memberKey(courseID, studentID, role))
	return nil
}

func (r *fakeRepo) HasMembership(_ context.Context, courseID, studentID, role string) (bool, error) {
	_, ok := r.memberships[memberKey(courseID, studentID, role)]
	return ok, nil
}

func (r *fakeRepo) QueryMembers(_ context.Context, courseID, role string) ([]Member, error) {
	var members []Member
	for _, m := range r.memberships {
		if m.CourseID == courseID && m.Role == role {
			members = append(members, Member{Membership: m})
		}
	}
	return members, nil
}

func TestServiceCheckCodeUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := NewService(repo)

	require.NoError(t, svc.CheckCodeUniqueness("cs101"))

	_, err := svc.Create(ctx, "teacher-1", NewCourse{Code: "cs101", Title: "Intro to Computer Science"})
	require.NoError(t, err)

	err = svc.CheckCodeUniqueness("cs101")
	require.Error(t, err)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, []core.FieldError{{Field: "code", Error: ErrCodeExists.Error()}}, vErr.Fields)
}

func TestServiceEnroll(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := NewService(repo)

	crs, err := svc.Create(ctx, "teacher-1", NewCourse{Code: "cs101", Title: "Intro to Computer Science"})
	require.NoError(t, err)

	require.NoError(t, svc.Enroll(ctx, crs.ID, "student-1"))

	enrolled, err := svc.IsEnrolled(ctx, crs.ID, "student-1")
	require.NoError(t, err)
	assert.True(t, enrolled)

	t.Run("enrolling twice fails", func(t *testing.T) {
		err := svc.Enroll(ctx, crs.ID, "student-1")
		assert.Equal(t, ErrAlreadyEnrolled, errors.Cause(err))
	})

	t.Run("enrollment is per student", func(t *testing.T) {
		enrolled, err := svc.IsEnrolled(ctx, crs.ID, "student-2")
		require.NoError(t, err)
		assert.False(t, enrolled)
	})

	t.Run("queries by role", func(t *testing.T) {
		taught, err := svc.QueryTaught(ctx, "teacher-1")
		require.NoError(t, err)
		assert.Len(t, taught, 1)

		mine, err := svc.QueryEnrolled(ctx, "student-1")
		require.NoError(t, err)
		assert.Len(t, mine, 1)

		assisted, err := svc.QueryAssisted(ctx, "student-1")
		require.NoError(t, err)
		assert.Empty(t, assisted)
	})
}

func TestServiceToggleTA(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := NewService(repo)

	crs, err := svc.Create(ctx, "teacher-1", NewCourse{Code: "cs101", Title: "Intro to Computer Science"})
	require.NoError(t, err)

	t.Run("requires enrollment", func(t *testing.T) {
		_, err := svc.ToggleTA(ctx, crs.ID, "student-1")
		assert.Equal(t, ErrNotEnrolled, errors.Cause(err))
	})

	require.NoError(t, svc.Enroll(ctx, crs.ID, "student-1"))

	t.Run("grants then revokes", func(t *testing.T) {
		isTA, err := svc.ToggleTA(ctx, crs.ID, "student-1")
		require.NoError(t, err)
		assert.True(t, isTA)

		isTA, err = svc.IsTA(ctx, crs.ID, "student-1")
		require.NoError(t, err)
		assert.True(t, isTA)

		// the TA role comes on top of enrollment, it does not replace it
		assisted, err := svc.QueryAssisted(ctx, "student-1")
		require.NoError(t, err)
		assert.Len(t, assisted, 1)
		enrolled, err := svc.IsEnrolled(ctx, crs.ID, "student-1")
		require.NoError(t, err)
		assert.True(t, enrolled)

		isTA, err = svc.ToggleTA(ctx, crs.ID, "student-1")
		require.NoError(t, err)
		assert.False(t, isTA)

		isTA, err = svc.IsTA(ctx, crs.ID, "student-1")
		require.NoError(t, err)
		assert.False(t, isTA)
	})
}
