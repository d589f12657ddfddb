package assignment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	assignments map[string]Assignment
	submissions map[string]Submission // assignmentID|studentID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		assignments: make(map[string]Assignment),
		submissions: make(map[string]Submission),
	}
}

func (r *fakeRepo) CreateAssignment(_ context.Context, a Assignment) (Assignment, error) {
	r.assignments[a.ID] = a
	return a, nil
}

func (r *fakeRepo) GetAssignmentByID(_ context.Context, id string) (Assignment, error) {
	a, ok := r.assignments[id]
	if !ok {
		return Assignment{}, ErrNotFound
	}
	return a, nil
}

func (r *fakeRepo) QueryAssignmentsByCourse(_ context.Context, courseID string) ([]Assignment, error) {
	var out []Assignment
	for _, a := range r.assignments {
		if a.CourseID == courseID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteAssignment(_ context.Context, id string) error {
	delete(r.assignments, id)
	for key, s := range r.submissions {
		if s.AssignmentID == id {
			delete(r.submissions, key)
		}
	}
	return nil
}

func (r *fakeRepo) CreateSubmission(_ context.Context, s Submission) (Submission, error) {
	key := s.AssignmentID + "|" + s.StudentID
	if _, exists := r.submissions[key]; exists {
		return Submission{}, ErrAlreadySubmitted
	}
	r.submissions[key] = s
	return s, nil
}

func (r *fakeRepo) GetSubmission(_ context.Context, assignmentID, studentID string) (Submission, error) {
	s, ok := r.submissions[assignmentID+"|"+studentID]
	if !ok {
		return Submission{}, ErrSubmissionNotFound
	}
	return s, nil
}

func (r *fakeRepo) QuerySubmissionsByAssignment(_ context.Context, assignmentID string) ([]Submission, error) {
	var out []Submission
	for _, s := range r.submissions {
		if s.AssignmentID == assignmentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeRepo) CountSubmissionsByAssignment(ctx context.Context, assignmentID string) (int, error) {
	subs, err := r.QuerySubmissionsByAssignment(ctx, assignmentID)
	return len(subs), err
}

func (r *fakeRepo) UpdateSubmission(_ context.Context, s Submission) error {
	key := s.AssignmentID + "|" + s.StudentID
	if _, ok := r.submissions[key]; !ok {
		return ErrSubmissionNotFound
	}
	r.submissions[key] = s
	return nil
}

func newTestService(t *testing.T, now time.Time) (*service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	svc := NewService(repo).(*service)
	svc.nowFunc = func() time.Time { return now }
	return svc, repo
}

func createAssignment(t *testing.T, svc Service, deadline time.Time) Assignment {
	t.Helper()
	a, err := svc.Create(context.Background(), "course-1", "teacher-1", NewAssignment{
		Title:    "Problem Set 3",
		Deadline: deadline,
		Questions: []NewQuestion{
			{Number: 1, MaxMarks: 10},
			{Number: 2, MaxMarks: 5},
		},
	})
	require.NoError(t, err)
	return a
}

func TestServiceSubmit(t *testing.T) {
	now := time.Date(2021, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now)
	a := createAssignment(t, svc, now.Add(24*time.Hour))

	sub, err := svc.Submit(context.Background(), a.ID, "student-1", NewSubmission{AnsweredQuestions: []int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, a.ID, sub.AssignmentID)
	assert.Equal(t, now, sub.SubmittedAt)
	assert.False(t, sub.GradingFinalized)

	// once per assignment per student
	_, err = svc.Submit(context.Background(), a.ID, "student-1", NewSubmission{AnsweredQuestions: []int{1}})
	assert.Equal(t, ErrAlreadySubmitted, err)

	n, err := svc.CountSubmissions(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	t.Run("after deadline", func(t *testing.T) {
		svc, _ := newTestService(t, now)
		late := createAssignment(t, svc, now.Add(-time.Minute))
		_, err := svc.Submit(context.Background(), late.ID, "student-1", NewSubmission{AnsweredQuestions: []int{1}})
		assert.Equal(t, ErrDeadlinePassed, err)
	})

	t.Run("unknown question", func(t *testing.T) {
		svc, _ := newTestService(t, now)
		a := createAssignment(t, svc, now.Add(24*time.Hour))
		_, err := svc.Submit(context.Background(), a.ID, "student-1", NewSubmission{AnsweredQuestions: []int{1, 9}})
		assert.Error(t, err)
	})

	t.Run("unknown assignment", func(t *testing.T) {
		svc, _ := newTestService(t, now)
		_, err := svc.Submit(context.Background(), "nope", "student-1", NewSubmission{AnsweredQuestions: []int{1}})
		assert.Equal(t, ErrNotFound, err)
	})
}

func TestServiceGrade(t *testing.T) {
	now := time.Date(2021, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, repo := newTestService(t, now)
	a := createAssignment(t, svc, now.Add(24*time.Hour))

	sub, err := svc.Submit(context.Background(), a.ID, "student-1", NewSubmission{AnsweredQuestions: []int{1, 2}})
	require.NoError(t, err)

	// partial grading first, then the rest
	sub, err = svc.Grade(context.Background(), sub, map[int]int{1: 8})
	require.NoError(t, err)
	sub, err = svc.Grade(context.Background(), sub, map[int]int{2: 5})
	require.NoError(t, err)
	assert.Equal(t, 13, sub.Total())

	stored, err := repo.GetSubmission(context.Background(), a.ID, "student-1")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 8, 2: 5}, stored.Marks)

	t.Run("marks over maximum", func(t *testing.T) {
		_, err := svc.Grade(context.Background(), sub, map[int]int{2: 6})
		assert.Error(t, err)
	})

	t.Run("unknown question", func(t *testing.T) {
		_, err := svc.Grade(context.Background(), sub, map[int]int{9: 1})
		assert.Error(t, err)
	})

	t.Run("finalize freezes marks", func(t *testing.T) {
		final, err := svc.FinalizeGrading(context.Background(), sub)
		require.NoError(t, err)
		assert.True(t, final.GradingFinalized)

		_, err = svc.Grade(context.Background(), final, map[int]int{1: 10})
		assert.Equal(t, ErrGradingFinalized, err)

		// finalizing again is a no-op
		again, err := svc.FinalizeGrading(context.Background(), final)
		require.NoError(t, err)
		assert.True(t, again.GradingFinalized)
	})
}

func TestServiceDelete(t *testing.T) {
	now := time.Date(2021, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now)
	a := createAssignment(t, svc, now.Add(24*time.Hour))

	_, err := svc.Submit(context.Background(), a.ID, "student-1", NewSubmission{AnsweredQuestions: []int{1}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), a.ID))

	_, err = svc.GetByID(context.Background(), a.ID)
	assert.Equal(t, ErrNotFound, err)
	_, err = svc.GetSubmission(context.Background(), a.ID, "student-1")
	assert.Equal(t, ErrSubmissionNotFound, err)
}
