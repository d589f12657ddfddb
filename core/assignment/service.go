package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound           = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAlreadySubmitted   = errors.New("assignment already submitted")
	ErrDeadlinePassed     = errors.New("assignment deadline has passed")
	ErrGradingFinalized   = errors.New("grading has been finalized")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
		QueryAssignmentsByCourse(ctx context.Context, courseID string) ([]Assignment, error)
		// DeleteAssignment removes the assignment and its submissions.
		DeleteAssignment(ctx context.Context, id string) error
		// CreateSubmission relies on a uniqueness constraint on
		// (assignment, student) and returns ErrAlreadySubmitted when it
		// trips.
		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]Submission, error)
		CountSubmissionsByAssignment(ctx context.Context, assignmentID string) (int, error)
		UpdateSubmission(ctx context.Context, s Submission) error
	}

	Service interface {
		Create(ctx context.Context, courseID, teacherID string, na NewAssignment) (Assignment, error)
		GetByID(ctx context.Context, id string) (Assignment, error)
		QueryByCourse(ctx context.Context, courseID string) ([]Assignment, error)
		Delete(ctx context.Context, id string) error
		Submit(ctx context.Context, assignmentID, studentID string, ns NewSubmission) (Submission, error)
		GetSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		QuerySubmissions(ctx context.Context, assignmentID string) ([]Submission, error)
		CountSubmissions(ctx context.Context, assignmentID string) (int, error)
		// Grade awards marks per question number on a submission.
		// Partial grading is allowed; awarded marks replace any previous
		// marks for the same questions.
		Grade(ctx context.Context, submission Submission, marks map[int]int) (Submission, error)
		FinalizeGrading(ctx context.Context, submission Submission) (Submission, error)
	}

	service struct {
		repo    Repository
		nowFunc func() time.Time // mockable
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{
		repo:    repo,
		nowFunc: time.Now,
	}
}

func (svc *service) Create(ctx context.Context, courseID, teacherID string, na NewAssignment) (Assignment, error) {
	questions := make([]Question, len(na.Questions))
	for i, q := range na.Questions {
		questions[i] = Question{Number: q.Number, MaxMarks: q.MaxMarks}
	}
	a := Assignment{
		ID:          uuid.New().String(),
		CourseID:    courseID,
		Title:       na.Title,
		Description: na.Description,
		Deadline:    na.Deadline.UTC(),
		FileURL:     na.FileURL,
		Questions:   questions,
		CreatedBy:   teacherID,
		CreatedAt:   svc.nowFunc().UTC(),
	}
	return svc.repo.CreateAssignment(ctx, a)
}

func (svc *service) GetByID(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignmentByID(ctx, id)
}

func (svc *service) QueryByCourse(ctx context.Context, courseID string) ([]Assignment, error) {
	return svc.repo.QueryAssignmentsByCourse(ctx, courseID)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteAssignment(ctx, id)
}

func (svc *service) Submit(ctx context.Context, assignmentID, studentID string, ns NewSubmission) (Submission, error) {
	a, err := svc.repo.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}

	now := svc.nowFunc().UTC()
	if now.After(a.Deadline) {
		return Submission{}, ErrDeadlinePassed
	}
	for _, number := range ns.AnsweredQuestions {
		if _, ok := a.Question(number); !ok {
			return Submission{}, core.NewValidationError(nil, core.FieldError{
				Field: "answered_questions",
				Error: "unknown question number",
			})
		}
	}

	s := Submission{
		ID:                uuid.New().String(),
		AssignmentID:      assignmentID,
		StudentID:         studentID,
		AnsweredQuestions: ns.AnsweredQuestions,
		SubmittedAt:       now,
	}
	return svc.repo.CreateSubmission(ctx, s)
}

func (svc *service) GetSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error) {
	return svc.repo.GetSubmission(ctx, assignmentID, studentID)
}

func (svc *service) QuerySubmissions(ctx context.Context, assignmentID string) ([]Submission, error) {
	return svc.repo.QuerySubmissionsByAssignment(ctx, assignmentID)
}

func (svc *service) CountSubmissions(ctx context.Context, assignmentID string) (int, error) {
	return svc.repo.CountSubmissionsByAssignment(ctx, assignmentID)
}

func (svc *service) Grade(ctx context.Context, submission Submission, marks map[int]int) (Submission, error) {
	if submission.GradingFinalized {
		return submission, ErrGradingFinalized
	}

	a, err := svc.repo.GetAssignmentByID(ctx, submission.AssignmentID)
	if err != nil {
		return submission, err
	}
	for number, awarded := range marks {
		q, ok := a.Question(number)
		if !ok {
			return submission, core.NewValidationError(nil, core.FieldError{
				Field: "marks",
				Error: "unknown question number",
			})
		}
		if awarded < 0 || awarded > q.MaxMarks {
			return submission, core.NewValidationError(nil, core.FieldError{
				Field: "marks",
				Error: "marks must be between 0 and the question maximum",
			})
		}
	}

	if submission.Marks == nil {
		submission.Marks = make(map[int]int, len(marks))
	}
	for number, awarded := range marks {
		submission.Marks[number] = awarded
	}
	if err = svc.repo.UpdateSubmission(ctx, submission); err != nil {
		return submission, err
	}
	return submission, nil
}

func (svc *service) FinalizeGrading(ctx context.Context, submission Submission) (Submission, error) {
	if submission.GradingFinalized {
		return submission, nil
	}
	submission.GradingFinalized = true
	if err := svc.repo.UpdateSubmission(ctx, submission); err != nil {
		submission.GradingFinalized = false
		return submission, err
	}
	return submission, nil
}
