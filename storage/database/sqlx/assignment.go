package sqlxrepos

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/assignment"
)

type assignmentRow struct {
	ID          string          `db:"id"`
	CourseID    string          `db:"course_id"`
	Title       string          `db:"title"`
	Description string          `db:"description"`
	Deadline    time.Time       `db:"deadline"`
	FileURL     string          `db:"file_url"`
	Questions   json.RawMessage `db:"questions"`
	CreatedBy   string          `db:"created_by"`
	CreatedAt   time.Time       `db:"created_at"`
}

func (r assignmentRow) assignment() (assignment.Assignment, error) {
	a := assignment.Assignment{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		Deadline:    r.Deadline,
		FileURL:     r.FileURL,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
	}
	if err := json.Unmarshal(r.Questions, &a.Questions); err != nil {
		return assignment.Assignment{}, errors.Wrapf(err, "assignment %s: decoding questions", r.ID)
	}
	return a, nil
}

func newAssignmentRow(a assignment.Assignment) (assignmentRow, error) {
	questions, err := json.Marshal(a.Questions)
	if err != nil {
		return assignmentRow{}, errors.Wrap(err, "encoding questions")
	}
	return assignmentRow{
		ID:          a.ID,
		CourseID:    a.CourseID,
		Title:       a.Title,
		Description: a.Description,
		Deadline:    a.Deadline.UTC(),
		FileURL:     a.FileURL,
		Questions:   questions,
		CreatedBy:   a.CreatedBy,
		CreatedAt:   a.CreatedAt.UTC(),
	}, nil
}

type submissionRow struct {
	ID                string          `db:"id"`
	AssignmentID      string          `db:"assignment_id"`
	StudentID         string          `db:"student_id"`
	AnsweredQuestions pq.Int64Array   `db:"answered_questions"`
	Marks             json.RawMessage `db:"marks"`
	GradingFinalized  bool            `db:"grading_finalized"`
	SubmittedAt       time.Time       `db:"submitted_at"`
}

func (r submissionRow) submission() (assignment.Submission, error) {
	s := assignment.Submission{
		ID:               r.ID,
		AssignmentID:     r.AssignmentID,
		StudentID:        r.StudentID,
		GradingFinalized: r.GradingFinalized,
		SubmittedAt:      r.SubmittedAt,
	}
	s.AnsweredQuestions = make([]int, 0, len(r.AnsweredQuestions))
	for _, q := range r.AnsweredQuestions {
		s.AnsweredQuestions = append(s.AnsweredQuestions, int(q))
	}

	// jsonb object keys are strings
	var marks map[string]int
	if err := json.Unmarshal(r.Marks, &marks); err != nil {
		return assignment.Submission{}, errors.Wrapf(err, "submission %s: decoding marks", r.ID)
	}
	if len(marks) > 0 {
		s.Marks = make(map[int]int, len(marks))
		for key, awarded := range marks {
			number, err := strconv.Atoi(key)
			if err != nil {
				return assignment.Submission{}, errors.Wrapf(err, "submission %s: bad question number %q", r.ID, key)
			}
			s.Marks[number] = awarded
		}
	}
	return s, nil
}

func newSubmissionRow(s assignment.Submission) (submissionRow, error) {
	marks := make(map[string]int, len(s.Marks))
	for number, awarded := range s.Marks {
		marks[strconv.Itoa(number)] = awarded
	}
	rawMarks, err := json.Marshal(marks)
	if err != nil {
		return submissionRow{}, errors.Wrap(err, "encoding marks")
	}

	answered := make(pq.Int64Array, 0, len(s.AnsweredQuestions))
	for _, q := range s.AnsweredQuestions {
		answered = append(answered, int64(q))
	}
	return submissionRow{
		ID:                s.ID,
		AssignmentID:      s.AssignmentID,
		StudentID:         s.StudentID,
		AnsweredQuestions: answered,
		Marks:             rawMarks,
		GradingFinalized:  s.GradingFinalized,
		SubmittedAt:       s.SubmittedAt.UTC(),
	}, nil
}

type assignmentRepository struct {
	db *sqlx.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	r, err := newAssignmentRow(a)
	if err != nil {
		return assignment.Assignment{}, err
	}
	query := `
		INSERT INTO assignment (id, course_id, title, description, deadline, file_url, questions, created_by, created_at)
		VALUES (:id, :course_id, :title, :description, :deadline, :file_url, :questions, :created_by, :created_at)`
	if _, err = repo.db.NamedExecContext(ctx, query, r); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	var r assignmentRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM assignment WHERE id = $1`, id); err != nil {
		return assignment.Assignment{}, trapNoRows(err, assignment.ErrNotFound, "getting assignment")
	}
	return r.assignment()
}

func (repo assignmentRepository) QueryAssignmentsByCourse(ctx context.Context, courseID string) ([]assignment.Assignment, error) {
	var rows []assignmentRow
	query := `SELECT * FROM assignment WHERE course_id = $1 ORDER BY deadline`
	if err := repo.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, errors.Wrap(err, "querying assignments by course")
	}
	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, r := range rows {
		a, err := r.assignment()
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, nil
}

func (repo assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	// submissions cascade
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM assignment WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return nil
}

func (repo assignmentRepository) CreateSubmission(ctx context.Context, s assignment.Submission) (assignment.Submission, error) {
	r, err := newSubmissionRow(s)
	if err != nil {
		return assignment.Submission{}, err
	}
	query := `
		INSERT INTO submission (id, assignment_id, student_id, answered_questions, marks, grading_finalized, submitted_at)
		VALUES (:id, :assignment_id, :student_id, :answered_questions, :marks, :grading_finalized, :submitted_at)`
	if _, err = repo.db.NamedExecContext(ctx, query, r); err != nil {
		if isUniqueViolation(err, "submission_assignment_id_student_id_key") {
			return assignment.Submission{}, assignment.ErrAlreadySubmitted
		}
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return s, nil
}

func (repo assignmentRepository) GetSubmission(ctx context.Context, assignmentID, studentID string) (assignment.Submission, error) {
	var r submissionRow
	query := `SELECT * FROM submission WHERE assignment_id = $1 AND student_id = $2`
	if err := repo.db.GetContext(ctx, &r, query, assignmentID, studentID); err != nil {
		return assignment.Submission{}, trapNoRows(err, assignment.ErrSubmissionNotFound, "getting submission")
	}
	return r.submission()
}

func (repo assignmentRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]assignment.Submission, error) {
	var rows []submissionRow
	query := `SELECT * FROM submission WHERE assignment_id = $1 ORDER BY submitted_at`
	if err := repo.db.SelectContext(ctx, &rows, query, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	submissions := make([]assignment.Submission, 0, len(rows))
	for _, r := range rows {
		s, err := r.submission()
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	return submissions, nil
}

func (repo assignmentRepository) CountSubmissionsByAssignment(ctx context.Context, assignmentID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM submission WHERE assignment_id = $1`
	if err := repo.db.GetContext(ctx, &count, query, assignmentID); err != nil {
		return 0, errors.Wrap(err, "counting submissions")
	}
	return count, nil
}

func (repo assignmentRepository) UpdateSubmission(ctx context.Context, s assignment.Submission) error {
	r, err := newSubmissionRow(s)
	if err != nil {
		return err
	}
	query := `
		UPDATE submission
		SET marks = :marks, grading_finalized = :grading_finalized
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, r)
	if err != nil {
		return errors.Wrap(err, "updating submission")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assignment.ErrSubmissionNotFound
	}
	return nil
}
