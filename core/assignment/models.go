package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Question struct {
	Number   int `json:"number"`
	MaxMarks int `json:"max_marks"`
}

type Assignment struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"course_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Deadline    time.Time  `json:"deadline"` // UTC
	FileURL     string     `json:"file_url,omitempty"`
	Questions   []Question `json:"questions"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
}

// Question returns the question with the given number, if declared.
func (a Assignment) Question(number int) (Question, bool) {
	for _, q := range a.Questions {
		if q.Number == number {
			return q, true
		}
	}
	return Question{}, false
}

// Submission is one student's answer set for an assignment. A student
// submits at most once; marks are filled in per question during
// grading and frozen once GradingFinalized is set.
type Submission struct {
	ID                string      `json:"id"`
	AssignmentID      string      `json:"assignment_id"`
	StudentID         string      `json:"student_id"`
	AnsweredQuestions []int       `json:"answered_questions"`
	Marks             map[int]int `json:"marks,omitempty"` // by question number
	GradingFinalized  bool        `json:"grading_finalized"`
	SubmittedAt       time.Time   `json:"submitted_at"` // UTC
}

// Total sums the awarded marks.
func (s Submission) Total() int {
	var total int
	for _, m := range s.Marks {
		total += m
	}
	return total
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title       string        `json:"title" validate:"required"`
	Description string        `json:"description"`
	Deadline    time.Time     `json:"deadline" validate:"required"`
	FileURL     string        `json:"file_url" validate:"omitempty,url"`
	Questions   []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

type NewQuestion struct {
	Number   int `json:"number" validate:"required,gt=0"`
	MaxMarks int `json:"max_marks" validate:"required,gt=0"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)

	if err := validate.Struct(na); err != nil {
		return err
	}

	seen := make(map[int]struct{}, len(na.Questions))
	for _, q := range na.Questions {
		if _, dup := seen[q.Number]; dup {
			return core.NewValidationError(nil, core.FieldError{
				Field: "questions",
				Error: "question numbers must be unique",
			})
		}
		seen[q.Number] = struct{}{}
	}
	return nil
}

// NewSubmission contains information needed to submit an answer set.
type NewSubmission struct {
	AnsweredQuestions []int `json:"answered_questions" validate:"required,min=1,dive,gt=0"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	return validate.Struct(ns)
}
