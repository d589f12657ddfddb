package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Membership roles, scoped to one course.
const (
	MemberStudent = "student"
	MemberTA      = "ta"
)

type Course struct {
	ID          string    `json:"id" db:"id"`
	Code        string    `json:"code" db:"code"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	TeacherID   string    `json:"teacher_id" db:"teacher_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
}

// Membership ties a student to a course with a course-scoped role.
// A student assisting a course holds two memberships: "student" and "ta".
type Membership struct {
	CourseID  string    `json:"course_id" db:"course_id"`
	StudentID string    `json:"student_id" db:"student_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

// Member is a Membership joined with the student's identity, for listings.
type Member struct {
	Membership
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Code        string `json:"code" validate:"required,coursecode"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

func (nc *NewCourse) Validate(validate *validator.Validate, svc Service) error {
	nc.Code = core.CleanString(nc.Code, true /* lower */)
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckCodeUniqueness(nc.Code)
}
