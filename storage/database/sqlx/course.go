package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) CheckCodeUniqueness(ctx context.Context, code string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT true FROM course WHERE lower(code) = lower($1)`, code)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "checking course code uniqueness")
	}
	return course.ErrCodeExists
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	query := `
		INSERT INTO course (id, code, title, description, teacher_id, created_at)
		VALUES (:id, :code, :title, :description, :teacher_id, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, crs); err != nil {
		if isUniqueViolation(err, "course_code_key") {
			return course.Course{}, course.ErrCodeExists
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var crs course.Course
	if err := repo.db.GetContext(ctx, &crs, `SELECT * FROM course WHERE id = $1`, id); err != nil {
		return course.Course{}, trapNoRows(err, course.ErrNotFound, "getting course")
	}
	return crs, nil
}

func (repo courseRepository) QueryCoursesByTeacher(ctx context.Context, teacherID string) ([]course.Course, error) {
	var courses []course.Course
	query := `SELECT * FROM course WHERE teacher_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &courses, query, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying courses by teacher")
	}
	return courses, nil
}

func (repo courseRepository) QueryCoursesByMember(ctx context.Context, studentID, role string) ([]course.Course, error) {
	var courses []course.Course
	query := `
		SELECT c.* FROM course c
		JOIN course_membership m ON m.course_id = c.id
		WHERE m.student_id = $1 AND m.role = $2
		ORDER BY c.created_at DESC`
	if err := repo.db.SelectContext(ctx, &courses, query, studentID, role); err != nil {
		return nil, errors.Wrap(err, "querying courses by member")
	}
	return courses, nil
}

func (repo courseRepository) CreateMembership(ctx context.Context, m course.Membership) error {
	query := `
		INSERT INTO course_membership (course_id, student_id, role, created_at)
		VALUES (:course_id, :student_id, :role, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, m); err != nil {
		if isUniqueViolation(err, "course_membership_pkey") {
			return course.ErrAlreadyEnrolled
		}
		return errors.Wrap(err, "inserting membership")
	}
	return nil
}

func (repo courseRepository) DeleteMembership(ctx context.Context, courseID, studentID, role string) error {
	query := `DELETE FROM course_membership WHERE course_id = $1 AND student_id = $2 AND role = $3`
	if _, err := repo.db.ExecContext(ctx, query, courseID, studentID, role); err != nil {
		return errors.Wrap(err, "deleting membership")
	}
	return nil
}

func (repo courseRepository) HasMembership(ctx context.Context, courseID, studentID, role string) (bool, error) {
	var exists bool
	query := `SELECT true FROM course_membership WHERE course_id = $1 AND student_id = $2 AND role = $3`
	err := repo.db.GetContext(ctx, &exists, query, courseID, studentID, role)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "checking membership")
	}
	return true, nil
}

func (repo courseRepository) QueryMembers(ctx context.Context, courseID, role string) ([]course.Member, error) {
	var members []course.Member
	query := `
		SELECT m.course_id, m.student_id, m.role, m.created_at, u.name, u.email
		FROM course_membership m
		JOIN "user" u ON u.id = m.student_id
		WHERE m.course_id = $1 AND m.role = $2
		ORDER BY u.name`
	if err := repo.db.SelectContext(ctx, &members, query, courseID, role); err != nil {
		return nil, errors.Wrap(err, "querying course members")
	}
	return members, nil
}
