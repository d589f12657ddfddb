package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, code, title, teacherID string) course.Course {
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		ID:        uuid.New().String(),
		Code:      code,
		Title:     title,
		TeacherID: teacherID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func Enroll(t *testing.T, repo course.Repository, courseID, studentID string) {
	err := repo.CreateMembership(context.Background(), course.Membership{
		CourseID:  courseID,
		StudentID: studentID,
		Role:      course.MemberStudent,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
}

func CreateSession(
	t *testing.T,
	repo session.Repository,
	courseID, title, createdBy string,
	sched session.Schedule,
	duration time.Duration,
) session.Session {
	sess, err := repo.CreateSession(context.Background(), session.Session{
		ID:        uuid.New().String(),
		CourseID:  courseID,
		Title:     title,
		Schedule:  sched,
		Duration:  duration,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return sess
}

func CreateAssignment(
	t *testing.T,
	repo assignment.Repository,
	courseID, title, createdBy string,
	deadline time.Time,
	questions ...assignment.Question,
) assignment.Assignment {
	asg, err := repo.CreateAssignment(context.Background(), assignment.Assignment{
		ID:        uuid.New().String(),
		CourseID:  courseID,
		Title:     title,
		Deadline:  deadline.UTC(),
		Questions: questions,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return asg
}
