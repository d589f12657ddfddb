package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/darasa/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) CheckCodeUniqueness(ctx context.Context, code string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, crs := range repo.db.courses {
		if strings.EqualFold(crs.Code, code) {
			return course.ErrCodeExists
		}
	}
	return nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	if err := repo.CheckCodeUniqueness(ctx, crs.Code); err != nil {
		return course.Course{}, err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.courses[crs.ID] = crs
	return crs, nil
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func sortCourses(courses []course.Course) []course.Course {
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses
}

func (repo courseRepository) QueryCoursesByTeacher(ctx context.Context, teacherID string) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var courses []course.Course
	for _, crs := range repo.db.courses {
		if crs.TeacherID == teacherID {
			courses = append(courses, crs)
		}
	}
	return sortCourses(courses), nil
}

func (repo courseRepository) QueryCoursesByMember(ctx context.Context, studentID, role string) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var courses []course.Course
	for _, m := range repo.db.memberships {
		if m.StudentID == studentID && m.Role == role {
			if crs, ok := repo.db.courses[m.CourseID]; ok {
				courses = append(courses, crs)
			}
		}
	}
	return sortCourses(courses), nil
}

func (repo courseRepository) CreateMembership(ctx context.Context, m course.Membership) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	k := key(m.CourseID, m.StudentID, m.Role)
	if _, exists := repo.db.memberships[k]; exists {
		return course.ErrAlreadyEnrolled
	}
	repo.db.memberships[k] = m
	return nil
}

func (repo courseRepository) DeleteMembership(ctx context.Context, courseID, studentID, role string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	delete(repo.db.memberships, key(courseID, studentID, role))
	return nil
}

func (repo courseRepository) HasMembership(ctx context.Context, courseID, studentID, role string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	_, ok := repo.db.memberships[key(courseID, studentID, role)]
	return ok, nil
}

func (repo courseRepository) QueryMembers(ctx context.Context, courseID, role string) ([]course.Member, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var members []course.Member
	for _, m := range repo.db.memberships {
		if m.CourseID != courseID || m.Role != role {
			continue
		}
		member := course.Member{Membership: m}
		if usr, ok := repo.db.users[m.StudentID]; ok {
			member.Name = usr.Name
			member.Email = usr.Email
		}
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}
