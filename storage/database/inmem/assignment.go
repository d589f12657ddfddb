package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo assignmentRepository) QueryAssignmentsByCourse(ctx context.Context, courseID string) ([]assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var assignments []assignment.Assignment
	for _, a := range repo.db.assignments {
		if a.CourseID == courseID {
			assignments = append(assignments, a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].Deadline.Before(assignments[j].Deadline) })
	return assignments, nil
}

func (repo assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.assignments, id)
	for k, s := range repo.db.submissions {
		if s.AssignmentID == id {
			delete(repo.db.submissions, k)
		}
	}
	return nil
}

func (repo assignmentRepository) CreateSubmission(ctx context.Context, s assignment.Submission) (assignment.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	k := key(s.AssignmentID, s.StudentID)
	if _, exists := repo.db.submissions[k]; exists {
		return assignment.Submission{}, assignment.ErrAlreadySubmitted
	}
	repo.db.submissions[k] = s
	return s, nil
}

func (repo assignmentRepository) GetSubmission(ctx context.Context, assignmentID, studentID string) (assignment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.submissions[key(assignmentID, studentID)]; ok {
		return s, nil
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo assignmentRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]assignment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var submissions []assignment.Submission
	for _, s := range repo.db.submissions {
		if s.AssignmentID == assignmentID {
			submissions = append(submissions, s)
		}
	}
	sort.Slice(submissions, func(i, j int) bool { return submissions[i].SubmittedAt.Before(submissions[j].SubmittedAt) })
	return submissions, nil
}

func (repo assignmentRepository) CountSubmissionsByAssignment(ctx context.Context, assignmentID string) (int, error) {
	submissions, err := repo.QuerySubmissionsByAssignment(ctx, assignmentID)
	return len(submissions), err
}

func (repo assignmentRepository) UpdateSubmission(ctx context.Context, s assignment.Submission) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	k := key(s.AssignmentID, s.StudentID)
	if _, ok := repo.db.submissions[k]; !ok {
		return assignment.ErrSubmissionNotFound
	}
	repo.db.submissions[k] = s
	return nil
}
