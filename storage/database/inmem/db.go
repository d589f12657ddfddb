package inmemdb

import (
	"sync"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
)

// DB is a map-backed store with the same error semantics as the
// postgres repositories; for tests and local hacking.
type DB struct {
	mu sync.RWMutex

	users       map[string]user.User
	courses     map[string]course.Course
	memberships map[string]course.Membership // courseID|studentID|role
	sessions    map[string]session.Session
	assignments map[string]assignment.Assignment
	submissions map[string]assignment.Submission // assignmentID|studentID
	records     map[string]attendance.Record     // sessionID|studentID
}

func Open() *DB {
	return &DB{
		users:       make(map[string]user.User),
		courses:     make(map[string]course.Course),
		memberships: make(map[string]course.Membership),
		sessions:    make(map[string]session.Session),
		assignments: make(map[string]assignment.Assignment),
		submissions: make(map[string]assignment.Submission),
		records:     make(map[string]attendance.Record),
	}
}

// Reset drops all rows; test isolation between cases.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = make(map[string]user.User)
	db.courses = make(map[string]course.Course)
	db.memberships = make(map[string]course.Membership)
	db.sessions = make(map[string]session.Session)
	db.assignments = make(map[string]assignment.Assignment)
	db.submissions = make(map[string]assignment.Submission)
	db.records = make(map[string]attendance.Record)
}

func key(parts ...string) string {
	k := parts[0]
	for _, p := range parts[1:] {
		k += "|" + p
	}
	return k
}
