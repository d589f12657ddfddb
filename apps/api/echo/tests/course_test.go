package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_courseApi_create(t *testing.T) {
	db.Reset()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	body := marchallObj(t, map[string]string{"code": "CS101", "title": "Intro to Computer Science"})

	tests := []httpTest{
		{name: "Auth required", body: body, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Teacher required", body: body, token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "missing code", body: marchallObj(t, map[string]string{"title": "No Code"}), token: getToken(t, teacher),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"code": "this field is required"}),
		},
		{
			name: "bad code", body: marchallObj(t, map[string]string{"code": "nope", "title": "Bad Code"}), token: getToken(t, teacher),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"code": "must look like a course code, eg. CS101"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/courses", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("create ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", getToken(t, teacher), body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var crs course.Course
		if err := json.Unmarshal(rec.Body.Bytes(), &crs); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if crs.Code != "cs101" { // codes are normalized to lowercase
			t.Errorf("code = %q; want %q", crs.Code, "cs101")
		}
		if crs.TeacherID != teacher.ID {
			t.Errorf("teacherID = %q; want %q", crs.TeacherID, teacher.ID)
		}
	})

	t.Run("duplicate code", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", getToken(t, teacher), body)
		app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"code": "a course with this code already exists"}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_courseApi_enrollAndMembers(t *testing.T) {
	db.Reset()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, usrRepo, "Out", "outsider", "out@test.cd", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, crsRepo, "cs101", "Intro to Computer Science", teacher.ID)

	studentToken := getToken(t, student)
	teacherToken := getToken(t, teacher)

	t.Run("enroll ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/enroll", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusNoContent, rec.Body.String())
		}
	})

	t.Run("enroll twice conflicts", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/enroll", studentToken)
		app.ServeHTTP(rec, req)
		tt := httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "student is already enrolled in this course"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unknown course", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/nope/enroll", studentToken)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("members are staff-only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/members", getToken(t, outsider))
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("members list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/members", teacherToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var members []course.Member
		if err := json.Unmarshal(rec.Body.Bytes(), &members); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(members) != 1 || members[0].StudentID != student.ID {
			t.Errorf("members = %+v; want just %q", members, student.ID)
		}
	})

	t.Run("analytics", func(t *testing.T) {
		asg := testutil.CreateAssignment(t, asgRepo, crs.ID, "Problem Set 1", teacher.ID,
			time.Now().Add(24*time.Hour), assignment.Question{Number: 1, MaxMarks: 10})
		_, err := asgRepo.CreateSubmission(context.Background(), assignment.Submission{
			ID:                uuid.New().String(),
			AssignmentID:      asg.ID,
			StudentID:         student.ID,
			AnsweredQuestions: []int{1},
			Marks:             map[int]int{1: 8},
			GradingFinalized:  true,
			SubmittedAt:       time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("creating submission: %v", err)
		}
		sess := testutil.CreateSession(t, sessRepo, crs.ID, "Lecture 1", teacher.ID,
			session.OneOff{StartAt: time.Now().Add(-10 * time.Minute).UTC()}, time.Hour)
		_, err = attRepo.CreateRecord(context.Background(), attendance.Record{
			SessionID:   sess.ID,
			StudentID:   student.ID,
			CheckedInAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("creating attendance record: %v", err)
		}

		// students get no aggregate view
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/analytics", studentToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)

		req, rec = newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/analytics", teacherToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var stats echoapi.CourseAnalytics
		if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if stats.Students != 1 {
			t.Errorf("students = %d; want 1", stats.Students)
		}
		if len(stats.Assignments) != 1 || stats.Assignments[0].Submissions != 1 ||
			stats.Assignments[0].SubmissionRate != 1 || stats.Assignments[0].AverageScore != 8 {
			t.Errorf("assignment stats = %+v; want 1 submission, rate 1, average 8", stats.Assignments)
		}
		if len(stats.Sessions) != 1 || stats.Sessions[0].Attendees != 1 || stats.Sessions[0].AttendanceRate != 1 {
			t.Errorf("session stats = %+v; want 1 attendee, rate 1", stats.Sessions)
		}
	})

	t.Run("toggle TA", func(t *testing.T) {
		path := "/v1/courses/" + crs.ID + "/members/" + student.ID + "/ta"

		// students cannot promote
		req, rec := newAuthRequest(http.MethodPut, path, studentToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)

		// the teacher grants...
		req, rec = newAuthRequest(http.MethodPut, path, teacherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, map[string]bool{"is_ta": true})}, rec)

		// ...and revokes
		req, rec = newAuthRequest(http.MethodPut, path, teacherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, map[string]bool{"is_ta": false})}, rec)

		// a non-member cannot be promoted
		req, rec = newAuthRequest(http.MethodPut, "/v1/courses/"+crs.ID+"/members/"+outsider.ID+"/ta", teacherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "student is not enrolled in this course"}),
		}, rec)
	})
}
