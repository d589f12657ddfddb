package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_sessionApi_create(t *testing.T) {
	db.Reset()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, crsRepo, "cs101", "Intro to Computer Science", teacher.ID)
	testutil.Enroll(t, crsRepo, crs.ID, student.ID)

	teacherToken := getToken(t, teacher)
	path := "/v1/courses/" + crs.ID + "/sessions"
	start := time.Now().Add(time.Hour).UTC()

	oneOff := marchallObj(t, map[string]interface{}{
		"title": "Lecture 1", "duration_minutes": 60, "scheduled_at": start,
	})

	tests := []httpTest{
		{name: "Auth required", body: oneOff, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Staff required", body: oneOff, token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "missing title", body: marchallObj(t, map[string]interface{}{"duration_minutes": 60, "scheduled_at": start}), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "one-off needs a start", body: marchallObj(t, map[string]interface{}{"title": "Lecture 1", "duration_minutes": 60}), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"scheduled_at": "required for a one-off session"}),
		},
		{
			name: "recurring needs a day", body: marchallObj(t, map[string]interface{}{"title": "Lab", "duration_minutes": 60, "recurring": true, "time_of_day": "10:00"}), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"day_of_week": "required for a recurring session"}),
		},
		{
			name: "bad time of day", body: marchallObj(t, map[string]interface{}{"title": "Lab", "duration_minutes": 60, "recurring": true, "day_of_week": 1, "time_of_day": "25:00"}), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"time_of_day": "must be a time of day in 24h HH:MM format"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// sessions as rendered on the wire; Schedule is a variant so we
	// decode into a loose shape instead of session.Session
	type sessionResp struct {
		ID       string                 `json:"id"`
		CourseID string                 `json:"course_id"`
		Title    string                 `json:"title"`
		Schedule map[string]interface{} `json:"schedule"`
	}

	t.Run("create one-off ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, teacherToken, oneOff)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var sess sessionResp
		if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if sess.CourseID != crs.ID || sess.Title != "Lecture 1" {
			t.Errorf("session = %+v; want course %q title %q", sess, crs.ID, "Lecture 1")
		}
		if _, ok := sess.Schedule["start_at"]; !ok {
			t.Errorf("schedule = %v; want a one-off with start_at", sess.Schedule)
		}
	})

	t.Run("create weekly ok", func(t *testing.T) {
		body := marchallObj(t, map[string]interface{}{
			"title": "Lab", "duration_minutes": 90, "recurring": true, "day_of_week": 1, "time_of_day": "10:00",
		})
		req, rec := newAuthRequest(http.MethodPost, path, teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
	})

	t.Run("list for members", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, student))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var sessions []sessionResp
		if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(sessions) != 2 {
			t.Errorf("len(sessions) = %d; want 2", len(sessions))
		}
	})
}

func Test_sessionApi_detail(t *testing.T) {
	db.Reset()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, usrRepo, "Out", "outsider", "out@test.cd", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, crsRepo, "cs101", "Intro to Computer Science", teacher.ID)
	testutil.Enroll(t, crsRepo, crs.ID, student.ID)
	sess := testutil.CreateSession(t, sessRepo, crs.ID, "Lecture 1", teacher.ID,
		session.OneOff{StartAt: time.Now().Add(time.Hour).UTC()}, time.Hour)

	path := "/v1/sessions/" + sess.ID

	t.Run("members only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, outsider))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("retrieve ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, student))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	t.Run("delete is staff-only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, path, getToken(t, student))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("delete ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, path, getToken(t, teacher))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusNoContent, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, path, getToken(t, teacher))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}, rec)
	})
}
