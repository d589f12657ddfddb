package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_attendanceApi_checkIn(t *testing.T) {
	db.Reset()
	classifier.Result = attendance.ClassifierResult{
		Outcome:    attendance.OutcomePhysical,
		Confidence: "high",
		Message:    "QR code verified as physical",
	}
	classifier.Err = nil

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, usrRepo, "Out", "outsider", "out@test.cd", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, crsRepo, "cs101", "Intro to Computer Science", teacher.ID)
	testutil.Enroll(t, crsRepo, crs.ID, student.ID)

	now := time.Now()
	live := testutil.CreateSession(t, sessRepo, crs.ID, "Lecture 1", teacher.ID,
		session.OneOff{StartAt: now.Add(-10 * time.Minute)}, time.Hour)
	over := testutil.CreateSession(t, sessRepo, crs.ID, "Lecture 0", teacher.ID,
		session.OneOff{StartAt: now.Add(-2 * time.Hour)}, time.Hour)

	// a rotating display would have minted these over the last 4 seconds
	payloads := func(sessID string) []string {
		return []string{
			attendance.NewToken(sessID, now.Add(-4*time.Second)).String(),
			attendance.NewToken(sessID, now.Add(-2*time.Second)).String(),
			attendance.NewToken(sessID, now).String(),
		}
	}
	body := func(sessID, frame string) []byte {
		return marchallObj(t, map[string]interface{}{"payloads": payloads(sessID), "frame": frame})
	}

	studentToken := getToken(t, student)

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/sessions/"+live.ID+"/check-in", body(live.ID, ""))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("teachers cannot check in", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/"+live.ID+"/check-in", getToken(t, teacher), body(live.ID, ""))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("enrollment required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/"+live.ID+"/check-in", getToken(t, outsider), body(live.ID, ""))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("inactive session", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/"+over.ID+"/check-in", studentToken, body(over.ID, ""))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "session is not currently active"}),
		}, rec)
	})

	t.Run("screenshot verdict", func(t *testing.T) {
		classifier.Result = attendance.ClassifierResult{
			Outcome:    attendance.OutcomeScreenshot,
			Confidence: "low",
			Message:    "Possible screenshot detected - please scan from the actual display",
		}
		defer func() {
			classifier.Result = attendance.ClassifierResult{Outcome: attendance.OutcomePhysical}
		}()

		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/"+live.ID+"/check-in", studentToken, body(live.ID, "c3RpbGw="))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "possible screenshot detected, scan from the actual display"}),
		}, rec)
	})

	t.Run("check-in ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/"+live.ID+"/check-in", studentToken, body(live.ID, "c3RpbGw="))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var rec2 attendance.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &rec2); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if rec2.SessionID != live.ID || rec2.StudentID != student.ID {
			t.Errorf("record = %+v; want session %q student %q", rec2, live.ID, student.ID)
		}
	})

	t.Run("check-in twice conflicts", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/"+live.ID+"/check-in", studentToken, body(live.ID, ""))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "already checked in to this session"}),
		}, rec)
	})

	t.Run("replayed recording", func(t *testing.T) {
		crs2 := testutil.CreateCourse(t, crsRepo, "cs102", "Data Structures", teacher.ID)
		testutil.Enroll(t, crsRepo, crs2.ID, student.ID)
		live2 := testutil.CreateSession(t, sessRepo, crs2.ID, "Lecture 1", teacher.ID,
			session.OneOff{StartAt: now.Add(-10 * time.Minute)}, time.Hour)

		old := []string{
			attendance.NewToken(live2.ID, now.Add(-36*time.Second)).String(),
			attendance.NewToken(live2.ID, now.Add(-34*time.Second)).String(),
			attendance.NewToken(live2.ID, now.Add(-32*time.Second)).String(),
		}
		data := marchallObj(t, map[string]interface{}{"payloads": old})
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/"+live2.ID+"/check-in", studentToken, data)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "attendance token has expired, scan again from the live display"}),
		}, rec)
	})

	t.Run("records are staff-only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions/"+live.ID+"/attendance", studentToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("records list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions/"+live.ID+"/attendance", getToken(t, teacher))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var records []attendance.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(records) != 1 || records[0].StudentID != student.ID {
			t.Errorf("records = %+v; want just %q", records, student.ID)
		}
	})

	t.Run("attendee count", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions/"+live.ID+"/attendance/count", getToken(t, teacher))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, map[string]int{"count": 1})}, rec)
	})
}

func Test_attendanceApi_currentQR(t *testing.T) {
	db.Reset()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, crsRepo, "cs101", "Intro to Computer Science", teacher.ID)
	testutil.Enroll(t, crsRepo, crs.ID, student.ID)
	sess := testutil.CreateSession(t, sessRepo, crs.ID, "Lecture 1", teacher.ID,
		session.OneOff{StartAt: time.Now().Add(-time.Minute)}, time.Hour)

	t.Run("staff only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions/"+sess.ID+"/qr", getToken(t, student))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("renders a PNG", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions/"+sess.ID+"/qr", getToken(t, teacher))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q; want image/png", ct)
		}
		if rec.Body.Len() == 0 {
			t.Error("expected PNG bytes in the response")
		}
	})
}
