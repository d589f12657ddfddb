package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/course"
)

var errCrsNotFoundInCtx = errors.New("course object not found in echo.Context")

type courseApi struct {
	deps *Deps
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := courseApi{deps: deps}

	cg := g.Group("/courses", jwt)
	cg.POST("", api.create, teacherMiddleware())
	cg.GET("", api.query)

	dg := cg.Group("/:id", courseObjectMiddleware(deps.CourseSvc))
	dg.GET("", api.retrieve)
	dg.POST("/enroll", api.enroll, studentMiddleware())
	dg.GET("/members", api.members)
	dg.PUT("/members/:studentID/ta", api.toggleTA)
	dg.GET("/analytics", api.analytics)
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.deps.Validate, api.deps.CourseSvc); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	crs, err := api.deps.CourseSvc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

// query returns the caller's courses. Teachers get the courses they teach;
// students get the courses they are enrolled in, or assist when `?role=ta`.
func (api *courseApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rctx := ctx.Request().Context()
	var courses []course.Course
	switch {
	case claims.IsTeacher || claims.IsAdmin:
		courses, err = api.deps.CourseSvc.QueryTaught(rctx, claims.Subject)
	case ctx.QueryParam("role") == course.MemberTA:
		courses, err = api.deps.CourseSvc.QueryAssisted(rctx, claims.Subject)
	default:
		courses, err = api.deps.CourseSvc.QueryEnrolled(rctx, claims.Subject)
	}
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.deps.CourseSvc.Enroll(ctx.Request().Context(), crs.ID, claims.Subject); err != nil {
		if errors.Cause(err) == course.ErrAlreadyEnrolled {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) members(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseStaff(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}

	role := ctx.QueryParam("role")
	if role == "" {
		role = course.MemberStudent
	}
	members, err := api.deps.CourseSvc.Members(ctx.Request().Context(), crs.ID, role)
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	if members == nil {
		members = []course.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *courseApi) toggleTA(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	// only the course's teacher may promote or demote TAs
	if !(claims.Subject == crs.TeacherID || claims.IsAdmin) {
		return errHttpForbidden
	}

	isTA, err := api.deps.CourseSvc.ToggleTA(ctx.Request().Context(), crs.ID, ctx.Param("studentID"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotEnrolled {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return errors.Wrap(err, "toggling TA role")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"is_ta": isTA})
}

// analytics aggregates per-assignment submission figures and per-session
// attendance figures over the course's enrolled students.
func (api *courseApi) analytics(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseStaff(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	members, err := api.deps.CourseSvc.Members(rctx, crs.ID, course.MemberStudent)
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	students := len(members)

	assignments, err := api.deps.AssignmentSvc.QueryByCourse(rctx, crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	asgStats := make([]AssignmentAnalytics, len(assignments))
	for i, asg := range assignments {
		subs, err := api.deps.AssignmentSvc.QuerySubmissions(rctx, asg.ID)
		if err != nil {
			return errors.Wrap(err, "querying submissions")
		}
		stats := AssignmentAnalytics{
			AssignmentID: asg.ID,
			Title:        asg.Title,
			Submissions:  len(subs),
		}
		if students > 0 {
			stats.SubmissionRate = float64(len(subs)) / float64(students)
		}
		var graded, total int
		for _, sub := range subs {
			if sub.GradingFinalized {
				graded++
				total += sub.Total()
			}
		}
		if graded > 0 {
			stats.AverageScore = float64(total) / float64(graded)
		}
		asgStats[i] = stats
	}

	sessions, err := api.deps.SessionSvc.QueryByCourse(rctx, crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	sessStats := make([]SessionAnalytics, len(sessions))
	for i, sess := range sessions {
		attendees, err := api.deps.AttendanceSvc.AttendeeCount(rctx, sess.ID)
		if err != nil {
			return errors.Wrap(err, "counting attendees")
		}
		stats := SessionAnalytics{
			SessionID: sess.ID,
			Title:     sess.Title,
			Attendees: attendees,
		}
		if students > 0 {
			stats.AttendanceRate = float64(attendees) / float64(students)
		}
		sessStats[i] = stats
	}

	return ctx.JSON(http.StatusOK, CourseAnalytics{
		Students:    students,
		Assignments: asgStats,
		Sessions:    sessStats,
	})
}

// requireCourseStaff passes for the course's teacher, its TAs and admins.
func requireCourseStaff(ctx echo.Context, svc course.Service, crs course.Course) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.Subject == crs.TeacherID || claims.IsAdmin {
		return nil
	}
	isTA, err := svc.IsTA(ctx.Request().Context(), crs.ID, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "checking TA role")
	}
	if !isTA {
		return errHttpForbidden
	}
	return nil
}

// requireCourseMember passes for enrolled students and course staff.
func requireCourseMember(ctx echo.Context, svc course.Service, crs course.Course) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.Subject == crs.TeacherID || claims.IsAdmin {
		return nil
	}
	enrolled, err := svc.IsEnrolled(ctx.Request().Context(), crs.ID, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return errHttpForbidden
	}
	return nil
}

// CourseAnalytics summarizes engagement for a course's staff.
// Rates are fractions of the enrolled student count; AverageScore
// covers finalized submissions only.
type CourseAnalytics struct {
	Students    int                   `json:"students"`
	Assignments []AssignmentAnalytics `json:"assignments"`
	Sessions    []SessionAnalytics    `json:"sessions"`
}

type AssignmentAnalytics struct {
	AssignmentID   string  `json:"assignment_id"`
	Title          string  `json:"title"`
	Submissions    int     `json:"submissions"`
	SubmissionRate float64 `json:"submission_rate"`
	AverageScore   float64 `json:"average_score"`
}

type SessionAnalytics struct {
	SessionID      string  `json:"session_id"`
	Title          string  `json:"title"`
	Attendees      int     `json:"attendees"`
	AttendanceRate float64 `json:"attendance_rate"`
}

func contextCourse(ctx echo.Context) (course.Course, error) {
	crs, ok := ctx.Get("course").(course.Course)
	if !ok {
		return course.Course{}, errors.Wrap(errCrsNotFoundInCtx, "retrieving object from context")
	}
	return crs, nil
}

func courseObjectMiddleware(svc course.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			crs, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == course.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding course by ID")
			}
			ctx.Set("course", crs)
			return next(ctx)
		}
	}
}
