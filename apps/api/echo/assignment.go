package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
)

var errAsgNotFoundInCtx = errors.New("assignment object not found in echo.Context")

type assignmentApi struct {
	deps *Deps
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := assignmentApi{deps: deps}

	cg := g.Group("/courses/:id/assignments", jwt, courseObjectMiddleware(deps.CourseSvc))
	cg.POST("", api.create)
	cg.GET("", api.query)

	ag := g.Group("/assignments/:id", jwt, assignmentObjectMiddleware(deps))
	ag.GET("", api.retrieve)
	ag.DELETE("", api.destroy)
	ag.POST("/submissions", api.submit, studentMiddleware())
	ag.GET("/submissions/mine", api.mySubmission)
	ag.GET("/submissions", api.querySubmissions)
	ag.GET("/submissions/count", api.countSubmissions)
	ag.PUT("/submissions/:studentID/marks", api.grade)
	ag.POST("/submissions/:studentID/finalize", api.finalizeGrading)
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseStaff(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}

	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	asg, err := api.deps.AssignmentSvc.Create(ctx.Request().Context(), crs.ID, claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseMember(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}

	assignments, err := api.deps.AssignmentSvc.QueryByCourse(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	asg, crs, err := contextAssignment(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseMember(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	asg, crs, err := contextAssignment(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseStaff(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}

	if err := api.deps.AssignmentSvc.Delete(ctx.Request().Context(), asg.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	asg, crs, err := contextAssignment(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	enrolled, err := api.deps.CourseSvc.IsEnrolled(ctx.Request().Context(), crs.ID, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return errHttpForbidden
	}

	var data assignment.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	sub, err := api.deps.AssignmentSvc.Submit(ctx.Request().Context(), asg.ID, claims.Subject, data)
	if err != nil {
		switch errors.Cause(err) {
		case assignment.ErrAlreadySubmitted:
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case assignment.ErrDeadlinePassed:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assignmentApi) mySubmission(ctx echo.Context) error {
	asg, _, err := contextAssignment(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sub, err := api.deps.AssignmentSvc.GetSubmission(ctx.Request().Context(), asg.ID, claims.Subject)
	if err != nil {
		if errors.Cause(err) == assignment.ErrSubmissionNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assignmentApi) querySubmissions(ctx echo.Context) error {
	asg, crs, err := contextAssignment(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseStaff(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}

	subs, err := api.deps.AssignmentSvc.QuerySubmissions(ctx.Request().Context(), asg.ID)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) countSubmissions(ctx echo.Context) error {
	asg, crs, err := contextAssignment(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseStaff(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}

	count, err := api.deps.AssignmentSvc.CountSubmissions(ctx.Request().Context(), asg.ID)
	if err != nil {
		return errors.Wrap(err, "counting submissions")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"count": count})
}

func (api *assignmentApi) grade(ctx echo.Context) error {
	sub, err := api.staffSubmission(ctx)
	if err != nil {
		return err
	}

	var data GradeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeRequest")
	}

	sub, err = api.deps.AssignmentSvc.Grade(ctx.Request().Context(), sub, data.Marks)
	if err != nil {
		if errors.Cause(err) == assignment.ErrGradingFinalized {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assignmentApi) finalizeGrading(ctx echo.Context) error {
	sub, err := api.staffSubmission(ctx)
	if err != nil {
		return err
	}

	sub, err = api.deps.AssignmentSvc.FinalizeGrading(ctx.Request().Context(), sub)
	if err != nil {
		return errors.Wrap(err, "finalizing grading")
	}
	return ctx.JSON(http.StatusOK, sub)
}

// staffSubmission loads the target student's submission after a staff check.
func (api *assignmentApi) staffSubmission(ctx echo.Context) (assignment.Submission, error) {
	asg, crs, err := contextAssignment(ctx)
	if err != nil {
		return assignment.Submission{}, err
	}
	if err := requireCourseStaff(ctx, api.deps.CourseSvc, crs); err != nil {
		return assignment.Submission{}, err
	}

	sub, err := api.deps.AssignmentSvc.GetSubmission(ctx.Request().Context(), asg.ID, ctx.Param("studentID"))
	if err != nil {
		if errors.Cause(err) == assignment.ErrSubmissionNotFound {
			return assignment.Submission{}, errHttpNotFound
		}
		return assignment.Submission{}, errors.Wrap(err, "finding submission")
	}
	return sub, nil
}

func contextAssignment(ctx echo.Context) (assignment.Assignment, course.Course, error) {
	asg, ok := ctx.Get("assignment").(assignment.Assignment)
	if !ok {
		return assignment.Assignment{}, course.Course{}, errors.Wrap(errAsgNotFoundInCtx, "retrieving object from context")
	}
	crs, err := contextCourse(ctx)
	if err != nil {
		return assignment.Assignment{}, course.Course{}, err
	}
	return asg, crs, nil
}

// assignmentObjectMiddleware loads the assignment and its course into the context.
func assignmentObjectMiddleware(deps *Deps) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			asg, err := deps.AssignmentSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == assignment.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding assignment by ID")
			}
			crs, err := deps.CourseSvc.GetByID(ctx.Request().Context(), asg.CourseID)
			if err != nil {
				return errors.Wrap(err, "finding assignment course")
			}
			ctx.Set("assignment", asg)
			ctx.Set("course", crs)
			return next(ctx)
		}
	}
}

// GradeRequest awards marks keyed by question number.
type GradeRequest struct {
	Marks map[int]int `json:"marks"`
}
