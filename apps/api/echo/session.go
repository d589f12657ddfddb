package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/session"
)

var errSessNotFoundInCtx = errors.New("session object not found in echo.Context")

type sessionApi struct {
	deps *Deps
}

// registerSessionAPI returns the /sessions/:id group so the attendance
// API can hang its routes off it: creating a second group on the same
// prefix re-registers NotFound handlers over these routes.
func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) *echo.Group {
	api := sessionApi{deps: deps}

	cg := g.Group("/courses/:id/sessions", jwt, courseObjectMiddleware(deps.CourseSvc))
	cg.POST("", api.create)
	cg.GET("", api.query)

	sg := g.Group("/sessions/:id", jwt, sessionObjectMiddleware(deps))
	sg.GET("", api.retrieve)
	sg.DELETE("", api.destroy)
	return sg
}

// Handlers

func (api *sessionApi) create(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseStaff(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}

	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sess, err := api.deps.SessionSvc.Create(ctx.Request().Context(), crs.ID, claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *sessionApi) query(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseMember(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}

	sessions, err := api.deps.SessionSvc.QueryByCourse(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, crs, err := contextSession(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseMember(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	sess, crs, err := contextSession(ctx)
	if err != nil {
		return err
	}
	if err := requireCourseStaff(ctx, api.deps.CourseSvc, crs); err != nil {
		return err
	}

	if err := api.deps.SessionSvc.Delete(ctx.Request().Context(), sess.ID); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func contextSession(ctx echo.Context) (session.Session, course.Course, error) {
	sess, ok := ctx.Get("session").(session.Session)
	if !ok {
		return session.Session{}, course.Course{}, errors.Wrap(errSessNotFoundInCtx, "retrieving object from context")
	}
	crs, err := contextCourse(ctx)
	if err != nil {
		return session.Session{}, course.Course{}, err
	}
	return sess, crs, nil
}

// sessionObjectMiddleware loads the session and its course into the context.
func sessionObjectMiddleware(deps *Deps) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := deps.SessionSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == session.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding session by ID")
			}
			crs, err := deps.CourseSvc.GetByID(ctx.Request().Context(), sess.CourseID)
			if err != nil {
				return errors.Wrap(err, "finding session course")
			}
			ctx.Set("session", sess)
			ctx.Set("course", crs)
			return next(ctx)
		}
	}
}
