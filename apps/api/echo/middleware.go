package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.IsAdmin {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// teacherMiddleware lets teachers and admins through.
func teacherMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.IsTeacher {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// checkClassroomAccess allows admins and teachers of the classroom.
// Active students are allowed too unless teacherOnly is set.
func (a *api) checkClassroomAccess(ctx echo.Context, classroomID string, teacherOnly bool) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.IsAdmin {
		return nil
	}

	rctx := ctx.Request().Context()
	ok, err := a.classrooms.IsTeacherOf(rctx, classroomID, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "checking teacher membership")
	}
	if ok {
		return nil
	}
	if !teacherOnly {
		if ok, err = a.classrooms.IsStudentOf(rctx, classroomID, claims.Subject); err != nil {
			return errors.Wrap(err, "checking student membership")
		}
		if ok {
			return nil
		}
	}
	return errHttpForbidden
}

// checkSelfOrTeacher allows a student to act on their own records, and teachers of the classroom on anyone's.
func (a *api) checkSelfOrTeacher(ctx echo.Context, classroomID, studentID string) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.Subject == studentID {
		return nil
	}
	return a.checkClassroomAccess(ctx, classroomID, true)
}

// listScope returns the student a listing must be narrowed to: nobody for admins and teachers of classroomID,
// the caller for everyone else.
func (a *api) listScope(ctx echo.Context, classroomID string) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	if claims.IsAdmin {
		return "", nil
	}
	if classroomID != "" {
		ok, err := a.classrooms.IsTeacherOf(ctx.Request().Context(), classroomID, claims.Subject)
		if err != nil {
			return "", errors.Wrap(err, "checking teacher membership")
		}
		if ok {
			return "", nil
		}
	}
	return claims.Subject, nil
}
