package echoapi

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/chat"
	"github.com/tutoria/tutoria/core/progress"
)

// bind decodes the request body into i.
// Validation errors raised while decoding (e.g. a subject with both fields set) keep their kind.
func bind(ctx echo.Context, i interface{}) error {
	err := ctx.Bind(i)
	if err == nil {
		return nil
	}
	var validErr *core.ValidationError
	if errors.As(err, &validErr) {
		return validErr
	}
	if httpErr, ok := err.(*echo.HTTPError); ok && httpErr.Internal != nil {
		if errors.As(httpErr.Internal, &validErr) {
			return validErr
		}
	}
	return err
}

func queryString(data url.Values, name string) string {
	return strings.TrimSpace(data.Get(name))
}

func queryBool(data url.Values, name string) (bool, error) {
	val := queryString(data, name)
	if val == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, core.NewFieldError(name, "must be a boolean")
	}
	return b, nil
}

func queryInt(data url.Values, name string) (int, error) {
	val := queryString(data, name)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewFieldError(name, "must be an integer")
	}
	return n, nil
}

// queryTime parses an RFC 3339 timestamp or a plain date.
func queryTime(data url.Values, name string) (time.Time, error) {
	val := queryString(data, name)
	if val == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, val); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, core.NewFieldError(name, "must be an RFC 3339 timestamp or a YYYY-MM-DD date")
}

func bindChatFilter(ctx echo.Context) (chat.Filter, error) {
	data := ctx.QueryParams()
	limit, err := queryInt(data, "limit")
	if err != nil {
		return chat.Filter{}, err
	}
	return chat.Filter{
		StudentID:   queryString(data, "student_id"),
		ClassroomID: queryString(data, "classroom_id"),
		Limit:       limit,
	}, nil
}

func bindProgressFilter(ctx echo.Context) (progress.Filter, error) {
	data := ctx.QueryParams()
	filter := progress.Filter{
		StudentID:   queryString(data, "student_id"),
		ClassroomID: queryString(data, "classroom_id"),
		SubjectID:   queryString(data, "subject_id"),
		FreeText:    queryString(data, "free_text"),
		Metric:      queryString(data, "metric"),
	}
	var err error
	if filter.From, err = queryTime(data, "from"); err != nil {
		return progress.Filter{}, err
	}
	if filter.To, err = queryTime(data, "to"); err != nil {
		return progress.Filter{}, err
	}
	return filter, nil
}
