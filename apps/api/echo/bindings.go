package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/halaqat/core"
)

var (
	orderingParam = "ordering"
	dateParam     = "date"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// queryDate reads a YYYY-MM-DD query param, falling back to today when absent.
func queryDate(ctx echo.Context, name string) (core.Date, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return core.Today(), nil
	}
	d, err := core.ParseDate(val)
	if err != nil {
		return "", core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be a date formatted as YYYY-MM-DD"})
	}
	return d, nil
}

// optionalDate reads a YYYY-MM-DD query param that may be left empty.
func optionalDate(ctx echo.Context, name string) (core.Date, error) {
	if ctx.QueryParam(name) == "" {
		return "", nil
	}
	return queryDate(ctx, name)
}

func queryInt(ctx echo.Context, name string, def int) int {
	if n, err := strconv.Atoi(ctx.QueryParam(name)); err == nil && n > 0 {
		return n
	}
	return def
}
