package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tsacademy/academia/core"
)

var (
	orderingParam = "ordering"
	limitParam    = "limit"
)

// QueryOpts binds the uniform list-query knobs from the query string:
// `ordering=field,-other` (a `-` prefix means descending) and `limit=n`.
// Ordering fields not in the allowed set are dropped; they end up in SQL.
type QueryOpts struct {
	Opts core.QueryOptions
}

func (qo *QueryOpts) Bind(ctx echo.Context, allowedFields ...string) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}

	if val, ok := data[orderingParam]; ok && len(val) > 0 && val[0] != "" {
		for _, field := range strings.Split(val[0], ",") {
			field = strings.TrimSpace(field)
			descending := strings.HasPrefix(field, "-")
			if descending {
				field = field[1:] // drop "-"
			}
			if !fieldAllowed(field, allowedFields) {
				continue
			}
			qo.Opts.Ordering = append(qo.Opts.Ordering, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}

	if val, ok := data[limitParam]; ok && len(val) > 0 {
		if limit, err := strconv.Atoi(val[0]); err == nil && limit > 0 {
			qo.Opts.Limit = limit
		}
	}
}

func fieldAllowed(field string, allowed []string) bool {
	for _, f := range allowed {
		if f == field {
			return true
		}
	}
	return false
}
