package sqlxrepos

import (
	"fmt"
	"strings"

	"github.com/tsacademy/academia/core"
)

// whereBuilder accumulates AND-ed conditions with positional args.
// Conditions use `?` bindvars; callers Rebind for the driver.
type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (b *whereBuilder) add(cond string, args ...interface{}) {
	b.conds = append(b.conds, cond)
	b.args = append(b.args, args...)
}

func (b *whereBuilder) clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// optsClause renders ORDER BY / LIMIT. Ordering fields come from code,
// never from request input.
func optsClause(opts core.QueryOptions) string {
	var sb strings.Builder
	if len(opts.Ordering) > 0 {
		ords := make([]string, 0, len(opts.Ordering))
		for _, ord := range opts.Ordering {
			ords = append(ords, ord.String())
		}
		sb.WriteString(" ORDER BY " + strings.Join(ords, ", "))
	}
	if opts.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", opts.Limit))
	}
	return sb.String()
}
