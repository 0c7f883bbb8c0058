package postgres

import (
	"fmt"
	"strings"
)

// where accumulates conditions with positional arguments. Each "?" in a
// condition is replaced by the next $n placeholder.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// limit appends LIMIT/OFFSET placeholders after the filter arguments.
func (w *where) limit(limit, offset int) (string, []any) {
	args := append(append([]any(nil), w.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(w.args)+1, len(w.args)+2), args
}

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}
