// Package pagination provides keyset-cursor helpers shared by list endpoints.
// A cursor is the id of the last row on the previous page; callers fetch
// limit+1 rows and let Build trim the overflow row.
package pagination

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Page[T any] struct {
	Items      []T
	NextCursor string
}

// ClampLimit normalizes a requested page size into [1, MaxPageSize],
// falling back to DefaultPageSize when unset.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// Build trims an over-fetched result set (limit+1 rows) down to limit and
// derives the next cursor from the last retained row. NextCursor is empty
// when the result set is exhausted.
func Build[T any](rows []T, limit int, cursorOf func(T) string) Page[T] {
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}

	rows = rows[:limit]
	return Page[T]{
		Items:      rows,
		NextCursor: cursorOf(rows[len(rows)-1]),
	}
}
