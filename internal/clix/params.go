package clix

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Pagination holds the common list-command paging parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads and validates --limit/--offset from a flag set.
func ParsePagination(flags *pflag.FlagSet) (Pagination, error) {
	limit, err := flags.GetInt("limit")
	if err != nil {
		return Pagination{}, fmt.Errorf("invalid --limit: %w", err)
	}
	offset, err := flags.GetInt("offset")
	if err != nil {
		return Pagination{}, fmt.Errorf("invalid --offset: %w", err)
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return Pagination{Limit: limit, Offset: offset}, nil
}
