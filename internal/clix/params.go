package clix

import (
	"strings"

	"github.com/spf13/pflag"
)

const defaultLimit = 20

type PaginationParams struct {
	Limit  int
	Offset int
}

// AddPaginationFlags registers --limit/-n and --offset/-o on flags.
func AddPaginationFlags(flags *pflag.FlagSet, limit int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	flags.IntP("limit", "n", limit, "Maximum number of items to list")
	flags.IntP("offset", "o", 0, "Number of items to skip")
}

func ParsePagination(flags *pflag.FlagSet) (PaginationParams, error) {
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

// ParseList splits a comma separated flag value, dropping empty items.
func ParseList(flags *pflag.FlagSet, name string) ([]string, error) {
	raw, err := flags.GetString(name)
	if err != nil {
		return nil, err
	}
	var items []string
	if raw != "" {
		// Trim space and filter out empty strings in one pass
		for _, t := range strings.Split(raw, ",") {
			trimmed := strings.TrimSpace(t)
			if trimmed != "" {
				items = append(items, trimmed)
			}
		}
	}
	return items, nil
}
