package httpx

import (
	"net/url"
	"strings"
)

// Sort directions accepted by list endpoints.
const (
	SortDirAsc  = "asc"
	SortDirDesc = "desc"
)

// ParseSortParam reads a sort column and direction from list query
// parameters. Both ?sort=col:dir and ?sort=col&dir=dir spellings are
// accepted; the colon form wins when both are present. Directions other
// than asc or desc come back as "" so callers fall through to their
// default ordering. Column names are returned as sent; repositories
// whitelist them before they reach SQL.
func ParseSortParam(q url.Values, sortKey, dirKey string) (string, string) {
	sort := strings.TrimSpace(q.Get(sortKey))

	if col, dir, found := strings.Cut(sort, ":"); found {
		col = strings.TrimSpace(col)
		switch dir = strings.ToLower(strings.TrimSpace(dir)); dir {
		case SortDirAsc, SortDirDesc:
			return col, dir
		}
		return col, ""
	}

	switch dir := strings.ToLower(strings.TrimSpace(q.Get(dirKey))); dir {
	case SortDirAsc, SortDirDesc:
		return sort, dir
	}
	return sort, ""
}
