// Package pagination turns raw page/limit/sort query values into bounded,
// allow-listed parameters and builds the metadata returned with every list.
package pagination

import (
	"math"
	"strings"
)

const (
	DefaultLimit    = 10
	DefaultMaxLimit = 50
	// MaxSkip bounds the row offset handed to Postgres OFFSET and Mongo skip.
	MaxSkip = math.MaxInt32
)

// Page is a resolved page window.
type Page struct {
	Number int // 1-based
	Limit  int
	Skip   int
}

// NewPage clamps page to >= 1 and limit to [1, maxLimit]. A non-positive
// limit falls back to DefaultLimit; a non-positive maxLimit to DefaultMaxLimit.
// page is also capped so Skip never exceeds MaxSkip.
func NewPage(page, limit, maxLimit int) Page {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if page-1 > MaxSkip/limit {
		page = MaxSkip/limit + 1
	}
	return Page{Number: page, Limit: limit, Skip: (page - 1) * limit}
}

// Sort is a resolved sort key. Field is always one of the allowed names.
type Sort struct {
	Field string
	Desc  bool
}

// NewSort resolves field against allowed; unknown or empty fields fall back
// to fallback. Only "asc" (case-insensitive) sorts ascending.
func NewSort(field, order string, allowed []string, fallback string) Sort {
	resolved := fallback
	for _, a := range allowed {
		if a == field {
			resolved = field
			break
		}
	}
	return Sort{
		Field: resolved,
		Desc:  !strings.EqualFold(strings.TrimSpace(order), "asc"),
	}
}

// Meta describes a page within a result set.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// BuildMeta computes the page metadata for total matching rows.
func BuildMeta(p Page, total int64) Meta {
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Meta{Page: p.Number, Limit: p.Limit, Total: total, TotalPages: pages}
}
