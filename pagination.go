package labflow

import (
	"strconv"
	"strings"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
	SortNone SortDirection = ""
)

func (s SortDirection) String() string {
	return string(s)
}

type Pageable struct {
	Page      int           `form:"page,default=1" json:"page"`
	Limit     int           `form:"limit,default=25" json:"limit"`
	Sort      string        `form:"sort" json:"sort"`
	Direction SortDirection `form:"direction" json:"direction"`
}

func (p *Pageable) IsPaged() bool {
	return p.Limit > 0
}

func (p *Pageable) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 0 {
		p.Limit = 0
	}
}

type Page struct {
	Items      interface{} `json:"items"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	Total      int         `json:"total"`
	TotalPages int         `json:"totalPages"`
}

func NewPage(pageable Pageable, total int, items interface{}) Page {
	var totalPages int
	if !pageable.IsPaged() {
		if total > 0 {
			totalPages = 1
		}
		return Page{
			Items:      items,
			Page:       1,
			Limit:      0,
			Total:      total,
			TotalPages: totalPages,
		}
	}

	if total > 0 {
		totalPages = (total + pageable.Limit - 1) / pageable.Limit
	}

	return Page{
		Items:      items,
		Page:       pageable.Page,
		Limit:      pageable.Limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

func isSorted(pageable Pageable) bool {
	return pageable.Sort != ""
}

func isSortable(column string, sortableColumns []string) bool {
	for _, sortable := range sortableColumns {
		if column == sortable {
			return true
		}
	}
	return false
}

// applyPagination builds the ORDER BY / LIMIT / OFFSET suffix. The sort column
// is caller-supplied, so it has to match one of sortableColumns; anything else
// falls back to defaultSort instead of reaching the SQL string.
func applyPagination(pageable Pageable, tableAlias, defaultSort string, sortableColumns ...string) string {
	var paginationQueryPart string
	if isSorted(pageable) && isSortable(pageable.Sort, sortableColumns) {
		paginationQueryPart += " ORDER BY " + tableAlias + "." + pageable.Sort
		if pageable.Direction != SortNone {
			paginationQueryPart += " " + strings.ToUpper(pageable.Direction.String())
		}
	} else if defaultSort != "" {
		paginationQueryPart += " ORDER BY " + defaultSort
	}
	if pageable.IsPaged() {
		paginationQueryPart += " LIMIT " + strconv.Itoa(pageable.Limit)
		if pageable.Page > 1 {
			paginationQueryPart += " OFFSET " + strconv.Itoa(pageable.Limit*(pageable.Page-1))
		}
	}
	return paginationQueryPart
}
