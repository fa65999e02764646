package papi

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/paperledge/papi/internal/constants"
)

// QueryParams represents common query parameters for list requests.
// Filters use the bracketed namespace convention (filter[key]=v), paging
// uses page[number]/page[size].
type QueryParams struct {
	Page     int
	PerPage  int
	Sort     string
	Include  []string
	Filters  map[string][]string
}

// NewQueryParams creates empty query parameters.
func NewQueryParams() *QueryParams {
	return &QueryParams{
		Filters: make(map[string][]string),
	}
}

// WithPage sets the page number.
func (q *QueryParams) WithPage(page int) *QueryParams {
	q.Page = page

	return q
}

// WithPerPage sets the page size. Sizes beyond the server's ceiling are
// clamped in ToValues rather than rejected.
func (q *QueryParams) WithPerPage(perPage int) *QueryParams {
	q.PerPage = perPage

	return q
}

// WithSort sets the sort expression (prefix a field with "-" for
// descending order).
func (q *QueryParams) WithSort(sort string) *QueryParams {
	q.Sort = sort

	return q
}

// WithInclude appends relationship names to sideload.
func (q *QueryParams) WithInclude(names ...string) *QueryParams {
	q.Include = append(q.Include, names...)

	return q
}

// WithFilter appends values to a named filter.
func (q *QueryParams) WithFilter(key string, values ...string) *QueryParams {
	if q.Filters == nil {
		q.Filters = make(map[string][]string)
	}

	q.Filters[key] = append(q.Filters[key], values...)

	return q
}

// ToValues converts the parameters to URL query values.
func (q *QueryParams) ToValues() url.Values {
	values := url.Values{}

	if q == nil {
		return values
	}

	if q.Page > 0 {
		values.Set("page[number]", strconv.Itoa(q.Page))
	}

	if q.PerPage > 0 {
		perPage := q.PerPage
		if perPage > constants.MaxPageSize {
			perPage = constants.MaxPageSize
		}

		values.Set("page[size]", strconv.Itoa(perPage))
	}

	if q.Sort != "" {
		values.Set("sort", q.Sort)
	}

	if len(q.Include) > 0 {
		values.Set("include", strings.Join(q.Include, ","))
	}

	for key, vals := range q.Filters {
		if len(vals) > 0 {
			values.Set("filter["+key+"]", strings.Join(vals, ","))
		}
	}

	return values
}
