package papi

import (
	"context"
	"errors"

	"github.com/paperledge/papi/internal/constants"
)

// PageLister fetches one page of a list endpoint.
type PageLister interface {
	ListWithPath(ctx context.Context, path string, params *QueryParams) (*ListEnvelope, error)
}

// PageOptions tunes bulk pagination helpers.
type PageOptions struct {
	// PageSize is the per-page size to request (clamped server-side to 25).
	PageSize int
	// MaxPages bounds the number of pages fetched; zero uses the default.
	MaxPages int
}

// PageIterator walks a paginated list one resource at a time, fetching
// pages lazily.
type PageIterator struct {
	ctx     context.Context
	client  PageLister
	path    string
	params  *QueryParams
	current *ListEnvelope
	index   int
	page    int
	done    bool
}

// NewPageIterator creates an iterator over all pages of a list endpoint.
// When no page size is requested the iterator asks for DefaultPageSize
// resources per fetch.
func NewPageIterator(ctx context.Context, client PageLister, path string, params *QueryParams) *PageIterator {
	if params == nil {
		params = NewQueryParams()
	}

	if params.PerPage == 0 {
		copied := *params
		copied.PerPage = constants.DefaultPageSize
		params = &copied
	}

	return &PageIterator{
		ctx:    ctx,
		client: client,
		path:   path,
		params: params,
		page:   1,
	}
}

// HasNext reports whether another resource is available.
func (it *PageIterator) HasNext() bool {
	if it.done {
		return false
	}

	if it.current == nil {
		return true // nothing fetched yet
	}

	if it.index < len(it.current.Data) {
		return true
	}

	return it.current.Meta.CurrentPage < it.current.Meta.TotalPages
}

// Next returns the next resource, fetching the next page when the current
// one is exhausted.
func (it *PageIterator) Next() (*ResourceObject, error) {
	if it.current == nil || it.index >= len(it.current.Data) {
		if it.current != nil {
			if it.current.Meta.CurrentPage >= it.current.Meta.TotalPages {
				it.done = true

				return nil, ErrNoMoreItems
			}

			it.page = it.current.Meta.CurrentPage + 1
		}

		err := it.fetch()
		if err != nil {
			return nil, err
		}

		if len(it.current.Data) == 0 {
			it.done = true

			return nil, ErrNoMoreItems
		}
	}

	obj := &it.current.Data[it.index]
	it.index++

	return obj, nil
}

// All collects every remaining resource across all pages.
func (it *PageIterator) All() ([]ResourceObject, error) {
	var all []ResourceObject

	for it.HasNext() {
		obj, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				break
			}

			return nil, err
		}

		all = append(all, *obj)
	}

	return all, nil
}

// ForEach applies fn to every remaining resource, stopping on the first
// error.
func (it *PageIterator) ForEach(fn func(ResourceObject) error) error {
	for it.HasNext() {
		obj, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				return nil
			}

			return err
		}

		err = fn(*obj)
		if err != nil {
			return err
		}
	}

	return nil
}

func (it *PageIterator) fetch() error {
	params := *it.params
	params.Page = it.page

	envelope, err := it.client.ListWithPath(it.ctx, it.path, &params)
	if err != nil {
		return err
	}

	it.current = envelope
	it.index = 0

	return nil
}

// FetchAllPages eagerly fetches every page of a list endpoint, bounded by
// MaxPages to guard against runaway pagination.
func FetchAllPages(ctx context.Context, client PageLister, path string, params *QueryParams, opts *PageOptions) ([]ResourceObject, error) {
	if params == nil {
		params = NewQueryParams()
	}

	maxPages := constants.MaxPages
	if opts != nil && opts.MaxPages > 0 {
		maxPages = opts.MaxPages
	}

	pageSize := params.PerPage
	if opts != nil && opts.PageSize > 0 {
		pageSize = opts.PageSize
	}

	if pageSize == 0 {
		pageSize = constants.DefaultPageSize
	}

	var all []ResourceObject

	for page := 1; page <= maxPages; page++ {
		pageParams := *params
		pageParams.Page = page
		pageParams.PerPage = pageSize

		envelope, err := client.ListWithPath(ctx, path, &pageParams)
		if err != nil {
			return nil, err
		}

		all = append(all, envelope.Data...)

		if envelope.Meta.CurrentPage >= envelope.Meta.TotalPages {
			break
		}
	}

	return all, nil
}
