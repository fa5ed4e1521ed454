package http

import "context"

// PageFetcher fetches one page of items. Pages are numbered from 1.
// Returns the items, whether there are more pages, and any error.
type PageFetcher[T any] func(ctx context.Context, page int) (items []T, hasMore bool, err error)

// PageIterator walks paginated API results, fetching pages lazily so callers
// can act on items before later pages are requested.
type PageIterator[T any] struct {
	fetch   PageFetcher[T]
	page    int
	buffer  []T
	done    bool
	err     error
	fetched int
}

// NewPageIterator creates a new iterator with the given fetch function.
func NewPageIterator[T any](fetch PageFetcher[T]) *PageIterator[T] {
	return &PageIterator[T]{fetch: fetch}
}

// Next returns the next item from the iterator.
// When iteration is complete, returns (zero, false, nil).
func (p *PageIterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T

	if p.err != nil {
		return zero, false, p.err
	}

	// A page may come back empty while claiming more follow; keep going until
	// an item shows up or the listing ends.
	for len(p.buffer) == 0 && !p.done {
		if err := ctx.Err(); err != nil {
			p.err = err
			return zero, false, err
		}
		items, hasMore, err := p.fetch(ctx, p.page+1)
		if err != nil {
			p.err = err
			return zero, false, err
		}
		p.page++
		p.buffer = items
		p.done = !hasMore
	}

	if len(p.buffer) == 0 {
		return zero, false, nil
	}

	item := p.buffer[0]
	p.buffer = p.buffer[1:]
	p.fetched++

	return item, true, nil
}

// All collects all remaining items into a slice.
func (p *PageIterator[T]) All(ctx context.Context) ([]T, error) {
	var all []T
	for {
		item, ok, err := p.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return all, nil
		}
		all = append(all, item)
	}
}

// ForEach calls fn for each item in the iterator.
// If fn returns an error, iteration stops and that error is returned.
func (p *PageIterator[T]) ForEach(ctx context.Context, fn func(T) error) error {
	for {
		item, ok, err := p.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}

// Err returns any error that occurred during iteration.
func (p *PageIterator[T]) Err() error {
	return p.err
}

// Fetched returns the number of items handed out so far.
func (p *PageIterator[T]) Fetched() int {
	return p.fetched
}

// Pages returns the number of pages requested so far.
func (p *PageIterator[T]) Pages() int {
	return p.page
}
