package crm

import (
	"context"

	"github.com/pulseboard/pulseboard/pkg/logger"
	"github.com/pulseboard/pulseboard/pkg/metrics"
)

// fetchPageFunc returns one page of items at the given offset.
type fetchPageFunc[T any] func(ctx context.Context, limit, offset int) ([]T, error)

// fetchAll drives a page fetcher until a short page signals end-of-data or
// the item cap is reached. Pages are requested strictly in order; each page
// fetch goes through the full rate-limit and retry machinery.
func fetchAll[T any](ctx context.Context, c *Client, resource string, fetch fetchPageFunc[T]) ([]T, error) {
	var all []T
	offset := 0

	for {
		page, err := fetch(ctx, c.pageSize, offset)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		metrics.RecordPageFetched(resource)

		if len(page) < c.pageSize {
			return all, nil
		}

		if len(all) >= c.pageItemCap {
			// An endpoint that keeps returning full pages would loop
			// forever; halt here and serve what we have.
			c.logger.Warn(ctx, "pagination safety cap reached, truncating",
				logger.String("resource", resource),
				logger.Int("items", len(all)),
				logger.Int("cap", c.pageItemCap),
			)
			metrics.RecordPaginationCapHit()
			return all[:c.pageItemCap], nil
		}

		offset += len(page)
	}
}
