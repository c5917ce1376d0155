// Package pagination fetches ranges of section pages in parallel.
//
// The GIF API reports totalCount with every page, so the first page of a
// range tells how many pages can exist at all. The remaining pages are
// fetched concurrently with a bounded errgroup.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(apiClient, pagination.DefaultConfig())
//	pages, err := fetcher.FetchPages(ctx, gif.SectionTop, 0, 10)
//
// The batch fetcher:
//   - Fetches the first page of the range to learn the page size and total
//   - Caps the range at the last page the total allows
//   - Fetches the rest with at most MaxConcurrency requests in flight
//   - Returns pages in order, cut at the first empty page
//   - Returns the contiguous pages fetched before a failure with the error
//
// Run through client.Client every fetched page lands in the Redis cache,
// which is how gifctl warm prepares browsing sessions.
package pagination
